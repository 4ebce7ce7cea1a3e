package diff

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"dirdiff/hasher"
	"dirdiff/logger"
	"dirdiff/scanner"
)

func init() {
	logger.Init("error")
}

func fp(digest string, size uint64) hasher.Fingerprint {
	return hasher.Fingerprint{Digest: digest, Size: size}
}

func paths(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func TestDiffClassifiesEveryKey(t *testing.T) {
	a := scanner.Result{
		"x":   fp("aa", 1),
		"y":   fp("bb", 2),
		"sub": fp("cc", 3),
	}
	b := scanner.Result{
		"y":   fp("bb", 2),
		"sub": fp("dd", 4),
		"z":   fp("ee", 5),
	}

	r := Diff(a, b)
	if got := paths(r.Removed); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("removed: %v", got)
	}
	if got := paths(r.Added); !reflect.DeepEqual(got, []string{"z"}) {
		t.Fatalf("added: %v", got)
	}
	if got := paths(r.Identical); !reflect.DeepEqual(got, []string{"y"}) {
		t.Fatalf("identical: %v", got)
	}
	if len(r.Modified) != 1 || r.Modified[0] != (Change{Path: "sub", FromSize: 3, ToSize: 4}) {
		t.Fatalf("modified: %+v", r.Modified)
	}
	if r.Removed[0].Size != 1 || r.Added[0].Size != 5 {
		t.Fatalf("sizes taken from the wrong side: %+v %+v", r.Removed, r.Added)
	}
	if r.Counts().Total() != 4 {
		t.Fatalf("expected 4 distinct paths, got %d", r.Counts().Total())
	}
}

func TestDiffComparesWholeFingerprint(t *testing.T) {
	a := scanner.Result{"f": fp("same", 10)}
	b := scanner.Result{"f": fp("same", 11)}
	r := Diff(a, b)
	if len(r.Modified) != 1 || len(r.Identical) != 0 {
		t.Fatalf("size difference must count as modified: %+v", r)
	}
}

func TestDiffSelfIsIdentical(t *testing.T) {
	a := scanner.Result{"a": fp("1", 1), "b/c": fp("2", 2), "d": fp("3", 0)}
	r := Diff(a, a)
	if r.HasDifferences() {
		t.Fatalf("self diff has differences: %+v", r)
	}
	if got := paths(r.Identical); !reflect.DeepEqual(got, []string{"a", "b/c", "d"}) {
		t.Fatalf("identical not sorted or incomplete: %v", got)
	}
}

func TestDiffSymmetry(t *testing.T) {
	a := scanner.Result{"x": fp("1", 1), "m": fp("2", 2), "s": fp("3", 3)}
	b := scanner.Result{"y": fp("4", 4), "m": fp("5", 5), "s": fp("3", 3)}

	forward := Diff(a, b)
	backward := Diff(b, a)
	if !reflect.DeepEqual(paths(forward.Added), paths(backward.Removed)) {
		t.Fatal("added(a,b) != removed(b,a)")
	}
	if !reflect.DeepEqual(paths(forward.Removed), paths(backward.Added)) {
		t.Fatal("removed(a,b) != added(b,a)")
	}
	if !reflect.DeepEqual(forward.Reverse(), backward) {
		t.Fatalf("reverse mismatch:\n%+v\n%+v", forward.Reverse(), backward)
	}
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	a := scanner.Result{"x": fp("1", 1)}
	b := scanner.Result{"y": fp("2", 2)}
	Diff(a, b)
	if len(a) != 1 || len(b) != 1 {
		t.Fatal("inputs were modified")
	}
}

func TestEmptyReport(t *testing.T) {
	r := Diff(scanner.Result{}, scanner.Result{})
	if !r.Empty() || r.HasDifferences() {
		t.Fatalf("expected empty report: %+v", r)
	}
	if r.Added == nil || r.Modified == nil {
		t.Fatal("buckets should be empty slices, not nil")
	}
}

func TestOutcomesOrder(t *testing.T) {
	r := Report{
		Added:     []Entry{{Path: "a", Size: 1}},
		Removed:   []Entry{{Path: "r", Size: 2}},
		Modified:  []Change{{Path: "m", FromSize: 3, ToSize: 4}},
		Identical: []Entry{{Path: "i", Size: 5}},
	}
	got := r.Outcomes()
	kinds := []Kind{got[0].Kind, got[1].Kind, got[2].Kind, got[3].Kind}
	if !reflect.DeepEqual(kinds, []Kind{Identical, Added, Removed, Modified}) {
		t.Fatalf("unexpected order: %v", kinds)
	}
	if got[3].FromSize != 3 || got[3].ToSize != 4 {
		t.Fatalf("change sizes lost: %+v", got[3])
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func scanBoth(t *testing.T, from, to string) Report {
	t.Helper()
	a, b, err := scanner.ScanPair(context.Background(), from, to, scanner.Options{Concurrency: 4})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return Diff(a, b)
}

func TestScenarioAddedRemovedIdentical(t *testing.T) {
	from, to := t.TempDir(), t.TempDir()
	writeFiles(t, from, map[string]string{"x.txt": "hello", "y.txt": "world"})
	writeFiles(t, to, map[string]string{"y.txt": "world", "z.txt": "new"})

	r := scanBoth(t, from, to)
	if !reflect.DeepEqual(r.Removed, []Entry{{Path: "x.txt", Size: 5}}) {
		t.Fatalf("removed: %+v", r.Removed)
	}
	if !reflect.DeepEqual(r.Added, []Entry{{Path: "z.txt", Size: 3}}) {
		t.Fatalf("added: %+v", r.Added)
	}
	if !reflect.DeepEqual(r.Identical, []Entry{{Path: "y.txt", Size: 5}}) {
		t.Fatalf("identical: %+v", r.Identical)
	}
	if len(r.Modified) != 0 {
		t.Fatalf("modified: %+v", r.Modified)
	}
}

func TestScenarioModifiedNested(t *testing.T) {
	from, to := t.TempDir(), t.TempDir()
	writeFiles(t, from, map[string]string{"sub/a.bin": "abc"})
	writeFiles(t, to, map[string]string{"sub/a.bin": "abcd"})

	r := scanBoth(t, from, to)
	want := []Change{{Path: "sub/a.bin", FromSize: 3, ToSize: 4}}
	if !reflect.DeepEqual(r.Modified, want) {
		t.Fatalf("modified: %+v", r.Modified)
	}
	if r.Counts() != (Counts{Modified: 1}) {
		t.Fatalf("counts: %+v", r.Counts())
	}
}

func TestScenarioBothEmpty(t *testing.T) {
	r := scanBoth(t, t.TempDir(), t.TempDir())
	if !r.Empty() {
		t.Fatalf("expected empty report: %+v", r)
	}
}

func TestScenarioUnreadableFileOnlyAffectsItsPath(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	from, to := t.TempDir(), t.TempDir()
	writeFiles(t, from, map[string]string{"ok.txt": "same", "locked.txt": "x"})
	writeFiles(t, to, map[string]string{"ok.txt": "same", "locked.txt": "x"})
	locked := filepath.Join(from, "locked.txt")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0644)

	r := scanBoth(t, from, to)
	if !reflect.DeepEqual(paths(r.Identical), []string{"ok.txt"}) {
		t.Fatalf("identical: %+v", r.Identical)
	}
	if !reflect.DeepEqual(paths(r.Added), []string{"locked.txt"}) {
		t.Fatalf("a file unreadable on FROM shows up as added: %+v", r.Added)
	}
}
