package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"dirdiff/diff"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type textStyles struct {
	same    lipgloss.Style
	changed lipgloss.Style
	heading lipgloss.Style
}

// newTextStyles binds colours to w. In auto mode the profile follows the
// writer, so files and pipes get plain text.
func newTextStyles(w io.Writer, mode string) textStyles {
	renderer := lipgloss.NewRenderer(w)
	switch mode {
	case "always":
		renderer.SetColorProfile(termenv.ANSI)
	case "never":
		renderer.SetColorProfile(termenv.Ascii)
	}
	return textStyles{
		same:    renderer.NewStyle().Foreground(lipgloss.Color("10")),
		changed: renderer.NewStyle().Foreground(lipgloss.Color("9")),
		heading: renderer.NewStyle().Bold(true),
	}
}

func writeText(w io.Writer, rep diff.Report, opts Options, styles textStyles) error {
	algo := strings.ToUpper(opts.Algorithm)
	if algo == "" {
		algo = "MD5"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Comparing:\n- FROM: %s\n- TO:   %s\n", opts.From, opts.To)

	if opts.ShowIdentical && len(rep.Identical) > 0 {
		section(&b, styles, fmt.Sprintf("Identical files (same %s and size):", algo))
		for _, e := range rep.Identical {
			line(&b, styles.same, fmt.Sprintf("= %s (size: %d bytes)", e.Path, e.Size))
		}
	}
	if len(rep.Added) > 0 {
		section(&b, styles, "Files to add (present in TO but not in FROM):")
		for _, e := range rep.Added {
			line(&b, styles.changed, fmt.Sprintf("+ %s (size: %d bytes)", joinRoot(opts.To, e.Path), e.Size))
		}
	}
	if len(rep.Removed) > 0 {
		section(&b, styles, "Files to remove (present in FROM but not in TO):")
		for _, e := range rep.Removed {
			line(&b, styles.changed, fmt.Sprintf("- %s (size: %d bytes)", joinRoot(opts.From, e.Path), e.Size))
		}
	}
	if len(rep.Modified) > 0 {
		section(&b, styles, "Files that have changed (different between FROM and TO):")
		for _, c := range rep.Modified {
			line(&b, styles.changed, fmt.Sprintf("* %s (FROM size: %d bytes, TO size: %d bytes)", c.Path, c.FromSize, c.ToSize))
		}
	}

	if rep.Empty() {
		line(&b, styles.same, "No differences or identical files found.")
	} else {
		counts := rep.Counts()
		b.WriteString("\n")
		summaryLine := fmt.Sprintf("Summary: %d identical, %d added, %d removed, %d modified",
			counts.Identical, counts.Added, counts.Removed, counts.Modified)
		if rep.HasDifferences() {
			line(&b, styles.changed, summaryLine)
		} else {
			line(&b, styles.same, summaryLine)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, styles textStyles, title string) {
	b.WriteString("\n")
	b.WriteString(styles.heading.Render(title))
	b.WriteString("\n")
}

func line(b *strings.Builder, style lipgloss.Style, text string) {
	b.WriteString(style.Render(text))
	b.WriteString("\n")
}

func joinRoot(root, key string) string {
	if root == "" {
		return key
	}
	return filepath.Join(root, filepath.FromSlash(key))
}
