// Package hasher computes content fingerprints for regular files.
package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/mmap"
	"lukechampine.com/blake3"
)

const (
	hashBufferSmallSize      = 32 * 1024
	hashBufferLargeSize      = 128 * 1024
	hashLargeBufferThreshold = 256 * 1024

	DefaultAlgorithm   = "md5"
	DefaultMmapMinSize = 128 * 1024
)

const (
	ReadModeStream = "stream"
	ReadModeMmap   = "mmap"
	ReadModeAuto   = "auto"
)

var (
	// ErrRead matches every *ReadError.
	ErrRead                 = errors.New("file read failed")
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")
	ErrNotRegular           = errors.New("not a regular file")
)

var hashBufferSmallPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, hashBufferSmallSize)
		return &buf
	},
}

var hashBufferLargePool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, hashBufferLargeSize)
		return &buf
	},
}

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"xxhash": func() hash.Hash { return xxhash.New() },
	"blake3": func() hash.Hash { return blake3.New(32, nil) },
}

var openMmapReader = mmap.Open

// Fingerprint identifies file content. Two files are considered equal only
// when both the digest and the byte count match.
type Fingerprint struct {
	Digest string `json:"digest"`
	Size   uint64 `json:"size"`
}

// ReadError reports a file that could not be hashed.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("hash %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrRead }

type Options struct {
	Algorithm   string
	ReadMode    string
	MmapMinSize int64
}

// Algorithms lists the supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewHash returns a fresh digest for the named algorithm.
func NewHash(name string) (hash.Hash, error) {
	name = normalizeAlgorithm(name)
	fn, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, name)
	}
	return fn(), nil
}

func normalizeAlgorithm(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultAlgorithm
	}
	return name
}

// Hash reads the file at path and returns its fingerprint. Any I/O failure
// yields a *ReadError and a zero Fingerprint, never a partial digest.
func Hash(path string, opts Options) (Fingerprint, error) {
	h, err := NewHash(opts.Algorithm)
	if err != nil {
		return Fingerprint{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, &ReadError{Path: path, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Fingerprint{}, &ReadError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return Fingerprint{}, &ReadError{Path: path, Err: ErrNotRegular}
	}

	mode := strings.ToLower(strings.TrimSpace(opts.ReadMode))
	minSize := opts.MmapMinSize
	if minSize <= 0 {
		minSize = DefaultMmapMinSize
	}
	useMmap := mode == ReadModeMmap || (mode == ReadModeAuto && info.Size() >= minSize)
	if useMmap {
		size, err := hashMmap(path, h)
		if err == nil {
			return Fingerprint{Digest: hex.EncodeToString(h.Sum(nil)), Size: size}, nil
		}
		if mode == ReadModeMmap {
			return Fingerprint{}, &ReadError{Path: path, Err: err}
		}
		h.Reset()
	}

	adviseSequential(file)
	size, err := hashStream(file, h, info.Size())
	if err != nil {
		return Fingerprint{}, &ReadError{Path: path, Err: err}
	}
	return Fingerprint{Digest: hex.EncodeToString(h.Sum(nil)), Size: size}, nil
}

// HashReader fingerprints an arbitrary stream.
func HashReader(r io.Reader, algorithm string) (Fingerprint, error) {
	h, err := NewHash(algorithm)
	if err != nil {
		return Fingerprint{}, err
	}
	size, err := hashStream(r, h, 0)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Digest: hex.EncodeToString(h.Sum(nil)), Size: size}, nil
}

func hashStream(r io.Reader, h hash.Hash, sizeHint int64) (uint64, error) {
	bufferPool := &hashBufferSmallPool
	if sizeHint >= hashLargeBufferThreshold {
		bufferPool = &hashBufferLargePool
	}
	bufferPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufferPtr)
	buffer := *bufferPtr

	var total uint64
	for {
		n, readErr := r.Read(buffer)
		if n > 0 {
			// hash.Hash.Write never returns an error.
			_, _ = h.Write(buffer[:n])
			total += uint64(n)
		}
		if readErr != nil {
			if readErr == io.EOF {
				return total, nil
			}
			return 0, readErr
		}
	}
}

func hashMmap(path string, h hash.Hash) (uint64, error) {
	r, err := openMmapReader(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	bufferPtr := hashBufferLargePool.Get().(*[]byte)
	defer hashBufferLargePool.Put(bufferPtr)
	buffer := *bufferPtr

	length := r.Len()
	var total uint64
	for off := 0; off < length; {
		chunk := len(buffer)
		if remaining := length - off; remaining < chunk {
			chunk = remaining
		}
		n, err := r.ReadAt(buffer[:chunk], int64(off))
		if n > 0 {
			_, _ = h.Write(buffer[:n])
			total += uint64(n)
			off += n
		}
		if err != nil && !(err == io.EOF && n == chunk) {
			return 0, err
		}
		if n == 0 {
			return 0, io.ErrUnexpectedEOF
		}
	}
	return total, nil
}
