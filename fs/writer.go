// Package fs persists documents as Markdown files on the local file system.
package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fwojciec/kura"
)

// Ensure Writer implements kura.DocumentWriter at compile time.
var _ kura.DocumentWriter = (*Writer)(nil)

// Writer writes documents as markdown files to a directory.
// Each document lands at the storage path derived from its slug;
// an existing file at that path is replaced.
type Writer struct {
	baseDir  string
	withDate bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithDate adds the crawl date to the front matter. Off by default so that
// re-running a crawl of an unchanged site produces identical files.
func WithDate(enabled bool) Option {
	return func(w *Writer) {
		w.withDate = enabled
	}
}

// NewWriter creates a new Writer that writes to the given base directory.
func NewWriter(baseDir string, opts ...Option) *Writer {
	w := &Writer{baseDir: baseDir}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open creates the base directory and verifies it is writable.
func (w *Writer) Open() error {
	if err := os.MkdirAll(w.baseDir, 0755); err != nil {
		return ioError("create output directory", w.baseDir, err)
	}

	probe, err := os.CreateTemp(w.baseDir, ".kura-probe-*")
	if err != nil {
		return ioError("probe output directory", w.baseDir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := os.Remove(name); err != nil {
		return ioError("probe output directory", w.baseDir, err)
	}
	return nil
}

// Path returns the absolute file path for a slug.
func (w *Writer) Path(slug string) string {
	return filepath.Join(w.baseDir, filepath.FromSlash(kura.SlugPath(slug)))
}

// CreateDocument writes a document to disk as a markdown file.
func (w *Writer) CreateDocument(ctx context.Context, doc *kura.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	relPath := filepath.FromSlash(kura.SlugPath(doc.Slug))
	if !filepath.IsLocal(relPath) {
		return kura.Errorf(kura.EINVALID, "slug escapes output directory: %q", doc.Slug)
	}
	fullPath := filepath.Join(w.baseDir, relPath)

	content, err := FormatDocument(doc, w.withDate)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return ioError("create directory", filepath.Dir(fullPath), err)
	}
	return writeFileAtomic(fullPath, []byte(content))
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it over path, so readers never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".kura-*.tmp")
	if err != nil {
		return ioError("create temp file", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return ioError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return ioError("write", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return ioError("chmod", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return ioError("rename", path, err)
	}
	return nil
}

// ioError maps a file system error to an application error.
// A full disk is EEXHAUSTED; everything else is EIO.
func ioError(op, path string, err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return kura.Errorf(kura.EEXHAUSTED, "%s %s: no space left on device", op, path)
	}
	return kura.Errorf(kura.EIO, "%s %s: %v", op, path, err)
}
