// Package download persists fetched media to local storage.
package download

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"igclient/pkg/media"
)

// Sink stores a media item read from r and returns the final path and the
// number of bytes written.
type Sink interface {
	Store(d media.Descriptor, r io.Reader) (path string, written int64, err error)
}

// DirSink writes media files into a directory. Data is written to a
// temporary file and renamed into place so an interrupted download never
// leaves a partial file under the final name.
type DirSink struct {
	dir string
}

// NewDirSink creates a sink rooted at dir, creating it if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

// Dir returns the sink's root directory.
func (s *DirSink) Dir() string {
	return s.dir
}

// Exists reports whether the item has already been stored.
func (s *DirSink) Exists(d media.Descriptor) bool {
	_, err := os.Stat(filepath.Join(s.dir, d.Filename()))
	return err == nil
}

func (s *DirSink) Store(d media.Descriptor, r io.Reader) (string, int64, error) {
	finalPath := filepath.Join(s.dir, d.Filename())
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to write media: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to finalize media file: %w", err)
	}
	return finalPath, written, nil
}
