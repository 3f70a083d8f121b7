package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const uploadsPrefix = "/uploads/"

var (
	ErrFileNotFound = errors.New("stored file not found")
	ErrFileTooLarge = errors.New("file too large")
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// FileSource returns the bytes behind a document's FileURL.
type FileSource interface {
	Open(ctx context.Context, ref string) ([]byte, error)
}

// DirStore keeps uploaded files under root. References have the form
// "/uploads/<name>" and always resolve inside root.
type DirStore struct {
	root        string
	maxFileSize int64
	now         func() time.Time
}

// NewDirStore returns a store rooted at dir. A maxFileSize of zero or less
// disables the size check.
func NewDirStore(dir string, maxFileSize int64) *DirStore {
	return &DirStore{root: dir, maxFileSize: maxFileSize, now: time.Now}
}

// Save writes data under a unique, sanitized name and returns its reference.
func (s *DirStore) Save(_ context.Context, filename string, data []byte) (string, error) {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), s.maxFileSize)
	}

	name := fmt.Sprintf("%d_%s", s.now().UnixMilli(), unsafeFilenameChars.ReplaceAllString(filepath.Base(filename), "_"))
	dir := filepath.Join(s.root, strings.Trim(uploadsPrefix, "/"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}

	return uploadsPrefix + name, nil
}

func (s *DirStore) Open(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read stored file: %w", err)
	}
	return data, nil
}

// resolve maps ref to a path under root; ".." segments cannot escape it.
func (s *DirStore) resolve(ref string) string {
	clean := path.Clean("/" + strings.TrimSpace(ref))
	return filepath.Join(s.root, filepath.FromSlash(clean))
}
