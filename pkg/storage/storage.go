// Package storage keeps uploaded files on local disk, namespaced per owner.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type FileStorage interface {
	Save(ctx context.Context, owner, name string, r io.Reader) (path string, size int64, err error)
	Delete(path string) error
	Exists(path string) bool
}

type LocalStorage struct {
	root string
}

// NewLocalStorage stores files under <root>/uploads/<owner>/.
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

func (s *LocalStorage) Root() string {
	return s.root
}

// Save writes r to the owner's directory. An existing file with the same name
// is never overwritten: the new file gets a _1, _2, ... suffix before the extension.
func (s *LocalStorage) Save(ctx context.Context, owner, name string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if owner == "" {
		return "", 0, errors.New("storage: empty owner")
	}

	dir := filepath.Join(s.root, "uploads", filepath.Base(owner))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: create dir: %w", err)
	}

	name = SanitizeName(name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	var (
		f    *os.File
		path string
		err  error
	)
	for n := 0; n < 10000; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		path = filepath.Join(dir, candidate)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", 0, fmt.Errorf("storage: open: %w", err)
		}
	}
	if f == nil {
		return "", 0, fmt.Errorf("storage: no free name for %s", name)
	}

	size, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("storage: write: %w", err)
	}
	return path, size, nil
}

// Delete removes the file. A missing file is not an error.
func (s *LocalStorage) Delete(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete: %w", err)
	}
	return nil
}

func (s *LocalStorage) Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SanitizeName strips any directory components from a client supplied filename.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}
