package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// URLPrefix is the route the HTTP server mounts the upload dir under.
const URLPrefix = "/uploads/"

// LocalStore writes files below a directory served statically at /uploads.
type LocalStore struct {
	dir     string
	baseURL string
	nowF    func() time.Time
}

// NewLocalStore stores under dir. baseURL, when set, is prepended to the
// /uploads path so references are absolute.
func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		nowF:    time.Now,
	}
}

func (s *LocalStore) Save(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	name := objectName(folder, filename, s.nowF())
	path := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("filestore: create directory: %w", err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("filestore: create file: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("filestore: write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("filestore: close file: %w", err)
	}
	return s.baseURL + URLPrefix + name, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	name, ok := s.objectFor(ref)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore: remove file: %w", err)
	}
	return nil
}

func (s *LocalStore) Owns(ref string) bool {
	_, ok := s.objectFor(ref)
	return ok
}

func (s *LocalStore) objectFor(ref string) (string, bool) {
	ref = strings.TrimPrefix(ref, s.baseURL)
	if !strings.HasPrefix(ref, URLPrefix) {
		return "", false
	}
	return cleanObjectName(strings.TrimPrefix(ref, URLPrefix))
}
