package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidRef is returned for file references that escape the storage root.
var ErrInvalidRef = errors.New("invalid file reference")

// LocalStorage keeps receipt files on disk. Callers only ever see the
// relative reference returned by Save/SaveStream.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./receipts"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save writes data under ref and returns the reference.
func (s *LocalStorage) Save(ref string, data []byte) (string, error) {
	path, err := s.prepare(ref)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return ref, nil
}

// SaveStream copies at most limit bytes from r into ref. A limit <= 0 disables the cap.
func (s *LocalStorage) SaveStream(ref string, r io.Reader, limit int64) (int64, error) {
	path, err := s.prepare(ref)
	if err != nil {
		return 0, err
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, err := io.Copy(file, src)
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write stream: %w", err)
	}
	if limit > 0 && written > limit {
		_ = os.Remove(path)
		return 0, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return written, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(ref string) (*os.File, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Path exposes the absolute location of ref, or "" when ref is invalid.
func (s *LocalStorage) Path(ref string) string {
	path, err := s.resolve(ref)
	if err != nil {
		return ""
	}
	return path
}

func (s *LocalStorage) prepare(ref string) (string, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare directory: %w", err)
	}
	return path, nil
}

func (s *LocalStorage) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || filepath.IsAbs(ref) {
		return "", ErrInvalidRef
	}
	cleaned := filepath.Clean(filepath.FromSlash(ref))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
