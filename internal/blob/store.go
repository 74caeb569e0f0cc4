package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store persists document blobs addressed by their content digest.
type Store interface {
	Put(digest string, data []byte) (string, error)
	Get(ref string) ([]byte, error)
	Exists(ref string) bool
}

// FileStore keeps blobs on the local filesystem under a base directory,
// fanned out by the first two characters of the digest. Writing the same
// digest twice is a no-op; content addressing makes the file immutable.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a filesystem blob store rooted at baseDir
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Put stores data under its digest and returns the blob reference. The
// write goes through a temp file and rename so readers never observe a
// partial blob.
func (s *FileStore) Put(digest string, data []byte) (string, error) {
	ref, err := s.refFor(digest)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.baseDir, ref)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create blob subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp blob: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close blob: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	return ref, nil
}

// Get reads a blob back by its reference
func (s *FileStore) Get(ref string) ([]byte, error) {
	path, err := s.pathFor(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s not found", ref)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Exists reports whether a blob is present for the reference
func (s *FileStore) Exists(ref string) bool {
	path, err := s.pathFor(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *FileStore) refFor(digest string) (string, error) {
	if len(digest) < 3 || strings.ContainsAny(digest, "/\\.") {
		return "", fmt.Errorf("invalid blob digest %q", digest)
	}
	return filepath.Join(digest[:2], digest), nil
}

func (s *FileStore) pathFor(ref string) (string, error) {
	clean := filepath.Clean(ref)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob reference %q", ref)
	}
	return filepath.Join(s.baseDir, clean), nil
}
