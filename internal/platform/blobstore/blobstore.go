// Package blobstore provides the object store the document pipeline reads
// uploaded PDFs from and writes generated reports to. Blobs are addressed by
// hierarchical string paths such as patients/{patientId}/{year}/{month}/{file}.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrBlobNotFound  = errors.New("blob not found")
	ErrBlobExists    = errors.New("blob already exists")
	ErrInvalidPath   = errors.New("invalid blob path")
	ErrEmptyContents = errors.New("blob contents are empty")
)

// PutOptions control how a blob is written.
type PutOptions struct {
	ContentType string
	Overwrite   bool
}

// Store is the contract the pipeline depends on. The real deployment backs it
// with a managed object store; the filesystem and in-memory implementations
// below cover local serving and tests.
type Store interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte, opts PutOptions) error
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// validPath rejects empty paths and traversal segments. Blob paths are always
// forward-slash separated regardless of host OS.
func validPath(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type memBlob struct {
	data        []byte
	contentType string
}

// MemoryStore is a thread-safe in-memory Store for tests and development.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memBlob)}
}

func (s *MemoryStore) Get(_ context.Context, path string) ([]byte, error) {
	if !validPath(path) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	s.mu.RLock()
	b, ok := s.blobs[path]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, path)
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, path string, data []byte, opts PutOptions) error {
	if !validPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if len(data) == 0 {
		return ErrEmptyContents
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[path]; ok && !opts.Overwrite {
		return fmt.Errorf("%w: %s", ErrBlobExists, path)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[path] = memBlob{data: stored, contentType: opts.ContentType}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[path]; !ok {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, path)
	}
	delete(s.blobs, path)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[path]
	return ok, nil
}

// ---------------------------------------------------------------------------
// Filesystem implementation
// ---------------------------------------------------------------------------

// FileStore stores blobs under a root directory, mapping blob paths to
// relative file paths.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) resolve(path string) (string, error) {
	if !validPath(path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(s.root, filepath.FromSlash(path)), nil
}

func (s *FileStore) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, path)
		}
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	return data, nil
}

func (s *FileStore) Put(_ context.Context, path string, data []byte, opts PutOptions) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrEmptyContents
	}
	if !opts.Overwrite {
		if _, err := os.Stat(full); err == nil {
			return fmt.Errorf("%w: %s", ErrBlobExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create blob directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write blob %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, path)
		}
		return fmt.Errorf("delete blob %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Exists(_ context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PatientFilePath builds the canonical blob path for an uploaded patient file.
func PatientFilePath(patientID string, year, month int, fileName string) string {
	return fmt.Sprintf("patients/%s/%d/%02d/%s", patientID, year, month, fileName)
}
