package bridge

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// Store manages transfer files in one directory.
type Store struct {
	fs  afs.Service
	dir string
}

// NewStore creates a store rooted at dir. An empty dir uses os.TempDir().
func NewStore(dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}

	return &Store{fs: afs.New(), dir: dir}
}

// Dir returns the directory holding transfer files.
func (s *Store) Dir() string {
	return s.dir
}

// Acquire names a fresh transfer file. Nothing is created on disk.
func (s *Store) Acquire() string {
	return filepath.Join(s.dir, "grads-"+uuid.New().String()+".ipc")
}

// Write encodes a into the transfer file at path.
func (s *Store) Write(ctx context.Context, path string, order binary.ByteOrder, a *Array) error {
	var buf bytes.Buffer
	if err := Encode(&buf, order, a); err != nil {
		return fmt.Errorf("encode transfer: %w", err)
	}

	if err := s.fs.Upload(ctx, path, file.DefaultFileOsMode, &buf); err != nil {
		return fmt.Errorf("write transfer file %s: %w", path, err)
	}

	return nil
}

// Read decodes the transfer file at path.
func (s *Store) Read(ctx context.Context, path string, order binary.ByteOrder) (*Array, error) {
	exists, err := s.fs.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("check transfer file %s: %w", path, err)
	}

	if !exists {
		return nil, fmt.Errorf("transfer file %s was not written", path)
	}

	data, err := s.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read transfer file %s: %w", path, err)
	}

	a, err := Decode(bytes.NewReader(data), order)
	if err != nil {
		return nil, fmt.Errorf("decode transfer file %s: %w", path, err)
	}

	return a, nil
}

// Remove deletes the transfer file at path if it exists.
func (s *Store) Remove(ctx context.Context, path string) error {
	exists, err := s.fs.Exists(ctx, path)
	if err != nil || !exists {
		return err
	}

	return s.fs.Delete(ctx, path)
}
