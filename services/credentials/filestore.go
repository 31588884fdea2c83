package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore is a SecretStore keeping one file per record under a base
// directory. Records are written 0600 via a temp-file rename so a crashed
// write never leaves a truncated record behind.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("secret store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create secret store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	// Record keys may carry path-ish names ("llmbridge/settings"); flatten
	// them so every record stays inside the base directory.
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	safe = strings.ReplaceAll(safe, "/", "_")
	return filepath.Join(s.dir, safe+".json")
}

// Read returns the stored blob, or (nil, nil) when the record is absent.
func (s *FileStore) Read(_ context.Context, key string) ([]byte, error) {
	blob, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret record %q: %w", key, err)
	}
	return blob, nil
}

// Write replaces the record atomically. The temp file name is unique per
// call so concurrent writers cannot interleave into the same staging file.
func (s *FileStore) Write(_ context.Context, key string, blob []byte) error {
	target := s.path(key)

	f, err := os.CreateTemp(s.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage secret record %q: %w", key, err)
	}
	tmp := f.Name()

	if err := writeAndClose(f, blob); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write secret record %q: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace secret record %q: %w", key, err)
	}
	return nil
}

func writeAndClose(f *os.File, blob []byte) error {
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(blob); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
