package amstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// OpenFile loads the replica saved at path. A missing file yields an empty
// store and exists=false.
func OpenFile(path string, opts ...Option) (s *Store, exists bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(nil, opts...), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read replica: %w", err)
	}
	s, err = Load(raw, opts...)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// WriteFile saves the replica to path, replacing any previous copy.
func (s *Store) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, s.Save(), 0600); err != nil {
		return fmt.Errorf("failed to write replica: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace replica: %w", err)
	}
	return nil
}
