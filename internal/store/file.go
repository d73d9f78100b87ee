package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"BreakoutSentinel/internal/model"

	"go.uber.org/zap"
)

// FileStore keeps the crossed set in a human-readable JSON file.
type FileStore struct {
	Path string
	log  *zap.Logger
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string, log *zap.Logger) *FileStore {
	return &FileStore{Path: path, log: log}
}

// Load returns an empty set when the file is absent or malformed.
func (s *FileStore) Load(_ context.Context) (model.CrossedSet, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.CrossedSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	set, err := Decode(data)
	if err != nil {
		s.log.Warn("state file content format mismatch, treating as empty", zap.String("path", s.Path), zap.Error(err))
		return model.CrossedSet{}, nil
	}
	return set, nil
}

// Replace writes to a temp file in the same directory and renames it over
// Path, so readers see either the old or the new set.
func (s *FileStore) Replace(_ context.Context, set model.CrossedSet) error {
	data, err := Encode(set)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// UpdatedAt reports the state file's modification time.
func (s *FileStore) UpdatedAt(_ context.Context) (time.Time, bool, error) {
	fi, err := os.Stat(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return fi.ModTime(), true, nil
}
