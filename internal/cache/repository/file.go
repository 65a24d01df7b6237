package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/yanun0323/errors"
)

// File stores one JSON file per key under a directory.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if len(dir) == 0 {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "make snapshot dir").With("dir", dir)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, strings.ReplaceAll(key, ":", "_")+".json")
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "read snapshot").With("key", key)
	}
	return data, true, nil
}

// Set writes to a temporary file first so a crash never leaves a truncated snapshot.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return errors.Wrap(err, "write snapshot").With("key", key)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename snapshot").With("key", key)
	}
	return nil
}
