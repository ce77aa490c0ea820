package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local stores objects as files under a base directory that is also served at PublicPath.
type Local struct {
	Base       string
	PublicPath string
}

// NewLocal creates the base directory when missing.
func NewLocal(base, publicPath string) (*Local, error) {
	if base == "" {
		base = "uploads"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create upload base %s: %w", base, err)
	}
	return &Local{Base: base, PublicPath: publicPath}, nil
}

func (l *Local) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	full := filepath.Join(l.Base, key)
	tmp, err := os.CreateTemp(l.Base, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("move %s into place: %w", key, err)
	}
	return l.PublicPath + "/" + key, nil
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.Base, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete is idempotent: a missing file is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(l.Base, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
