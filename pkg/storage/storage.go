// Package storage keeps signature images in a local directory or a Backblaze B2 bucket.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"siphp/pkg/config"
)

// ErrNotFound is returned by Open when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Store is an object store addressed by flat keys.
type Store interface {
	// Put writes r under key and returns the public URL of the object.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.StorageLocal, "":
		return NewLocal(cfg.UploadBase, cfg.PublicPath)
	case config.StorageB2:
		return NewB2(ctx, cfg.B2KeyID, cfg.B2AppKey, cfg.B2Bucket)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewKey returns a unique object key with the given extension, e.g. "1700000000000-9f2c1a.png".
func NewKey(ext string) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%d-%s.%s", time.Now().UnixMilli(), hex.EncodeToString(b), ext)
}

// KeyFromURL recovers the object key from a public URL produced by Put.
func KeyFromURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	k := path.Base(u)
	if k == "." || k == "/" {
		return ""
	}
	return k
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
