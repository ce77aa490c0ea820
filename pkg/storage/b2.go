package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"
)

// B2 stores objects in a Backblaze B2 bucket.
type B2 struct {
	Client *b2.Client
	Bucket *b2.Bucket
}

func NewB2(ctx context.Context, accountID, appKey, bucketName string) (*B2, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create b2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &B2{Client: client, Bucket: bucket}, nil
}

func (s *B2) Put(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	obj := s.Bucket.Object(key)
	w := obj.NewWriter(ctx)

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return obj.URL(), nil
}

func (s *B2) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	obj := s.Bucket.Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return obj.NewReader(ctx), nil
}

func (s *B2) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := s.Bucket.Object(key).Delete(ctx)
	if err != nil && !b2.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
