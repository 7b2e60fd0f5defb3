package storage

import (
	"context"
	"time"
)

// Service stores car images in remote object storage.
type Service interface {
	PutObject(ctx context.Context, bucket, key, contentType string, body []byte) (string, error)
	DeletePrefix(ctx context.Context, bucket, prefix string) error
	PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}
