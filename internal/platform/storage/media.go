package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultMediaUploadExpiry = 10 * time.Minute
	defaultMediaMaxSize      = 10 << 20
)

var defaultImageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

// MediaSigner issues signed upload URLs for storefront media objects in a
// fixed bucket with image-only content type enforcement.
type MediaSigner struct {
	client  *Client
	bucket  string
	expiry  time.Duration
	maxSize int64
}

// MediaSignerOption customises MediaSigner behaviour.
type MediaSignerOption func(*MediaSigner)

// WithMediaUploadExpiry overrides the signed URL lifetime.
func WithMediaUploadExpiry(expiry time.Duration) MediaSignerOption {
	return func(s *MediaSigner) {
		if expiry > 0 {
			s.expiry = expiry
		}
	}
}

// WithMediaMaxSize overrides the maximum accepted upload size in bytes.
func WithMediaMaxSize(maxSize int64) MediaSignerOption {
	return func(s *MediaSigner) {
		if maxSize > 0 {
			s.maxSize = maxSize
		}
	}
}

// NewMediaSigner constructs a signer bound to the media bucket.
func NewMediaSigner(client *Client, bucket string, opts ...MediaSignerOption) (*MediaSigner, error) {
	if client == nil {
		return nil, errors.New("storage: media signer requires a client")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	signer := &MediaSigner{
		client:  client,
		bucket:  bucket,
		expiry:  defaultMediaUploadExpiry,
		maxSize: defaultMediaMaxSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(signer)
		}
	}
	return signer, nil
}

// SignImageUpload returns a PUT signed URL for the given object key. Only
// image content types are accepted.
func (s *MediaSigner) SignImageUpload(ctx context.Context, object string, contentType string) (SignedURLResult, error) {
	if s == nil || s.client == nil {
		return SignedURLResult{}, errNoSigner
	}
	return s.client.SignUpload(ctx, s.bucket, object, UploadOptions{
		ContentType:         contentType,
		AllowedContentTypes: defaultImageContentTypes,
		MaxSize:             s.maxSize,
		ExpiresIn:           s.expiry,
	})
}
