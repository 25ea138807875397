// Package storage resolves original source assets for the thumbnail
// pipeline. The service only depends on the Resolver contract: a cheap
// fingerprint probe plus a full read. Two backends exist, a local directory
// and an HTTP origin; both derive fingerprints from size + modification
// markers so a changed source always changes the fingerprint.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound 表示源图不存在。
	ErrNotFound = errors.New("source asset not found")

	// ErrUnavailable 表示后端暂时不可用（权限、网络、5xx 等）。
	ErrUnavailable = errors.New("source storage unavailable")
)

// Asset is a fully resolved source image.
type Asset struct {
	Bytes       []byte
	Fingerprint string
	ContentType string
}

// Resolver reads source assets. Fingerprint must be cheap (stat or HEAD) and
// stable for unchanged content; Resolve returns the bytes plus the same
// fingerprint the probe would have produced.
type Resolver interface {
	Fingerprint(ctx context.Context, sourcePath string) (string, error)
	Resolve(ctx context.Context, sourcePath string) (*Asset, error)
}
