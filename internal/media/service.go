// Package media hosts the thumbnail service facade. A request flows through
// size-policy normalization, cache-key derivation, and a cache probe; on a
// miss a single-flight group admits exactly one transform per key and shares
// its outcome (success or failure) with every concurrent caller.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/thumb-hub/thumb-hub/internal/cache"
	"github.com/thumb-hub/thumb-hub/internal/sizepolicy"
	"github.com/thumb-hub/thumb-hub/internal/storage"
	"github.com/thumb-hub/thumb-hub/internal/thumbnail"
)

// TransformFunc matches thumbnail.Transform; tests inject fakes through it.
type TransformFunc func(src []byte, maxWidth, maxHeight, quality int) (*thumbnail.Result, error)

// API is the capability set the HTTP adapter consumes. It is passed by
// reference into the router so no package-level singleton exists.
type API interface {
	GetThumbnail(ctx context.Context, sourcePath string, width, height *int) (*Result, error)
	AllowedSizes() sizepolicy.Description
	CacheStats() cache.Snapshot
	ClearExpired(ctx context.Context) (int, error)
}

// Result is a served thumbnail.
type Result struct {
	Bytes       []byte
	ContentType string
	FromCache   bool
}

// Options carries the collaborators and tuning knobs for NewService.
type Options struct {
	Store            cache.Store
	Resolver         storage.Resolver
	Policy           *sizepolicy.Policy
	Sweeper          *cache.Sweeper
	Logger           *logrus.Logger
	TTL              time.Duration
	TransformTimeout time.Duration
	Quality          int

	// Transform defaults to thumbnail.Transform.
	Transform TransformFunc
}

// Service implements API. Safe for concurrent use.
type Service struct {
	store            cache.Store
	resolver         storage.Resolver
	policy           *sizepolicy.Policy
	sweeper          *cache.Sweeper
	logger           *logrus.Logger
	ttl              time.Duration
	transformTimeout time.Duration
	quality          int
	transform        TransformFunc

	flights singleflight.Group
}

// NewService validates the wiring and returns the facade.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("storage resolver is required")
	}
	if opts.Policy == nil {
		return nil, errors.New("size policy is required")
	}
	if opts.Sweeper == nil {
		return nil, errors.New("sweeper is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("invalid ttl: %v", opts.TTL)
	}
	if opts.TransformTimeout <= 0 {
		return nil, fmt.Errorf("invalid transform timeout: %v", opts.TransformTimeout)
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		return nil, fmt.Errorf("invalid output quality: %d", opts.Quality)
	}

	transform := opts.Transform
	if transform == nil {
		transform = thumbnail.Transform
	}

	return &Service{
		store:            opts.Store,
		resolver:         opts.Resolver,
		policy:           opts.Policy,
		sweeper:          opts.Sweeper,
		logger:           opts.Logger,
		ttl:              opts.TTL,
		transformTimeout: opts.TransformTimeout,
		quality:          opts.Quality,
		transform:        transform,
	}, nil
}

// GetThumbnail serves the resized derivative for sourcePath. width/height are
// optional but must be provided together; nil/nil resolves to the configured
// default pair.
func (s *Service) GetThumbnail(ctx context.Context, sourcePath string, width, height *int) (*Result, error) {
	dims, err := s.policy.Normalize(width, height)
	if err != nil {
		return nil, err
	}

	clean, err := NormalizeSourcePath(sourcePath)
	if err != nil {
		return nil, err
	}

	fingerprint, err := s.resolver.Fingerprint(ctx, clean)
	if err != nil {
		return nil, s.mapStorageError(clean, err)
	}

	key := DeriveKey(clean, dims.Width, dims.Height, fingerprint)

	cached, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		return &Result{Bytes: cached.Payload, ContentType: cached.Entry.ContentType, FromCache: true}, nil
	case errors.Is(err, cache.ErrNotFound):
		// miss, compute below
	default:
		s.logger.WithError(err).WithField("key", key).Warn("cache_get_failed")
	}

	value, err, _ := s.flights.Do(key, func() (interface{}, error) {
		return s.computeAndStore(clean, dims, key)
	})
	if err != nil {
		return nil, err
	}

	flight := value.(*Result)
	return &Result{Bytes: flight.Bytes, ContentType: flight.ContentType}, nil
}

// computeAndStore is the single-flight leader body. It runs on a background
// context: the caller that triggered it may disconnect, but followers and
// future requests still want the result.
func (s *Service) computeAndStore(sourcePath string, dims sizepolicy.Dimensions, key string) (*Result, error) {
	ctx := context.Background()

	asset, err := s.resolver.Resolve(ctx, sourcePath)
	if err != nil {
		return nil, s.mapStorageError(sourcePath, err)
	}

	result, err := s.runTransform(asset.Bytes, dims)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Put(ctx, key, result.Bytes, result.ContentType, s.ttl); err != nil {
		// 缓存只是性能优化：写入失败降级为直接返回结果。
		s.logger.WithError(err).WithFields(logrus.Fields{
			"key":         key,
			"source_path": sourcePath,
		}).Warn(ErrCacheWrite.Error())
	}

	return &Result{Bytes: result.Bytes, ContentType: result.ContentType}, nil
}

// runTransform bounds the transform with a wall-clock ceiling so a hung
// decode cannot block every follower indefinitely.
func (s *Service) runTransform(src []byte, dims sizepolicy.Dimensions) (*thumbnail.Result, error) {
	type outcome struct {
		result *thumbnail.Result
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := s.transform(src, dims.Width, dims.Height, s.quality)
		done <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(s.transformTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransform, out.err)
		}
		return out.result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: timed out after %v", ErrTransform, s.transformTimeout)
	}
}

// AllowedSizes exposes the size policy for introspection.
func (s *Service) AllowedSizes() sizepolicy.Description {
	return s.policy.Describe()
}

// CacheStats returns a counters snapshot.
func (s *Service) CacheStats() cache.Snapshot {
	return s.store.Stats()
}

// ClearExpired performs one synchronous sweep pass.
func (s *Service) ClearExpired(ctx context.Context) (int, error) {
	return s.sweeper.SweepNow(ctx)
}

func (s *Service) mapStorageError(sourcePath string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, sourcePath)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}
