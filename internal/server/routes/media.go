package routes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/thumb-hub/thumb-hub/internal/logging"
	"github.com/thumb-hub/thumb-hub/internal/media"
	"github.com/thumb-hub/thumb-hub/internal/server"
	"github.com/thumb-hub/thumb-hub/internal/sizepolicy"
)

// MediaOptions carries the collaborators for the media routes.
type MediaOptions struct {
	Logger   *logrus.Logger
	Service  media.API
	CacheTTL time.Duration
}

// RegisterMediaRoutes exposes the thumbnail endpoint plus the /-/ diagnostics
// surface (size policy, cache stats, synchronous sweep).
func RegisterMediaRoutes(app *fiber.App, opts MediaOptions) {
	if app == nil || opts.Service == nil || opts.Logger == nil {
		return
	}

	app.Get("/t/*", func(c fiber.Ctx) error {
		return handleThumbnail(c, opts)
	})

	app.Get("/-/sizes", func(c fiber.Ctx) error {
		return c.JSON(opts.Service.AllowedSizes())
	})

	app.Get("/-/stats", func(c fiber.Ctx) error {
		return c.JSON(opts.Service.CacheStats())
	})

	app.Post("/-/sweep", func(c fiber.Ctx) error {
		removed, err := opts.Service.ClearExpired(requestContext(c))
		if err != nil {
			opts.Logger.WithError(err).Warn("cache_sweep_failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sweep_failed"})
		}
		opts.Logger.WithFields(logging.SweepFields("manual", removed)).Info("sweep completed")
		return c.JSON(fiber.Map{"removed": removed})
	})
}

func handleThumbnail(c fiber.Ctx, opts MediaOptions) error {
	started := time.Now()

	width, err := parseDimension(c.Query("w"))
	if err != nil {
		return renderMediaError(c, opts.Logger, err)
	}
	height, err := parseDimension(c.Query("h"))
	if err != nil {
		return renderMediaError(c, opts.Logger, err)
	}

	sourcePath := c.Params("*")
	result, err := opts.Service.GetThumbnail(requestContext(c), sourcePath, width, height)
	if err != nil {
		return renderMediaError(c, opts.Logger, err)
	}

	fields := logging.ThumbnailFields(sourcePath, derefOrZero(width), derefOrZero(height), result.FromCache)
	fields["action"] = "serve_thumbnail"
	fields["request_id"] = server.RequestID(c)
	fields["duration_ms"] = time.Since(started).Milliseconds()
	opts.Logger.WithFields(fields).Info("thumbnail served")

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set("X-Thumb-Cache", cacheIndicator(result.FromCache))
	if opts.CacheTTL > 0 {
		c.Set(fiber.HeaderCacheControl, fmt.Sprintf("public, max-age=%d", int64(opts.CacheTTL.Seconds())))
	}
	return c.Send(result.Bytes)
}

// parseDimension turns an optional query value into *int; a present but
// non-integer value is an invalid-dimensions request.
func parseDimension(raw string) (*int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an integer", sizepolicy.ErrInvalidDimensions, raw)
	}
	return &value, nil
}

func derefOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func cacheIndicator(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// renderMediaError maps service errors onto status codes and stable error
// codes. Client-side kinds log at info, server-side kinds at error.
func renderMediaError(c fiber.Ctx, logger *logrus.Logger, err error) error {
	status := fiber.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, sizepolicy.ErrInvalidDimensions):
		status, code = fiber.StatusBadRequest, "invalid_dimensions"
	case errors.Is(err, media.ErrInvalidRequest):
		status, code = fiber.StatusBadRequest, "invalid_request"
	case errors.Is(err, sizepolicy.ErrViolation):
		status, code = fiber.StatusUnprocessableEntity, "size_policy_violation"
	case errors.Is(err, media.ErrNotFound):
		status, code = fiber.StatusNotFound, "source_not_found"
	case errors.Is(err, media.ErrStorageUnavailable):
		status, code = fiber.StatusBadGateway, "storage_unavailable"
	case errors.Is(err, media.ErrTransform):
		status, code = fiber.StatusInternalServerError, "transform_failed"
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"action":     "thumbnail_error",
		"request_id": server.RequestID(c),
		"code":       code,
	})
	if status >= fiber.StatusInternalServerError {
		entry.Error("thumbnail request failed")
	} else {
		entry.Info("thumbnail request rejected")
	}

	return c.Status(status).JSON(fiber.Map{"error": code})
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
