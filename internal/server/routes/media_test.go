package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/thumb-hub/thumb-hub/internal/cache"
	"github.com/thumb-hub/thumb-hub/internal/media"
	"github.com/thumb-hub/thumb-hub/internal/server"
	"github.com/thumb-hub/thumb-hub/internal/sizepolicy"
)

type stubMedia struct {
	result *media.Result
	err    error

	lastPath   string
	lastWidth  *int
	lastHeight *int

	removed  int
	sweepErr error
}

func (s *stubMedia) GetThumbnail(ctx context.Context, sourcePath string, width, height *int) (*media.Result, error) {
	s.lastPath = sourcePath
	s.lastWidth = width
	s.lastHeight = height
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubMedia) AllowedSizes() sizepolicy.Description {
	return sizepolicy.Description{
		Mode:    "strict",
		Default: sizepolicy.Dimensions{Width: 200, Height: 200},
		Allowed: []sizepolicy.Dimensions{{Width: 200, Height: 200}},
	}
}

func (s *stubMedia) CacheStats() cache.Snapshot {
	return cache.Snapshot{Hits: 3, Misses: 1, Entries: 1, TotalBytes: 512}
}

func (s *stubMedia) ClearExpired(ctx context.Context) (int, error) {
	return s.removed, s.sweepErr
}

func newMediaApp(t *testing.T, stub *stubMedia) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := server.NewApp(server.AppOptions{Logger: logger, Media: stub})
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	RegisterMediaRoutes(app, MediaOptions{
		Logger:   logger,
		Service:  stub,
		CacheTTL: time.Hour,
	})
	return app
}

func TestThumbnailRouteServesBytes(t *testing.T) {
	stub := &stubMedia{result: &media.Result{
		Bytes:       []byte("jpeg-payload"),
		ContentType: "image/jpeg",
		FromCache:   true,
	}}
	app := newMediaApp(t, stub)

	resp, err := app.Test(httptest.NewRequest("GET", "/t/products/1/a.jpg?w=400&h=300", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "jpeg-payload" {
		t.Fatalf("body mismatch: %s", body)
	}
	if got := resp.Header.Get(fiber.HeaderContentType); got != "image/jpeg" {
		t.Fatalf("content type mismatch: %s", got)
	}
	if got := resp.Header.Get("X-Thumb-Cache"); got != "hit" {
		t.Fatalf("expected hit indicator, got %q", got)
	}
	if got := resp.Header.Get(fiber.HeaderCacheControl); got != "public, max-age=3600" {
		t.Fatalf("cache-control mismatch: %q", got)
	}

	if stub.lastPath != "products/1/a.jpg" {
		t.Fatalf("path mismatch: %s", stub.lastPath)
	}
	if stub.lastWidth == nil || *stub.lastWidth != 400 || stub.lastHeight == nil || *stub.lastHeight != 300 {
		t.Fatalf("dimensions not forwarded: w=%v h=%v", stub.lastWidth, stub.lastHeight)
	}
}

func TestThumbnailRouteMissIndicator(t *testing.T) {
	stub := &stubMedia{result: &media.Result{Bytes: []byte("x"), ContentType: "image/png"}}
	app := newMediaApp(t, stub)

	resp, err := app.Test(httptest.NewRequest("GET", "/t/a.png", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if got := resp.Header.Get("X-Thumb-Cache"); got != "miss" {
		t.Fatalf("expected miss indicator, got %q", got)
	}
	if stub.lastWidth != nil || stub.lastHeight != nil {
		t.Fatalf("omitted query params must stay nil")
	}
}

func TestThumbnailRouteRejectsNonIntegerDimension(t *testing.T) {
	stub := &stubMedia{result: &media.Result{Bytes: []byte("x"), ContentType: "image/png"}}
	app := newMediaApp(t, stub)

	resp, err := app.Test(httptest.NewRequest("GET", "/t/a.png?w=abc&h=300", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	assertErrorCode(t, resp.Body, "invalid_dimensions")
}

func TestThumbnailRouteStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{sizepolicy.ErrInvalidDimensions, fiber.StatusBadRequest, "invalid_dimensions"},
		{media.ErrInvalidRequest, fiber.StatusBadRequest, "invalid_request"},
		{sizepolicy.ErrViolation, fiber.StatusUnprocessableEntity, "size_policy_violation"},
		{media.ErrNotFound, fiber.StatusNotFound, "source_not_found"},
		{media.ErrStorageUnavailable, fiber.StatusBadGateway, "storage_unavailable"},
		{media.ErrTransform, fiber.StatusInternalServerError, "transform_failed"},
		{errors.New("unexpected"), fiber.StatusInternalServerError, "internal_error"},
	}

	for _, c := range cases {
		app := newMediaApp(t, &stubMedia{err: c.err})
		resp, err := app.Test(httptest.NewRequest("GET", "/t/a.jpg?w=200&h=200", nil))
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		if resp.StatusCode != c.status {
			t.Fatalf("error %v: expected %d, got %d", c.err, c.status, resp.StatusCode)
		}
		assertErrorCode(t, resp.Body, c.code)
	}
}

func TestSizesRoute(t *testing.T) {
	app := newMediaApp(t, &stubMedia{})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/sizes", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var desc sizepolicy.Description
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if desc.Mode != "strict" || len(desc.Allowed) != 1 {
		t.Fatalf("unexpected policy payload: %+v", desc)
	}
}

func TestStatsRoute(t *testing.T) {
	app := newMediaApp(t, &stubMedia{})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/stats", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	var snap cache.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if snap.Hits != 3 || snap.TotalBytes != 512 {
		t.Fatalf("unexpected stats payload: %+v", snap)
	}
}

func TestSweepRoute(t *testing.T) {
	app := newMediaApp(t, &stubMedia{removed: 4})

	resp, err := app.Test(httptest.NewRequest("POST", "/-/sweep", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["removed"] != 4 {
		t.Fatalf("unexpected sweep payload: %v", payload)
	}
}

func TestSweepRouteFailure(t *testing.T) {
	app := newMediaApp(t, &stubMedia{sweepErr: errors.New("walk failed")})

	resp, err := app.Test(httptest.NewRequest("POST", "/-/sweep", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func assertErrorCode(t *testing.T, body io.Reader, want string) {
	t.Helper()
	var payload map[string]string
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != want {
		t.Fatalf("expected error code %q, got %q", want, payload["error"])
	}
}
