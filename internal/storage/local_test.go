package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newLocalFixture(t *testing.T) (Resolver, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "products", "1"), 0o755); err != nil {
		t.Fatalf("mkdir fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "products", "1", "a.jpg"), []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	resolver, err := NewLocalResolver(root)
	if err != nil {
		t.Fatalf("create resolver: %v", err)
	}
	return resolver, root
}

func TestLocalResolve(t *testing.T) {
	resolver, _ := newLocalFixture(t)

	asset, err := resolver.Resolve(context.Background(), "products/1/a.jpg")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if string(asset.Bytes) != "jpeg-bytes" {
		t.Fatalf("payload mismatch: %s", asset.Bytes)
	}
	if asset.ContentType != "image/jpeg" {
		t.Fatalf("content type mismatch: %s", asset.ContentType)
	}
	if asset.Fingerprint == "" {
		t.Fatalf("fingerprint must not be empty")
	}

	probe, err := resolver.Fingerprint(context.Background(), "products/1/a.jpg")
	if err != nil {
		t.Fatalf("fingerprint error: %v", err)
	}
	if probe != asset.Fingerprint {
		t.Fatalf("probe and resolve fingerprints must match: %s vs %s", probe, asset.Fingerprint)
	}
}

func TestLocalFingerprintChangesWithContent(t *testing.T) {
	resolver, root := newLocalFixture(t)
	ctx := context.Background()

	before, err := resolver.Fingerprint(ctx, "products/1/a.jpg")
	if err != nil {
		t.Fatalf("fingerprint error: %v", err)
	}

	target := filepath.Join(root, "products", "1", "a.jpg")
	if err := os.WriteFile(target, []byte("replaced-longer-bytes"), 0o644); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}
	// 大小不同即可保证指纹变化，无需依赖 mtime 精度。
	after, err := resolver.Fingerprint(ctx, "products/1/a.jpg")
	if err != nil {
		t.Fatalf("fingerprint error: %v", err)
	}
	if before == after {
		t.Fatalf("fingerprint must change when content changes")
	}
}

func TestLocalFingerprintChangesWithMtime(t *testing.T) {
	resolver, root := newLocalFixture(t)
	ctx := context.Background()

	before, err := resolver.Fingerprint(ctx, "products/1/a.jpg")
	if err != nil {
		t.Fatalf("fingerprint error: %v", err)
	}

	target := filepath.Join(root, "products", "1", "a.jpg")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(target, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	after, err := resolver.Fingerprint(ctx, "products/1/a.jpg")
	if err != nil {
		t.Fatalf("fingerprint error: %v", err)
	}
	if before == after {
		t.Fatalf("fingerprint must change when mtime changes")
	}
}

func TestLocalNotFound(t *testing.T) {
	resolver, _ := newLocalFixture(t)

	if _, err := resolver.Fingerprint(context.Background(), "missing/file.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), "missing/file.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	resolver, _ := newLocalFixture(t)

	for _, p := range []string{"../etc/passwd", "products/../../secret", "", "."} {
		if _, err := resolver.Fingerprint(context.Background(), p); !errors.Is(err, ErrNotFound) {
			t.Fatalf("path %q should resolve to ErrNotFound, got %v", p, err)
		}
	}
}

func TestLocalRejectsDirectories(t *testing.T) {
	resolver, _ := newLocalFixture(t)
	if _, err := resolver.Resolve(context.Background(), "products/1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("directories are not assets, got %v", err)
	}
}

func TestNewLocalResolverValidatesRoot(t *testing.T) {
	if _, err := NewLocalResolver(""); err == nil {
		t.Fatalf("empty root should fail")
	}
	if _, err := NewLocalResolver(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("missing root should fail")
	}
}
