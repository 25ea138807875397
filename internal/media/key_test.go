package media

import (
	"errors"
	"testing"
)

func TestNormalizeSourcePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"products/1/a.jpg", "products/1/a.jpg"},
		{"/products/1/a.jpg", "products/1/a.jpg"},
		{"products//1///a.jpg", "products/1/a.jpg"},
		{"./products/1/a.jpg", "products/1/a.jpg"},
		{"  products/1/a.jpg  ", "products/1/a.jpg"},
	}
	for _, c := range cases {
		got, err := NormalizeSourcePath(c.in)
		if err != nil {
			t.Fatalf("normalize %q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("normalize %q = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeSourcePathRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "   ", "/", ".", "../secret", "a/../../b", "products/..", "a\x00b"} {
		if _, err := NormalizeSourcePath(in); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("path %q should fail with ErrInvalidRequest, got %v", in, err)
		}
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	first := DeriveKey("products/1/a.jpg", 400, 300, "fp-1")
	second := DeriveKey("products/1/a.jpg", 400, 300, "fp-1")
	if first != second {
		t.Fatalf("identical inputs must produce identical keys")
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256 key, got %q", first)
	}
}

func TestDeriveKeyVariesPerField(t *testing.T) {
	base := DeriveKey("products/1/a.jpg", 400, 300, "fp-1")

	variants := []string{
		DeriveKey("products/1/b.jpg", 400, 300, "fp-1"),
		DeriveKey("products/1/a.jpg", 401, 300, "fp-1"),
		DeriveKey("products/1/a.jpg", 400, 301, "fp-1"),
		DeriveKey("products/1/a.jpg", 400, 300, "fp-2"),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d must differ from base key", i)
		}
	}
}

func TestDeriveKeyFieldBoundaries(t *testing.T) {
	// 字段间采用长度前缀，相邻字段的内容挪移不能产生同一串输入。
	if DeriveKey("a1", 2, 3, "fp") == DeriveKey("a", 12, 3, "fp") {
		t.Fatalf("path/width boundary shift must change the key")
	}
	if DeriveKey("a", 1, 23, "fp") == DeriveKey("a", 12, 3, "fp") {
		t.Fatalf("width/height boundary shift must change the key")
	}
	if DeriveKey("a", 1, 2, "3fp") == DeriveKey("a", 1, 23, "fp") {
		t.Fatalf("height/fingerprint boundary shift must change the key")
	}
}
