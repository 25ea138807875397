package media

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// NormalizeSourcePath canonicalizes a requested source path: surrounding
// whitespace and the leading slash are dropped, redundant separators are
// collapsed, and traversal segments are rejected outright rather than
// resolved.
func NormalizeSourcePath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty source path", ErrInvalidRequest)
	}
	if strings.ContainsRune(trimmed, 0) {
		return "", fmt.Errorf("%w: source path contains NUL", ErrInvalidRequest)
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: traversal segment in %q", ErrInvalidRequest, raw)
		}
	}

	clean := strings.TrimPrefix(path.Clean("/"+trimmed), "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("%w: empty source path", ErrInvalidRequest)
	}
	return clean, nil
}

// DeriveKey computes the cache key for (normalized path, width, height,
// fingerprint). Every field is length-prefixed before hashing so neighboring
// fields can never be confused for one another, and the sha256 digest keeps
// the key space collision-resistant across the whole tuple.
func DeriveKey(sourcePath string, width, height int, fingerprint string) string {
	digest := sha256.New()

	var lenBuf [8]byte
	writeField := func(field string) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(field)))
		digest.Write(lenBuf[:])
		digest.Write([]byte(field))
	}

	writeField(sourcePath)
	writeField(strconv.Itoa(width))
	writeField(strconv.Itoa(height))
	writeField(fingerprint)

	return hex.EncodeToString(digest.Sum(nil))
}
