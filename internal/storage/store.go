// Package storage persists exported documents and returns the URL each one
// can be fetched from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("invalid storage key")

type Store interface {
	// Put stores data under key and returns its URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ValidateKey accepts slash-separated relative keys without empty, "." or
// ".." segments.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// escapeKey percent-encodes each segment so titles with spaces survive in URLs.
func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
