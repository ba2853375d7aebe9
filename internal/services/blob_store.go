package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// BlobStore persists image bytes and hands back a public reference for them.
// Delete of an unknown reference is not an error.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// BlobKey builds the storage key for a new upload: {collection}/{unix-millis}.{ext}
func BlobKey(collection, ext string, now time.Time) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	key := fmt.Sprintf("%s/%d", strings.Trim(collection, "/"), now.UnixMilli())
	if ext != "" {
		key += "." + ext
	}
	return key
}

// publicRef joins the public base URL and key
func publicRef(base, key string) string {
	if base == "" {
		return key
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// keyFromRef strips the public base URL from ref. References that do not
// carry the base are treated as bare keys.
func keyFromRef(base, ref string) string {
	base = strings.TrimRight(base, "/")
	if base != "" && strings.HasPrefix(ref, base+"/") {
		return strings.TrimPrefix(ref, base+"/")
	}
	return strings.TrimLeft(ref, "/")
}
