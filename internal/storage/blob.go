package storage

import (
	"errors"
	"io"
)

var (
	ErrNotFound   = errors.New("storage: blob not found")
	ErrInvalidKey = errors.New("storage: invalid key")
)

// BlobStore holds rendered print exports (html, pdf, md).
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	URL(key string) (string, error) // fs returns "file://..." for dev
}
