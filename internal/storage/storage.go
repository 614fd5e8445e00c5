// Package storage provides the artifact store used for uploaded media,
// diarization descriptors, and sliced audio chunks. Backends: local
// filesystem and Amazon S3 (or S3-compatible services).
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for artifact storage operations. Artifacts
// are addressed by slash-separated keys (e.g. "jobs/<id>/media.wav").
type Storage interface {
	// Upload writes data from reader to the given key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download returns a reader for the artifact at the given key.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether an artifact exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the artifact at the given key. Returns nil if the
	// artifact does not exist.
	Delete(ctx context.Context, key string) error

	// List returns the keys of all artifacts whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
