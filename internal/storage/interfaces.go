package storage

import "context"

// Storage is the contract pipeline.Pipeline.save writes a finished
// book, and its session metadata sidecar, through. Paths are always
// relative to whatever root the implementation resolves them against
// (see FileSystem's sessions/ layout in session.go) — callers never
// see or construct an absolute path.
type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, pattern string) ([]string, error)
}
