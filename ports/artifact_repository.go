package ports

import (
	"context"
	"io"
)

// ArtifactSinkPort persists named run artifacts. Names are slash separated
// and namespaced by run id.
type ArtifactSinkPort interface {
	Persist(ctx context.Context, name string, content []byte) error
}

// ArtifactReader serves previously persisted artifacts
type ArtifactReader interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}
