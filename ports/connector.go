package ports

import (
	"context"

	"goresearch/domain/research"
)

// RawDocument is an unnormalized document returned by a source connector
type RawDocument struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// SourceConnector retrieves documents about a topic from one data source
type SourceConnector interface {
	Fetch(ctx context.Context, topic string, source research.DataSource) ([]RawDocument, error)
}
