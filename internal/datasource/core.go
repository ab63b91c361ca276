// Package datasource implements the Data Source core: an indexing and
// semantic-retrieval subsystem that ingests text documents, embeds them,
// and serves filtered nearest-neighbor queries whose results can be
// expanded into contiguous textual neighborhoods around each match.
package datasource

import (
	"go.uber.org/zap"
)

// Core is a single data source's entry point: the write path, read path,
// and lifecycle operations all hang off this type. Callers acquire a Core
// per data source; the adapters it holds are scoped resources with no
// mandated pooling.
type Core struct {
	ds *DataSource

	blobs       BlobArchive
	vectors     VectorIndex
	metadata    MetadataStore
	embedder    Embedder
	splitter    Splitter
	fingerprint Fingerprinter

	logger *zap.Logger
}

// Adapters bundles the injected collaborators a Core needs. All fields are
// required.
type Adapters struct {
	Blobs    BlobArchive
	Vectors  VectorIndex
	Metadata MetadataStore
	Embedder Embedder
	Splitter Splitter
	Logger   *zap.Logger
}

// New constructs a Core for the given data source over the supplied
// adapters. Fingerprinting uses the default SHA-256 implementation.
func New(ds *DataSource, a Adapters) *Core {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Core{
		ds:          ds,
		blobs:       a.Blobs,
		vectors:     a.Vectors,
		metadata:    a.Metadata,
		embedder:    a.Embedder,
		splitter:    a.Splitter,
		fingerprint: NewFingerprinter(),
		logger:      logger,
	}
}

// DataSource returns the data source this Core operates against.
func (c *Core) DataSource() *DataSource {
	return c.ds
}
