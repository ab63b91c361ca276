package datasource

import "context"

// BlobArchive is the content-addressed raw-text archival contract. Put is
// idempotent overwrite; Get returns the bytes at path.
type BlobArchive interface {
	Put(ctx context.Context, path string, data []byte, mime string) error
	Get(ctx context.Context, path string) ([]byte, error)
}

// VectorPoint is one point in a vector collection: an embedding plus its
// payload, keyed by a fresh UUID (not content-derived).
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a VectorPoint returned from a similarity search, carrying
// its similarity score.
type ScoredPoint struct {
	VectorPoint
	Score float32
}

// VectorFilter composes must/should/must-not payload conditions.
type VectorFilter struct {
	Must    []VectorCondition
	Should  []VectorCondition
	MustNot []VectorCondition
}

// VectorCondition is one payload predicate: either a keyword match (single
// or multi-value) or a numeric range.
type VectorCondition struct {
	Field string
	Match *VectorMatch
	Range *VectorRange
}

// VectorMatch is a payload-field match. Exactly one of Value/Values/
// IntValues is set. Values matches if the payload field equals any of the
// listed keywords; IntValues matches if an integer payload field equals
// any of the listed values (used for chunk_offset membership tests).
type VectorMatch struct {
	Value     string
	Values    []string
	IntValues []int64
}

// VectorRange is an inclusive numeric range predicate.
type VectorRange struct {
	Gte *float64
	Lte *float64
	Gt  *float64
	Lt  *float64
}

// FieldIndexKind identifies the payload index type to create.
type FieldIndexKind int

const (
	FieldIndexKeyword FieldIndexKind = iota
	FieldIndexInteger
)

// CollectionConfig configures a new vector collection.
type CollectionConfig struct {
	Dimension        uint64
	Cosine           bool
	OnDiskPayload    bool
	HNSWM            uint64
	MemmapThreshold  uint64
}

// VectorIndex is the vector collection + payload filtering + scroll
// contract.
type VectorIndex interface {
	CreateCollection(ctx context.Context, name string, cfg CollectionConfig) error
	DeleteCollection(ctx context.Context, name string) error
	CreateFieldIndex(ctx context.Context, name, field string, kind FieldIndexKind) error

	UpsertPoints(ctx context.Context, name string, points []VectorPoint) error
	DeletePoints(ctx context.Context, name string, filter VectorFilter) error
	SetPayload(ctx context.Context, name string, filter VectorFilter, payload map[string]any) error

	Search(ctx context.Context, name string, vector []float32, filter VectorFilter, limit uint64) ([]ScoredPoint, error)
	Scroll(ctx context.Context, name string, filter VectorFilter, limit uint64) ([]VectorPoint, error)
}

// MetadataStore is the document-row, version, and tag-update contract.
type MetadataStore interface {
	RegisterDataSource(ctx context.Context, ds *DataSource) error
	LoadDataSource(ctx context.Context, project, dataSourceID string) (*DataSource, error)

	UpsertDataSourceDocument(ctx context.Context, doc *Document) error
	LoadDataSourceDocument(ctx context.Context, project, dataSourceID, documentID string, versionHash *string) (*Document, error)
	ListDataSourceDocuments(ctx context.Context, project, dataSourceID string) ([]*Document, error)
	UpdateDataSourceDocumentTags(ctx context.Context, project, dataSourceID, documentID string, add, remove []string) ([]string, error)
	DeleteDataSourceDocument(ctx context.Context, project, dataSourceID, documentID string) error
	DeleteDataSource(ctx context.Context, project, dataSourceID string) error
}

// Embedder is the batched text-to-vector contract.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbeddingSize() int
}

// Splitter is the pure text-to-ordered-chunks contract. Two calls with
// identical arguments always return identical output.
type Splitter interface {
	Split(ctx context.Context, maxChunkSize int, text string) ([]string, error)
}
