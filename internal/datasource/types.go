package datasource

import "time"

// DataSource is a named, isolated corpus within a project. internal_id names
// the backing vector collection and blob prefix; data_source_id is the
// user-facing identity.
type DataSource struct {
	Project    string
	DataSourceID string
	InternalID string
	Created    time.Time
	Config     Config
}

// Config is the data source's immutable configuration.
type Config struct {
	ProviderID   string
	ModelID      string
	Extras       map[string]any
	SplitterID   string
	MaxChunkSize int
	UseCache     bool
}

// QdrantCollection returns the deterministic vector collection name for
// this data source.
func (d *DataSource) QdrantCollection() string {
	return "ds_" + d.InternalID
}

// BlobPrefix returns the blob key prefix owning this data source's archive.
func (d *DataSource) BlobPrefix() string {
	return d.Project + "/" + d.InternalID
}

// Document is a metadata row: the latest (or a specific historical) version
// of a user-identified piece of text.
type Document struct {
	DataSourceID string
	DocumentID   string
	Created      time.Time
	Timestamp    int64
	Tags         []string
	SourceURL    string
	Hash         string
	TextSize     int
	ChunkCount   int
	Text         string
	Chunks       []Chunk
	TokenCount   int
}

// DocumentVersion pairs a creation time with the version hash the metadata
// store retains it under.
type DocumentVersion struct {
	Created time.Time
	Hash    string
}

// Chunk is the splitter's atomic unit of a document, indexed by Offset.
type Chunk struct {
	Text   string
	Hash   string
	Offset int
	Vector []float32
	Score  *float32
}

// TagsFilter selects documents by tag membership.
type TagsFilter struct {
	In  []string `json:"in,omitempty"`
	Not []string `json:"not,omitempty"`
}

// TimestampFilter selects documents by inclusive timestamp bounds.
type TimestampFilter struct {
	Gt *int64 `json:"gt,omitempty"`
	Lt *int64 `json:"lt,omitempty"`
}

// SearchFilter composes the optional tag and timestamp constraints of a
// search request.
type SearchFilter struct {
	Tags      *TagsFilter      `json:"tags,omitempty"`
	Timestamp *TimestampFilter `json:"timestamp,omitempty"`
}

// SystemTagPrefix is the reserved prefix identifying system-managed tags.
const SystemTagPrefix = "system:"

// HasSystemTagPrefix reports whether tag is a system tag.
func HasSystemTagPrefix(tag string) bool {
	return len(tag) >= len(SystemTagPrefix) && tag[:len(SystemTagPrefix)] == SystemTagPrefix
}

// MaxTopKSearch is the hard cap on search's top_k parameter.
const MaxTopKSearch = 128
