package datasource

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/internal/datasource/dserr"
)

// Setup archives the created.txt marker and creates the data source's
// vector collection with the field indexes the core's filters depend on.
func (c *Core) Setup(ctx context.Context) error {
	if err := c.metadata.RegisterDataSource(ctx, c.ds); err != nil {
		return fmt.Errorf("%w: registering data source: %v", dserr.ErrMetadata, err)
	}

	if err := c.blobs.Put(ctx, c.ds.BlobPrefix()+"/created.txt", []byte(c.ds.Created.Format(time.RFC3339)), "text/plain"); err != nil {
		return fmt.Errorf("%w: archiving created.txt: %v", dserr.ErrBlob, err)
	}

	collection := c.ds.QdrantCollection()
	cfg := CollectionConfig{
		Dimension:       uint64(c.embedder.EmbeddingSize()),
		Cosine:          true,
		OnDiskPayload:   true,
		HNSWM:           16,
		MemmapThreshold: 1024,
	}
	if err := c.vectors.CreateCollection(ctx, collection, cfg); err != nil {
		return fmt.Errorf("%w: creating collection %s: %v", dserr.ErrVectorIndex, collection, err)
	}

	for _, idx := range []struct {
		field string
		kind  FieldIndexKind
	}{
		{"document_id_hash", FieldIndexKeyword},
		{"tags", FieldIndexKeyword},
		{"timestamp", FieldIndexInteger},
	} {
		if err := c.vectors.CreateFieldIndex(ctx, collection, idx.field, idx.kind); err != nil {
			return fmt.Errorf("%w: creating field index on %s: %v", dserr.ErrVectorIndex, idx.field, err)
		}
	}

	c.logger.Info("data source provisioned", zap.String("collection", collection))
	return nil
}

// UpdateTags applies add/remove to the document's tag set in the metadata
// store, then mirrors the resulting list onto every vector point carrying
// the document's id. Best-effort: a failure to mirror leaves payloads
// stale but searchable again after the next upsert.
func (c *Core) UpdateTags(ctx context.Context, documentID string, add, remove []string) ([]string, error) {
	newTags, err := c.metadata.UpdateDataSourceDocumentTags(ctx, c.ds.Project, c.ds.DataSourceID, documentID, add, remove)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dserr.ErrMetadata, err)
	}

	err = c.vectors.SetPayload(ctx, c.ds.QdrantCollection(),
		VectorFilter{Must: []VectorCondition{{Field: "document_id", Match: &VectorMatch{Value: documentID}}}},
		map[string]any{"tags": newTags},
	)
	if err != nil {
		return newTags, fmt.Errorf("%w: mirroring tags to vector payloads: %v", dserr.ErrVectorIndex, err)
	}

	return newTags, nil
}

// DeleteDocument removes a document's vectors and its metadata row. Blob
// versions are retained as content-addressed immutable history.
func (c *Core) DeleteDocument(ctx context.Context, documentID string) error {
	documentIDHash := c.fingerprint.DocumentIDHash(documentID)

	if err := c.vectors.DeletePoints(ctx, c.ds.QdrantCollection(), VectorFilter{
		Must: []VectorCondition{{Field: "document_id_hash", Match: &VectorMatch{Value: documentIDHash}}},
	}); err != nil {
		return fmt.Errorf("%w: %v", dserr.ErrVectorIndex, err)
	}

	if err := c.metadata.DeleteDataSourceDocument(ctx, c.ds.Project, c.ds.DataSourceID, documentID); err != nil {
		return fmt.Errorf("%w: %v", dserr.ErrMetadata, err)
	}

	return nil
}

// ListDocuments returns the latest version of every document registered
// in this data source.
func (c *Core) ListDocuments(ctx context.Context) ([]*Document, error) {
	docs, err := c.metadata.ListDataSourceDocuments(ctx, c.ds.Project, c.ds.DataSourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dserr.ErrMetadata, err)
	}
	return docs, nil
}

// Delete tears down the data source entirely: the vector collection, then
// every metadata row. Blob data may be garbage-collected externally.
func (c *Core) Delete(ctx context.Context) error {
	if err := c.vectors.DeleteCollection(ctx, c.ds.QdrantCollection()); err != nil {
		return fmt.Errorf("%w: %v", dserr.ErrVectorIndex, err)
	}

	if err := c.metadata.DeleteDataSource(ctx, c.ds.Project, c.ds.DataSourceID); err != nil {
		return fmt.Errorf("%w: %v", dserr.ErrMetadata, err)
	}

	return nil
}
