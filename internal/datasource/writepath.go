package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/internal/datasource/dserr"
)

// UpsertRequest is the write path's input.
type UpsertRequest struct {
	DocumentID         string
	Text               string
	Tags               []string
	Timestamp          *int64
	SourceURL          string
	PreserveSystemTags bool
}

// Upsert ingests a document: fingerprints it, archives its blobs, splits
// and embeds it, replaces its vectors, and commits its metadata row.
//
// The three observable stages (blobs, vectors, metadata) run in that order
// so that a concurrent search never sees a fresh metadata row pointing at
// stale or missing vectors, and so textual reconstruction stays possible
// for any committed row. See the error-handling design for the recovery
// rule a partial failure leaves behind.
func (c *Core) Upsert(ctx context.Context, req UpsertRequest) (*Document, error) {
	tags := req.Tags

	if req.PreserveSystemTags {
		for _, t := range tags {
			if HasSystemTagPrefix(t) {
				return nil, fmt.Errorf("%w: tag %q uses the reserved system-tag prefix", dserr.ErrInvalidArgument, t)
			}
		}

		existing, err := c.metadata.LoadDataSourceDocument(ctx, c.ds.Project, c.ds.DataSourceID, req.DocumentID, nil)
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("%w: loading current tags: %v", dserr.ErrMetadata, err)
		}
		if existing != nil {
			for _, t := range existing.Tags {
				if HasSystemTagPrefix(t) {
					tags = append(tags, t)
				}
			}
		}
	}

	timestamp := time.Now().Unix()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	documentHash := c.fingerprint.DocumentHash(req.DocumentID, req.Text, timestamp, tags)
	documentIDHash := c.fingerprint.DocumentIDHash(req.DocumentID)

	if err := c.archiveBlobs(ctx, documentIDHash, documentHash, req, tags, timestamp); err != nil {
		return nil, err
	}

	chunksText, err := c.splitter.Split(ctx, c.ds.Config.MaxChunkSize, req.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dserr.ErrEmbedder, err)
	}

	chunks := make([]Chunk, len(chunksText))
	if err := runBounded(ctx, len(chunksText), maxInFlightEmbeds, func(ctx context.Context, i int) error {
		vector, err := c.embedder.Embed(ctx, chunksText[i])
		if err != nil {
			return fmt.Errorf("%w: chunk %d: %v", dserr.ErrEmbedder, i, err)
		}
		chunks[i] = Chunk{
			Text:   chunksText[i],
			Hash:   c.fingerprint.ChunkHash(documentHash, chunksText[i]),
			Offset: i,
			Vector: vector,
		}
		return nil
	}); err != nil {
		return nil, err
	}

	collection := c.ds.QdrantCollection()

	if err := c.vectors.DeletePoints(ctx, collection, VectorFilter{
		Must: []VectorCondition{{Field: "document_id_hash", Match: &VectorMatch{Value: documentIDHash}}},
	}); err != nil {
		return nil, fmt.Errorf("%w: deleting prior vectors: %v", dserr.ErrVectorIndex, err)
	}

	if len(chunks) > 0 {
		points := make([]VectorPoint, len(chunks))
		for i, ch := range chunks {
			points[i] = VectorPoint{
				ID:     uuid.NewString(),
				Vector: ch.Vector,
				Payload: map[string]any{
					"tags":                    tags,
					"timestamp":               timestamp,
					"chunk_offset":            ch.Offset,
					"chunk_hash":              ch.Hash,
					"data_source_id":          c.ds.DataSourceID,
					"data_source_internal_id": c.ds.InternalID,
					"document_id":             req.DocumentID,
					"document_id_hash":        documentIDHash,
					"text":                    ch.Text,
				},
			}
		}
		if err := c.vectors.UpsertPoints(ctx, collection, points); err != nil {
			return nil, fmt.Errorf("%w: inserting new vectors: %v", dserr.ErrVectorIndex, err)
		}
	}

	doc := &Document{
		DataSourceID: c.ds.DataSourceID,
		DocumentID:   req.DocumentID,
		Created:      time.Now(),
		Timestamp:    timestamp,
		Tags:         tags,
		SourceURL:    req.SourceURL,
		Hash:         documentHash,
		TextSize:     len(req.Text),
		ChunkCount:   len(chunks),
		TokenCount:   len(chunks) * c.ds.Config.MaxChunkSize,
	}

	if err := c.metadata.UpsertDataSourceDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", dserr.ErrMetadata, err)
	}

	c.logger.Info("upserted document",
		zap.String("document_id", req.DocumentID),
		zap.Int("chunk_count", doc.ChunkCount),
		zap.String("hash", documentHash))

	return doc, nil
}

// archiveBlobs writes the four per-version blobs concurrently, failing the
// upsert if any put fails. This is the first observable stage: a failure
// here aborts before any vector or metadata change.
func (c *Core) archiveBlobs(ctx context.Context, documentIDHash, documentHash string, req UpsertRequest, tags []string, timestamp int64) error {
	prefix := c.ds.BlobPrefix() + "/" + documentIDHash
	versionPrefix := prefix + "/" + documentHash

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("%w: marshaling tags: %v", dserr.ErrBlob, err)
	}

	puts := []struct {
		path string
		data []byte
		mime string
	}{
		{prefix + "/document_id.txt", []byte(req.DocumentID), "text/plain"},
		{versionPrefix + "/content.txt", []byte(req.Text), "text/plain"},
		{versionPrefix + "/tags.json", tagsJSON, "application/json"},
		{versionPrefix + "/timestamp.txt", []byte(fmt.Sprintf("%d", timestamp)), "text/plain"},
	}

	return runBounded(ctx, len(puts), len(puts), func(ctx context.Context, i int) error {
		p := puts[i]
		if err := c.blobs.Put(ctx, p.path, p.data, p.mime); err != nil {
			return fmt.Errorf("%w: putting %s: %v", dserr.ErrBlob, p.path, err)
		}
		return nil
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, dserr.ErrNotFound)
}
