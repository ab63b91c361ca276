package datasource

import (
	"context"
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/contextd/internal/datasource/dserr"
)

// SearchRequest is the read path's input.
type SearchRequest struct {
	Query                 string
	TopK                  int
	Filter                *SearchFilter
	FullText               bool
	TargetDocumentTokens   *int
}

// Search embeds the query, composes the vector filter, queries the vector
// index, groups hits by document, loads each document's metadata row, and
// optionally expands each document's chunks toward a target token budget.
func (c *Core) Search(ctx context.Context, req SearchRequest) ([]*Document, error) {
	if req.TopK > MaxTopKSearch {
		return nil, fmt.Errorf("%w: top_k %d exceeds the maximum of %d", dserr.ErrInvalidArgument, req.TopK, MaxTopKSearch)
	}

	queryVector, err := c.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", dserr.ErrEmbedder, err)
	}

	vectorFilter := buildVectorFilter(req.Filter)

	scored, err := c.vectors.Search(ctx, c.ds.QdrantCollection(), queryVector, vectorFilter, uint64(req.TopK))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dserr.ErrVectorIndex, err)
	}

	hitsByDoc := make(map[string][]Chunk)
	order := make([]string, 0)
	for _, sp := range scored {
		documentID, ok := sp.Payload["document_id"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: search hit missing document_id payload", dserr.ErrVectorIndex)
		}
		text, _ := sp.Payload["text"].(string)
		hash, _ := sp.Payload["chunk_hash"].(string)
		offset, err := payloadInt(sp.Payload["chunk_offset"])
		if err != nil {
			return nil, fmt.Errorf("%w: search hit has invalid chunk_offset: %v", dserr.ErrVectorIndex, err)
		}
		score := sp.Score

		if _, seen := hitsByDoc[documentID]; !seen {
			order = append(order, documentID)
		}
		hitsByDoc[documentID] = append(hitsByDoc[documentID], Chunk{
			Text:   text,
			Hash:   hash,
			Offset: offset,
			Score:  &score,
		})
	}

	documents := make([]*Document, len(order))
	if err := runBounded(ctx, len(order), maxInFlightDocumentTasks, func(ctx context.Context, i int) error {
		documentID := order[i]
		doc, err := c.metadata.LoadDataSourceDocument(ctx, c.ds.Project, c.ds.DataSourceID, documentID, nil)
		if err != nil {
			return fmt.Errorf("%w: document %q: %v", dserr.ErrNotFound, documentID, err)
		}

		if req.FullText {
			content, err := c.blobs.Get(ctx, c.ds.BlobPrefix()+"/"+c.fingerprint.DocumentIDHash(documentID)+"/"+doc.Hash+"/content.txt")
			if err != nil {
				return fmt.Errorf("%w: fetching full text for %q: %v", dserr.ErrBlob, documentID, err)
			}
			doc.Text = string(content)
		}

		doc.Chunks = hitsByDoc[documentID]
		doc.TokenCount = len(doc.Chunks) * c.ds.Config.MaxChunkSize

		if req.TargetDocumentTokens != nil {
			if err := c.expandNeighborhood(ctx, doc, *req.TargetDocumentTokens); err != nil {
				return err
			}
		}

		documents[i] = doc
		return nil
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(documents, func(i, j int) bool {
		return firstChunkScore(documents[i]) > firstChunkScore(documents[j])
	})

	return documents, nil
}

func firstChunkScore(d *Document) float32 {
	if len(d.Chunks) == 0 || d.Chunks[0].Score == nil {
		return 0
	}
	return *d.Chunks[0].Score
}

// expandNeighborhood grows doc's chunks toward targetTokens additional
// context by planning and fetching extra chunk offsets around each hit.
func (c *Core) expandNeighborhood(ctx context.Context, doc *Document, targetTokens int) error {
	maxChunkSize := c.ds.Config.MaxChunkSize
	current := len(doc.Chunks) * maxChunkSize
	if (targetTokens-current)/maxChunkSize <= 0 {
		return nil
	}

	budget := (targetTokens - current) / maxChunkSize

	offsets := make([]int, len(doc.Chunks))
	for i, ch := range doc.Chunks {
		offsets[i] = ch.Offset
	}
	sort.Ints(offsets)

	plan := PlanNeighborhoodExpansion(offsets, budget, doc.ChunkCount)
	if len(plan) == 0 {
		return nil
	}

	extraOffsets := make([]int, 0, len(plan))
	for o := range plan {
		extraOffsets = append(extraOffsets, o)
	}
	sort.Ints(extraOffsets)

	documentIDHash := c.fingerprint.DocumentIDHash(doc.DocumentID)
	filter := VectorFilter{
		Must: []VectorCondition{
			{Field: "document_id_hash", Match: &VectorMatch{Value: documentIDHash}},
			{Field: "chunk_offset", Match: intsMatch(extraOffsets)},
		},
	}

	fetched, err := c.vectors.Scroll(ctx, c.ds.QdrantCollection(), filter, uint64(len(extraOffsets)))
	if err != nil {
		return fmt.Errorf("%w: scrolling expansion chunks for %q: %v", dserr.ErrVectorIndex, doc.DocumentID, err)
	}

	type expansionChunk struct {
		offset int
		text   string
	}
	expansions := make([]expansionChunk, 0, len(fetched))
	for _, p := range fetched {
		offset, err := payloadInt(p.Payload["chunk_offset"])
		if err != nil {
			continue
		}
		text, _ := p.Payload["text"].(string)
		expansions = append(expansions, expansionChunk{offset: offset, text: text})
	}
	sort.Slice(expansions, func(i, j int) bool { return expansions[i].offset < expansions[j].offset })

	sort.Slice(doc.Chunks, func(i, j int) bool { return doc.Chunks[i].Offset < doc.Chunks[j].Offset })
	byOffset := make(map[int]*Chunk, len(doc.Chunks))
	for i := range doc.Chunks {
		byOffset[doc.Chunks[i].Offset] = &doc.Chunks[i]
	}

	prepends := make(map[int]string)
	for _, e := range expansions {
		anchorOffset, ok := plan[e.offset]
		if !ok {
			continue
		}
		chunk, ok := byOffset[anchorOffset]
		if !ok {
			continue
		}
		if e.offset > chunk.Offset {
			chunk.Text = chunk.Text + " " + e.text
		} else if e.offset < chunk.Offset {
			prepends[anchorOffset] = prepends[anchorOffset] + e.text + " "
		}
		doc.TokenCount += maxChunkSize
	}
	for offset, prefix := range prepends {
		byOffset[offset].Text = prefix + byOffset[offset].Text
	}

	sort.SliceStable(doc.Chunks, func(i, j int) bool {
		return chunkScore(doc.Chunks[i]) > chunkScore(doc.Chunks[j])
	})

	return nil
}

func chunkScore(c Chunk) float32 {
	if c.Score == nil {
		return 0
	}
	return *c.Score
}

func intsMatch(offsets []int) *VectorMatch {
	values := make([]int64, len(offsets))
	for i, o := range offsets {
		values[i] = int64(o)
	}
	return &VectorMatch{IntValues: values}
}

func payloadInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported payload numeric type %T", v)
	}
}

// buildVectorFilter composes the vector index filter from a SearchFilter,
// per the tags.in/tags.not/timestamp.gt/timestamp.lt mapping. Missing
// sub-filters contribute nothing.
func buildVectorFilter(f *SearchFilter) VectorFilter {
	var vf VectorFilter
	if f == nil {
		return vf
	}

	if f.Tags != nil {
		if len(f.Tags.In) > 0 {
			vf.Must = append(vf.Must, VectorCondition{Field: "tags", Match: &VectorMatch{Values: f.Tags.In}})
		}
		if len(f.Tags.Not) > 0 {
			vf.MustNot = append(vf.MustNot, VectorCondition{Field: "tags", Match: &VectorMatch{Values: f.Tags.Not}})
		}
	}

	if f.Timestamp != nil {
		if f.Timestamp.Gt != nil {
			gte := float64(*f.Timestamp.Gt)
			vf.Must = append(vf.Must, VectorCondition{Field: "timestamp", Range: &VectorRange{Gte: &gte}})
		}
		if f.Timestamp.Lt != nil {
			lte := float64(*f.Timestamp.Lt)
			vf.Must = append(vf.Must, VectorCondition{Field: "timestamp", Range: &VectorRange{Lte: &lte}})
		}
	}

	return vf
}

// Retrieve loads the metadata row for the given version (latest if
// versionHash is nil), optionally drops system-tagged tags, and hydrates
// the row's text from the blob archive.
func (c *Core) Retrieve(ctx context.Context, documentID string, removeSystemTags bool, versionHash *string) (*Document, error) {
	doc, err := c.metadata.LoadDataSourceDocument(ctx, c.ds.Project, c.ds.DataSourceID, documentID, versionHash)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", dserr.ErrMetadata, err)
	}
	if doc == nil {
		return nil, nil
	}

	if removeSystemTags {
		kept := make([]string, 0, len(doc.Tags))
		for _, t := range doc.Tags {
			if !HasSystemTagPrefix(t) {
				kept = append(kept, t)
			}
		}
		doc.Tags = kept
	}

	documentIDHash := c.fingerprint.DocumentIDHash(documentID)
	content, err := c.blobs.Get(ctx, c.ds.BlobPrefix()+"/"+documentIDHash+"/"+doc.Hash+"/content.txt")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dserr.ErrBlob, err)
	}
	doc.Text = string(content)

	return doc, nil
}
