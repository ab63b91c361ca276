package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contextd/internal/datasource/dserr"
)

func TestSearch_RejectsTopKOverCap(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	_, err := core.Search(context.Background(), SearchRequest{Query: "q", TopK: MaxTopKSearch + 1})
	assert.ErrorIs(t, err, dserr.ErrInvalidArgument)
}

func TestSearch_UpsertThenSearch(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()

	_, err := core.Upsert(ctx, UpsertRequest{
		DocumentID: "doc-1",
		Text:       "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda",
		Tags:       []string{"a"},
	})
	require.NoError(t, err)

	docs, err := core.Search(ctx, SearchRequest{
		Query:  "alpha beta gamma delta epsilon",
		TopK:   3,
		Filter: &SearchFilter{Tags: &TagsFilter{In: []string{"a"}}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].Chunks)
	for _, ch := range docs[0].Chunks {
		require.NotNil(t, ch.Score)
		assert.GreaterOrEqual(t, *ch.Score, float32(-1))
		assert.LessOrEqual(t, *ch.Score, float32(1))
	}
}

func TestSearch_FilterExclusion(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()

	_, err := core.Upsert(ctx, UpsertRequest{DocumentID: "doc-a", Text: "shared content body text", Tags: []string{"a"}})
	require.NoError(t, err)
	_, err = core.Upsert(ctx, UpsertRequest{DocumentID: "doc-b", Text: "shared content body text", Tags: []string{"b"}})
	require.NoError(t, err)

	docs, err := core.Search(ctx, SearchRequest{
		Query:  "shared content body text",
		TopK:   10,
		Filter: &SearchFilter{Tags: &TagsFilter{Not: []string{"b"}}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-a", docs[0].DocumentID)
}

func TestSearch_NeighborhoodExpansion(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()

	// 10 chunks of 8 runes each via fakeSplitter, distinguishable by content.
	text := ""
	for i := 0; i < 10; i++ {
		text += string(rune('a'+i)) + "aaaaaaa"
	}
	_, err := core.Upsert(ctx, UpsertRequest{DocumentID: "doc-1", Text: text})
	require.NoError(t, err)

	maxChunkSize := core.ds.Config.MaxChunkSize
	target := 7 * maxChunkSize

	docs, err := core.Search(ctx, SearchRequest{
		Query:                "aaaaaaaa",
		TopK:                 1,
		TargetDocumentTokens: &target,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, target, docs[0].TokenCount)
}

func TestRetrieve_MissingDocumentReturnsNil(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	doc, err := core.Retrieve(context.Background(), "missing", false, nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestUpsertThenDeleteThenRetrieve_NotFound(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()

	_, err := core.Upsert(ctx, UpsertRequest{DocumentID: "doc-1", Text: "some text"})
	require.NoError(t, err)

	require.NoError(t, core.DeleteDocument(ctx, "doc-1"))

	doc, err := core.Retrieve(ctx, "doc-1", false, nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}
