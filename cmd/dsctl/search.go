package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contextd/internal/datasource"
)

func searchCmd() *cobra.Command {
	var (
		query           string
		topK            int
		tagsIn          []string
		tagsNot         []string
		fullText        bool
		targetDocTokens int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Semantic search with optional neighborhood expansion",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				return fmt.Errorf("--query is required")
			}

			core, cleanup, err := load()
			if err != nil {
				return err
			}
			defer cleanup()

			req := datasource.SearchRequest{
				Query:    query,
				TopK:     topK,
				FullText: fullText,
			}
			if len(tagsIn) > 0 || len(tagsNot) > 0 {
				req.Filter = &datasource.SearchFilter{Tags: &datasource.TagsFilter{In: tagsIn, Not: tagsNot}}
			}
			if targetDocTokens > 0 {
				req.TargetDocumentTokens = &targetDocTokens
			}

			docs, err := core.Search(rootContext(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(docs)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "search query text (required)")
	cmd.Flags().IntVar(&topK, "top-k", 10, "number of documents to return")
	cmd.Flags().StringSliceVar(&tagsIn, "tag-in", nil, "require one of these tags (repeatable)")
	cmd.Flags().StringSliceVar(&tagsNot, "tag-not", nil, "exclude documents carrying these tags (repeatable)")
	cmd.Flags().BoolVar(&fullText, "full-text", false, "also fetch each matched document's full archived text")
	cmd.Flags().IntVar(&targetDocTokens, "target-document-tokens", 0, "expand each match into a neighborhood of roughly this many tokens")
	return cmd
}
