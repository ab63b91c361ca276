package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contextd/internal/datasource"
)

func upsertCmd() *cobra.Command {
	var (
		documentID         string
		textFile           string
		tags               []string
		sourceURL          string
		timestamp          int64
		preserveSystemTags bool
	)

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Ingest or replace a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if documentID == "" {
				return fmt.Errorf("--document-id is required")
			}

			var text []byte
			var err error
			if textFile == "" || textFile == "-" {
				text, err = io.ReadAll(os.Stdin)
			} else {
				text, err = os.ReadFile(textFile)
			}
			if err != nil {
				return fmt.Errorf("reading document text: %w", err)
			}

			core, cleanup, err := load()
			if err != nil {
				return err
			}
			defer cleanup()

			req := datasource.UpsertRequest{
				DocumentID:         documentID,
				Text:               string(text),
				Tags:               tags,
				SourceURL:          sourceURL,
				PreserveSystemTags: preserveSystemTags,
			}
			if timestamp != 0 {
				req.Timestamp = &timestamp
			}

			doc, err := core.Upsert(rootContext(), req)
			if err != nil {
				return err
			}
			fmt.Printf("upserted %s: hash=%s chunks=%d tags=%s\n", doc.DocumentID, doc.Hash, doc.ChunkCount, strings.Join(doc.Tags, ","))
			return nil
		},
	}

	cmd.Flags().StringVar(&documentID, "document-id", "", "document id (required)")
	cmd.Flags().StringVar(&textFile, "text-file", "-", "path to the document text, or - for stdin")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach (repeatable)")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "source URL for this document")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "unix timestamp; defaults to now")
	cmd.Flags().BoolVar(&preserveSystemTags, "preserve-system-tags", false, "carry forward any existing system: tags")
	return cmd
}
