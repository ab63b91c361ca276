package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func retrieveCmd() *cobra.Command {
	var (
		documentID       string
		removeSystemTags bool
		versionHash      string
	)

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Fetch a document's latest (or a specific) version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if documentID == "" {
				return fmt.Errorf("--document-id is required")
			}

			core, cleanup, err := load()
			if err != nil {
				return err
			}
			defer cleanup()

			var hash *string
			if versionHash != "" {
				hash = &versionHash
			}

			doc, err := core.Retrieve(rootContext(), documentID, removeSystemTags, hash)
			if err != nil {
				return err
			}
			if doc == nil {
				fmt.Fprintln(os.Stderr, "document not found")
				os.Exit(1)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}

	cmd.Flags().StringVar(&documentID, "document-id", "", "document id (required)")
	cmd.Flags().BoolVar(&removeSystemTags, "remove-system-tags", false, "strip system: tags from the returned document")
	cmd.Flags().StringVar(&versionHash, "version", "", "fetch a specific document_hash version instead of the latest")
	return cmd
}
