package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func deleteDocumentCmd() *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "delete-document",
		Short: "Remove a document's vectors and metadata row",
		RunE: func(cmd *cobra.Command, args []string) error {
			if documentID == "" {
				return fmt.Errorf("--document-id is required")
			}
			core, cleanup, err := load()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := core.DeleteDocument(rootContext(), documentID); err != nil {
				return err
			}
			fmt.Printf("deleted document %s\n", documentID)
			return nil
		},
	}
	cmd.Flags().StringVar(&documentID, "document-id", "", "document id (required)")
	return cmd
}

func deleteDataSourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-data-source",
		Short: "Tear down a data source: its vector collection and every metadata row",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, cleanup, err := load()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := core.Delete(rootContext()); err != nil {
				return err
			}
			fmt.Printf("deleted data source %s/%s\n", flagProject, flagDataSource)
			return nil
		},
	}
}
