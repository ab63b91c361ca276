package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every document registered in a data source",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, cleanup, err := load()
			if err != nil {
				return err
			}
			defer cleanup()

			docs, err := core.ListDocuments(rootContext())
			if err != nil {
				return err
			}
			for _, d := range docs {
				fmt.Printf("%s\tchunks=%d\ttags=%v\n", d.DocumentID, d.ChunkCount, d.Tags)
			}
			return nil
		},
	}
}
