package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagProviderID   string
	flagModelID      string
	flagSplitterID   string
	flagMaxChunkSize int
)

func setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register a new data source and provision its vector collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, cleanup, err := bootstrap(uuid.NewString(), flagProviderID, flagModelID, flagSplitterID, flagMaxChunkSize)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := core.Setup(rootContext()); err != nil {
				return err
			}
			fmt.Printf("provisioned %s/%s (collection %s)\n", flagProject, flagDataSource, core.DataSource().QdrantCollection())
			return nil
		},
	}
	cmd.Flags().StringVar(&flagProviderID, "provider", "local", "embedding provider: local or remote")
	cmd.Flags().StringVar(&flagModelID, "model", "BAAI/bge-small-en-v1.5", "embedding model id")
	cmd.Flags().StringVar(&flagSplitterID, "splitter", "recursive-character", "text splitter id")
	cmd.Flags().IntVar(&flagMaxChunkSize, "max-chunk-size", 512, "maximum characters per chunk")
	return cmd
}
