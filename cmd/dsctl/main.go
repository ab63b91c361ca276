// Package main implements dsctl, a command-line interface for operating a
// data source directly against its storage backends: Qdrant, Postgres,
// and an S3-compatible blob bucket.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/internal/datasource"
	"github.com/fyrsmithlabs/contextd/internal/datasource/blobarchive"
	"github.com/fyrsmithlabs/contextd/internal/datasource/embedder"
	"github.com/fyrsmithlabs/contextd/internal/datasource/metadatastore"
	"github.com/fyrsmithlabs/contextd/internal/datasource/splitter"
	"github.com/fyrsmithlabs/contextd/internal/datasource/vectorindex"
	"github.com/fyrsmithlabs/contextd/internal/logging"
)

var (
	version = "dev"

	flagProject      string
	flagDataSource   string
	flagMetadataDSN  string
	flagBlobEndpoint string
	flagBlobAccess   string
	flagBlobSecret   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dsctl:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "dsctl",
	Short:   "Operate a data source's index, storage, and retrieval directly",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "project name (required)")
	rootCmd.PersistentFlags().StringVar(&flagDataSource, "data-source", "", "data source id (required)")
	rootCmd.PersistentFlags().StringVar(&flagMetadataDSN, "metadata-dsn", os.Getenv("METADATA_DATABASE_URL"), "postgres DSN for the metadata store")
	rootCmd.PersistentFlags().StringVar(&flagBlobEndpoint, "blob-endpoint", os.Getenv("BLOB_ENDPOINT_URL"), "S3-compatible endpoint URL for blob storage")
	rootCmd.PersistentFlags().StringVar(&flagBlobAccess, "blob-access-key", os.Getenv("BLOB_ACCESS_KEY_ID"), "blob storage access key")
	rootCmd.PersistentFlags().StringVar(&flagBlobSecret, "blob-secret-key", os.Getenv("BLOB_SECRET_ACCESS_KEY"), "blob storage secret key")
	_ = rootCmd.MarkPersistentFlagRequired("project")
	_ = rootCmd.MarkPersistentFlagRequired("data-source")

	rootCmd.AddCommand(
		setupCmd(),
		upsertCmd(),
		searchCmd(),
		retrieveCmd(),
		deleteDocumentCmd(),
		deleteDataSourceCmd(),
		listCmd(),
	)
}

// bootstrap wires the concrete adapters for an existing or brand-new data
// source, the way cmd/contextd wires its own dependencies at startup.
func bootstrap(internalID, providerID, modelID, splitterID string, maxChunkSize int) (*datasource.Core, func(), error) {
	envCfg, err := datasource.LoadEnvConfig()
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.NewDefaultConfig()
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	host, port, useTLS, err := splitVectorDBURL(envCfg.VectorDBURL)
	if err != nil {
		return nil, nil, err
	}
	vectors, err := vectorindex.New(&vectorindex.ClientConfig{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
		APIKey: envCfg.VectorDBAPIKey,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to vector index: %w", err)
	}

	metadata, err := metadatastore.Open(flagMetadataDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to metadata store: %w", err)
	}

	blobs, err := blobarchive.New(rootContext(), blobarchive.Config{
		EndpointURL:     flagBlobEndpoint,
		AccessKeyID:     flagBlobAccess,
		SecretAccessKey: flagBlobSecret,
		Bucket:          envCfg.BlobBucket,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to blob store: %w", err)
	}

	emb, err := embedder.New(providerID, modelID, embeddingDimension(providerID, modelID), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing embedder: %w", err)
	}

	ds := &datasource.DataSource{
		Project:      flagProject,
		DataSourceID: flagDataSource,
		InternalID:   internalID,
		Created:      nowTruncated(),
		Config: datasource.Config{
			ProviderID:   providerID,
			ModelID:      modelID,
			SplitterID:   splitterID,
			MaxChunkSize: maxChunkSize,
		},
	}

	core := datasource.New(ds, datasource.Adapters{
		Blobs:    blobs,
		Vectors:  vectors,
		Metadata: metadata,
		Embedder: emb,
		Splitter: splitter.New(0),
		Logger:   zap.NewNop(),
	})

	cleanup := func() {
		_ = vectors.Close()
		_ = metadata.Close()
	}
	return core, cleanup, nil
}

// load wires a Core for a data source already registered in the metadata
// store, reusing its persisted configuration rather than requiring the
// caller to repeat provider/model/splitter flags on every invocation.
func load() (*datasource.Core, func(), error) {
	envCfg, err := datasource.LoadEnvConfig()
	if err != nil {
		return nil, nil, err
	}

	metadata, err := metadatastore.Open(flagMetadataDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to metadata store: %w", err)
	}

	ds, err := metadata.LoadDataSource(rootContext(), flagProject, flagDataSource)
	if err != nil {
		_ = metadata.Close()
		return nil, nil, fmt.Errorf("loading data source %s/%s: %w", flagProject, flagDataSource, err)
	}

	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
	if err != nil {
		_ = metadata.Close()
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	host, port, useTLS, err := splitVectorDBURL(envCfg.VectorDBURL)
	if err != nil {
		_ = metadata.Close()
		return nil, nil, err
	}
	vectors, err := vectorindex.New(&vectorindex.ClientConfig{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
		APIKey: envCfg.VectorDBAPIKey,
	}, logger)
	if err != nil {
		_ = metadata.Close()
		return nil, nil, fmt.Errorf("connecting to vector index: %w", err)
	}

	blobs, err := blobarchive.New(rootContext(), blobarchive.Config{
		EndpointURL:     flagBlobEndpoint,
		AccessKeyID:     flagBlobAccess,
		SecretAccessKey: flagBlobSecret,
		Bucket:          envCfg.BlobBucket,
	})
	if err != nil {
		_ = metadata.Close()
		return nil, nil, fmt.Errorf("connecting to blob store: %w", err)
	}

	emb, err := embedder.New(ds.Config.ProviderID, ds.Config.ModelID, embeddingDimension(ds.Config.ProviderID, ds.Config.ModelID), ds.Config.Extras)
	if err != nil {
		_ = metadata.Close()
		return nil, nil, fmt.Errorf("initializing embedder: %w", err)
	}

	core := datasource.New(ds, datasource.Adapters{
		Blobs:    blobs,
		Vectors:  vectors,
		Metadata: metadata,
		Embedder: emb,
		Splitter: splitter.New(0),
		Logger:   zap.NewNop(),
	})

	cleanup := func() {
		_ = vectors.Close()
		_ = metadata.Close()
	}
	return core, cleanup, nil
}

func embeddingDimension(providerID, modelID string) int {
	switch {
	case providerID == embedder.ProviderRemote:
		return 768
	case strings.Contains(modelID, "base"):
		return 768
	default:
		return 384
	}
}

func splitVectorDBURL(raw string) (host string, port int, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid VECTOR_DB_URL: %w", err)
	}
	host = u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		port = 6334
	} else {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid VECTOR_DB_URL port: %w", err)
		}
	}
	useTLS = u.Scheme == "https" || u.Scheme == "grpcs"
	return host, port, useTLS, nil
}

func nowTruncated() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func rootContext() context.Context {
	return context.Background()
}
