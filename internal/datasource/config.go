package datasource

import (
	"fmt"
	"os"

	"github.com/fyrsmithlabs/contextd/internal/datasource/dserr"
)

// EnvConfig holds the environment-sourced values the core requires. Each
// field is mandatory for the operations noted in its comment; a missing
// value raises dserr.ErrConfig rather than silently defaulting.
type EnvConfig struct {
	// VectorDBURL is required by setup/search/upsert/delete.
	VectorDBURL string
	// VectorDBAPIKey is required whenever VectorDBURL is set.
	VectorDBAPIKey string
	// BlobBucket is required by setup/upsert/search(full_text)/retrieve.
	BlobBucket string
}

// LoadEnvConfig reads the three core-mandated environment variables,
// failing closed with dserr.ErrConfig on any missing value.
func LoadEnvConfig() (*EnvConfig, error) {
	url := os.Getenv("VECTOR_DB_URL")
	if url == "" {
		return nil, fmt.Errorf("%w: VECTOR_DB_URL is required", dserr.ErrConfig)
	}

	apiKey := os.Getenv("VECTOR_DB_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: VECTOR_DB_API_KEY is required when VECTOR_DB_URL is set", dserr.ErrConfig)
	}

	bucket := os.Getenv("BLOB_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("%w: BLOB_BUCKET is required", dserr.ErrConfig)
	}

	return &EnvConfig{
		VectorDBURL:    url,
		VectorDBAPIKey: apiKey,
		BlobBucket:     bucket,
	}, nil
}
