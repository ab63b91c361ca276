// Package dserr defines the error-kind taxonomy shared by the data source
// core. Call sites wrap one of these sentinels with context via fmt.Errorf's
// %w verb so errors.Is keeps working across the wrap chain.
package dserr

import "errors"

var (
	// ErrInvalidArgument covers caller-supplied values the core rejects
	// outright: top_k over the hard cap, forbidden system tags, etc.
	ErrInvalidArgument = errors.New("datasource: invalid argument")

	// ErrConfig covers missing required environment variables.
	ErrConfig = errors.New("datasource: configuration error")

	// ErrEmbedder covers embedder adapter failures.
	ErrEmbedder = errors.New("datasource: embedder error")

	// ErrVectorIndex covers vector index adapter failures (collection
	// create/upsert/delete/search/scroll/set-payload).
	ErrVectorIndex = errors.New("datasource: vector index error")

	// ErrBlob covers blob archive put/get failures.
	ErrBlob = errors.New("datasource: blob error")

	// ErrMetadata covers metadata store failures.
	ErrMetadata = errors.New("datasource: metadata error")

	// ErrNotFound covers a document row that was expected to exist but
	// does not; fatal for the request that encounters it.
	ErrNotFound = errors.New("datasource: not found")
)
