package embedder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// LocalConfig configures the in-process fastembed-go provider.
type LocalConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.BGESmallZH:    512,
	fastembed.AllMiniLML6V2: 384,
}

// Local is an Embedder backed by a local ONNX model via fastembed-go. It
// has no network dependency and is the default for data sources that
// don't specify a remote provider.
type Local struct {
	mu        sync.RWMutex
	model     *fastembed.FlagEmbedding
	dimension int
}

// NewLocal loads (downloading to CacheDir if necessary) the named model.
func NewLocal(cfg LocalConfig) (*Local, error) {
	model, ok := modelMapping[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
		if _, known := modelDimensions[model]; !known {
			return nil, fmt.Errorf("unsupported local embedding model %q", cfg.Model)
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing local embedding model: %w", err)
	}

	return &Local{model: flagEmbed, dimension: modelDimensions[model]}, nil
}

// Embed generates a single embedding using the model's query prefix
// convention, adequate for both stored chunks and search queries since
// the data source core embeds one text at a time regardless of role.
func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	vec, err := l.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("local embedding failed: %w", err)
	}
	return vec, nil
}

// EmbeddingSize returns the loaded model's embedding dimension.
func (l *Local) EmbeddingSize() int {
	return l.dimension
}

// Close releases the underlying ONNX runtime session.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model != nil {
		return l.model.Destroy()
	}
	return nil
}
