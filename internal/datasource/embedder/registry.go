package embedder

import (
	"fmt"

	"github.com/fyrsmithlabs/contextd/internal/datasource"
)

// Provider IDs recognized in a data source's Config.ProviderID.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// New builds the Embedder for a data source's configured provider. extras
// carries provider-specific fields from Config.Extras: remote providers
// read base_url and api_key, local providers read cache_dir.
func New(providerID, modelID string, dimension int, extras map[string]any) (datasource.Embedder, error) {
	switch providerID {
	case ProviderRemote:
		return NewRemote(RemoteConfig{
			BaseURL: stringExtra(extras, "base_url"),
			Model:   modelID,
			APIKey:  stringExtra(extras, "api_key"),
		}, dimension), nil
	case ProviderLocal, "":
		return NewLocal(LocalConfig{
			Model:    modelID,
			CacheDir: stringExtra(extras, "cache_dir"),
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", providerID)
	}
}

func stringExtra(extras map[string]any, key string) string {
	if extras == nil {
		return ""
	}
	v, _ := extras[key].(string)
	return v
}
