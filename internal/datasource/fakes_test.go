package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/contextd/internal/datasource/dserr"
)

// fakeBlobArchive is an in-memory BlobArchive used across this package's
// tests.
type fakeBlobArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobArchive() *fakeBlobArchive {
	return &fakeBlobArchive{objects: make(map[string][]byte)}
}

func (f *fakeBlobArchive) Put(_ context.Context, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.objects[path] = cp
	return nil
}

func (f *fakeBlobArchive) Get(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("%w: no object at %s", dserr.ErrNotFound, path)
	}
	return data, nil
}

// fakeVectorIndex is an in-memory VectorIndex used across this package's
// tests. It implements enough of the filter semantics (keyword equality,
// keyword membership, integer range, integer membership) to exercise the
// write and read paths faithfully.
type fakeVectorIndex struct {
	mu          sync.Mutex
	collections map[string]bool
	points      map[string][]VectorPoint // collection -> points
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{
		collections: make(map[string]bool),
		points:      make(map[string][]VectorPoint),
	}
}

func (f *fakeVectorIndex) CreateCollection(_ context.Context, name string, _ CollectionConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[name] = true
	return nil
}

func (f *fakeVectorIndex) DeleteCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	delete(f.points, name)
	return nil
}

func (f *fakeVectorIndex) CreateFieldIndex(_ context.Context, _, _ string, _ FieldIndexKind) error {
	return nil
}

func (f *fakeVectorIndex) UpsertPoints(_ context.Context, name string, points []VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[name] = append(f.points[name], points...)
	return nil
}

func (f *fakeVectorIndex) DeletePoints(_ context.Context, name string, filter VectorFilter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.points[name][:0:0]
	for _, p := range f.points[name] {
		if !matchesFilter(p.Payload, filter) {
			kept = append(kept, p)
		}
	}
	f.points[name] = kept
	return nil
}

func (f *fakeVectorIndex) SetPayload(_ context.Context, name string, filter VectorFilter, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.points[name] {
		if matchesFilter(p.Payload, filter) {
			for k, v := range payload {
				f.points[name][i].Payload[k] = v
			}
		}
	}
	return nil
}

func (f *fakeVectorIndex) Search(_ context.Context, name string, vector []float32, filter VectorFilter, limit uint64) ([]ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []ScoredPoint
	for _, p := range f.points[name] {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		out = append(out, ScoredPoint{VectorPoint: p, Score: cosineSimilarity(vector, p.Vector)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeVectorIndex) Scroll(_ context.Context, name string, filter VectorFilter, limit uint64) ([]VectorPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []VectorPoint
	for _, p := range f.points[name] {
		if matchesFilter(p.Payload, filter) {
			out = append(out, p)
		}
	}
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesFilter(payload map[string]any, filter VectorFilter) bool {
	for _, c := range filter.Must {
		if !matchesCondition(payload, c) {
			return false
		}
	}
	for _, c := range filter.MustNot {
		if matchesCondition(payload, c) {
			return false
		}
	}
	if len(filter.Should) > 0 {
		any := false
		for _, c := range filter.Should {
			if matchesCondition(payload, c) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

func matchesCondition(payload map[string]any, c VectorCondition) bool {
	v, ok := payload[c.Field]
	if !ok {
		return false
	}

	if c.Match != nil {
		switch {
		case c.Match.Value != "":
			return fmt.Sprintf("%v", v) == c.Match.Value
		case len(c.Match.Values) > 0:
			if list, ok := v.([]string); ok {
				for _, want := range c.Match.Values {
					for _, got := range list {
						if got == want {
							return true
						}
					}
				}
				return false
			}
			s := fmt.Sprintf("%v", v)
			for _, want := range c.Match.Values {
				if s == want {
					return true
				}
			}
			return false
		case len(c.Match.IntValues) > 0:
			n, err := payloadInt(v)
			if err != nil {
				return false
			}
			for _, want := range c.Match.IntValues {
				if int64(n) == want {
					return true
				}
			}
			return false
		}
	}

	if c.Range != nil {
		n, err := payloadInt(v)
		if err != nil {
			return false
		}
		f := float64(n)
		if c.Range.Gte != nil && f < *c.Range.Gte {
			return false
		}
		if c.Range.Lte != nil && f > *c.Range.Lte {
			return false
		}
		if c.Range.Gt != nil && f <= *c.Range.Gt {
			return false
		}
		if c.Range.Lt != nil && f >= *c.Range.Lt {
			return false
		}
		return true
	}

	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (sqrt(na) * sqrt(nb)))
}

func sqrt(f float64) float64 {
	if f == 0 {
		return 0
	}
	x := f
	for i := 0; i < 30; i++ {
		x = 0.5 * (x + f/x)
	}
	return x
}

// fakeMetadataStore is an in-memory MetadataStore used across this
// package's tests. Each upsert appends a new version; load without a
// version hash returns the latest.
type fakeMetadataStore struct {
	mu        sync.Mutex
	dataSources map[string]*DataSource
	versions  map[string][]*Document // key: dataSourceID/documentID
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{
		dataSources: make(map[string]*DataSource),
		versions:    make(map[string][]*Document),
	}
}

func docKey(dataSourceID, documentID string) string {
	return dataSourceID + "/" + documentID
}

func (f *fakeMetadataStore) RegisterDataSource(_ context.Context, ds *DataSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataSources[ds.DataSourceID] = ds
	return nil
}

func (f *fakeMetadataStore) LoadDataSource(_ context.Context, _, dataSourceID string) (*DataSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.dataSources[dataSourceID]
	if !ok {
		return nil, dserr.ErrNotFound
	}
	return ds, nil
}

func (f *fakeMetadataStore) UpsertDataSourceDocument(_ context.Context, doc *Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := docKey(doc.DataSourceID, doc.DocumentID)
	cp := *doc
	f.versions[key] = append(f.versions[key], &cp)
	return nil
}

func (f *fakeMetadataStore) LoadDataSourceDocument(_ context.Context, _, dataSourceID, documentID string, versionHash *string) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.versions[docKey(dataSourceID, documentID)]
	if len(versions) == 0 {
		return nil, dserr.ErrNotFound
	}
	if versionHash == nil {
		latest := *versions[len(versions)-1]
		return &latest, nil
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Hash == *versionHash {
			cp := *versions[i]
			return &cp, nil
		}
	}
	return nil, dserr.ErrNotFound
}

func (f *fakeMetadataStore) ListDataSourceDocuments(_ context.Context, _, dataSourceID string) ([]*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Document
	prefix := dataSourceID + "/"
	for key, versions := range f.versions {
		if len(versions) == 0 || !strings.HasPrefix(key, prefix) {
			continue
		}
		latest := *versions[len(versions)-1]
		out = append(out, &latest)
	}
	return out, nil
}

func (f *fakeMetadataStore) UpdateDataSourceDocumentTags(_ context.Context, _, dataSourceID, documentID string, add, remove []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := docKey(dataSourceID, documentID)
	versions := f.versions[key]
	if len(versions) == 0 {
		return nil, dserr.ErrNotFound
	}
	latest := versions[len(versions)-1]

	removeSet := make(map[string]bool, len(remove))
	for _, t := range remove {
		removeSet[t] = true
	}
	kept := make([]string, 0, len(latest.Tags))
	for _, t := range latest.Tags {
		if !removeSet[t] {
			kept = append(kept, t)
		}
	}
	kept = append(kept, add...)

	updated := *latest
	updated.Tags = kept
	f.versions[key] = append(f.versions[key], &updated)

	return kept, nil
}

func (f *fakeMetadataStore) DeleteDataSourceDocument(_ context.Context, _, dataSourceID, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.versions, docKey(dataSourceID, documentID))
	return nil
}

func (f *fakeMetadataStore) DeleteDataSource(_ context.Context, _, dataSourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := dataSourceID + "/"
	for key := range f.versions {
		if strings.HasPrefix(key, prefix) {
			delete(f.versions, key)
		}
	}
	delete(f.dataSources, dataSourceID)
	return nil
}

// fakeEmbedder is a deterministic Embedder: it hashes the text into a
// fixed-size vector so identical inputs always produce identical (and
// distinguishable) vectors without any model dependency.
type fakeEmbedder struct {
	dimension int
}

func newFakeEmbedder(dimension int) *fakeEmbedder {
	return &fakeEmbedder{dimension: dimension}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.dimension)
	for i := range vec {
		vec[i] = float32((hashByte(text, i) % 1000)) / 1000
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbeddingSize() int {
	return f.dimension
}

func hashByte(s string, salt int) int {
	h := salt*31 + 7
	for _, r := range s {
		h = h*31 + int(r)
	}
	if h < 0 {
		h = -h
	}
	return h
}

// fakeSplitter splits text into fixed-size chunks by rune count, purely
// and deterministically.
type fakeSplitter struct{}

func (fakeSplitter) Split(_ context.Context, maxChunkSize int, text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += maxChunkSize {
		end := i + maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks, nil
}
