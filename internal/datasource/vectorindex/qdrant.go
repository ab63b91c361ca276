// Package vectorindex provides the concrete VectorIndex adapter backed by
// Qdrant's official Go client, extending the connection and retry
// machinery of internal/qdrant with the collection tuning, scroll, and
// filtered delete/set-payload operations the data source core requires.
package vectorindex

import (
	"context"
	"fmt"
	"time"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/contextd/internal/datasource"
	"github.com/fyrsmithlabs/contextd/internal/logging"
)

// ClientConfig configures the Qdrant gRPC client used by the VectorIndex
// adapter. Mirrors internal/qdrant.ClientConfig.
type ClientConfig struct {
	Host           string
	Port           int
	UseTLS         bool
	APIKey         string
	MaxMessageSize int
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	RetryAttempts  int
}

// DefaultClientConfig returns sensible defaults for local development.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Host:           "localhost",
		Port:           6334,
		MaxMessageSize: 50 * 1024 * 1024,
		DialTimeout:    5 * time.Second,
		RequestTimeout: 30 * time.Second,
		RetryAttempts:  3,
	}
}

func (c *ClientConfig) applyDefaults() {
	d := DefaultClientConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = d.RetryAttempts
	}
}

// Client implements datasource.VectorIndex against a live Qdrant server.
type Client struct {
	client *qdrantclient.Client
	config *ClientConfig
	logger *logging.Logger
}

// New dials Qdrant and health-checks the connection before returning.
func New(config *ClientConfig, logger *logging.Logger) (*Client, error) {
	if config == nil {
		config = DefaultClientConfig()
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	config.applyDefaults()

	qdrantConfig := &qdrantclient.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	}
	if !config.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	raw, err := qdrantclient.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	c := &Client{client: raw, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := c.health(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	return c, nil
}

func (c *Client) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	_, err := c.client.HealthCheck(ctx)
	return err
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// CreateCollection creates a collection tuned per the data source core's
// contract: HNSW m, on-disk payload, and a memmap optimizer threshold.
func (c *Client) CreateCollection(ctx context.Context, name string, cfg datasource.CollectionConfig) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	distance := qdrantclient.Distance_Dot
	if cfg.Cosine {
		distance = qdrantclient.Distance_Cosine
	}

	req := &qdrantclient.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrantclient.NewVectorsConfig(&qdrantclient.VectorParams{
			Size:     cfg.Dimension,
			Distance: distance,
		}),
		OnDiskPayload: &cfg.OnDiskPayload,
	}
	if cfg.HNSWM > 0 {
		req.HnswConfig = &qdrantclient.HnswConfigDiff{M: qdrantclient.PtrOf(cfg.HNSWM)}
	}
	if cfg.MemmapThreshold > 0 {
		req.OptimizersConfig = &qdrantclient.OptimizersConfigDiff{
			MemmapThreshold: qdrantclient.PtrOf(cfg.MemmapThreshold),
		}
	}

	return c.retry(ctx, func() error {
		return c.client.CreateCollection(ctx, req)
	})
}

// DeleteCollection removes a collection and all of its points.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	return c.retry(ctx, func() error {
		return c.client.DeleteCollection(ctx, name)
	})
}

// CreateFieldIndex creates a keyword or integer payload index on a field.
func (c *Client) CreateFieldIndex(ctx context.Context, name, field string, kind datasource.FieldIndexKind) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var fieldType qdrantclient.FieldType
	switch kind {
	case datasource.FieldIndexKeyword:
		fieldType = qdrantclient.FieldType_FieldTypeKeyword
	case datasource.FieldIndexInteger:
		fieldType = qdrantclient.FieldType_FieldTypeInteger
	default:
		return fmt.Errorf("unsupported field index kind %v", kind)
	}

	return c.retry(ctx, func() error {
		_, err := c.client.CreateFieldIndex(ctx, &qdrantclient.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      &fieldType,
		})
		return err
	})
}

// UpsertPoints inserts or updates vector points.
func (c *Client) UpsertPoints(ctx context.Context, name string, points []datasource.VectorPoint) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	qdrantPoints := make([]*qdrantclient.PointStruct, len(points))
	for i, p := range points {
		qdrantPoints[i] = toQdrantPoint(p)
	}

	return c.retry(ctx, func() error {
		_, err := c.client.Upsert(ctx, &qdrantclient.UpsertPoints{
			CollectionName: name,
			Points:         qdrantPoints,
		})
		return err
	})
}

// DeletePoints removes every point matching filter.
func (c *Client) DeletePoints(ctx context.Context, name string, filter datasource.VectorFilter) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	return c.retry(ctx, func() error {
		_, err := c.client.Delete(ctx, &qdrantclient.DeletePoints{
			CollectionName: name,
			Points: &qdrantclient.PointsSelector{
				PointsSelectorOneOf: &qdrantclient.PointsSelector_Filter{
					Filter: toQdrantFilter(filter),
				},
			},
		})
		return err
	})
}

// SetPayload overwrites payload fields on every point matching filter.
func (c *Client) SetPayload(ctx context.Context, name string, filter datasource.VectorFilter, payload map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	qp := make(map[string]*qdrantclient.Value, len(payload))
	for k, v := range payload {
		qp[k] = toQdrantValue(v)
	}

	return c.retry(ctx, func() error {
		_, err := c.client.SetPayload(ctx, &qdrantclient.SetPayloadPoints{
			CollectionName: name,
			Payload:        qp,
			PointsSelector: &qdrantclient.PointsSelector{
				PointsSelectorOneOf: &qdrantclient.PointsSelector_Filter{
					Filter: toQdrantFilter(filter),
				},
			},
		})
		return err
	})
}

// Search performs similarity search, returning hits sorted by descending
// score.
func (c *Client) Search(ctx context.Context, name string, vector []float32, filter datasource.VectorFilter, limit uint64) ([]datasource.ScoredPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var results []*qdrantclient.ScoredPoint
	err := c.retry(ctx, func() error {
		res, err := c.client.Query(ctx, &qdrantclient.QueryPoints{
			CollectionName: name,
			Query:          qdrantclient.NewQuery(vector...),
			Limit:          qdrantclient.PtrOf(limit),
			WithPayload:    qdrantclient.NewWithPayload(true),
			Filter:         toQdrantFilter(filter),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]datasource.ScoredPoint, len(results))
	for i, r := range results {
		out[i] = datasource.ScoredPoint{
			VectorPoint: datasource.VectorPoint{
				ID:      extractID(r.Id),
				Vector:  extractVector(r.Vectors),
				Payload: extractPayload(r.Payload),
			},
			Score: r.Score,
		}
	}
	return out, nil
}

// Scroll returns payloads of points matching filter, up to limit, without
// vector similarity ranking.
func (c *Client) Scroll(ctx context.Context, name string, filter datasource.VectorFilter, limit uint64) ([]datasource.VectorPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var results []*qdrantclient.RetrievedPoint
	err := c.retry(ctx, func() error {
		res, err := c.client.Scroll(ctx, &qdrantclient.ScrollPoints{
			CollectionName: name,
			Filter:         toQdrantFilter(filter),
			Limit:          qdrantclient.PtrOf(uint32(limit)),
			WithPayload:    qdrantclient.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]datasource.VectorPoint, len(results))
	for i, r := range results {
		out[i] = datasource.VectorPoint{
			ID:      extractID(r.Id),
			Vector:  extractVector(r.Vectors),
			Payload: extractPayload(r.Payload),
		}
	}
	return out, nil
}

// retry retries an operation with exponential backoff on transient gRPC
// errors, matching internal/qdrant.GRPCClient.retryOperation.
func (c *Client) retry(ctx context.Context, op func() error) error {
	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return err
		}
		if attempt == c.config.RetryAttempts {
			break
		}

		if c.logger != nil {
			c.logger.Debug(ctx, "retrying vector index operation after transient error",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", c.config.RetryAttempts, lastErr)
}

func isTransient(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func toQdrantPoint(p datasource.VectorPoint) *qdrantclient.PointStruct {
	payload := make(map[string]*qdrantclient.Value, len(p.Payload))
	for k, v := range p.Payload {
		payload[k] = toQdrantValue(v)
	}
	return &qdrantclient.PointStruct{
		Id:      qdrantclient.NewIDUUID(p.ID),
		Vectors: qdrantclient.NewVectors(p.Vector...),
		Payload: payload,
	}
}

func toQdrantValue(v any) *qdrantclient.Value {
	switch val := v.(type) {
	case string:
		return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: val}}
	case int:
		return &qdrantclient.Value{Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrantclient.Value{Kind: &qdrantclient.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &qdrantclient.Value{Kind: &qdrantclient.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &qdrantclient.Value{Kind: &qdrantclient.Value_BoolValue{BoolValue: val}}
	case []string:
		values := make([]*qdrantclient.Value, len(val))
		for i, s := range val {
			values[i] = &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: s}}
		}
		return &qdrantclient.Value{Kind: &qdrantclient.Value_ListValue{
			ListValue: &qdrantclient.ListValue{Values: values},
		}}
	default:
		return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func extractID(id *qdrantclient.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	if n := id.GetNum(); n != 0 {
		return fmt.Sprintf("%d", n)
	}
	return ""
}

func extractVector(vectors *qdrantclient.VectorsOutput) []float32 {
	if vectors == nil {
		return nil
	}
	if vec := vectors.GetVector(); vec != nil {
		if dense := vec.GetDense(); dense != nil {
			return dense.GetData()
		}
	}
	return nil
}

func extractPayload(payload map[string]*qdrantclient.Value) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = extractValue(v)
	}
	return out
}

func extractValue(v *qdrantclient.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrantclient.Value_StringValue:
		return val.StringValue
	case *qdrantclient.Value_IntegerValue:
		return val.IntegerValue
	case *qdrantclient.Value_DoubleValue:
		return val.DoubleValue
	case *qdrantclient.Value_BoolValue:
		return val.BoolValue
	case *qdrantclient.Value_ListValue:
		out := make([]string, 0, len(val.ListValue.Values))
		for _, item := range val.ListValue.Values {
			if s, ok := extractValue(item).(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toQdrantFilter(f datasource.VectorFilter) *qdrantclient.Filter {
	filter := &qdrantclient.Filter{}
	if len(f.Must) > 0 {
		filter.Must = make([]*qdrantclient.Condition, len(f.Must))
		for i, c := range f.Must {
			filter.Must[i] = toQdrantCondition(c)
		}
	}
	if len(f.Should) > 0 {
		filter.Should = make([]*qdrantclient.Condition, len(f.Should))
		for i, c := range f.Should {
			filter.Should[i] = toQdrantCondition(c)
		}
	}
	if len(f.MustNot) > 0 {
		filter.MustNot = make([]*qdrantclient.Condition, len(f.MustNot))
		for i, c := range f.MustNot {
			filter.MustNot[i] = toQdrantCondition(c)
		}
	}
	return filter
}

func toQdrantCondition(c datasource.VectorCondition) *qdrantclient.Condition {
	if c.Match != nil {
		return &qdrantclient.Condition{
			ConditionOneOf: &qdrantclient.Condition_Field{
				Field: &qdrantclient.FieldCondition{
					Key:   c.Field,
					Match: &qdrantclient.Match{MatchValue: toQdrantMatch(c.Match)},
				},
			},
		}
	}
	if c.Range != nil {
		return &qdrantclient.Condition{
			ConditionOneOf: &qdrantclient.Condition_Field{
				Field: &qdrantclient.FieldCondition{
					Key: c.Field,
					Range: &qdrantclient.Range{
						Gte: c.Range.Gte,
						Lte: c.Range.Lte,
						Gt:  c.Range.Gt,
						Lt:  c.Range.Lt,
					},
				},
			},
		}
	}
	return nil
}

// toQdrantMatch extends the teacher's single-keyword-only match with
// multi-value keyword and integer membership, needed for tags.in/tags.not
// and the neighborhood planner's chunk_offset IN (...) scroll filter.
func toQdrantMatch(m *datasource.VectorMatch) qdrantclient.IsMatch_MatchValue {
	switch {
	case len(m.IntValues) > 0:
		return &qdrantclient.Match_Integers{
			Integers: &qdrantclient.RepeatedIntegers{Integers: m.IntValues},
		}
	case len(m.Values) > 0:
		return &qdrantclient.Match_Keywords{
			Keywords: &qdrantclient.RepeatedStrings{Strings: m.Values},
		}
	default:
		return &qdrantclient.Match_Keyword{Keyword: m.Value}
	}
}

var _ datasource.VectorIndex = (*Client)(nil)
