// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("codeindexd.vectorstore.qdrant")

// Named vectors used inside every collection. An entity's dense embedding
// always lives under denseVectorName; sparseVectorName is only present on
// collections created with withSparse=true.
const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against security rules.
// Pattern: ^[a-z0-9_]{1,64}$
// Rejects: uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334.
	Port int

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries; doubles on
	// each retry.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of failures before opening the
	// circuit.
	CircuitBreakerThreshold int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024 // 50MB
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// IsTransientError reports whether err is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	case grpccodes.InvalidArgument, grpccodes.NotFound, grpccodes.PermissionDenied, grpccodes.Unauthenticated:
		return false
	default:
		return false
	}
}

// QdrantStore is the Store implementation backing the vector store adapter
// Adapter). It holds one collection per repository, each with a dense
// named vector and, where the repository's embedding config enables
// sparse retrieval, a sparse named vector alongside it.
type QdrantStore struct {
	client *qdrant.Client

	config QdrantConfig

	// collections caches collection existence to avoid repeated round trips.
	// Key: collection name, Value: true if exists.
	collections sync.Map

	// circuitBreaker tracks failures for the circuit breaker pattern.
	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantStore creates a new QdrantStore with the given configuration.
//
// The constructor performs the following steps:
//  1. Validates configuration
//  2. Creates the Qdrant gRPC client
//  3. Performs a health check
//  4. Returns a ready-to-use store
func NewQdrantStore(config QdrantConfig) (*QdrantStore, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		fmt.Fprintf(os.Stderr, "WARNING: Qdrant gRPC using plaintext (TLS disabled). Insecure for production.\n")
	}

	qdrantConfig := &qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.healthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	return store, nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// healthCheck performs a health check on the Qdrant connection.
func (s *QdrantStore) healthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.HealthCheck")
	defer span.End()

	_, err := s.client.HealthCheck(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("health check failed: %w", err)
	}

	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// retryOperation retries an operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		s.recordFailure()

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
	CircuitBreakerOpen.Set(0)
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()

	if s.circuitBreaker.failures >= s.config.CircuitBreakerThreshold {
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			CircuitBreakerOpen.Set(0)
			return false
		}
		CircuitBreakerOpen.Set(1)
		return true
	}
	return false
}

// EnsureCollection implements Store. It is idempotent: an already-existing
// collection is left untouched, whatever its current vector config.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, denseSize int, withSparse bool) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("dense_size", denseSize),
		attribute.Bool("with_sparse", withSparse),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if denseSize <= 0 {
		return fmt.Errorf("%w: dense size must be positive, got %d", ErrInvalidConfig, denseSize)
	}

	if exists, ok := s.collections.Load(collection); ok && exists.(bool) {
		return nil
	}

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if exists {
		s.collections.Store(collection, true)
		return nil
	}

	req := &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(denseSize),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	}
	if withSparse {
		req.SparseVectorsConfig = qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {},
		})
	}

	err = s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", collection, err)
	}

	s.collections.Store(collection, true)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteCollection implements Store.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteCollection")
	defer span.End()

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	err := s.retryOperation(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, collection)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", collection, err)
	}

	s.collections.Delete(collection)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// CollectionExists implements Store.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.CollectionExists")
	defer span.End()

	if err := ValidateCollectionName(collection); err != nil {
		return false, err
	}

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		names, err := s.client.ListCollections(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			if n == collection {
				exists = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("checking collection %s: %w", collection, err)
	}
	return exists, nil
}

// GetCollectionInfo implements Store.
func (s *QdrantStore) GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.GetCollectionInfo")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	var info *CollectionInfo
	err := s.retryOperation(ctx, "get_collection_info", func() error {
		collInfo, err := s.client.GetCollectionInfo(ctx, collection)
		if err != nil {
			st, ok := status.FromError(err)
			if ok && st.Code() == grpccodes.NotFound {
				return ErrCollectionNotFound
			}
			return err
		}
		pointCount := 0
		if collInfo.PointsCount != nil {
			pointCount = int(*collInfo.PointsCount)
		}
		size := 0
		hasSparse := false
		if params := collInfo.GetConfig().GetParams(); params != nil {
			if vc := params.GetVectorsConfig(); vc != nil {
				if m := vc.GetParamsMap(); m != nil {
					if p, ok := m.Map[denseVectorName]; ok {
						size = int(p.GetSize())
					}
				}
			}
			if sv := params.GetSparseVectorsConfig(); sv != nil {
				if _, ok := sv.Map[sparseVectorName]; ok {
					hasSparse = true
				}
			}
		}
		info = &CollectionInfo{Name: collection, PointCount: pointCount, VectorSize: size, HasSparse: hasSparse}
		CollectionPointCount.WithLabelValues(collection).Set(float64(pointCount))
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrCollectionNotFound) {
			span.SetStatus(codes.Error, "collection not found")
			return nil, ErrCollectionNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("getting collection info for %s: %w", collection, err)
	}

	span.SetAttributes(attribute.Int("point_count", info.PointCount))
	span.SetStatus(codes.Ok, "success")
	return info, nil
}

func pointIDFromString(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	// Deterministic so repeated upserts of the same logical point collapse
	// onto one Qdrant point id, per the idempotent-upsert requirement.
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

func payloadToQdrant(payload map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		case float64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		case bool:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		default:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
		}
	}
	return out
}

func payloadFromQdrant(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}

// UpsertPoints implements Store.
func (s *QdrantStore) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.UpsertPoints")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection), attribute.Int("count", len(points)))

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return ErrEmptyPoints
	}

	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		vectors := map[string]*qdrant.Vector{
			denseVectorName: qdrant.NewVector(p.Dense...),
		}
		if p.Sparse != nil {
			vectors[sparseVectorName] = qdrant.NewVectorSparse(p.Sparse.Indices, p.Sparse.Values)
		}

		payload := payloadToQdrant(p.Payload)
		payload["entity_id"] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: p.EntityID}}
		payload["repository_id"] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: p.RepositoryID}}

		qpoints[i] = &qdrant.PointStruct{
			Id:      pointIDFromString(p.PointID),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: payload,
		}
	}

	start := time.Now()
	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         qpoints,
		})
		return err
	})
	RecordUpsert(err == nil, len(points), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeletePoints implements Store. Deleting an absent point id is a no-op.
func (s *QdrantStore) DeletePoints(ctx context.Context, collection string, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "QdrantStore.DeletePoints")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection), attribute.Int("count", len(pointIDs)))

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	ids := make([]*qdrant.PointId, len(pointIDs))
	for i, id := range pointIDs {
		ids[i] = pointIDFromString(id)
	}

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points:         qdrant.NewPointsSelectorIDs(ids),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting points from collection %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

func filterToQdrant(filter map[string]any) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		var keyword string
		switch v := value.(type) {
		case string:
			keyword = v
		default:
			keyword = fmt.Sprintf("%v", v)
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: keyword},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func scoredPointsToResults(points []*qdrant.ScoredPoint) []SearchResult {
	out := make([]SearchResult, len(points))
	for i, p := range points {
		payload := payloadFromQdrant(p.GetPayload())
		entityID, _ := payload["entity_id"].(string)
		repoID, _ := payload["repository_id"].(string)
		out[i] = SearchResult{
			PointID:      p.GetId().GetUuid(),
			EntityID:     entityID,
			RepositoryID: repoID,
			Score:        p.GetScore(),
			Payload:      payload,
		}
	}
	return out
}

// SearchSimilar implements Store: dense-only similarity search.
func (s *QdrantStore) SearchSimilar(ctx context.Context, collection string, dense []float32, k int, filter map[string]any) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.SearchSimilar")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection), attribute.Int("k", k))

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	start := time.Now()
	var results []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "search_similar", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(dense...),
			Using:          qdrant.PtrOf(denseVectorName),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         filterToQdrant(filter),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	RecordSearch("dense", err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", collection, err)
	}

	out := scoredPointsToResults(results)
	span.SetAttributes(attribute.Int("result_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// SearchSimilarHybrid implements Store's hybrid search contract: prefetch
// top-(k*prefetchMultiplier) from each modality independently, then fuse by
// Reciprocal Rank Fusion (see rrf.go) and return the top k of the fused
// ranking. If sparse is nil — the repository has no sparse vectors
// configured — this degrades to a dense-only search.
func (s *QdrantStore) SearchSimilarHybrid(ctx context.Context, collection string, dense []float32, sparse *SparseVector, k int, prefetchMultiplier int, filter map[string]any) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.SearchSimilarHybrid")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
		attribute.Int("prefetch_multiplier", prefetchMultiplier),
		attribute.Bool("has_sparse", sparse != nil),
	)

	if prefetchMultiplier <= 0 {
		prefetchMultiplier = 5
	}
	prefetchK := k * prefetchMultiplier

	denseResults, err := s.SearchSimilar(ctx, collection, dense, prefetchK, filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if sparse == nil {
		if k < len(denseResults) {
			denseResults = denseResults[:k]
		}
		return denseResults, nil
	}

	start := time.Now()
	var sparsePoints []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "search_sparse", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuerySparse(sparse.Indices, sparse.Values),
			Using:          qdrant.PtrOf(sparseVectorName),
			Limit:          qdrant.PtrOf(uint64(prefetchK)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         filterToQdrant(filter),
		})
		if err != nil {
			return err
		}
		sparsePoints = res
		return nil
	})
	RecordSearch("hybrid", err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("sparse search on collection %s: %w", collection, err)
	}

	fused := fuseRRF(denseResults, scoredPointsToResults(sparsePoints), k)
	span.SetAttributes(attribute.Int("result_count", len(fused)))
	span.SetStatus(codes.Ok, "success")
	return fused, nil
}
