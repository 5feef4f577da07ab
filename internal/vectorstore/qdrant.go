// Package vectorstore provides chunk vector storage over Qdrant's native
// gRPC client.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("docrag.vectorstore")

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrEmptyRecords indicates empty or nil chunk records.
	ErrEmptyRecords = errors.New("empty or nil chunk records")
)

// Store is the interface for chunk vector storage.
//
// Implementations embed nothing: callers supply ready-made vectors, and
// provenance travels in the point payload (source filename, per-document
// sequence index, ingestion timestamp).
type Store interface {
	// UpsertChunks stores chunk records. Upserts are idempotent per point
	// ID but re-ingesting the same filename creates additional points.
	UpsertChunks(ctx context.Context, records []ChunkRecord) error

	// Search returns up to k nearest chunks by cosine similarity.
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)

	// ListSourceFiles returns the distinct set of source filenames across
	// all stored points.
	ListSourceFiles(ctx context.Context) (map[string]struct{}, error)

	// DeleteBySourceFile removes every point whose source filename matches.
	// Deletion is filter-based; a missing filename is a no-op.
	DeleteBySourceFile(ctx context.Context, filename string) error

	// Close releases the underlying connection.
	Close() error
}

// Config holds configuration for the Qdrant-backed store.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	Port int

	// APIKey authenticates against managed deployments. Optional.
	APIKey string

	// Collection is the collection holding chunk vectors.
	Collection string

	// VectorSize is the embedding dimensionality. MUST match the embedder
	// output for the lifetime of the collection.
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Timeout bounds each client call.
	Timeout time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes. Batched
	// upserts of long chunks can exceed the 4MB gRPC default.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// QdrantStore is a Store implementation over Qdrant gRPC.
type QdrantStore struct {
	client *qdrant.Client
	config Config
}

// NewQdrantStore connects to Qdrant, verifies the connection, and ensures
// the chunk collection exists. Connection failures here are fatal to
// startup; everything after construction degrades per operation.
func NewQdrantStore(ctx context.Context, config Config) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(healthCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	if err := store.EnsureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
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

// EnsureCollection creates the chunk collection if it does not exist yet,
// with cosine distance and the configured vector size.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	return nil
}

// UpsertChunks stores chunk records with their provenance payload.
func (s *QdrantStore) UpsertChunks(ctx context.Context, records []ChunkRecord) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.UpsertChunks")
	defer span.End()
	span.SetAttributes(
		attribute.Int("chunk_count", len(records)),
		attribute.String("collection", s.config.Collection),
	)

	if len(records) == 0 {
		return ErrEmptyRecords
	}

	// Re-check on every ingestion in case the collection was dropped
	// behind our back.
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, record := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(record.ID),
			Vectors: qdrant.NewVectors(record.Vector...),
			Payload: map[string]*qdrant.Value{
				payloadText:             qdrant.NewValueString(record.Text),
				payloadSourceFile:       qdrant.NewValueString(record.SourceFile),
				payloadChunkID:          qdrant.NewValueInt(int64(record.Sequence)),
				payloadOriginalFileName: qdrant.NewValueString(record.SourceFile),
				payloadConversionDate:   qdrant.NewValueString(record.IngestedAt.Format(time.RFC3339)),
			},
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Points:         points,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search returns up to k nearest chunks by cosine similarity.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != int(s.config.VectorSize) {
		return nil, fmt.Errorf("query vector has dimension %d, collection expects %d", len(vector), s.config.VectorSize)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", s.config.Collection, err)
	}

	chunks := make([]ScoredChunk, 0, len(results))
	for _, point := range results {
		chunks = append(chunks, ScoredChunk{
			Text:       stringPayload(point.Payload, payloadText),
			SourceFile: stringPayload(point.Payload, payloadOriginalFileName),
			Score:      point.Score,
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(chunks)))
	span.SetStatus(codes.Ok, "success")
	return chunks, nil
}

// ListSourceFiles scans all stored points and collects distinct filenames.
func (s *QdrantStore) ListSourceFiles(ctx context.Context) (map[string]struct{}, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.ListSourceFiles")
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	files := make(map[string]struct{})
	var offset *qdrant.PointId

	for {
		points, nextOffset, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: s.config.Collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(100)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scrolling collection %s: %w", s.config.Collection, err)
		}
		if len(points) == 0 {
			break
		}

		for _, point := range points {
			if name := stringPayload(point.Payload, payloadOriginalFileName); name != "" {
				files[name] = struct{}{}
			}
		}

		if nextOffset == nil {
			break
		}
		offset = nextOffset
	}

	span.SetAttributes(attribute.Int("file_count", len(files)))
	span.SetStatus(codes.Ok, "success")
	return files, nil
}

// DeleteBySourceFile removes every point whose source filename matches.
func (s *QdrantStore) DeleteBySourceFile(ctx context.Context, filename string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteBySourceFile")
	defer span.End()
	span.SetAttributes(attribute.String("source_file", filename))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.config.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						{
							ConditionOneOf: &qdrant.Condition_Field{
								Field: &qdrant.FieldCondition{
									Key: payloadOriginalFileName,
									Match: &qdrant.Match{
										MatchValue: &qdrant.Match_Keyword{Keyword: filename},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting points for %s: %w", filename, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// withTimeout applies the configured per-call timeout.
func (s *QdrantStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

// stringPayload extracts a string payload field, or "".
func stringPayload(payload map[string]*qdrant.Value, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}
