// Package graphstore persists extracted entities and relationships in a
// Neo4j knowledge graph and executes read queries against it.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/logging"
)

var tracer = otel.Tracer("docrag.graphstore")

var (
	// ErrInvalidConfig indicates missing or malformed store configuration.
	ErrInvalidConfig = errors.New("invalid graphstore config")
	// ErrConnectionFailed indicates the database could not be reached.
	ErrConnectionFailed = errors.New("neo4j connection failed")
)

// Store is the graph persistence interface used by retrievers.
type Store interface {
	StoreExtraction(ctx context.Context, docID, filename string, ext extraction.Extraction) error
	ExecuteQuery(ctx context.Context, cypher string) ([]map[string]any, error)
	ListSourceFiles(ctx context.Context) ([]string, error)
	DeleteBySourceFile(ctx context.Context, filename string) (DeleteResult, error)
	Close(ctx context.Context) error
}

// DeleteResult reports what a DeleteBySourceFile call removed.
type DeleteResult struct {
	DocumentsDeleted int64
	EntitiesDeleted  int64
}

// Config holds Neo4j connection settings.
type Config struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Timeout  time.Duration
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.URI == "" {
		c.URI = "neo4j://localhost:7687"
	}
	if c.Username == "" {
		c.Username = "neo4j"
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// Validate checks the config for required fields.
func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: uri is required", ErrInvalidConfig)
	}
	if c.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidConfig)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Neo4jStore implements Store over the Bolt protocol.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	config Config
	logger *logging.Logger
}

var _ Store = (*Neo4jStore)(nil)

// NewNeo4jStore connects to Neo4j, verifies connectivity, and ensures the
// uniqueness constraints the ingestion queries rely on.
func NewNeo4jStore(ctx context.Context, cfg Config, logger *logging.Logger) (*Neo4jStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &Neo4jStore{
		driver: driver,
		config: cfg,
		logger: logger.Named("graphstore"),
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Neo4jStore) ensureSchema(ctx context.Context) error {
	constraints := []string{
		"CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
		"CREATE CONSTRAINT document_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE",
	}
	for _, constraint := range constraints {
		if _, err := s.run(ctx, constraint, nil); err != nil {
			return fmt.Errorf("creating constraint: %w", err)
		}
	}
	return nil
}

// StoreExtraction merges the document node, every extracted entity with a
// MENTIONED_IN edge back to the document, and a RELATED edge per
// relationship. Entities are merged on id so repeated mentions across
// documents converge on a single node.
func (s *Neo4jStore) StoreExtraction(ctx context.Context, docID, filename string, ext extraction.Extraction) error {
	ctx, span := tracer.Start(ctx, "graphstore.StoreExtraction")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.filename", filename),
		attribute.Int("entities.count", len(ext.Entities)),
		attribute.Int("relationships.count", len(ext.Relationships)),
	)

	_, err := s.run(ctx, `
		MERGE (d:Document {id: $id})
		SET d.filename = $filename, d.conversion_date = $date`,
		map[string]any{
			"id":       docID,
			"filename": filename,
			"date":     time.Now().UTC().Format(time.RFC3339),
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge document")
		return fmt.Errorf("storing document node: %w", err)
	}

	for _, entity := range ext.Entities {
		_, err := s.run(ctx, `
			MATCH (d:Document {id: $docID})
			MERGE (e:Entity {id: $id})
			SET e.name = $name, e.type = $type
			MERGE (e)-[:MENTIONED_IN]->(d)`,
			map[string]any{
				"docID": docID,
				"id":    entity.ID,
				"name":  entity.Name,
				"type":  entity.Type,
			})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "merge entity")
			return fmt.Errorf("storing entity %q: %w", entity.ID, err)
		}
	}

	for _, rel := range ext.Relationships {
		_, err := s.run(ctx, `
			MATCH (a:Entity {id: $source})
			MATCH (b:Entity {id: $target})
			MERGE (a)-[:RELATED {type: $type}]->(b)`,
			map[string]any{
				"source": rel.Source,
				"target": rel.Target,
				"type":   rel.Type,
			})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "merge relationship")
			return fmt.Errorf("storing relationship %s-%s->%s: %w", rel.Source, rel.Type, rel.Target, err)
		}
	}

	s.verifyIngest(ctx, docID, filename, ext)

	s.logger.Debug(ctx, "stored extraction",
		zap.String("filename", filename),
		zap.Int("entities", len(ext.Entities)),
		zap.Int("relationships", len(ext.Relationships)),
	)
	return nil
}

// verifyIngest reads back relationship counts for the new document at
// debug level. Failures here never fail the ingest.
func (s *Neo4jStore) verifyIngest(ctx context.Context, docID, filename string, ext extraction.Extraction) {
	entityIDs := make([]string, 0, len(ext.Entities))
	for _, entity := range ext.Entities {
		entityIDs = append(entityIDs, entity.ID)
	}

	related, err := s.run(ctx, `
		MATCH (e:Entity)-[r:RELATED]->(t:Entity)
		WHERE e.id IN $entityIDs
		RETURN e, r, t`,
		map[string]any{"entityIDs": entityIDs})
	if err != nil {
		s.logger.Warn(ctx, "failed to verify RELATED edges", zap.String("filename", filename), zap.Error(err))
		return
	}

	mentioned, err := s.run(ctx, `
		MATCH (e:Entity)-[r:MENTIONED_IN]->(d:Document {id: $docID})
		RETURN e, r, d`,
		map[string]any{"docID": docID})
	if err != nil {
		s.logger.Warn(ctx, "failed to verify MENTIONED_IN edges", zap.String("filename", filename), zap.Error(err))
		return
	}

	s.logger.Debug(ctx, "verified graph writes",
		zap.String("filename", filename),
		zap.Int("related_edges", len(related)),
		zap.Int("mentioned_in_edges", len(mentioned)),
	)
}

// ExecuteQuery runs a read query and returns each row as a map keyed by
// the query's projection names.
func (s *Neo4jStore) ExecuteQuery(ctx context.Context, cypher string) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "graphstore.ExecuteQuery")
	defer span.End()

	records, err := s.run(ctx, cypher, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("executing query: %w", err)
	}

	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, record.AsMap())
	}
	span.SetAttributes(attribute.Int("rows.count", len(rows)))
	return rows, nil
}

// ListSourceFiles returns the distinct filenames of stored documents.
func (s *Neo4jStore) ListSourceFiles(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "graphstore.ListSourceFiles")
	defer span.End()

	records, err := s.run(ctx, `
		MATCH (d:Document)
		RETURN DISTINCT d.filename AS filename
		ORDER BY filename`, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	files := make([]string, 0, len(records))
	for _, record := range records {
		if name, ok := record.AsMap()["filename"].(string); ok && name != "" {
			files = append(files, name)
		}
	}
	return files, nil
}

// DeleteBySourceFile removes documents with the given filename along with
// entities that are mentioned in no other document. Surviving entities
// keep their remaining RELATED edges; edges attached to deleted entities
// go with them.
func (s *Neo4jStore) DeleteBySourceFile(ctx context.Context, filename string) (DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "graphstore.DeleteBySourceFile")
	defer span.End()
	span.SetAttributes(attribute.String("document.filename", filename))

	docRecords, err := s.run(ctx, `
		MATCH (d:Document {filename: $filename})
		DETACH DELETE d
		RETURN count(d) AS docsDeleted`,
		map[string]any{"filename": filename})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return DeleteResult{}, fmt.Errorf("deleting document %q: %w", filename, err)
	}

	// Entities mentioned only in the deleted document are now orphans.
	orphanRecords, err := s.run(ctx, `
		MATCH (e:Entity)
		WHERE NOT (e)-[:MENTIONED_IN]->(:Document)
		DETACH DELETE e
		RETURN count(e) AS entitiesDeleted`, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "orphan cleanup failed")
		return DeleteResult{}, fmt.Errorf("cleaning up orphan entities for %q: %w", filename, err)
	}

	var result DeleteResult
	if len(docRecords) > 0 {
		if n, ok := docRecords[0].AsMap()["docsDeleted"].(int64); ok {
			result.DocumentsDeleted = n
		}
	}
	if len(orphanRecords) > 0 {
		if n, ok := orphanRecords[0].AsMap()["entitiesDeleted"].(int64); ok {
			result.EntitiesDeleted = n
		}
	}
	s.logger.Info(ctx, "deleted document from graph",
		zap.String("filename", filename),
		zap.Int64("orphan_entities", result.EntitiesDeleted),
	)
	return result, nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// run executes a single query in a fresh session and collects all records.
func (s *Neo4jStore) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}
