// Package config provides configuration loading for docrag.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables. Each subsystem (vector store, graph store, model service,
// chunker, retrieval) has its own section with defaults that match the
// documented behavior of the pipeline.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete docrag configuration.
type Config struct {
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Neo4j     Neo4jConfig     `koanf:"neo4j"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Chunker   ChunkerConfig   `koanf:"chunker"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// QdrantConfig holds vector store connection configuration.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	Port int `koanf:"port"`

	// APIKey authenticates against a managed Qdrant deployment. Optional.
	APIKey Secret `koanf:"api_key"`

	// Collection is the collection holding chunk vectors.
	Collection string `koanf:"collection"`

	// VectorSize is the embedding dimensionality. MUST match the embedding
	// model output for the lifetime of the collection.
	VectorSize uint64 `koanf:"vector_size"`

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`

	// Timeout bounds each client call.
	Timeout Duration `koanf:"timeout"`

	// MaxMessageSize is the maximum gRPC message size in bytes.
	MaxMessageSize int `koanf:"max_message_size"`
}

// Neo4jConfig holds graph store connection configuration.
type Neo4jConfig struct {
	// URI is the bolt/neo4j connection URI, e.g. neo4j://localhost:7687.
	URI string `koanf:"uri"`

	Username string `koanf:"username"`
	Password Secret `koanf:"password"`
}

// OpenAIConfig holds generative and embedding model configuration.
type OpenAIConfig struct {
	APIKey Secret `koanf:"api_key"`

	// ChatModel is used for extraction, Cypher generation, and answers.
	ChatModel string `koanf:"chat_model"`

	// EmbeddingModel produces chunk and query vectors.
	EmbeddingModel string `koanf:"embedding_model"`

	// BaseURL overrides the API endpoint (proxies, Azure). Optional.
	BaseURL string `koanf:"base_url"`
}

// ChunkerConfig holds semantic chunking thresholds.
type ChunkerConfig struct {
	// MaxChunkSize is the running character-length bound for a chunk.
	MaxChunkSize int `koanf:"max_chunk_size"`

	// MinChunkSize is the minimum accumulated length for a chunk to be
	// committed, except when it would be the only chunk.
	MinChunkSize int `koanf:"min_chunk_size"`

	// SimilarityThreshold is the cosine similarity a sentence must exceed
	// against the last sentence of the current chunk to extend it.
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
}

// RetrievalConfig holds query-time and ingestion-time knobs.
type RetrievalConfig struct {
	// TopK is the number of nearest chunks retrieved per query.
	TopK int `koanf:"top_k"`

	// EmbedBatchSize is the number of chunks embedded per upstream call.
	EmbedBatchSize int `koanf:"embed_batch_size"`

	// DeleteSettleDelay papers over the vector index's eventual-consistency
	// window after a filter delete. Heuristic, not a verified barrier.
	DeleteSettleDelay Duration `koanf:"delete_settle_delay"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration defaults applied before file and
// environment loading.
func Default() *Config {
	return &Config{
		Qdrant: QdrantConfig{
			Host:           "localhost",
			Port:           6334,
			Collection:     "pdf_text_vectors",
			VectorSize:     1536,
			Timeout:        Duration(60 * time.Second),
			MaxMessageSize: 50 * 1024 * 1024,
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
		},
		OpenAI: OpenAIConfig{
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		Chunker: ChunkerConfig{
			MaxChunkSize:        500,
			MinChunkSize:        100,
			SimilarityThreshold: 0.5,
		},
		Retrieval: RetrievalConfig{
			TopK:              5,
			EmbedBatchSize:    100,
			DeleteSettleDelay: Duration(500 * time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Qdrant.Host == "" {
		return errors.New("qdrant host required")
	}
	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d (must be 1-65535)", c.Qdrant.Port)
	}
	if c.Qdrant.Collection == "" {
		return errors.New("qdrant collection required")
	}
	if c.Qdrant.VectorSize == 0 {
		return errors.New("qdrant vector size required")
	}
	if c.Neo4j.URI == "" {
		return errors.New("neo4j uri required")
	}
	if !c.OpenAI.APIKey.IsSet() {
		return errors.New("openai api key required")
	}
	if c.OpenAI.ChatModel == "" || c.OpenAI.EmbeddingModel == "" {
		return errors.New("openai chat and embedding models required")
	}
	if c.Chunker.MaxChunkSize <= 0 {
		return fmt.Errorf("chunker max_chunk_size must be positive, got %d", c.Chunker.MaxChunkSize)
	}
	if c.Chunker.MinChunkSize < 0 {
		return fmt.Errorf("chunker min_chunk_size cannot be negative, got %d", c.Chunker.MinChunkSize)
	}
	if c.Chunker.MinChunkSize > c.Chunker.MaxChunkSize {
		return fmt.Errorf("chunker min_chunk_size %d exceeds max_chunk_size %d",
			c.Chunker.MinChunkSize, c.Chunker.MaxChunkSize)
	}
	if c.Chunker.SimilarityThreshold < -1 || c.Chunker.SimilarityThreshold > 1 {
		return fmt.Errorf("chunker similarity_threshold must be in [-1, 1], got %v", c.Chunker.SimilarityThreshold)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.EmbedBatchSize <= 0 {
		return fmt.Errorf("retrieval embed_batch_size must be positive, got %d", c.Retrieval.EmbedBatchSize)
	}
	return nil
}
