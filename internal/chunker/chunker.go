// Package chunker groups sentences into topically coherent, size-bounded
// chunks using embedding similarity between adjacent sentences.
//
// Chunk boundaries balance retrieval precision (small, focused chunks)
// against recall (enough surrounding context to answer from).
package chunker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"go.uber.org/zap"
)

// Sentinel errors for chunking operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingMismatch indicates the embedder returned a different
	// number of vectors than sentences submitted.
	ErrEmbeddingMismatch = errors.New("mismatch between sentences and embeddings")
)

// Config holds chunking thresholds.
type Config struct {
	// MaxChunkSize is the running character-length bound. Appending a
	// sentence that would exceed it force-closes the current chunk
	// regardless of similarity.
	MaxChunkSize int

	// MinChunkSize is the minimum accumulated length for a chunk to be
	// committed. Shorter chunks are dropped, except a trailing chunk that
	// would otherwise leave the input with no chunks at all.
	MinChunkSize int

	// SimilarityThreshold is the cosine similarity a sentence must exceed
	// against the last sentence of the current chunk to extend it.
	SimilarityThreshold float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 500
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = 100
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.5
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive", ErrInvalidConfig)
	}
	if c.MinChunkSize < 0 {
		return fmt.Errorf("%w: min chunk size cannot be negative", ErrInvalidConfig)
	}
	if c.MinChunkSize > c.MaxChunkSize {
		return fmt.Errorf("%w: min chunk size %d exceeds max %d", ErrInvalidConfig, c.MinChunkSize, c.MaxChunkSize)
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold must be in [-1, 1]", ErrInvalidConfig)
	}
	return nil
}

// Chunker splits text into semantically grouped chunks.
type Chunker struct {
	embedder llm.Embedder
	config   Config
	logger   *logging.Logger
}

// New creates a Chunker.
func New(embedder llm.Embedder, cfg Config, logger *logging.Logger) (*Chunker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Chunker{
		embedder: embedder,
		config:   cfg,
		logger:   logger.Named("chunker"),
	}, nil
}

// Chunk splits text into deduplicated chunks. Returns an empty slice (not
// an error) when the text contains no sentences. For any non-empty input
// at least one chunk survives, even below MinChunkSize.
func (c *Chunker) Chunk(ctx context.Context, text string) ([]string, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return []string{}, nil
	}

	embeddings, err := c.embedder.EmbedDocuments(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embedding sentences: %w", err)
	}
	if len(embeddings) != len(sentences) {
		return nil, fmt.Errorf("%w: %d sentences, %d embeddings", ErrEmbeddingMismatch, len(sentences), len(embeddings))
	}

	var (
		chunks        []string
		current       []string
		lastEmbedding []float32
		currentLen    int
	)

	commit := func() {
		if currentLen >= c.config.MinChunkSize {
			chunks = append(chunks, strings.Join(current, " "))
		}
	}
	restart := func(sentence string, embedding []float32) {
		current = []string{sentence}
		lastEmbedding = embedding
		currentLen = len(sentence)
	}

	for i, sentence := range sentences {
		if len(current) == 0 {
			restart(sentence, embeddings[i])
			continue
		}

		similarity := CosineSimilarity(embeddings[i], lastEmbedding)
		switch {
		case currentLen+len(sentence) > c.config.MaxChunkSize:
			// Size bound wins over similarity.
			commit()
			restart(sentence, embeddings[i])
		case similarity > c.config.SimilarityThreshold:
			current = append(current, sentence)
			lastEmbedding = embeddings[i]
			currentLen += len(sentence)
		default:
			commit()
			restart(sentence, embeddings[i])
		}
	}

	// The trailing chunk survives below MinChunkSize when it is the only
	// candidate, so non-empty input always yields at least one chunk.
	if len(current) > 0 && (currentLen >= c.config.MinChunkSize || len(chunks) == 0) {
		chunks = append(chunks, strings.Join(current, " "))
	}

	deduped := dedupe(chunks)
	c.logger.Debug(ctx, "chunked text",
		zap.Int("sentences", len(sentences)),
		zap.Int("chunks", len(deduped)),
	)
	return deduped, nil
}

// SplitSentences splits text on ./!/? boundaries followed by whitespace,
// discarding empty results.
func SplitSentences(text string) []string {
	var (
		sentences []string
		builder   strings.Builder
	)

	flush := func() {
		if s := strings.TrimSpace(builder.String()); s != "" {
			sentences = append(sentences, s)
		}
		builder.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		builder.WriteRune(r)
		if isTerminator(r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			flush()
		}
	}
	flush()

	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero-norm vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// dedupe removes exact-duplicate chunk texts, preserving first-occurrence
// order.
func dedupe(chunks []string) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk]; ok {
			continue
		}
		seen[chunk] = struct{}{}
		out = append(out, chunk)
	}
	return out
}
