package vectorstore

import "time"

// Payload field names stored with each point.
const (
	payloadText             = "text"
	payloadSourceFile       = "source_file"
	payloadChunkID          = "chunk_id"
	payloadOriginalFileName = "original_file_name"
	payloadConversionDate   = "conversion_date"
)

// ChunkRecord is a chunk prepared for upsert: text, its embedding, and
// provenance metadata.
type ChunkRecord struct {
	// ID is the point identifier. Must be a UUID string.
	ID string

	// Text is the chunk text.
	Text string

	// Vector is the chunk embedding. Length must equal the collection's
	// vector size.
	Vector []float32

	// SourceFile is the originating document's filename.
	SourceFile string

	// Sequence is the per-document chunk index.
	Sequence int

	// IngestedAt is the ingestion timestamp.
	IngestedAt time.Time
}

// ScoredChunk is a search hit with its similarity score and provenance.
type ScoredChunk struct {
	// Text is the stored chunk text.
	Text string

	// SourceFile is the originating document's filename.
	SourceFile string

	// Score is the cosine similarity score (higher is more similar).
	Score float32
}
