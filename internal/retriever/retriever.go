// Package retriever exposes the three retrieval strategies over an
// ingested PDF corpus: vector similarity, knowledge graph, and a hybrid
// path that fuses both.
//
// All three share the same public surface: ProcessAndStore ingests a
// document, Query answers a question, ListProcessedFiles enumerates the
// corpus, and Delete removes a document's footprint. Query-time upstream
// failures on the graph path are absorbed into the answer string rather
// than returned as errors, so one degraded backend never takes down a
// hybrid query.
package retriever

import (
	"errors"
	"time"
)

// ErrUpstream indicates an external collaborator (vector index, graph
// database, or model API) failed during ingestion.
var ErrUpstream = errors.New("upstream service failed")

// Answers returned without consulting the model.
const (
	noVectorResultsAnswer = "No relevant information found."
	noGraphResultsAnswer  = "No relevant information found in graph."
)

const answerMaxTokens = 100

// Result is the outcome of a query.
type Result struct {
	// Answer is the synthesized answer text.
	Answer string

	// Chunks holds the vector-path evidence: the retrieved chunk texts in
	// score order. Empty for graph-only queries.
	Chunks []string

	// Rows holds the graph-path evidence: the rows returned by the
	// generated Cypher query. Empty for vector-only queries.
	Rows []map[string]any
}

// Options holds the retrieval knobs shared by the retrievers.
type Options struct {
	// TopK is the number of nearest chunks fetched per vector query.
	TopK int

	// EmbedBatchSize bounds the number of chunks sent per embedding call.
	EmbedBatchSize int

	// DeleteSettleDelay is the pause after a vector deletion before
	// reporting success, covering the index's consistency window.
	DeleteSettleDelay time.Duration
}

// ApplyDefaults fills zero-valued fields.
func (o *Options) ApplyDefaults() {
	if o.TopK == 0 {
		o.TopK = 5
	}
	if o.EmbedBatchSize == 0 {
		o.EmbedBatchSize = 100
	}
	if o.DeleteSettleDelay == 0 {
		o.DeleteSettleDelay = 500 * time.Millisecond
	}
}
