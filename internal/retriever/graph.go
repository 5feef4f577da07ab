package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/cypherql"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/graphstore"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/pdftext"
)

const (
	graphAnswerSystemPrompt = "You are a helpful assistant that answers questions based on graph data."

	graphAnswerTemplate = `Based solely on the provided graph data, provide a concise, accurate answer to the question. Do not use external knowledge. If the graph data contains multiple relationships, list them all in a human-readable format (e.g., 'Alice Johnson founded TechCorp (FOUNDED) and works for TechCorp (WORKS_FOR).').

Question: %s
Graph Data: %s

Answer: `
)

// GraphRetriever answers questions from a knowledge graph of extracted
// entities and relationships.
//
// Query never surfaces upstream failures as errors: an unreachable
// database, an invalid generated query, or a failed synthesis call all
// collapse into a "Graph query failed" answer so the hybrid path can keep
// going on vector evidence alone.
type GraphRetriever struct {
	store      graphstore.Store
	extractor  *extraction.Extractor
	translator *cypherql.Translator
	model      llm.ChatModel
	logger     *logging.Logger
}

// NewGraphRetriever creates a GraphRetriever.
func NewGraphRetriever(store graphstore.Store, extractor *extraction.Extractor, translator *cypherql.Translator, model llm.ChatModel, logger *logging.Logger) *GraphRetriever {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &GraphRetriever{
		store:      store,
		extractor:  extractor,
		translator: translator,
		model:      model,
		logger:     logger.Named("retriever.graph"),
	}
}

// ProcessAndStore extracts the document's text, runs entity/relationship
// extraction over it, and merges the result into the graph under a fresh
// document node. An extraction that validates to nothing still records
// the document. Returns the document's filename on success.
func (r *GraphRetriever) ProcessAndStore(ctx context.Context, doc *pdftext.Document) (string, error) {
	ctx, span := tracer.Start(ctx, "retriever.graph.ProcessAndStore")
	defer span.End()
	ctx = logging.WithDocument(ctx, doc.Filename)
	span.SetAttributes(attribute.String("document.filename", doc.Filename))

	text, err := pdftext.Extract(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return "", err
	}
	if err := r.ingestText(ctx, span, doc.Filename, text); err != nil {
		return "", err
	}
	return doc.Filename, nil
}

// ingestText extracts entities from already-extracted text and merges
// them into the graph.
func (r *GraphRetriever) ingestText(ctx context.Context, span trace.Span, filename, text string) error {
	ext := r.extractor.Extract(ctx, text)
	docID := uuid.NewString()
	if err := r.store.StoreExtraction(ctx, docID, filename, ext); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "graph write failed")
		return fmt.Errorf("%w: storing graph of %s: %v", ErrUpstream, filename, err)
	}

	r.logger.Info(ctx, "ingested document into graph",
		zap.Int("entities", len(ext.Entities)),
		zap.Int("relationships", len(ext.Relationships)),
	)
	return nil
}

// Query translates the question into Cypher, executes it, and asks the
// model to phrase the rows as an answer.
func (r *GraphRetriever) Query(ctx context.Context, question string) (Result, error) {
	ctx, span := tracer.Start(ctx, "retriever.graph.Query")
	defer span.End()

	cypher, err := r.translator.Translate(ctx, question)
	if err != nil {
		return r.failedQuery(ctx, span, "cypher generation", err), nil
	}

	rows, err := r.store.ExecuteQuery(ctx, cypher)
	if err != nil {
		return r.failedQuery(ctx, span, "query execution", err), nil
	}
	span.SetAttributes(attribute.Int("rows.count", len(rows)))
	if len(rows) == 0 {
		return Result{Answer: noGraphResultsAnswer}, nil
	}

	answer, err := r.model.Complete(ctx, llm.CompletionRequest{
		System:    graphAnswerSystemPrompt,
		Prompt:    fmt.Sprintf(graphAnswerTemplate, question, serializeRows(rows)),
		MaxTokens: answerMaxTokens,
	})
	if err != nil {
		return r.failedQuery(ctx, span, "answer synthesis", err), nil
	}

	return Result{Answer: strings.TrimSpace(answer), Rows: rows}, nil
}

// ListProcessedFiles returns the filenames of documents stored in the
// graph.
func (r *GraphRetriever) ListProcessedFiles(ctx context.Context) ([]string, error) {
	files, err := r.store.ListSourceFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing graph documents: %w", err)
	}
	return files, nil
}

// Delete removes the document node and any entities left orphaned by its
// removal. Failures are reported through the status line rather than an
// error so callers combining backends can keep going.
func (r *GraphRetriever) Delete(ctx context.Context, filename string) (string, error) {
	ctx, span := tracer.Start(ctx, "retriever.graph.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("document.filename", filename))

	result, err := r.store.DeleteBySourceFile(ctx, filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		r.logger.Error(ctx, "deleting document from graph failed",
			zap.String("filename", filename), zap.Error(err))
		return fmt.Sprintf("Error deleting file: %v", err), nil
	}

	r.logger.Info(ctx, "deleted document from graph",
		zap.String("filename", filename),
		zap.Int64("documents", result.DocumentsDeleted),
		zap.Int64("orphan_entities", result.EntitiesDeleted),
	)
	return fmt.Sprintf("Deleted graph data for file: %s", filename), nil
}

func (r *GraphRetriever) failedQuery(ctx context.Context, span trace.Span, stage string, err error) Result {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	r.logger.Error(ctx, "graph query failed", zap.String("stage", stage), zap.Error(err))
	return Result{Answer: fmt.Sprintf("Graph query failed: %v", err)}
}

// serializeRows renders query rows one per line for the synthesis prompt.
func serializeRows(rows []map[string]any) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = fmt.Sprintf("%v", row)
	}
	return strings.Join(lines, "\n")
}
