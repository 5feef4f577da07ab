package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/pdftext"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

var tracer = otel.Tracer("docrag.retriever")

const (
	vectorAnswerSystemPrompt = "You are a helpful assistant that answers questions based on provided context."

	vectorAnswerTemplate = `Based solely on the provided context, provide a concise, accurate answer to the question. Do not use external knowledge.

Question: %s
Context: %s

Answer: `
)

// citationSuppressionMarker suppresses the source citation when the model
// reports the context was insufficient.
const citationSuppressionMarker = "context does not"

// VectorRetriever answers questions from a vector index of semantically
// chunked document text.
type VectorRetriever struct {
	store    vectorstore.Store
	embedder llm.Embedder
	model    llm.ChatModel
	chunker  *chunker.Chunker
	opts     Options
	logger   *logging.Logger
}

// NewVectorRetriever creates a VectorRetriever.
func NewVectorRetriever(store vectorstore.Store, embedder llm.Embedder, model llm.ChatModel, ch *chunker.Chunker, opts Options, logger *logging.Logger) *VectorRetriever {
	opts.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &VectorRetriever{
		store:    store,
		embedder: embedder,
		model:    model,
		chunker:  ch,
		opts:     opts,
		logger:   logger.Named("retriever.vector"),
	}
}

// ProcessAndStore extracts the document's text, chunks it, embeds the
// chunks in batches, and upserts them into the vector index. Returns the
// document's filename on success.
func (r *VectorRetriever) ProcessAndStore(ctx context.Context, doc *pdftext.Document) (string, error) {
	ctx, span := tracer.Start(ctx, "retriever.vector.ProcessAndStore")
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

// ingestText chunks, embeds, and upserts already-extracted text.
func (r *VectorRetriever) ingestText(ctx context.Context, span trace.Span, filename, text string) error {
	chunks, err := r.chunker.Chunk(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chunking failed")
		return fmt.Errorf("%w: chunking %s: %v", ErrUpstream, filename, err)
	}
	if len(chunks) == 0 {
		r.logger.Warn(ctx, "document produced no chunks")
		return nil
	}

	ingestedAt := time.Now().UTC()
	records := make([]vectorstore.ChunkRecord, 0, len(chunks))
	for start := 0; start < len(chunks); start += r.opts.EmbedBatchSize {
		end := min(start+r.opts.EmbedBatchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := r.embedder.EmbedDocuments(ctx, batch)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "embedding failed")
			return fmt.Errorf("%w: embedding chunks of %s: %v", ErrUpstream, filename, err)
		}
		for i, vector := range vectors {
			records = append(records, vectorstore.ChunkRecord{
				ID:         uuid.NewString(),
				Text:       batch[i],
				Vector:     vector,
				SourceFile: filename,
				Sequence:   start + i,
				IngestedAt: ingestedAt,
			})
		}
	}

	if err := r.store.UpsertChunks(ctx, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return fmt.Errorf("%w: storing chunks of %s: %v", ErrUpstream, filename, err)
	}

	r.logger.Info(ctx, "ingested document into vector index", zap.Int("chunks", len(records)))
	return nil
}

// Query embeds the question, retrieves the nearest chunks, and asks the
// model to answer from that context alone. The top hit's source filename
// is appended as a citation unless the model reports the context was
// insufficient.
func (r *VectorRetriever) Query(ctx context.Context, question string) (Result, error) {
	ctx, span := tracer.Start(ctx, "retriever.vector.Query")
	defer span.End()

	queryVector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query embedding failed")
		return Result{}, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := r.store.Search(ctx, queryVector, r.opts.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return Result{}, fmt.Errorf("searching vector index: %w", err)
	}
	span.SetAttributes(attribute.Int("hits.count", len(hits)))
	if len(hits) == 0 {
		return Result{Answer: noVectorResultsAnswer}, nil
	}

	chunks := make([]string, len(hits))
	for i, hit := range hits {
		chunks[i] = hit.Text
	}
	source := hits[0].SourceFile
	if source == "" {
		source = "Unknown"
	}

	answer, err := r.model.Complete(ctx, llm.CompletionRequest{
		System:    vectorAnswerSystemPrompt,
		Prompt:    fmt.Sprintf(vectorAnswerTemplate, question, strings.Join(chunks, "\n\n")),
		MaxTokens: answerMaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "answer synthesis failed")
		return Result{}, fmt.Errorf("synthesizing answer: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if !strings.Contains(answer, citationSuppressionMarker) {
		answer = fmt.Sprintf("%s [Source: %s]", answer, source)
	}
	return Result{Answer: answer, Chunks: chunks}, nil
}

// ListProcessedFiles returns the sorted filenames present in the vector
// index.
func (r *VectorRetriever) ListProcessedFiles(ctx context.Context) ([]string, error) {
	fileSet, err := r.store.ListSourceFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing vector index files: %w", err)
	}
	files := make([]string, 0, len(fileSet))
	for file := range fileSet {
		files = append(files, file)
	}
	sort.Strings(files)
	return files, nil
}

// Delete removes every point belonging to the filename, waits out the
// index's settle window, and returns a status line.
func (r *VectorRetriever) Delete(ctx context.Context, filename string) (string, error) {
	ctx, span := tracer.Start(ctx, "retriever.vector.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("document.filename", filename))

	if err := r.store.DeleteBySourceFile(ctx, filename); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return "", fmt.Errorf("deleting points of %s: %w", filename, err)
	}

	select {
	case <-time.After(r.opts.DeleteSettleDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	r.logger.Info(ctx, "deleted document from vector index", zap.String("filename", filename))
	return fmt.Sprintf("Deleted points for file: %s", filename), nil
}
