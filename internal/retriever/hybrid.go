package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/pdftext"
)

const (
	hybridAnswerSystemPrompt = "You are a helpful assistant that answers questions based on combined vector and graph data."

	hybridAnswerTemplate = `Based on the combined context from vector and graph databases, provide a concise, accurate answer to the question. Prioritize information that appears in both sources for reliability.

Question: %s
Combined Context: %s

Answer: `
)

// HybridRetriever runs the vector and graph paths independently and fuses
// their answers with a third model call. Both evidence sets travel back
// unmerged so callers can inspect what each path contributed.
type HybridRetriever struct {
	vector *VectorRetriever
	graph  *GraphRetriever
	model  llm.ChatModel
	logger *logging.Logger
}

// NewHybridRetriever creates a HybridRetriever over existing vector and
// graph retrievers.
func NewHybridRetriever(vector *VectorRetriever, graph *GraphRetriever, model llm.ChatModel, logger *logging.Logger) *HybridRetriever {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HybridRetriever{
		vector: vector,
		graph:  graph,
		model:  model,
		logger: logger.Named("retriever.hybrid"),
	}
}

// ProcessAndStore ingests the document into both backends. The vector
// path runs first; a failure there skips the graph write entirely.
// Returns the vector path's filename.
func (r *HybridRetriever) ProcessAndStore(ctx context.Context, doc *pdftext.Document) (string, error) {
	ctx, span := tracer.Start(ctx, "retriever.hybrid.ProcessAndStore")
	defer span.End()

	filename, err := r.vector.ProcessAndStore(ctx, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vector ingest failed")
		return "", err
	}
	if _, err := r.graph.ProcessAndStore(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "graph ingest failed")
		return "", err
	}
	return filename, nil
}

// Query runs both retrieval paths concurrently, then asks the model to
// fuse their answers, preferring claims both sources corroborate.
func (r *HybridRetriever) Query(ctx context.Context, question string) (Result, error) {
	ctx, span := tracer.Start(ctx, "retriever.hybrid.Query")
	defer span.End()

	var (
		wg           sync.WaitGroup
		vectorResult Result
		graphResult  Result
		vectorErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorResult, vectorErr = r.vector.Query(ctx, question)
	}()
	go func() {
		defer wg.Done()
		// Graph query failures arrive as answer text, never as errors.
		graphResult, _ = r.graph.Query(ctx, question)
	}()
	wg.Wait()

	if vectorErr != nil {
		span.RecordError(vectorErr)
		span.SetStatus(codes.Error, "vector query failed")
		return Result{}, vectorErr
	}

	combined := fmt.Sprintf("Vector DB Context:\n%s\n\nGraph DB Context:\n%s", vectorResult.Answer, graphResult.Answer)
	answer, err := r.model.Complete(ctx, llm.CompletionRequest{
		System:    hybridAnswerSystemPrompt,
		Prompt:    fmt.Sprintf(hybridAnswerTemplate, question, combined),
		MaxTokens: answerMaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fusion failed")
		return Result{}, fmt.Errorf("fusing answers: %w", err)
	}

	r.logger.Debug(ctx, "fused hybrid answer",
		zap.Int("vector_chunks", len(vectorResult.Chunks)),
		zap.Int("graph_rows", len(graphResult.Rows)),
	)
	return Result{
		Answer: strings.TrimSpace(answer),
		Chunks: vectorResult.Chunks,
		Rows:   graphResult.Rows,
	}, nil
}

// ListProcessedFiles returns the sorted intersection of the filenames
// known to both backends.
func (r *HybridRetriever) ListProcessedFiles(ctx context.Context) ([]string, error) {
	vectorFiles, err := r.vector.ListProcessedFiles(ctx)
	if err != nil {
		return nil, err
	}
	graphFiles, err := r.graph.ListProcessedFiles(ctx)
	if err != nil {
		return nil, err
	}

	inGraph := make(map[string]struct{}, len(graphFiles))
	for _, file := range graphFiles {
		inGraph[file] = struct{}{}
	}
	var files []string
	for _, file := range vectorFiles {
		if _, ok := inGraph[file]; ok {
			files = append(files, file)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Delete removes the document from both backends and concatenates the two
// status lines. Each deletion is attempted regardless of the other's
// outcome; failures surface as status lines, never as errors.
func (r *HybridRetriever) Delete(ctx context.Context, filename string) (string, error) {
	vectorStatus, err := r.vector.Delete(ctx, filename)
	if err != nil {
		vectorStatus = fmt.Sprintf("Error deleting file: %v", err)
	}
	graphStatus, err := r.graph.Delete(ctx, filename)
	if err != nil {
		graphStatus = fmt.Sprintf("Error deleting file: %v", err)
	}
	return vectorStatus + "\n" + graphStatus, nil
}
