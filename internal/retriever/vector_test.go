package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const (
	firstSentence  = "First topic sentence."
	secondSentence = "Second topic sentence."
)

func newVectorFixture(t *testing.T, store *fakeVectorStore, model *llm.FakeChatModel) (*VectorRetriever, *llm.FakeEmbedder) {
	t.Helper()

	embedder := &llm.FakeEmbedder{
		Vectors: map[string][]float32{
			firstSentence:  {1, 0, 0, 0},
			secondSentence: {0, 1, 0, 0},
		},
	}
	ch, err := chunker.New(embedder, chunker.Config{
		MaxChunkSize:        500,
		MinChunkSize:        1,
		SimilarityThreshold: 0.5,
	}, nil)
	require.NoError(t, err)

	opts := Options{EmbedBatchSize: 1, DeleteSettleDelay: time.Millisecond}
	return NewVectorRetriever(store, embedder, model, ch, opts, nil), embedder
}

func noopSpan(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

func TestVectorIngestText(t *testing.T) {
	store := &fakeVectorStore{}
	r, _ := newVectorFixture(t, store, &llm.FakeChatModel{})
	ctx := context.Background()

	err := r.ingestText(ctx, noopSpan(ctx), "report.pdf", firstSentence+" "+secondSentence)
	require.NoError(t, err)

	require.Len(t, store.upserts, 1)
	records := store.upserts[0]
	require.Len(t, records, 2)
	for i, record := range records {
		_, err := uuid.Parse(record.ID)
		assert.NoError(t, err)
		assert.Equal(t, "report.pdf", record.SourceFile)
		assert.Equal(t, i, record.Sequence)
		assert.False(t, record.IngestedAt.IsZero())
	}
	assert.Equal(t, firstSentence, records[0].Text)
	assert.Equal(t, secondSentence, records[1].Text)
}

func TestVectorIngestText_NoChunks(t *testing.T) {
	store := &fakeVectorStore{}
	r, embedder := newVectorFixture(t, store, &llm.FakeChatModel{})
	ctx := context.Background()

	err := r.ingestText(ctx, noopSpan(ctx), "empty.pdf", "   ")
	require.NoError(t, err)
	assert.Empty(t, store.upserts)
	assert.Zero(t, embedder.Calls)
}

func TestVectorIngestText_UpsertError(t *testing.T) {
	store := &fakeVectorStore{upsertErr: errors.New("qdrant down")}
	r, _ := newVectorFixture(t, store, &llm.FakeChatModel{})
	ctx := context.Background()

	err := r.ingestText(ctx, noopSpan(ctx), "report.pdf", firstSentence)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestVectorQuery(t *testing.T) {
	store := &fakeVectorStore{
		hits: []vectorstore.ScoredChunk{
			{Text: "Alice Johnson founded TechCorp.", SourceFile: "report.pdf", Score: 0.92},
			{Text: "TechCorp is based in San Francisco.", SourceFile: "other.pdf", Score: 0.81},
		},
	}
	model := &llm.FakeChatModel{Default: "Alice Johnson founded TechCorp."}
	r, _ := newVectorFixture(t, store, model)

	result, err := r.Query(context.Background(), "Who founded TechCorp?")
	require.NoError(t, err)

	assert.Equal(t, "Alice Johnson founded TechCorp. [Source: report.pdf]", result.Answer)
	assert.Equal(t, []string{
		"Alice Johnson founded TechCorp.",
		"TechCorp is based in San Francisco.",
	}, result.Chunks)
	assert.Empty(t, result.Rows)

	require.Len(t, model.Prompts, 1)
	assert.Contains(t, model.Prompts[0].Prompt, "Who founded TechCorp?")
	assert.Contains(t, model.Prompts[0].Prompt, "TechCorp is based in San Francisco.")
}

func TestVectorQuery_CitationSuppressed(t *testing.T) {
	store := &fakeVectorStore{
		hits: []vectorstore.ScoredChunk{{Text: "Unrelated.", SourceFile: "report.pdf"}},
	}
	model := &llm.FakeChatModel{Default: "The context does not contain that information."}
	r, _ := newVectorFixture(t, store, model)

	result, err := r.Query(context.Background(), "Who founded TechCorp?")
	require.NoError(t, err)
	assert.Equal(t, "The context does not contain that information.", result.Answer)
	assert.NotContains(t, result.Answer, "[Source:")
}

func TestVectorQuery_NoHits(t *testing.T) {
	model := &llm.FakeChatModel{Default: "should not be called"}
	r, _ := newVectorFixture(t, &fakeVectorStore{}, model)

	result, err := r.Query(context.Background(), "Who founded TechCorp?")
	require.NoError(t, err)
	assert.Equal(t, "No relevant information found.", result.Answer)
	assert.Empty(t, result.Chunks)
	assert.Empty(t, model.Prompts)
}

func TestVectorQuery_SearchError(t *testing.T) {
	store := &fakeVectorStore{searchErr: errors.New("qdrant down")}
	r, _ := newVectorFixture(t, store, &llm.FakeChatModel{})

	_, err := r.Query(context.Background(), "anything")
	assert.Error(t, err)
}

func TestVectorListProcessedFiles(t *testing.T) {
	store := &fakeVectorStore{files: map[string]struct{}{
		"b.pdf": {},
		"a.pdf": {},
	}}
	r, _ := newVectorFixture(t, store, &llm.FakeChatModel{})

	files, err := r.ListProcessedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, files)
}

func TestVectorDelete(t *testing.T) {
	store := &fakeVectorStore{}
	r, _ := newVectorFixture(t, store, &llm.FakeChatModel{})

	status, err := r.Delete(context.Background(), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Deleted points for file: report.pdf", status)
	assert.Equal(t, []string{"report.pdf"}, store.deleted)
}
