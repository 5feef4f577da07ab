package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/cypherql"
	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/llm"
)

const extractionJSON = `{
  "entities": [
    {"id": "alice_johnson", "name": "Alice Johnson", "type": "Person"},
    {"id": "techcorp", "name": "TechCorp", "type": "Organization"}
  ],
  "relationships": [
    {"source": "alice_johnson", "target": "techcorp", "type": "founded"}
  ]
}`

func newGraphFixture(store *fakeGraphStore, extractorModel, translatorModel, answerModel *llm.FakeChatModel) *GraphRetriever {
	extractor := extraction.NewExtractor(extractorModel, nil)
	translator := cypherql.NewTranslator(translatorModel, nil)
	return NewGraphRetriever(store, extractor, translator, answerModel, nil)
}

func TestGraphIngestText(t *testing.T) {
	store := &fakeGraphStore{}
	r := newGraphFixture(store, &llm.FakeChatModel{Default: extractionJSON}, &llm.FakeChatModel{}, &llm.FakeChatModel{})
	ctx := context.Background()

	err := r.ingestText(ctx, noopSpan(ctx), "report.pdf", "Alice Johnson founded TechCorp.")
	require.NoError(t, err)

	require.Len(t, store.stored, 1)
	stored := store.stored[0]
	assert.Equal(t, "report.pdf", stored.filename)
	_, err = uuid.Parse(stored.docID)
	assert.NoError(t, err)
	require.Len(t, stored.ext.Entities, 2)
	require.Len(t, stored.ext.Relationships, 1)
	assert.Equal(t, "FOUNDED", stored.ext.Relationships[0].Type)
}

func TestGraphIngestText_InvalidExtractionStillRecordsDocument(t *testing.T) {
	store := &fakeGraphStore{}
	r := newGraphFixture(store, &llm.FakeChatModel{Default: "not json"}, &llm.FakeChatModel{}, &llm.FakeChatModel{})
	ctx := context.Background()

	err := r.ingestText(ctx, noopSpan(ctx), "report.pdf", "Some text.")
	require.NoError(t, err)

	require.Len(t, store.stored, 1)
	assert.True(t, store.stored[0].ext.Empty())
}

func TestGraphIngestText_StoreError(t *testing.T) {
	store := &fakeGraphStore{storeErr: errors.New("neo4j down")}
	r := newGraphFixture(store, &llm.FakeChatModel{Default: extractionJSON}, &llm.FakeChatModel{}, &llm.FakeChatModel{})
	ctx := context.Background()

	err := r.ingestText(ctx, noopSpan(ctx), "report.pdf", "Alice Johnson founded TechCorp.")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestGraphQuery(t *testing.T) {
	store := &fakeGraphStore{
		rows: []map[string]any{{"relationshipType": "FOUNDED"}},
	}
	translatorModel := &llm.FakeChatModel{Default: "MATCH (e:Entity)-[r:RELATED]->(t:Entity) RETURN type(r) AS relationshipType"}
	answerModel := &llm.FakeChatModel{Default: "Alice Johnson founded TechCorp (FOUNDED)."}
	r := newGraphFixture(store, &llm.FakeChatModel{}, translatorModel, answerModel)

	result, err := r.Query(context.Background(), "What is the relationship between Alice and TechCorp?")
	require.NoError(t, err)

	assert.Equal(t, "Alice Johnson founded TechCorp (FOUNDED).", result.Answer)
	assert.Equal(t, store.rows, result.Rows)
	assert.Empty(t, result.Chunks)

	require.Len(t, store.queries, 1)
	assert.Contains(t, store.queries[0], "RETURN type(r)")
	require.Len(t, answerModel.Prompts, 1)
	assert.Contains(t, answerModel.Prompts[0].Prompt, "relationshipType")
}

func TestGraphQuery_NoRows(t *testing.T) {
	store := &fakeGraphStore{}
	translatorModel := &llm.FakeChatModel{Default: "MATCH (e:Entity) RETURN e.name"}
	answerModel := &llm.FakeChatModel{Default: "should not be called"}
	r := newGraphFixture(store, &llm.FakeChatModel{}, translatorModel, answerModel)

	result, err := r.Query(context.Background(), "Who works for TechCorp?")
	require.NoError(t, err)
	assert.Equal(t, "No relevant information found in graph.", result.Answer)
	assert.Empty(t, answerModel.Prompts)
}

func TestGraphQuery_InvalidCypherBecomesAnswer(t *testing.T) {
	store := &fakeGraphStore{}
	translatorModel := &llm.FakeChatModel{Default: "DROP DATABASE neo4j"}
	r := newGraphFixture(store, &llm.FakeChatModel{}, translatorModel, &llm.FakeChatModel{})

	result, err := r.Query(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "Graph query failed:")
	assert.Empty(t, store.queries)
}

func TestGraphQuery_ExecutionErrorBecomesAnswer(t *testing.T) {
	store := &fakeGraphStore{execErr: errors.New("neo4j down")}
	translatorModel := &llm.FakeChatModel{Default: "MATCH (e:Entity) RETURN e.name"}
	r := newGraphFixture(store, &llm.FakeChatModel{}, translatorModel, &llm.FakeChatModel{})

	result, err := r.Query(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "Graph query failed:")
	assert.Contains(t, result.Answer, "neo4j down")
}

func TestGraphListProcessedFiles(t *testing.T) {
	store := &fakeGraphStore{files: []string{"a.pdf", "b.pdf"}}
	r := newGraphFixture(store, &llm.FakeChatModel{}, &llm.FakeChatModel{}, &llm.FakeChatModel{})

	files, err := r.ListProcessedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, files)
}

func TestGraphDelete(t *testing.T) {
	store := &fakeGraphStore{}
	r := newGraphFixture(store, &llm.FakeChatModel{}, &llm.FakeChatModel{}, &llm.FakeChatModel{})

	status, err := r.Delete(context.Background(), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Deleted graph data for file: report.pdf", status)
	assert.Equal(t, []string{"report.pdf"}, store.deleted)
}

func TestGraphDelete_FailureBecomesStatus(t *testing.T) {
	store := &fakeGraphStore{deleteErr: errors.New("neo4j down")}
	r := newGraphFixture(store, &llm.FakeChatModel{}, &llm.FakeChatModel{}, &llm.FakeChatModel{})

	status, err := r.Delete(context.Background(), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Error deleting file: neo4j down", status)
}
