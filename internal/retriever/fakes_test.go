package retriever

import (
	"context"

	"github.com/fyrsmithlabs/docrag/internal/extraction"
	"github.com/fyrsmithlabs/docrag/internal/graphstore"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// fakeVectorStore is an in-memory scripted vectorstore.Store.
type fakeVectorStore struct {
	upserts   [][]vectorstore.ChunkRecord
	hits      []vectorstore.ScoredChunk
	files     map[string]struct{}
	deleted   []string
	upsertErr error
	searchErr error
	listErr   error
	deleteErr error
}

func (f *fakeVectorStore) UpsertChunks(_ context.Context, records []vectorstore.ChunkRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeVectorStore) Search(context.Context, []float32, int) ([]vectorstore.ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeVectorStore) ListSourceFiles(context.Context) (map[string]struct{}, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeVectorStore) DeleteBySourceFile(_ context.Context, filename string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, filename)
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

type storedExtraction struct {
	docID    string
	filename string
	ext      extraction.Extraction
}

// fakeGraphStore is an in-memory scripted graphstore.Store.
type fakeGraphStore struct {
	stored    []storedExtraction
	rows      []map[string]any
	queries   []string
	files     []string
	deleted   []string
	storeErr  error
	execErr   error
	listErr   error
	deleteErr error
}

func (f *fakeGraphStore) StoreExtraction(_ context.Context, docID, filename string, ext extraction.Extraction) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.stored = append(f.stored, storedExtraction{docID: docID, filename: filename, ext: ext})
	return nil
}

func (f *fakeGraphStore) ExecuteQuery(_ context.Context, cypher string) ([]map[string]any, error) {
	f.queries = append(f.queries, cypher)
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.rows, nil
}

func (f *fakeGraphStore) ListSourceFiles(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeGraphStore) DeleteBySourceFile(_ context.Context, filename string) (graphstore.DeleteResult, error) {
	if f.deleteErr != nil {
		return graphstore.DeleteResult{}, f.deleteErr
	}
	f.deleted = append(f.deleted, filename)
	return graphstore.DeleteResult{DocumentsDeleted: 1, EntitiesDeleted: 2}, nil
}

func (f *fakeGraphStore) Close(context.Context) error { return nil }
