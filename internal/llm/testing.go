package llm

import (
	"context"
	"strings"
	"sync"
)

// trimCompletion normalizes model output.
func trimCompletion(s string) string {
	return strings.TrimSpace(s)
}

// FakeChatModel is a scripted ChatModel for tests. Responses are matched
// against prompt substrings in registration order; unmatched prompts get
// the Default response.
type FakeChatModel struct {
	mu sync.Mutex

	rules   []fakeRule
	Default string

	// Err, when set, is returned by every call.
	Err error

	// Prompts records every request received, in order.
	Prompts []CompletionRequest
}

type fakeRule struct {
	substring string
	response  string
}

// Respond registers a response for prompts containing substring.
func (f *FakeChatModel) Respond(substring, response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{substring: substring, response: response})
}

// Complete implements ChatModel.
func (f *FakeChatModel) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Prompts = append(f.Prompts, req)
	if f.Err != nil {
		return "", f.Err
	}
	for _, rule := range f.rules {
		if strings.Contains(req.Prompt, rule.substring) {
			return trimCompletion(rule.response), nil
		}
	}
	return trimCompletion(f.Default), nil
}

// FakeEmbedder is a deterministic Embedder for tests. Vectors are derived
// from a registered map, falling back to a stable hash-free default so the
// same text always embeds to the same vector.
type FakeEmbedder struct {
	mu sync.Mutex

	// Vectors maps exact text to its embedding.
	Vectors map[string][]float32

	// Dim is the dimensionality of fallback vectors. Default 4.
	Dim int

	// Err, when set, is returned by every call.
	Err error

	// Calls counts batched embedding calls.
	Calls int
}

// EmbedDocuments implements Embedder.
func (f *FakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectorFor(text)
	}
	return out, nil
}

// EmbedQuery implements Embedder.
func (f *FakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *FakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.Vectors[text]; ok {
		return v
	}

	dim := f.Dim
	if dim == 0 {
		dim = 4
	}
	// Deterministic fallback: spread byte sums across the vector so
	// different texts rarely collide but identical texts always match.
	v := make([]float32, dim)
	for i, r := range text {
		v[i%dim] += float32(r)
	}
	return v
}
