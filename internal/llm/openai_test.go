package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    OpenAIConfig
		wantError bool
	}{
		{
			name: "valid",
			config: OpenAIConfig{
				APIKey:         "sk-test",
				ChatModel:      "gpt-4o-mini",
				EmbeddingModel: "text-embedding-3-small",
			},
			wantError: false,
		},
		{
			name: "missing api key",
			config: OpenAIConfig{
				ChatModel:      "gpt-4o-mini",
				EmbeddingModel: "text-embedding-3-small",
			},
			wantError: true,
		},
		{
			name: "missing chat model",
			config: OpenAIConfig{
				APIKey:         "sk-test",
				EmbeddingModel: "text-embedding-3-small",
			},
			wantError: true,
		},
		{
			name: "missing embedding model",
			config: OpenAIConfig{
				APIKey:    "sk-test",
				ChatModel: "gpt-4o-mini",
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewOpenAIClient_InvalidConfig(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOpenAIClient_EmptyPrompt(t *testing.T) {
	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey:         "sk-test",
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOpenAIClient_EmptyEmbedInput(t *testing.T) {
	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey:         "sk-test",
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)

	_, err = client.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestFakeChatModel_Rules(t *testing.T) {
	fake := &FakeChatModel{Default: "default answer"}
	fake.Respond("Cypher", "MATCH (e:Entity) RETURN e.name")

	got, err := fake.Complete(context.Background(), CompletionRequest{Prompt: "generate a Cypher query"})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (e:Entity) RETURN e.name", got)

	got, err = fake.Complete(context.Background(), CompletionRequest{Prompt: "anything else"})
	require.NoError(t, err)
	assert.Equal(t, "default answer", got)

	assert.Len(t, fake.Prompts, 2)
}

func TestFakeChatModel_Error(t *testing.T) {
	fake := &FakeChatModel{Err: errors.New("model down")}
	_, err := fake.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	assert.Error(t, err)
}

func TestFakeEmbedder_Deterministic(t *testing.T) {
	fake := &FakeEmbedder{Dim: 8}

	a, err := fake.EmbedQuery(context.Background(), "same text")
	require.NoError(t, err)
	b, err := fake.EmbedQuery(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
	assert.Equal(t, 2, fake.Calls)
}

func TestFakeEmbedder_RegisteredVectors(t *testing.T) {
	fake := &FakeEmbedder{
		Vectors: map[string][]float32{"cats": {1, 0}},
	}
	v, err := fake.EmbedQuery(context.Background(), "cats")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
}
