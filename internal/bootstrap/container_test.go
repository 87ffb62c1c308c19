package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/model"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/database/dbtest"
	"rag-chatbot-be/pkg/embedding/embeddingtest"
	"rag-chatbot-be/pkg/llm/ollama"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/vectorindex"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		App:  config.AppConfig{Environment: "test", LogFilePath: filepath.Join(dir, "app.log")},
		Auth: config.AuthConfig{JwtSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour},
		Storage: config.StorageConfig{
			RootDir:        filepath.Join(dir, "media"),
			MaxUploadBytes: 1024 * 1024,
			MaxFiles:       2,
		},
		Rag: config.RagConfig{
			ChunkSize:        800,
			ChunkOverlap:     200,
			DefaultTopK:      4,
			MaxTopK:          50,
			UpstreamTimeout:  5 * time.Second,
			FilterInactive:   true,
			EmbedConcurrency: 2,
		},
		Ai: config.AIConfig{
			EmbeddingProvider:    "ollama",
			OllamaBaseURL:        "http://localhost:11434",
			OllamaEmbeddingModel: "nomic-embed-text",
			EmbeddingMaxTries:    1,
			LLMProvider:          "gemini",
			LLMModel:             "gemini-2.5-flash",
			QueryCacheTTL:        time.Minute,
		},
		VectorStore: config.VectorStoreConfig{Backend: "chromem", Collection: "documents", Dimension: 64},
	}
}

func TestNewChatModel(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	tests := []struct {
		name     string
		provider string
		wantNil  bool
	}{
		{name: "gemini without api key", provider: "gemini", wantNil: true},
		{name: "disabled", provider: "none", wantNil: true},
		{name: "unknown provider", provider: "gpt-j", wantNil: true},
		{name: "ollama", provider: "ollama", wantNil: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Ai.LLMProvider = tt.provider
			got := newChatModel(ctx, cfg)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			assert.IsType(t, &ollama.OllamaProvider{}, got)
		})
	}
}

func TestContainerStartsWithoutChatModelKey(t *testing.T) {
	cfg := testConfig(t)
	require.Empty(t, cfg.Ai.GeminiAPIKey)

	c, err := NewContainer(context.Background(), dbtest.NewSQLite(t, model.All()...), cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	assert.NotNil(t, c.AuthController)
	assert.NotNil(t, c.DocumentController)
	assert.NotNil(t, c.QueryController)
	assert.NotNil(t, c.AdminController)
	assert.NotNil(t, c.Ingestor)
}

func TestQueryDegradesWithoutChatModel(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	index, err := vectorindex.NewChromemIndex("", "documents", embeddingtest.NewHashEmbedder(64), 2)
	require.NoError(t, err)
	owner := uuid.New()
	_, err = index.Add(ctx, []vectorindex.Chunk{{
		ID:      uuid.NewString(),
		Content: "The launch code is ZEBRA-42.",
		Metadata: map[string]string{
			vectorindex.MetaUserID: owner.String(),
			vectorindex.MetaSource: "codes.txt",
		},
	}})
	require.NoError(t, err)

	retriever := rag.NewRetriever(index, newChatModel(ctx, cfg), nil, logger.NewNopLogger(), rag.RetrieverConfig{})
	answer, err := retriever.Answer(ctx, rag.QueryRequest{OwnerID: owner, Query: "launch code"})
	require.NoError(t, err)

	require.Len(t, answer.Results, 1)
	assert.Contains(t, answer.Results[0].Content, "ZEBRA-42")
	assert.True(t, answer.Generated)
	assert.True(t, rag.IsGenerationError(answer.Answer), answer.Answer)
	assert.Len(t, answer.Citations, 1)
}
