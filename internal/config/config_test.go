package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRag() RagConfig {
	return RagConfig{
		ChunkSize:          800,
		ChunkOverlap:       200,
		DefaultTopK:        4,
		MaxTopK:            50,
		FetchKMultiplier:   5,
		FetchKFloor:        20,
		DefaultTemperature: 0.7,
		UpstreamTimeout:    time.Minute,
	}
}

func TestRagValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *RagConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(r *RagConfig) {}},
		{name: "overlap equals size", mutate: func(r *RagConfig) { r.ChunkOverlap = 800 }, wantErr: true},
		{name: "negative overlap", mutate: func(r *RagConfig) { r.ChunkOverlap = -1 }, wantErr: true},
		{name: "zero size", mutate: func(r *RagConfig) { r.ChunkSize = 0 }, wantErr: true},
		{name: "top k zero", mutate: func(r *RagConfig) { r.DefaultTopK = 0 }, wantErr: true},
		{name: "temperature too high", mutate: func(r *RagConfig) { r.DefaultTemperature = 2.5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := defaultRag()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyRagOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 1000\nchunk_overlap: 100\nupstream_timeout: 15s\n"), 0o644))

	cfg := &Config{Rag: defaultRag()}
	require.NoError(t, cfg.ApplyRagOverlay(path))

	assert.Equal(t, 1000, cfg.Rag.ChunkSize)
	assert.Equal(t, 100, cfg.Rag.ChunkOverlap)
	assert.Equal(t, 15*time.Second, cfg.Rag.UpstreamTimeout)
	assert.Equal(t, 4, cfg.Rag.DefaultTopK)
}

func TestApplyRagOverlayMissingFile(t *testing.T) {
	cfg := &Config{Rag: defaultRag()}
	assert.NoError(t, cfg.ApplyRagOverlay(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Equal(t, 800, cfg.Rag.ChunkSize)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "x")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DURATION", "90s")

	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvAsInt("TEST_BAD_INT", 1))
	assert.Equal(t, 0.25, getEnvAsFloat("TEST_FLOAT", 1))
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
}
