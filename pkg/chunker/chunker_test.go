package chunker

import (
	"strings"
	"testing"

	"rag-chatbot-be/pkg/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitWindowsAndOverlap(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		length  int
	}{
		{name: "defaults over several windows", size: 800, overlap: 200, length: 5000},
		{name: "exact multiple", size: 10, overlap: 2, length: 26},
		{name: "no overlap", size: 7, overlap: 0, length: 30},
		{name: "large overlap", size: 10, overlap: 9, length: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			for i := 0; i < tt.length; i++ {
				b.WriteByte(byte('a' + i%26))
			}
			s := New(WithChunkSize(tt.size), WithOverlap(tt.overlap))
			require.NoError(t, s.Validate())

			chunks := s.Split(b.String())
			require.NotEmpty(t, chunks)

			for i, c := range chunks {
				assert.LessOrEqual(t, len([]rune(c)), tt.size)
				if i > 0 && tt.overlap > 0 {
					prev := []rune(chunks[i-1])
					cur := []rune(c)
					assert.Equal(t, string(prev[len(prev)-tt.overlap:]), string(cur[:tt.overlap]), "chunk %d", i)
				}
			}
			assert.True(t, strings.HasSuffix(b.String(), chunks[len(chunks)-1]))
		})
	}
}

func TestSplitShortAndEmpty(t *testing.T) {
	s := New()
	assert.Equal(t, []string{"hello"}, s.Split("hello"))
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split(" \n\t "))
}

func TestSplitIsRuneSafe(t *testing.T) {
	s := New(WithChunkSize(4), WithOverlap(1))
	chunks := s.Split("héllo wörld")
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 4)
		assert.True(t, strings.ToValidUTF8(c, "?") == c)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)
	s := New()
	assert.Equal(t, s.Split(text), s.Split(text))
}

func TestValidate(t *testing.T) {
	assert.Error(t, New(WithChunkSize(100), WithOverlap(100)).Validate())
	assert.Error(t, New(WithChunkSize(0)).Validate())
	assert.Error(t, New(WithOverlap(-1)).Validate())
	assert.NoError(t, New().Validate())
}

func TestSplitRecordsPropagatesMetadata(t *testing.T) {
	s := New(WithChunkSize(10), WithOverlap(2))
	records := []loader.Record{
		{Text: strings.Repeat("x", 25), Metadata: map[string]any{"source": "a.pdf", "page": 0}},
		{Text: "short", Metadata: map[string]any{"source": "a.pdf", "page": 1}},
		{Text: "   ", Metadata: map[string]any{"source": "a.pdf", "page": 2}},
	}

	chunks := s.SplitRecords(records)
	require.Len(t, chunks, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "a.pdf", chunks[i].Metadata["source"])
		assert.Equal(t, 0, chunks[i].Metadata["page"])
		assert.Equal(t, i, chunks[i].Metadata["chunk_index"])
	}
	assert.Equal(t, 1, chunks[3].Metadata["page"])
	assert.Equal(t, "short", chunks[3].Text)

	// Source metadata must not be shared between chunks
	chunks[0].Metadata["source"] = "changed"
	assert.Equal(t, "a.pdf", chunks[1].Metadata["source"])
	assert.Equal(t, "a.pdf", records[0].Metadata["source"])
}
