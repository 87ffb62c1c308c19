// Package chunker splits loaded document text into overlapping fixed-size windows.
package chunker

import (
	"fmt"
	"strings"

	"rag-chatbot-be/pkg/loader"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 200
)

// Chunk is one window of a loaded record. Metadata is a copy of the record's
// metadata plus chunk_index.
type Chunk struct {
	Text     string
	Metadata map[string]any
}

type Splitter struct {
	chunkSize int
	overlap   int
}

type Option func(*Splitter)

func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		s.chunkSize = size
	}
}

func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		s.overlap = overlap
	}
}

// New builds a splitter. Call Validate before use when the sizes come from config.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Splitter) Validate() error {
	if s.chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", s.chunkSize)
	}
	if s.overlap < 0 || s.overlap >= s.chunkSize {
		return fmt.Errorf("overlap must be in [0, %d), got %d", s.chunkSize, s.overlap)
	}
	return nil
}

func (s *Splitter) ChunkSize() int { return s.chunkSize }
func (s *Splitter) Overlap() int   { return s.overlap }

// Split cuts text into windows of chunkSize runes advancing by chunkSize-overlap.
// Only the final window may be shorter. Whitespace-only input yields nothing.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)
	if total <= s.chunkSize {
		return []string{text}
	}

	step := s.chunkSize - s.overlap
	if step <= 0 {
		step = s.chunkSize
	}

	chunks := make([]string, 0, total/step+1)
	for start := 0; start < total; start += step {
		end := start + s.chunkSize
		if end > total {
			end = total
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == total {
			break
		}
	}
	return chunks
}

// SplitRecords splits every record and propagates its metadata onto each chunk.
func (s *Splitter) SplitRecords(records []loader.Record) []Chunk {
	var out []Chunk
	for _, rec := range records {
		for i, text := range s.Split(rec.Text) {
			meta := make(map[string]any, len(rec.Metadata)+1)
			for k, v := range rec.Metadata {
				meta[k] = v
			}
			meta["chunk_index"] = i
			out = append(out, Chunk{Text: text, Metadata: meta})
		}
	}
	return out
}
