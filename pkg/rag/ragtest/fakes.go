// Package ragtest holds in-memory collaborators for pipeline tests.
package ragtest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"rag-chatbot-be/pkg/llm"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/vectorindex"
)

// FakeLLM returns Reply (or Err) and remembers every prompt it was given.
type FakeLLM struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	prompts []string
	temps   []float64
}

var _ llm.LLMProvider = &FakeLLM{}

func (f *FakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	prompt := ""
	if len(history) > 0 {
		prompt = history[len(history)-1].Content
	}
	return f.Generate(ctx, prompt, options...)
}

func (f *FakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	opts := llm.NewOptions("fake", options...)
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.temps = append(f.temps, opts.Temperature)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.Reply, f.Err
}

func (f *FakeLLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *FakeLLM) Temperatures() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.temps...)
}

// Registry is an in-memory document registry for the ingestor and retriever.
type Registry struct {
	mu          sync.Mutex
	records     map[uuid.UUID]rag.DocumentRecord
	active      map[uuid.UUID]bool
	order       []uuid.UUID
	RegisterErr error
	ActiveErr   error
}

var (
	_ rag.DocumentSink    = &Registry{}
	_ rag.ActiveDocuments = &Registry{}
)

func NewRegistry() *Registry {
	return &Registry{
		records: map[uuid.UUID]rag.DocumentRecord{},
		active:  map[uuid.UUID]bool{},
	}
}

func (r *Registry) Register(_ context.Context, record rag.DocumentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.RegisterErr != nil {
		return r.RegisterErr
	}
	r.records[record.ID] = record
	r.active[record.ID] = true
	r.order = append(r.order, record.ID)
	return nil
}

func (r *Registry) Discard(_ context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.active[id] = false
	}
	return nil
}

// Deactivate simulates a soft delete done elsewhere.
func (r *Registry) Deactivate(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[id] = false
}

func (r *Registry) ActiveDocumentIDs(_ context.Context, owner uuid.UUID) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ActiveErr != nil {
		return nil, r.ActiveErr
	}
	out := map[string]struct{}{}
	for id, rec := range r.records {
		if rec.OwnerID == owner && r.active[id] {
			out[id.String()] = struct{}{}
		}
	}
	return out, nil
}

// Active lists active records in registration order.
func (r *Registry) Active() []rag.DocumentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []rag.DocumentRecord
	for _, id := range r.order {
		if r.active[id] {
			out = append(out, r.records[id])
		}
	}
	return out
}

// All lists every record ever registered, active or not.
func (r *Registry) All() []rag.DocumentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]rag.DocumentRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id])
	}
	return out
}

var ErrIndexDown = errors.New("index unavailable")

// FlakyIndex wraps an index and fails the selected operations.
type FlakyIndex struct {
	vectorindex.Index
	FailAdd     bool
	FailSearch  bool
	FailGet     bool
	FailDelete  bool
	FailPersist bool
	// Shuffle reverses search output to exercise re-sorting.
	Shuffle bool
	// Extra hits are appended to every search result as-is.
	Extra []vectorindex.Hit
}

func (f *FlakyIndex) Add(ctx context.Context, chunks []vectorindex.Chunk) ([]string, error) {
	if f.FailAdd {
		return nil, ErrIndexDown
	}
	return f.Index.Add(ctx, chunks)
}

func (f *FlakyIndex) SimilaritySearchWithDistance(ctx context.Context, query string, k int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	if f.FailSearch {
		return nil, ErrIndexDown
	}
	hits, err := f.Index.SimilaritySearchWithDistance(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	if f.Shuffle {
		for i, j := 0, len(hits)-1; i < j; i, j = i+1, j-1 {
			hits[i], hits[j] = hits[j], hits[i]
		}
	}
	return append(hits, f.Extra...), nil
}

func (f *FlakyIndex) Get(ctx context.Context, filter vectorindex.Filter) ([]string, error) {
	if f.FailGet {
		return nil, ErrIndexDown
	}
	return f.Index.Get(ctx, filter)
}

func (f *FlakyIndex) Delete(ctx context.Context, ids []string) error {
	if f.FailDelete {
		return ErrIndexDown
	}
	return f.Index.Delete(ctx, ids)
}

func (f *FlakyIndex) Persist(ctx context.Context) error {
	if f.FailPersist {
		return ErrIndexDown
	}
	return f.Index.Persist(ctx)
}
