package vectorindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"rag-chatbot-be/pkg/embedding"
)

// ChromemIndex is an embedded, file-backed index. Writes are persisted by
// chromem as they happen.
type ChromemIndex struct {
	db          *chromem.DB
	collection  *chromem.Collection
	provider    embedding.EmbeddingProvider
	concurrency int

	probeMu sync.Mutex
	probe   []float32
}

var _ Index = (*ChromemIndex)(nil)

// NewChromemIndex opens (or creates) the collection under dir. An empty dir
// keeps everything in memory.
func NewChromemIndex(dir, collection string, provider embedding.EmbeddingProvider, concurrency int) (*ChromemIndex, error) {
	if collection == "" {
		collection = "documents"
	}

	var db *chromem.DB
	if dir == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return provider.Embed(ctx, text, embedding.TaskRetrievalDocument)
	}
	coll, err := db.GetOrCreateCollection(collection, map[string]string{"hnsw:space": "cosine"}, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection: %w", err)
	}

	return &ChromemIndex{
		db:          db,
		collection:  coll,
		provider:    provider,
		concurrency: concurrency,
	}, nil
}

func (i *ChromemIndex) Add(ctx context.Context, chunks []Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return []string{}, nil
	}

	texts := make([]string, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Content
	}
	vectors, err := embedAll(ctx, i.provider, texts, i.concurrency)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	for n, c := range chunks {
		ids[n] = c.ID
		if ids[n] == "" {
			ids[n] = uuid.NewString()
		}
		meta := make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			meta[k] = v
		}
		metadatas[n] = meta
	}

	if err := i.collection.Add(ctx, ids, vectors, metadatas, texts); err != nil {
		return nil, fmt.Errorf("insert chunks: %w", err)
	}
	return ids, nil
}

// SimilaritySearchWithDistance reports cosine distance as 1 - similarity.
func (i *ChromemIndex) SimilaritySearchWithDistance(ctx context.Context, query string, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	vec, err := i.provider.Embed(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return i.query(ctx, vec, k, filter)
}

func (i *ChromemIndex) query(ctx context.Context, vec []float32, k int, filter Filter) ([]Hit, error) {
	// chromem rejects nResults above the collection size
	total := i.collection.Count()
	if total == 0 {
		return []Hit{}, nil
	}
	if k > total {
		k = total
	}

	var where map[string]string
	if len(filter) > 0 {
		where = map[string]string(filter)
	}
	results, err := i.collection.QueryEmbedding(ctx, vec, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	hits := make([]Hit, len(results))
	for n, r := range results {
		hits[n] = Hit{
			Chunk: Chunk{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Distance: 1 - float64(r.Similarity),
		}
	}
	return hits, nil
}

// Get lists matching ids. chromem has no metadata listing, so this runs a
// filtered query over the whole collection with any vector of the right size.
func (i *ChromemIndex) Get(ctx context.Context, filter Filter) ([]string, error) {
	if len(filter) == 0 {
		return nil, ErrEmptyFilter
	}
	if i.collection.Count() == 0 {
		return []string{}, nil
	}

	probe, err := i.probeVector(ctx)
	if err != nil {
		return nil, err
	}

	hits, err := i.query(ctx, probe, i.collection.Count(), filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for n, h := range hits {
		ids[n] = h.ID
	}
	return ids, nil
}

func (i *ChromemIndex) probeVector(ctx context.Context) ([]float32, error) {
	i.probeMu.Lock()
	defer i.probeMu.Unlock()
	if i.probe != nil {
		return i.probe, nil
	}
	vec, err := i.provider.Embed(ctx, "index probe", embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed probe: %w", err)
	}
	i.probe = vec
	return vec, nil
}

func (i *ChromemIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return i.collection.Delete(ctx, nil, nil, ids...)
}

// Persist is a no-op: the persistent DB writes each document on Add.
func (i *ChromemIndex) Persist(context.Context) error {
	return nil
}

func (i *ChromemIndex) Count() int {
	return i.collection.Count()
}
