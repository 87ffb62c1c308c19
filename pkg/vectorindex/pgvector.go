package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"rag-chatbot-be/pkg/embedding"
)

const (
	chunkTable = "document_chunks"

	// pgvector's default ef_search and its upper bound.
	defaultEfSearch = 40
	maxEfSearch     = 1000
)

// ChunkModel is the document_chunks row. The embedding column dimension is set
// by Migrate, not by the struct tag.
type ChunkModel struct {
	Id         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Collection string            `gorm:"type:varchar(100);not null;index"`
	Content    string            `gorm:"type:text;not null"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb"`
	Embedding  pgvector.Vector   `gorm:"type:vector"`
	CreatedAt  time.Time         `gorm:"autoCreateTime"`
}

func (ChunkModel) TableName() string {
	return chunkTable
}

// Migrate creates the chunk table with a fixed-dimension vector column and an
// HNSW cosine index.
func Migrate(db *gorm.DB, dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			collection varchar(100) NOT NULL,
			content text NOT NULL,
			metadata jsonb,
			embedding vector(%d),
			created_at timestamptz
		)`, chunkTable, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_collection ON %s (collection)`, chunkTable, chunkTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_metadata ON %s USING gin (metadata jsonb_path_ops)`, chunkTable, chunkTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding vector_cosine_ops)`, chunkTable, chunkTable),
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate %s: %w", chunkTable, err)
		}
	}
	return nil
}

type PgVectorIndex struct {
	db          *gorm.DB
	provider    embedding.EmbeddingProvider
	collection  string
	concurrency int
}

var _ Index = (*PgVectorIndex)(nil)

func NewPgVectorIndex(db *gorm.DB, provider embedding.EmbeddingProvider, collection string, concurrency int) *PgVectorIndex {
	if collection == "" {
		collection = "documents"
	}
	return &PgVectorIndex{db: db, provider: provider, collection: collection, concurrency: concurrency}
}

func (i *PgVectorIndex) Add(ctx context.Context, chunks []Chunk) ([]string, error) {
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

	rows := make([]*ChunkModel, len(chunks))
	ids := make([]string, len(chunks))
	for n, c := range chunks {
		id := uuid.New()
		if c.ID != "" {
			if parsed, err := uuid.Parse(c.ID); err == nil {
				id = parsed
			}
		}
		meta := make(datatypes.JSONMap, len(c.Metadata))
		for k, v := range c.Metadata {
			meta[k] = v
		}
		rows[n] = &ChunkModel{
			Id:         id,
			Collection: i.collection,
			Content:    c.Content,
			Metadata:   meta,
			Embedding:  pgvector.NewVector(vectors[n]),
		}
		ids[n] = id.String()
	}

	if err := i.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return nil, fmt.Errorf("insert chunks: %w", err)
	}
	return ids, nil
}

type scoredChunk struct {
	Id       uuid.UUID
	Content  string
	Metadata datatypes.JSONMap
	Distance float64
}

// scoped restricts q to this collection and to rows whose metadata contains
// every filter pair. Containment (@>) is served by the GIN metadata index.
func (i *PgVectorIndex) scoped(q *gorm.DB, filter Filter) (*gorm.DB, error) {
	q = q.Table(chunkTable).Where("collection = ?", i.collection)
	if len(filter) == 0 {
		return q, nil
	}
	doc, err := json.Marshal(map[string]string(filter))
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return q.Where("metadata @> ?::jsonb", string(doc)), nil
}

// tuneSearch widens the HNSW scan for the current transaction. Without it the
// index yields at most ef_search global neighbours and the metadata filter runs
// afterwards, so an owner with few chunks in a crowded table gets too few hits.
// Iterative scans need pgvector 0.8; older servers keep the wider ef_search.
func tuneSearch(tx *gorm.DB, k int) error {
	efSearch := min(max(k, defaultEfSearch), maxEfSearch)
	if err := tx.Exec(fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch)).Error; err != nil {
		return err
	}
	if err := tx.SavePoint("iterative_scan").Error; err != nil {
		return err
	}
	if err := tx.Exec("SET LOCAL hnsw.iterative_scan = relaxed_order").Error; err != nil {
		return tx.RollbackTo("iterative_scan").Error
	}
	return nil
}

// SimilaritySearchWithDistance returns up to k hits ordered by cosine distance.
func (i *PgVectorIndex) SimilaritySearchWithDistance(ctx context.Context, query string, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	vec, err := i.provider.Embed(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVector := pgvector.NewVector(vec)

	var rows []scoredChunk
	err = i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tuneSearch(tx, k); err != nil {
			return err
		}
		q, err := i.scoped(tx, filter)
		if err != nil {
			return err
		}
		return q.
			Select("id, content, metadata, embedding <=> ? AS distance", queryVector).
			Order("distance ASC").
			Limit(k).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	hits := make([]Hit, len(rows))
	for n, r := range rows {
		hits[n] = Hit{
			Chunk: Chunk{
				ID:       r.Id.String(),
				Content:  r.Content,
				Metadata: stringMap(r.Metadata),
			},
			Distance: r.Distance,
		}
	}
	// relaxed_order may return neighbours slightly out of order.
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})
	return hits, nil
}

func (i *PgVectorIndex) Get(ctx context.Context, filter Filter) ([]string, error) {
	if len(filter) == 0 {
		return nil, ErrEmptyFilter
	}
	q, err := i.scoped(i.db.WithContext(ctx), filter)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	out := make([]string, len(ids))
	for n, id := range ids {
		out[n] = id.String()
	}
	return out, nil
}

func (i *PgVectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return i.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", i.collection, ids).
		Delete(&ChunkModel{}).Error
}

// Persist is a no-op: rows are durable once the insert commits.
func (i *PgVectorIndex) Persist(context.Context) error {
	return nil
}

func stringMap(m datatypes.JSONMap) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
