package rag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rag-chatbot-be/internal/pkg/apperror"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/llm"
	"rag-chatbot-be/pkg/vectorindex"
)

const (
	retrievalModule = "RETRIEVAL"

	NoResponseAnswer      = "No response generated."
	generationErrorPrefix = "Generation error: "
)

// ActiveDocuments reports which of an owner's documents are still live. The
// retriever uses it to hide index entries left behind by a failed cleanup.
type ActiveDocuments interface {
	ActiveDocumentIDs(ctx context.Context, owner uuid.UUID) (map[string]struct{}, error)
}

type RetrieverConfig struct {
	DefaultTopK        int
	MaxTopK            int
	FetchKMultiplier   int
	FetchKFloor        int
	DefaultTemperature float64
	UpstreamTimeout    time.Duration
}

// QueryRequest mirrors the query body. Nil pointers take the configured defaults.
type QueryRequest struct {
	OwnerID     uuid.UUID
	Query       string
	TopK        *int
	Source      string
	Generate    *bool
	Temperature *float64
}

type Result struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Answer is the pipeline output. Generated is false when the caller asked for
// results only, in which case Answer and Citations are empty.
type Answer struct {
	Results   []Result
	Generated bool
	Answer    string
	Citations []Citation
}

type Retriever struct {
	index  vectorindex.Index
	model  llm.LLMProvider
	active ActiveDocuments
	logger logger.ILogger
	cfg    RetrieverConfig
}

// NewRetriever wires the retrieval pipeline. model may be nil, which degrades
// every generated answer to an error string. active may be nil to skip the
// registry cross-check.
func NewRetriever(index vectorindex.Index, model llm.LLMProvider, active ActiveDocuments, log logger.ILogger, cfg RetrieverConfig) *Retriever {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 4
	}
	if cfg.MaxTopK < cfg.DefaultTopK {
		cfg.MaxTopK = 50
	}
	if cfg.FetchKMultiplier <= 0 {
		cfg.FetchKMultiplier = 5
	}
	if cfg.FetchKFloor <= 0 {
		cfg.FetchKFloor = 20
	}
	return &Retriever{index: index, model: model, active: active, logger: log, cfg: cfg}
}

// FetchK is how many candidates to pull before ranking and truncating.
func (r *Retriever) FetchK(topK int) int {
	return max(topK*r.cfg.FetchKMultiplier, r.cfg.FetchKFloor)
}

type resolvedQuery struct {
	query       string
	topK        int
	generate    bool
	temperature float64
}

func (r *Retriever) resolve(req QueryRequest) (*resolvedQuery, error) {
	q := &resolvedQuery{
		query:       strings.TrimSpace(req.Query),
		topK:        r.cfg.DefaultTopK,
		generate:    true,
		temperature: r.cfg.DefaultTemperature,
	}
	fields := map[string]string{}

	if q.query == "" {
		fields["query"] = "This field may not be blank."
	}
	if req.TopK != nil {
		q.topK = *req.TopK
		switch {
		case q.topK < 1:
			fields["top_k"] = "Ensure this value is greater than or equal to 1."
		case q.topK > r.cfg.MaxTopK:
			fields["top_k"] = fmt.Sprintf("Ensure this value is less than or equal to %d.", r.cfg.MaxTopK)
		}
	}
	if req.Temperature != nil {
		q.temperature = *req.Temperature
		if q.temperature < 0 || q.temperature > 2 {
			fields["temperature"] = "Ensure this value is between 0.0 and 2.0."
		}
	}
	if req.Generate != nil {
		q.generate = *req.Generate
	}

	if len(fields) > 0 {
		return nil, apperror.Validation("Validation failed", fields)
	}
	return q, nil
}

// Answer runs search, ranking and (optionally) generation for one query.
// Only retrieval failures are returned as errors; generation failures become
// the answer text so the ranked results still reach the caller.
func (r *Retriever) Answer(ctx context.Context, req QueryRequest) (*Answer, error) {
	if req.OwnerID == uuid.Nil {
		return nil, apperror.Unauthorized("Authentication credentials were not provided.")
	}
	q, err := r.resolve(req)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "rag.answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner_id", req.OwnerID.String()),
		attribute.Int("top_k", q.topK),
		attribute.Bool("generate", q.generate),
	)

	hits, err := r.Retrieve(ctx, req.OwnerID, q.query, q.topK, req.Source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	out := &Answer{Results: make([]Result, 0, len(hits))}
	for _, hit := range hits {
		out.Results = append(out.Results, Result{
			Content:  hit.Content,
			Metadata: PublicMetadata(hit.Metadata),
			Score:    Score(hit.Distance),
		})
	}
	if !q.generate {
		return out, nil
	}

	builder := NewGroundedBuilder(q.query, hits)
	out.Generated = true
	out.Citations = builder.Citations()
	out.Answer = r.generate(ctx, builder.Build(), q.temperature)
	return out, nil
}

// Retrieve returns at most topK hits for owner, nearest first.
func (r *Retriever) Retrieve(ctx context.Context, owner uuid.UUID, query string, topK int, source string) ([]vectorindex.Hit, error) {
	filter := vectorindex.Filter{vectorindex.MetaUserID: owner.String()}
	if source != "" {
		filter[vectorindex.MetaSource] = source
	}

	searchCtx, cancel := r.upstreamContext(ctx)
	hits, err := r.index.SimilaritySearchWithDistance(searchCtx, query, r.FetchK(topK), filter)
	cancel()
	if err != nil {
		r.logger.Error(retrievalModule, "Similarity search failed", map[string]interface{}{
			"owner_id": owner.String(),
			"error":    err.Error(),
		})
		return nil, apperror.Upstream("Vector index unavailable", err)
	}

	// Backends are not trusted to return sorted hits or to honour the filter.
	hits = filterHits(hits, filter)
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})
	hits = r.dropInactive(ctx, owner, hits)

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func filterHits(hits []vectorindex.Hit, filter vectorindex.Filter) []vectorindex.Hit {
	out := hits[:0]
	for _, h := range hits {
		if filter.Matches(h.Metadata) {
			out = append(out, h)
		}
	}
	return out
}

// dropInactive removes hits whose document is no longer active. Chunks without
// a document_id predate the registry and are kept. A registry failure is
// logged and the hits pass through unchanged.
func (r *Retriever) dropInactive(ctx context.Context, owner uuid.UUID, hits []vectorindex.Hit) []vectorindex.Hit {
	if r.active == nil || len(hits) == 0 {
		return hits
	}
	live, err := r.active.ActiveDocumentIDs(ctx, owner)
	step := BestEffort("active_documents", err)
	if !step.OK() {
		step.Log(r.logger, retrievalModule, map[string]interface{}{"owner_id": owner.String()})
		return hits
	}

	out := hits[:0]
	dropped := 0
	for _, h := range hits {
		docID, ok := h.Metadata[vectorindex.MetaDocumentID]
		if ok && docID != "" {
			if _, found := live[docID]; !found {
				dropped++
				continue
			}
		}
		out = append(out, h)
	}
	if dropped > 0 {
		r.logger.Debug(retrievalModule, "Dropped hits of inactive documents", map[string]interface{}{
			"owner_id": owner.String(),
			"dropped":  dropped,
		})
	}
	return out
}

func (r *Retriever) generate(ctx context.Context, prompt string, temperature float64) string {
	if r.model == nil {
		return generationErrorPrefix + "chat model is not configured"
	}

	genCtx, cancel := r.upstreamContext(ctx)
	defer cancel()

	// Never retried: output and cost are not idempotent.
	text, err := r.model.Generate(genCtx, prompt, llm.WithTemperature(temperature))
	if err != nil {
		r.logger.Warn(retrievalModule, "Generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return generationErrorPrefix + err.Error()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return NoResponseAnswer
	}
	return text
}

func (r *Retriever) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.UpstreamTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.UpstreamTimeout)
}

// PublicMetadata converts index metadata for clients: numeric fields written
// at ingestion (page, chunk_index) go back to numbers.
func PublicMetadata(metadata map[string]string) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
		if k == vectorindex.MetaPage || k == vectorindex.MetaChunkIndex {
			if n, err := strconv.Atoi(v); err == nil {
				out[k] = n
			}
		}
	}
	return out
}

// IsGenerationError reports whether an answer string is a degraded generation.
func IsGenerationError(answer string) bool {
	return strings.HasPrefix(answer, generationErrorPrefix)
}
