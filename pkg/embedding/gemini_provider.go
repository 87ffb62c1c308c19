package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// GeminiProvider embeds through the hosted Gemini API. Calls are throttled by
// a token bucket so ingestion bursts stay under the account quota.
type GeminiProvider struct {
	client     *genai.Client
	modelName  string
	docModel   *genai.EmbeddingModel
	queryModel *genai.EmbeddingModel
	limiter    *rate.Limiter
}

func NewGeminiProvider(ctx context.Context, apiKey, model string, perSecond float64) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedding: api key is not set")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: create client: %w", err)
	}

	// One model handle per task type; the handle's TaskType is not per call.
	docModel := client.EmbeddingModel(model)
	docModel.TaskType = genai.TaskTypeRetrievalDocument
	queryModel := client.EmbeddingModel(model)
	queryModel.TaskType = genai.TaskTypeRetrievalQuery

	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &GeminiProvider{
		client:     client,
		modelName:  model,
		docModel:   docModel,
		queryModel: queryModel,
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini:" + p.modelName
}

func (p *GeminiProvider) Embed(ctx context.Context, text string, task TaskType) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	model := p.docModel
	if task == TaskRetrievalQuery {
		model = p.queryModel
	}

	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, ErrEmptyEmbedding
	}

	values := make([]float32, len(resp.Embedding.Values))
	for i, v := range resp.Embedding.Values {
		values[i] = float32(v)
	}
	return values, nil
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
