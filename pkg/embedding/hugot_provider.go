package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
)

// HugotProvider runs a sentence-transformers ONNX model in process with the
// pure Go hugot backend. The model is downloaded into modelDir on first use.
type HugotProvider struct {
	modelName string
	modelDir  string

	mu      sync.Mutex
	session *hugot.Session
	run     func(texts []string) ([][]float32, error)
}

func NewHugotProvider(modelName, modelDir string) *HugotProvider {
	if modelName == "" {
		modelName = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if modelDir == "" {
		modelDir = "./models"
	}
	return &HugotProvider{modelName: modelName, modelDir: modelDir}
}

func (p *HugotProvider) Name() string {
	return "huggingface:" + p.modelName
}

// Embed ignores the task type; sentence-transformers models are symmetric.
func (p *HugotProvider) Embed(ctx context.Context, text string, _ TaskType) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run == nil {
		if err := p.init(); err != nil {
			return nil, err
		}
	}

	result, err := p.run([]string{text})
	if err != nil {
		return nil, fmt.Errorf("hugot embedding: %w", err)
	}
	if len(result) == 0 || len(result[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return normalizeVector(result[0]), nil
}

func (p *HugotProvider) init() error {
	modelPath, err := p.prepareModel()
	if err != nil {
		return err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return fmt.Errorf("hugot: create session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "rag-embedder",
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return fmt.Errorf("hugot: create pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return fmt.Errorf("hugot: create pipeline: %w", err)
	}

	p.session = session
	p.run = func(texts []string) ([][]float32, error) {
		out, err := pipeline.RunPipeline(texts)
		if err != nil {
			return nil, err
		}
		return out.Embeddings, nil
	}
	return nil
}

func (p *HugotProvider) prepareModel() (string, error) {
	modelPath := filepath.Join(p.modelDir, strings.ReplaceAll(p.modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	}

	if err := os.MkdirAll(p.modelDir, 0o755); err != nil {
		return "", fmt.Errorf("hugot: create model dir: %w", err)
	}
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(p.modelName, p.modelDir, opts)
	if err != nil {
		return "", fmt.Errorf("hugot: download %s: %w", p.modelName, err)
	}
	return downloaded, nil
}

func (p *HugotProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	err := p.session.Destroy()
	p.session = nil
	p.run = nil
	return err
}
