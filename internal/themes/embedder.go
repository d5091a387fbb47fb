package themes

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/veilhq/veil-backend/internal/logger"
)

// Embedder turns sanitized text into vectors for clustering. Inputs must
// already be sanitized and pseudonymized; no implementation ever sees raw
// identity.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type openaiEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	log    *logger.Logger
}

func NewOpenAIEmbedder(apiKey string, log *logger.Logger) (Embedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}
	return &openaiEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.SmallEmbedding3,
		log:    log.With("component", "OpenAIEmbedder"),
	}, nil
}

func (e *openaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}

const localEmbedderDims = 256

// localEmbedder hashes term frequencies into a fixed-width vector. It is
// deterministic and offline, used for tests and for orgs without an
// embedding provider configured. Crude next to a learned model, but themes
// degrade to keyword grouping rather than failing.
type localEmbedder struct{}

func NewLocalEmbedder() Embedder { return localEmbedder{} }

func (localEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, localEmbedderDims)
		for _, tok := range Tokenize(t) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			vec[h.Sum32()%localEmbedderDims]++
		}
		out[i] = normalizeUnit(vec)
	}
	return out, nil
}

func normalizeUnit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum <= 0 {
		return v
	}
	den := float32(1.0 / math.Sqrt(sum))
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] * den
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
