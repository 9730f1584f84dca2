package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/duhu110/axiom/pkg/errs"
	"github.com/duhu110/axiom/pkg/httpclient"
)

// OpenAIConfig configures an OpenAI-wire-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
}

// openAIProvider implements Provider against the /embeddings endpoint,
// grounded on the teacher's pkg/embedders/openai.go request/response
// shapes but generalized over an arbitrary model name (the teacher's
// OpenAIEmbedder is pinned to one model per instance; Service supplies
// the model name per call instead).
type openAIProvider struct {
	cfg       OpenAIConfig
	model     string
	dimension int
	client    *httpclient.Client
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewOpenAIFactory returns a Factory producing one openAIProvider per
// model name, all sharing the same endpoint and API key.
func NewOpenAIFactory(cfg OpenAIConfig) Factory {
	return func(modelName string) (Provider, error) {
		return &openAIProvider{
			cfg:       cfg,
			model:     modelName,
			dimension: dimensionForModel(modelName),
			client:    httpclient.New(httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders)),
		}, nil
	}
}

func dimensionForModel(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "bge-small-zh-v1.5":
		return 512
	default:
		return 1536
	}
}

func (p *openAIProvider) doEmbed(ctx context.Context, input []string) ([][]float32, error) {
	payload, err := json.Marshal(openAIEmbedRequest{Model: p.model, Input: input})
	if err != nil {
		return nil, errs.New(errs.Internal, "marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, errs.New(errs.Internal, "build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		kind := errs.UpstreamTransient
		if resp != nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			kind = errs.UpstreamPermanent
		}
		return nil, errs.New(kind, "embed request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.UpstreamTransient, "read embed response", err)
	}

	var parsed openAIEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errs.New(errs.UpstreamPermanent, "parse embed response", err)
	}
	if parsed.Error != nil {
		return nil, errs.New(errs.UpstreamPermanent, parsed.Error.Message, nil)
	}

	out := make([][]float32, len(input))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	for i, vec := range out {
		if vec == nil {
			return nil, errs.New(errs.UpstreamPermanent, fmt.Sprintf("embed response missing vector at index %d", i), nil)
		}
	}
	return out, nil
}

// EmbedDocuments implements Provider.
func (p *openAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.doEmbed(ctx, texts)
}

// EmbedQuery implements Provider.
func (p *openAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension implements Provider.
func (p *openAIProvider) Dimension() int { return p.dimension }

// Close implements Provider; the HTTP client holds no resources to release.
func (p *openAIProvider) Close() error { return nil }

var _ Provider = (*openAIProvider)(nil)
