package render

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	maxTokens        = 4096
)

var schemaPrompts = map[string]string{
	SchemaReportDaily: `Você escreve o relatório diário AgriMacro em português do Brasil.
Responda SOMENTE com um objeto JSON: {"headline": string, "sections": [{"title": string, "body": string}],
"scalars": {"SIMBOLO": {"value": number, "unit": string, "source": string}}}.
Use apenas números presentes no bundle, sempre com unidade e fonte. Não exagere: palavras fortes só com movimentos grandes.`,
	SchemaVideoScript: `Você escreve o roteiro de vídeo diário AgriMacro em português do Brasil.
Responda SOMENTE com um objeto JSON: {"title": string, "scenes": [{"title": string, "narration": string, "duration_s": number, "visual": string}],
"verdict": string, "disclaimer": string}. Entre 4 e 8 cenas. Use apenas números presentes no bundle.`,
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// AnthropicGenerator writes prose through the Anthropic Messages API.
// 실패하면 fallback 생성기로 대체 (에러를 밖으로 내지 않음)
type AnthropicGenerator struct {
	client   *httputil.Client
	model    string
	baseURL  string
	fallback ContentGenerator
	logger   *logger.Logger
}

// NewAnthropicGenerator creates a generator; the client must not be shared with adapters
func NewAnthropicGenerator(client *httputil.Client, apiKey, model string, fallback ContentGenerator, log *logger.Logger) *AnthropicGenerator {
	client.WithHeader("x-api-key", apiKey).WithHeader("anthropic-version", anthropicVersion)
	return &AnthropicGenerator{
		client:   client,
		model:    model,
		baseURL:  anthropicBaseURL,
		fallback: fallback,
		logger:   log.WithField("module", "anthropic"),
	}
}

// WithBaseURL overrides the API base URL (tests)
func (g *AnthropicGenerator) WithBaseURL(url string) *AnthropicGenerator {
	g.baseURL = url
	return g
}

// Name returns the generator name
func (g *AnthropicGenerator) Name() string { return "anthropic:" + g.model }

// Generate asks the model for the schema and validates the answer
func (g *AnthropicGenerator) Generate(ctx context.Context, b *bundle.Bundle, schema string) ([]byte, error) {
	out, err := g.generate(ctx, b, schema)
	if err == nil {
		return out, nil
	}
	if g.fallback == nil {
		return nil, err
	}

	g.logger.WithError(err).WithField("schema", schema).Warn("content generation failed, using fallback")
	return g.fallback.Generate(ctx, b, schema)
}

func (g *AnthropicGenerator) generate(ctx context.Context, b *bundle.Bundle, schema string) ([]byte, error) {
	prompt, ok := schemaPrompts[schema]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle: %w", err)
	}

	req := messagesRequest{
		Model:     g.model,
		MaxTokens: maxTokens,
		System:    prompt,
		Messages:  []message{{Role: "user", Content: "Bundle do dia:\n" + string(payload)}},
	}

	body, err := g.client.PostJSONBody(ctx, g.baseURL+"/v1/messages", req)
	if err != nil {
		return nil, fmt.Errorf("messages request failed: %w", err)
	}

	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode messages response: %w", err)
	}
	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	obj, err := extractObject(text.String())
	if err != nil {
		return nil, err
	}

	switch schema {
	case SchemaReportDaily:
		r, err := DecodeReport(obj, b)
		if err != nil {
			return nil, err
		}
		r.Generator = g.Name()
		return json.Marshal(r)
	default:
		s, err := DecodeScript(obj, b)
		if err != nil {
			return nil, err
		}
		return json.Marshal(s)
	}
}

// extractObject returns the outermost JSON object of a model answer
func extractObject(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model answer")
	}
	obj := []byte(text[start : end+1])
	if !json.Valid(obj) {
		return nil, fmt.Errorf("model answer is not valid JSON")
	}
	return obj, nil
}
