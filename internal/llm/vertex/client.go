package vertex

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"gazette-monitor/internal/llm"
	"gazette-monitor/internal/shared/telemetry"
)

// Client implements llm.Client on Vertex AI Gemini models.
type Client struct {
	base        *genai.Client
	model       string
	temperature float32
}

// NewClient connects to Vertex AI in the given project and region.
func NewClient(ctx context.Context, projectID, region, model string, temperature float32, opts ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("VERTEX_PROJECT_ID is required for vertex")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for vertex")
	}
	base, err := genai.NewClient(ctx, projectID, region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{base: base, model: model, temperature: temperature}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.base.Close()
}

// Summarize sends the edition text with the versioned prompt as system instruction.
func (c *Client) Summarize(ctx context.Context, input llm.SummarizeInput) (llm.Summary, error) {
	system, _ := llm.PromptTemplate(input.PromptVersion)
	model := c.base.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](c.temperature),
	}

	resp, err := model.GenerateContent(ctx, genai.Text(input.Text))
	if err != nil {
		return llm.Summary{}, fmt.Errorf("vertex generate: %w", err)
	}
	content := responseText(resp)
	if content == "" {
		return llm.Summary{}, fmt.Errorf("vertex: %w", llm.ErrEmptyResponse)
	}

	out := llm.Summary{
		Content:          content,
		Model:            c.model,
		HasOpportunities: !llm.NoOpportunities(content),
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	telemetry.Info("llm.response", map[string]any{
		"model":             out.Model,
		"prompt_version":    input.PromptVersion,
		"prompt_tokens":     out.PromptTokens,
		"completion_tokens": out.CompletionTokens,
	})
	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

var _ llm.Client = (*Client)(nil)
