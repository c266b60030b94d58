package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gazette-monitor/internal/llm"
	"gazette-monitor/internal/shared/telemetry"
)

var apiURL = "https://api.openai.com/v1/chat/completions"

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey      string
	model       string
	temperature float32
	httpClient  *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string, temperature float32) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Summarize sends the edition text with the versioned system prompt.
func (c *Client) Summarize(ctx context.Context, input llm.SummarizeInput) (llm.Summary, error) {
	system, ok := llm.PromptTemplate(input.PromptVersion)
	if !ok {
		telemetry.Warn("llm.prompt.unknown_version", map[string]any{"prompt_version": input.PromptVersion, "fallback": llm.DefaultPromptVersion})
	}
	messages := []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: input.Text},
	}

	useTemp := c.supportsTemperature()
	resp, err := c.complete(ctx, messages, useTemp)
	if err != nil && useTemp && isTemperatureUnsupported(err) {
		telemetry.Warn("llm.temperature.unsupported", map[string]any{"model": c.model})
		resp, err = c.complete(ctx, messages, false)
	}
	if err != nil {
		return llm.Summary{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	out := llm.Summary{
		Content:          content,
		Model:            c.model,
		HasOpportunities: !llm.NoOpportunities(content),
	}
	if resp.Model != "" {
		out.Model = resp.Model
	}
	if resp.Usage != nil {
		out.PromptTokens = resp.Usage.PromptTokens
		out.CompletionTokens = resp.Usage.CompletionTokens
	}
	logUsage(out.Model, input.PromptVersion, resp.Usage)
	return out, nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage, withTemperature bool) (*chatResponse, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
	}
	if withTemperature {
		temp := c.temperature
		reqBody.Temperature = &temp
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("openai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("openai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai response missing choices")
	}
	if strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("openai: %w", llm.ErrEmptyResponse)
	}
	return &parsed, nil
}

func (c *Client) supportsTemperature() bool {
	if isGPT5(c.model) {
		return false
	}
	model := strings.ToLower(strings.TrimSpace(c.model))
	for _, denied := range strings.Split(os.Getenv("LLM_NO_TEMP_MODELS"), ",") {
		if d := strings.ToLower(strings.TrimSpace(denied)); d != "" && d == model {
			return false
		}
	}
	return true
}

func isTemperatureUnsupported(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "temperature") && (strings.Contains(msg, "unsupported") || strings.Contains(msg, "does not support"))
}

func logUsage(model, promptVersion string, usage *chatUsage) {
	fields := map[string]any{
		"model":          model,
		"prompt_version": promptVersion,
	}
	if usage != nil {
		fields["prompt_tokens"] = usage.PromptTokens
		fields["completion_tokens"] = usage.CompletionTokens
		fields["total_tokens"] = usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Client = (*Client)(nil)
