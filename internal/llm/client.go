package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// Response is the provider-neutral result of one generation request.
// StopReason uses the canonical values in the types package; TokenUsage is
// provider-reported and carried into artifact provenance.
type Response struct {
	Content    string
	StopReason string
	ModelID    string
	TokenUsage types.TokenUsage
}

// Client is an abstraction over LLM providers
type Client interface {
	// Generate produces dialogue text for a prompt using the specified model tier
	Generate(ctx context.Context, prompt string, tier ModelTier) (*Response, error)
	// GetModel returns the underlying provider model for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return NewGeminiClient(ctx, config, apiKey)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Generate produces dialogue JSON for a prompt using the specified model tier.
// The raw text is returned with markdown fences stripped; stop reason and
// token usage come straight from the provider so the validator can inspect
// how generation ended.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, tier ModelTier) (*Response, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0.8) // Dialogue variety matters more than determinism here
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, stopReason, err := extractFromResponse(resp)
	if err != nil {
		return nil, err
	}

	out := &Response{
		Content:    CleanJSONBlock(text),
		StopReason: stopReason,
		ModelID:    modelName,
	}
	if resp.UsageMetadata != nil {
		out.TokenUsage = types.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractFromResponse pulls text and the finish reason from a Gemini response
func extractFromResponse(resp *genai.GenerateContentResponse) (string, string, error) {
	if len(resp.Candidates) == 0 {
		return "", "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	stopReason := canonicalStopReason(candidate.FinishReason)

	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", stopReason, fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", stopReason, fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), stopReason, nil
}

// canonicalStopReason maps provider finish reasons onto the stop-reason
// vocabulary the rest of the system understands
func canonicalStopReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop:
		return types.StopReasonStop
	case genai.FinishReasonMaxTokens:
		return types.StopReasonMaxTokens
	case genai.FinishReasonSafety:
		return types.StopReasonSafety
	case genai.FinishReasonRecitation:
		return types.StopReasonRecitation
	default:
		return types.StopReasonOther
	}
}
