package briefgen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/ignite/creative-optimizer/internal/config"
	"github.com/ignite/creative-optimizer/internal/pkg/logger"
	"github.com/ignite/creative-optimizer/internal/storage"
)

// Generator produces brief text from a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// InvokeAPI is the subset of the Bedrock runtime client used here.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockMessage represents a message in the Claude messages API
type BedrockMessage struct {
	Role    string                `json:"role"`
	Content []BedrockContentBlock `json:"content"`
}

// BedrockContentBlock is one content block of a message
type BedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// BedrockRequest is the request body for Claude on Bedrock
type BedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []BedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

// BedrockResponse is the response body from Claude on Bedrock
type BedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

const systemPrompt = "You write concise, data-grounded creative briefs for paid social advertising teams."

// BedrockGenerator calls a Claude model through Bedrock InvokeModel.
type BedrockGenerator struct {
	client    InvokeAPI
	modelID   string
	maxTokens int
}

// NewBedrockGenerator creates a generator from configuration.
func NewBedrockGenerator(ctx context.Context, cfg config.BedrockConfig, storageCfg config.StorageConfig) (*BedrockGenerator, error) {
	awsCfg, err := storage.LoadAWSConfig(ctx, storageCfg, cfg.Region)
	if err != nil {
		return nil, err
	}
	logger.Info("bedrock generator initialized", "model", cfg.ModelID, "region", cfg.Region)
	return NewBedrockGeneratorWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg.ModelID, cfg.MaxTokens), nil
}

// NewBedrockGeneratorWithClient wraps an existing runtime client.
func NewBedrockGeneratorWithClient(client InvokeAPI, modelID string, maxTokens int) *BedrockGenerator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &BedrockGenerator{client: client, modelID: modelID, maxTokens: maxTokens}
}

// Model implements Generator.
func (b *BedrockGenerator) Model() string { return b.modelID }

// Generate implements Generator.
func (b *BedrockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	request := BedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        b.maxTokens,
		System:           systemPrompt,
		Messages: []BedrockMessage{{
			Role:    "user",
			Content: []BedrockContentBlock{{Type: "text", Text: prompt}},
		}},
		Temperature: 0.4,
	}
	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke: %w", err)
	}

	var response BedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	var text string
	for _, content := range response.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("bedrock returned no text (stop_reason=%s)", response.StopReason)
	}

	logger.Info("brief generated", "model", b.modelID,
		"input_tokens", response.Usage.InputTokens, "output_tokens", response.Usage.OutputTokens)
	return text, nil
}
