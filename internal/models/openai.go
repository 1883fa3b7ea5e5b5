package models

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mikanworks/kokoro/internal/candidate"
	"github.com/mikanworks/kokoro/internal/types"
)

// FamilyOpenAI groups every OpenAI-compatible adapter for override lookup.
const FamilyOpenAI = "openai"

// openaiSource 封装 OpenAI 兼容的聊天客户端，实现候选源契约。
type openaiSource struct {
	client    *openai.Client
	name      string
	modelName string
}

// NewOpenAISource creates a source backed by the OpenAI API.
func NewOpenAISource(apiKey, modelName string) (candidate.Source, error) {
	return newOpenAICompatible("openai:"+modelName, modelName, apiKey, "")
}

// NewGrokSource creates a source backed by x.ai's OpenAI-compatible API.
// The modelName targets a Grok model (e.g. "grok-4-fast").
func NewGrokSource(apiKey, modelName string) (candidate.Source, error) {
	return newOpenAICompatible("grok:"+modelName, modelName, apiKey, "https://api.x.ai/v1")
}

// NewOpenRouterSource creates a source routed through OpenRouter.
func NewOpenRouterSource(apiKey, modelName string) (candidate.Source, error) {
	return newOpenAICompatible("openrouter:"+modelName, modelName, apiKey, "https://openrouter.ai/api/v1")
}

func newOpenAICompatible(name, modelName, apiKey, baseURL string) (candidate.Source, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &openaiSource{
		client:    &client,
		name:      name,
		modelName: modelName,
	}, nil
}

func (s *openaiSource) Name() string {
	return s.name
}

func (s *openaiSource) Family() string {
	return FamilyOpenAI
}

// Call issues one chat completion and returns the reply text with token
// usage. Errors propagate so the collector can build the error candidate.
func (s *openaiSource) Call(ctx context.Context, messages []types.Message, params map[string]any) (string, *candidate.Usage, error) {
	chatParams := buildChatParams(s.modelName, messages, params)

	resp, err := s.client.Chat.Completions.New(ctx, chatParams)
	if err != nil {
		slog.Error("failed to call chat API", "source", s.name, "error", err.Error())
		return "", nil, fmt.Errorf("failed to call %s: %w", s.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("%s returned no choices", s.name)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", nil, fmt.Errorf("%s returned empty content", s.name)
	}

	usage := &candidate.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return text, usage, nil
}
