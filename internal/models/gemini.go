package models

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/mikanworks/kokoro/internal/candidate"
	"github.com/mikanworks/kokoro/internal/types"
)

// FamilyGemini groups Gemini-backed adapters for override lookup.
const FamilyGemini = "gemini"

// llmSource adapts an ADK model.LLM into the candidate source contract by
// draining its response sequence into one reply.
type llmSource struct {
	llm    model.LLM
	name   string
	family string
}

// NewGeminiSource creates a source backed by the Gemini API.
func NewGeminiSource(ctx context.Context, apiKey, modelName string) (candidate.Source, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	llm, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini model: %w", err)
	}

	return &llmSource{llm: llm, name: "gemini:" + modelName, family: FamilyGemini}, nil
}

// NewLLMSource wraps any ADK model as a candidate source.
func NewLLMSource(name, family string, llm model.LLM) (candidate.Source, error) {
	if llm == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	if name == "" {
		name = llm.Name()
	}
	return &llmSource{llm: llm, name: name, family: family}, nil
}

func (s *llmSource) Name() string {
	return s.name
}

func (s *llmSource) Family() string {
	return s.family
}

// Call converts the shared messages into an LLM request, applies override
// params, and collects the final response text.
func (s *llmSource) Call(ctx context.Context, messages []types.Message, params map[string]any) (string, *candidate.Usage, error) {
	if s == nil || s.llm == nil {
		return "", nil, fmt.Errorf("source not configured")
	}

	req := &model.LLMRequest{
		Contents: convertContents(messages, stringParam(params, paramSystemSuffix)),
	}
	applyGenerateConfig(req, params)

	var resp *model.LLMResponse
	var callErr error
	seq := s.llm.GenerateContent(ctx, req, false)
	seq(func(r *model.LLMResponse, e error) bool {
		resp = r
		callErr = e
		return false
	})
	if callErr != nil {
		return "", nil, fmt.Errorf("failed to call %s: %w", s.name, callErr)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", nil, fmt.Errorf("%s returned empty content", s.name)
	}
	// Token accounting is not exposed through the model abstraction.
	return text, nil, nil
}

func convertContents(messages []types.Message, systemSuffix string) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		role := msg.Role
		content := msg.Content
		switch role {
		case "assistant":
			role = "model"
		case "system":
			if systemSuffix != "" {
				content = content + "\n" + systemSuffix
				systemSuffix = ""
			}
		case "user", "model":
		default:
			role = "user"
		}
		contents = append(contents, genai.NewContentFromText(content, genai.Role(role)))
	}
	if systemSuffix != "" {
		contents = append([]*genai.Content{genai.NewContentFromText(systemSuffix, "system")}, contents...)
	}
	return contents
}

func applyGenerateConfig(req *model.LLMRequest, params map[string]any) {
	if len(params) == 0 {
		return
	}
	if req.Config == nil {
		req.Config = &genai.GenerateContentConfig{}
	}
	if v, ok := floatParam(params, paramTemperature); ok {
		temp := float32(v)
		req.Config.Temperature = &temp
	}
	if v, ok := floatParam(params, paramTopP); ok {
		topP := float32(v)
		req.Config.TopP = &topP
	}
	if v, ok := floatParam(params, paramMaxTokens); ok && v > 0 {
		req.Config.MaxOutputTokens = int32(v)
	}
}

func extractText(resp *model.LLMResponse) string {
	if resp == nil || resp.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
