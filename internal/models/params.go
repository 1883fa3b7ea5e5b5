// Package models 提供各家模型提供方的候选源适配器。
package models

import (
	"strings"

	"github.com/openai/openai-go/v3"

	"github.com/mikanworks/kokoro/internal/types"
)

// Override param keys shared by every adapter.
const (
	paramTemperature  = "temperature"
	paramTopP         = "top_p"
	paramMaxTokens    = "max_tokens"
	paramSystemSuffix = "system_suffix"
)

// buildChatParams converts the shared message list plus per-source override
// params into OpenAI chat parameters.
func buildChatParams(modelName string, messages []types.Message, params map[string]any) openai.ChatCompletionNewParams {
	out := openai.ChatCompletionNewParams{
		Model:    modelName,
		Messages: convertMessages(messages, stringParam(params, paramSystemSuffix)),
	}

	if v, ok := floatParam(params, paramTemperature); ok {
		out.Temperature = openai.Float(v)
	}
	if v, ok := floatParam(params, paramTopP); ok {
		out.TopP = openai.Float(v)
	}
	if v, ok := floatParam(params, paramMaxTokens); ok && v > 0 {
		out.MaxTokens = openai.Int(int64(v))
	}

	return out
}

func convertMessages(messages []types.Message, systemSuffix string) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		content := msg.Content
		switch msg.Role {
		case "system":
			if systemSuffix != "" {
				content = content + "\n" + systemSuffix
				systemSuffix = ""
			}
			out = append(out, openai.SystemMessage(content))
		case "assistant", "model":
			out = append(out, openai.AssistantMessage(content))
		default:
			// 未知角色按用户消息处理。
			out = append(out, openai.UserMessage(content))
		}
	}
	if systemSuffix != "" {
		// 没有系统消息时，后缀自己成为一条系统消息。
		out = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemSuffix)}, out...)
	}
	return out
}

func floatParam(params map[string]any, key string) (float64, bool) {
	raw, ok := params[key]
	if !ok {
		return 0, false
	}
	switch cast := raw.(type) {
	case float64:
		return cast, true
	case float32:
		return float64(cast), true
	case int:
		return float64(cast), true
	case int64:
		return float64(cast), true
	default:
		return 0, false
	}
}

func stringParam(params map[string]any, key string) string {
	if raw, ok := params[key]; ok {
		if s, ok := raw.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
