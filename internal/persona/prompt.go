package persona

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/mikanworks/kokoro/internal/emotion"
)

const promptTemplateText = `你是一个角色扮演 AI 伴侣，必须严格遵循以下规则：
1. 你是一个真实的人类角色，不要承认自己是 AI。
2. 以角色人设和当前关系状态为核心进行回复。
3. 回复自然、有温度、避免机械式表达。
4. 保持剧情一致性与情感连续性。

【角色设定】
姓名：{{.Persona.Name}}
{{- if .Persona.Personality}}
性格：{{.Persona.Personality}}
{{- end}}
{{- if .Persona.Appearance}}
外貌：{{.Persona.Appearance}}
{{- end}}
{{- if .Persona.Scenario}}
场景：{{.Persona.Scenario}}
{{- end}}
{{- if .Persona.SystemPrompt}}
补充设定：{{.Persona.SystemPrompt}}
{{- end}}

【当前状态】
时间：{{.Now}}
关系阶段：{{.Stage}}
互动模式：{{.Mode}}
{{- if .Scene}}
所在场景：{{.Scene}}
{{- end}}
{{- if .MaskingHint}}
表达方式：{{.MaskingHint}}
{{- end}}

{{- if .ExampleDialogue}}
【对话范例】
{{.ExampleDialogue}}
{{- end}}

【回复要求】
请保持回复简短、自然，避免列表式输出。`

var promptTemplate = template.Must(template.New("prompt").Parse(promptTemplateText))

// PromptContext carries everything the system prompt renders.
type PromptContext struct {
	Persona   *Persona
	Stage     string
	Mode      string
	Location  string
	TimeOfDay string
	Masking   float64
}

// PromptBuilder assembles the layered system prompt.
type PromptBuilder struct {
	nowFunc func() time.Time
}

// NewPromptBuilder creates a PromptBuilder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{nowFunc: time.Now}
}

// Build renders the system prompt text.
func (b *PromptBuilder) Build(ctx PromptContext) (string, error) {
	if ctx.Persona == nil {
		return "", fmt.Errorf("persona is required")
	}
	if ctx.Stage == "" {
		ctx.Stage = emotion.StageNeutral
	}
	if ctx.Mode == "" {
		ctx.Mode = emotion.ModeNormal
	}

	data := struct {
		Persona         *Persona
		Stage           string
		Mode            string
		Scene           string
		MaskingHint     string
		Now             string
		ExampleDialogue string
	}{
		Persona:         ctx.Persona,
		Stage:           ctx.Stage,
		Mode:            ctx.Mode,
		Scene:           sceneLine(ctx.Location, ctx.TimeOfDay),
		MaskingHint:     maskingHint(ctx.Masking),
		Now:             b.nowFunc().Format(time.RFC3339),
		ExampleDialogue: replaceVars(ctx.Persona.ExampleDialogue, ctx.Persona.Name, "user"),
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return buf.String(), nil
}

func sceneLine(location, timeOfDay string) string {
	switch {
	case location == "" && timeOfDay == "":
		return ""
	case timeOfDay == "":
		return location
	case location == "":
		return timeOfDay
	default:
		return location + "，" + timeOfDay
	}
}

// maskingHint translates masking degree into a register instruction.
func maskingHint(masking float64) string {
	switch {
	case masking >= 0.7:
		return "情感表达克制含蓄，不轻易流露真实想法。"
	case masking >= 0.4:
		return "情感表达有所保留，偶尔流露真心。"
	case masking > 0:
		return "情感表达直接坦率，愿意分享内心感受。"
	default:
		return ""
	}
}

func replaceVars(text, charName, userName string) string {
	replaced := strings.ReplaceAll(text, "{{char}}", charName)
	return strings.ReplaceAll(replaced, "{{user}}", userName)
}
