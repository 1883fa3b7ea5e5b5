package persona

import (
	"strings"
	"testing"
	"time"
)

func TestPromptBuild(t *testing.T) {
	b := NewPromptBuilder()
	b.nowFunc = func() time.Time { return time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC) }

	prompt, err := b.Build(PromptContext{
		Persona:   Default(),
		Stage:     "Close",
		Mode:      "normal",
		Location:  "park",
		TimeOfDay: "evening",
		Masking:   0.8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"心音", "Close", "normal", "park，evening", "克制含蓄", "2026-03-01"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "{{char}}") || strings.Contains(prompt, "{{user}}") {
		t.Fatalf("dialogue vars must be substituted:\n%s", prompt)
	}
}

func TestPromptBuildDefaults(t *testing.T) {
	prompt, err := NewPromptBuilder().Build(PromptContext{Persona: &Persona{Name: "A"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "Neutral") || !strings.Contains(prompt, "normal") {
		t.Fatalf("stage and mode must default:\n%s", prompt)
	}
	if strings.Contains(prompt, "所在场景") || strings.Contains(prompt, "表达方式") {
		t.Fatalf("empty scene and masking lines must be omitted:\n%s", prompt)
	}

	if _, err := NewPromptBuilder().Build(PromptContext{}); err == nil {
		t.Fatalf("nil persona must be rejected")
	}
}
