package composer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mikanworks/kokoro/internal/candidate"
	"github.com/mikanworks/kokoro/internal/judge"
)

func okCand(name, text string) candidate.Candidate {
	return candidate.Candidate{Source: name, Status: candidate.StatusOK, Text: text}
}

func okSelection(source, text string) judge.SelectionResult {
	return judge.SelectionResult{Status: "ok", ChosenSource: source, ChosenText: text}
}

func errSelection() judge.SelectionResult {
	return judge.SelectionResult{Status: "error", DecisionReason: "no usable candidate"}
}

func TestComposeJudgeChoice(t *testing.T) {
	set := candidate.Set{"A": okCand("A", "hello")}
	result := New().Compose(context.Background(), okSelection("A", "hello"), set, "", nil)

	if result.Status != "ok" || result.DecisionMode != ModeJudge {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.Text != "hello" || result.SourceModel != "A" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if !strings.Contains(result.Summary, "refine: skipped") {
		t.Fatalf("absent refiner must be marked skipped: %s", result.Summary)
	}
}

func TestComposeDevForceWins(t *testing.T) {
	set := candidate.Set{
		"A":   okCand("A", "judge pick"),
		"dev": okCand("dev", "forced"),
	}
	prefs := &ScenePrefs{PreferShort: true, MaxChars: 3, WeightShort: 5}
	result := New().Compose(context.Background(), okSelection("A", "judge pick"), set, "dev", prefs)

	if result.DecisionMode != ModeDevForce || result.SourceModel != "dev" || result.Text != "forced" {
		t.Fatalf("dev force must win unconditionally: %#v", result)
	}
}

func TestComposeDevForceUnusableFallsThrough(t *testing.T) {
	set := candidate.Set{
		"A":   okCand("A", "judge pick"),
		"dev": {Source: "dev", Status: candidate.StatusError, ErrMessage: "down"},
	}
	result := New().Compose(context.Background(), okSelection("A", "judge pick"), set, "dev", nil)
	if result.DecisionMode != ModeJudge || result.SourceModel != "A" {
		t.Fatalf("unusable dev force must fall through: %#v", result)
	}
}

func TestComposeFallbackScan(t *testing.T) {
	set := candidate.Set{
		"A": {Source: "A", Status: candidate.StatusError},
		"B": okCand("B", "backup"),
		"C": okCand("C", "preferred"),
	}
	c := New(WithPreferenceOrder([]string{"A", "C"}))
	result := c.Compose(context.Background(), errSelection(), set, "", nil)

	if result.DecisionMode != ModeFallback || result.SourceModel != "C" {
		t.Fatalf("fallback should honor preference order: %#v", result)
	}
}

func TestComposeFallbackScanRemainingOK(t *testing.T) {
	set := candidate.Set{
		"zeta": okCand("zeta", "only one left"),
		"A":    {Source: "A", Status: candidate.StatusError},
	}
	c := New(WithPreferenceOrder([]string{"A"}))
	result := c.Compose(context.Background(), errSelection(), set, "", nil)

	if result.DecisionMode != ModeFallback || result.SourceModel != "zeta" {
		t.Fatalf("fallback should scan remaining ok candidates: %#v", result)
	}
}

func TestComposeNoText(t *testing.T) {
	set := candidate.Set{
		"A": {Source: "A", Status: candidate.StatusError, ErrMessage: "down"},
	}
	result := New().Compose(context.Background(), errSelection(), set, "", nil)

	if result.Status != "error" || result.DecisionMode != ModeNoText || result.Text != "" {
		t.Fatalf("unexpected no_text result: %#v", result)
	}
	if !strings.Contains(result.Summary, "judge=error") {
		t.Fatalf("summary must document judge status: %s", result.Summary)
	}
}

func TestComposeScenePrefsOverride(t *testing.T) {
	set := candidate.Set{
		"long":  okCand("long", strings.Repeat("x", 400)),
		"short": okCand("short", strings.Repeat("x", 40)),
	}
	prefs := &ScenePrefs{PreferShort: true, MaxChars: 120, WeightShort: 2.0}
	result := New().Compose(context.Background(), okSelection("long", set["long"].Text), set, "", prefs)

	if result.DecisionMode != ModeOverride || result.SourceModel != "short" {
		t.Fatalf("expected composer_override to short, got %#v", result)
	}
	if !strings.Contains(result.Summary, "base=long") || !strings.Contains(result.Summary, "chosen=short") {
		t.Fatalf("summary must document base and chosen: %s", result.Summary)
	}
}

func TestComposeScenePrefsTieKeepsBase(t *testing.T) {
	// Identical lengths: the incumbent's +1.0 bonus keeps it in place.
	set := candidate.Set{
		"base":  okCand("base", strings.Repeat("x", 40)),
		"other": okCand("other", strings.Repeat("x", 40)),
	}
	prefs := &ScenePrefs{PreferShort: true, MaxChars: 120, WeightShort: 2.0}
	result := New().Compose(context.Background(), okSelection("base", set["base"].Text), set, "", prefs)

	if result.DecisionMode != ModeJudge || result.SourceModel != "base" {
		t.Fatalf("ties must favor the base: %#v", result)
	}
}

func TestComposeIdempotent(t *testing.T) {
	set := candidate.Set{
		"A": okCand("A", strings.Repeat("x", 200)),
		"B": okCand("B", strings.Repeat("y", 50)),
	}
	prefs := &ScenePrefs{PreferShort: true, MaxChars: 100, WeightShort: 1.5}
	sel := okSelection("A", set["A"].Text)

	first := New().Compose(context.Background(), sel, set, "", prefs)
	for i := 0; i < 5; i++ {
		again := New().Compose(context.Background(), sel, set, "", prefs)
		if again != first {
			t.Fatalf("compose not idempotent: %#v vs %#v", again, first)
		}
	}
}

type upperRefiner struct{}

func (upperRefiner) Refine(_ context.Context, text string) (string, error) {
	return strings.ToUpper(text), nil
}

type failingRefiner struct{}

func (failingRefiner) Refine(context.Context, string) (string, error) {
	return "", fmt.Errorf("refine backend down")
}

func TestComposeRefinerApplied(t *testing.T) {
	set := candidate.Set{"A": okCand("A", "soft")}
	c := New(WithRefiner(upperRefiner{}))
	result := c.Compose(context.Background(), okSelection("A", "soft"), set, "", nil)

	if result.Text != "SOFT" {
		t.Fatalf("refiner should rewrite text: %#v", result)
	}
	if !strings.Contains(result.Summary, "refine: applied") {
		t.Fatalf("summary must record the refine pass: %s", result.Summary)
	}
}

func TestComposeRefinerFailureKeepsText(t *testing.T) {
	set := candidate.Set{"A": okCand("A", "soft")}
	c := New(WithRefiner(failingRefiner{}))
	result := c.Compose(context.Background(), okSelection("A", "soft"), set, "", nil)

	if result.Text != "soft" || result.Status != "ok" {
		t.Fatalf("refine failure must keep original text: %#v", result)
	}
	if !strings.Contains(result.Summary, "refine: failed") {
		t.Fatalf("summary must record the failure: %s", result.Summary)
	}
}
