// Package composer finalizes the reply text, optionally overriding the
// judge's pick with dev forcing or scene preferences.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/mikanworks/kokoro/internal/candidate"
	"github.com/mikanworks/kokoro/internal/judge"
)

// Decision modes recorded on the composed result.
const (
	ModeDevForce   = "dev_force"
	ModeJudge      = "judge_choice"
	ModeFallback   = "fallback_from_models"
	ModeOverride   = "composer_override"
	ModeNoText     = "no_text"
	ModeException  = "exception"
)

// ScenePrefs are per-turn preferences able to override the pick.
type ScenePrefs struct {
	PreferShort bool    `toml:"prefer_short"`
	MaxChars    int     `toml:"max_chars"`
	WeightShort float64 `toml:"weight_short"`
}

// ComposedResult is the final reply decision.
type ComposedResult struct {
	Status       string `json:"status"`
	Text         string `json:"text"`
	SourceModel  string `json:"source_model"`
	DecisionMode string `json:"decision_mode"`
	Summary      string `json:"summary"`
}

// Refiner is an optional extra rewriting pass over the chosen text.
type Refiner interface {
	Refine(ctx context.Context, text string) (string, error)
}

// Composer turns a selection plus the raw candidate set into the final
// reply. Identical inputs always produce identical results.
type Composer struct {
	preferenceOrder []string
	refiner         Refiner
}

// Option configures a Composer.
type Option func(*Composer)

// WithPreferenceOrder sets the fixed fallback scan order used when the
// judge failed.
func WithPreferenceOrder(order []string) Option {
	return func(c *Composer) { c.preferenceOrder = order }
}

// WithRefiner installs the rewriting pass.
func WithRefiner(r Refiner) Option {
	return func(c *Composer) { c.refiner = r }
}

// New returns a Composer.
func New(opts ...Option) *Composer {
	c := &Composer{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose resolves the final text. Precedence: devForce (unconditional),
// then the judge's choice, then a fallback scan over the candidate set.
// Scene preferences may re-pick among ok candidates unless the choice was
// dev-forced.
func (c *Composer) Compose(ctx context.Context, sel judge.SelectionResult, set candidate.Set, devForce string, prefs *ScenePrefs) ComposedResult {
	base := ""
	mode := ""

	switch {
	case devForce != "" && set[devForce].Usable():
		base = devForce
		mode = ModeDevForce
	case sel.OK():
		base = sel.ChosenSource
		mode = ModeJudge
	default:
		base = c.fallbackScan(set)
		mode = ModeFallback
	}

	if base == "" {
		return ComposedResult{
			Status:       "error",
			DecisionMode: ModeNoText,
			Summary:      fmt.Sprintf("base=none judge=%s refine: skipped", sel.Status),
		}
	}

	chosen := base
	if prefs != nil && mode != ModeDevForce {
		if winner := rescore(set, base, *prefs); winner != base {
			chosen = winner
			mode = ModeOverride
		}
	}

	text := set[chosen].Text
	refineNote := "refine: skipped"
	if c.refiner != nil {
		refined, err := c.refiner.Refine(ctx, text)
		if err != nil {
			slog.Warn("refine pass failed, keeping original text", "error", err.Error())
			refineNote = "refine: failed"
		} else if refined != "" {
			text = refined
			refineNote = "refine: applied"
		} else {
			refineNote = "refine: noop"
		}
	}

	return ComposedResult{
		Status:       "ok",
		Text:         text,
		SourceModel:  chosen,
		DecisionMode: mode,
		Summary:      fmt.Sprintf("base=%s chosen=%s judge=%s %s", base, chosen, sel.Status, refineNote),
	}
}

// fallbackScan walks the fixed preference order, then any remaining ok
// candidate in sorted order. Returns "" when nothing is usable.
func (c *Composer) fallbackScan(set candidate.Set) string {
	seen := make(map[string]bool, len(c.preferenceOrder))
	for _, name := range c.preferenceOrder {
		seen[name] = true
		if set[name].Usable() {
			return name
		}
	}
	for _, name := range set.SortedNames() {
		if seen[name] {
			continue
		}
		if set[name].Usable() {
			return name
		}
	}
	return ""
}

// rescore applies scene preferences over all usable candidates. The
// incumbent base starts at +1.0 so only a clear preference displaces it;
// ties keep the base.
func rescore(set candidate.Set, base string, prefs ScenePrefs) string {
	maxChars := prefs.MaxChars
	if maxChars <= 0 {
		maxChars = 120
	}

	winner := base
	best := scenePrefScore(set[base], true, prefs, maxChars)
	for _, name := range set.SortedNames() {
		if name == base || !set[name].Usable() {
			continue
		}
		if score := scenePrefScore(set[name], false, prefs, maxChars); score > best {
			best = score
			winner = name
		}
	}
	return winner
}

func scenePrefScore(cand candidate.Candidate, incumbent bool, prefs ScenePrefs, maxChars int) float64 {
	score := 0.0
	if incumbent {
		score += 1.0
	}
	if prefs.PreferShort {
		length := float64(utf8.RuneCountInString(cand.Text))
		limit := float64(maxChars)
		score += prefs.WeightShort * (1 - minFloat(1, length/limit))
		if length > limit {
			over := (length - limit) / limit
			score -= prefs.WeightShort * 0.5 * minFloat(2, over)
		}
	}
	return score
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
