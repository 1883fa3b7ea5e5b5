// Package candidate gathers proposed replies from independently failing
// model sources and normalizes them into one auditable set per turn.
package candidate

import (
	"context"
	"sort"

	"github.com/mikanworks/kokoro/internal/types"
)

// Candidate statuses.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// ReservedNone is the diagnostic entry inserted when no source is enabled,
// keeping the set non-empty.
const ReservedNone = "__none__"

const disabledReason = "disabled_by_config"

// Usage is optional token accounting reported by a source.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Candidate is one source's proposed reply for a turn. A failing source
// yields a complete error candidate; nothing escapes the collector.
type Candidate struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Text       string `json:"text"`
	Usage      *Usage `json:"usage,omitempty"`
	ErrMessage string `json:"error_message,omitempty"`
}

// Usable reports whether the candidate can be chosen: ok status and
// non-empty text.
func (c Candidate) Usable() bool {
	return c.Status == StatusOK && c.Text != ""
}

// Set is one turn's worth of candidates, keyed by source name. Never empty.
type Set map[string]Candidate

// SortedNames returns the source names in lexicographic order, for
// deterministic iteration.
func (s Set) SortedNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source is the pluggable backend contract. Call must return an error on
// failure, never a silent empty string. Family names a provider group used
// as the override lookup fallback key.
type Source interface {
	Name() string
	Family() string
	Call(ctx context.Context, messages []types.Message, params map[string]any) (string, *Usage, error)
}
