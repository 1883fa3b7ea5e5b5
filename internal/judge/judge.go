// Package judge picks one candidate per turn using priority overrides,
// target-length closeness scoring, and deterministic tie-breaks.
package judge

import (
	"fmt"
	"math/rand"
	"time"
	"unicode/utf8"

	"github.com/mikanworks/kokoro/internal/candidate"
)

// Length modes accepted by Select.
const (
	LengthAuto   = "auto"
	LengthShort  = "short"
	LengthNormal = "normal"
	LengthLong   = "long"
	LengthStory  = "story"
)

// Selection strategies recorded in DecisionReason.
const (
	strategyPriorityFirst = "priority_first"
	strategyScoreMax      = "score_max"
	strategyLengthMax     = "length_max"
)

const maxUserLenForBlend = 300

// ScoredCandidate is one candidate's score trace.
type ScoredCandidate struct {
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	Length  int     `json:"length"`
	Status  string  `json:"status"`
	Details string  `json:"details,omitempty"`
}

// SelectionResult is the judge's immutable verdict. ChosenText is empty iff
// Status is "error".
type SelectionResult struct {
	Status         string            `json:"status"`
	ChosenSource   string            `json:"chosen_source"`
	ChosenText     string            `json:"chosen_text"`
	DecisionReason string            `json:"decision_reason"`
	Scored         []ScoredCandidate `json:"scored_candidates"`
}

// OK reports whether a candidate was chosen.
func (r SelectionResult) OK() bool {
	return r.Status == "ok"
}

// Judge selects among candidates. The generator is injectable so target
// jitter is reproducible under a fixed seed.
type Judge struct {
	rng *rand.Rand
}

// New returns a Judge. A nil generator falls back to a time-seeded one.
func New(rng *rand.Rand) *Judge {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Judge{rng: rng}
}

// Select scores the set against a target length and picks one candidate.
// A non-empty priorityOrder short-circuits scoring entirely: the earliest
// listed usable source wins.
func (j *Judge) Select(set candidate.Set, priorityOrder []string, lengthMode, userText string) SelectionResult {
	userLen := utf8.RuneCountInString(userText)
	target := j.targetLength(lengthMode, userLen)

	scored := make([]ScoredCandidate, 0, len(set))
	usable := make(map[string]candidate.Candidate, len(set))
	for _, name := range set.SortedNames() {
		cand := set[name]
		entry := ScoredCandidate{
			Source:  name,
			Status:  cand.Status,
			Length:  utf8.RuneCountInString(cand.Text),
			Details: cand.ErrMessage,
		}
		if cand.Usable() {
			entry.Score = closeness(entry.Length, target)
			usable[name] = cand
		} else {
			entry.Score = -1
		}
		scored = append(scored, entry)
	}

	if len(usable) == 0 {
		return SelectionResult{
			Status:         "error",
			DecisionReason: fmt.Sprintf("no usable candidate (target=%d mode=%s user_len=%d)", target, lengthMode, userLen),
			Scored:         scored,
		}
	}

	if len(priorityOrder) > 0 {
		for _, name := range priorityOrder {
			cand, ok := usable[name]
			if !ok {
				continue
			}
			return SelectionResult{
				Status:       "ok",
				ChosenSource: name,
				ChosenText:   cand.Text,
				DecisionReason: reason(strategyPriorityFirst, target, lengthMode, userLen,
					name, utf8.RuneCountInString(cand.Text)),
				Scored: scored,
			}
		}
		// Nothing on the priority list was usable; fall through to scoring.
	}

	strategy := strategyScoreMax
	if lengthMode == LengthStory {
		strategy = strategyLengthMax
	}

	var chosen ScoredCandidate
	found := false
	for _, entry := range scored {
		if _, ok := usable[entry.Source]; !ok {
			continue
		}
		if !found {
			chosen = entry
			found = true
			continue
		}
		// Strict comparison keeps the first-encountered maximum on ties.
		if strategy == strategyLengthMax {
			if entry.Length > chosen.Length {
				chosen = entry
			}
		} else if entry.Score > chosen.Score {
			chosen = entry
		}
	}

	return SelectionResult{
		Status:         "ok",
		ChosenSource:   chosen.Source,
		ChosenText:     usable[chosen.Source].Text,
		DecisionReason: reason(strategy, target, lengthMode, userLen, chosen.Source, chosen.Length),
		Scored:         scored,
	}
}

// targetLength computes the desired reply length in runes for the mode.
// Fixed bases carry symmetric jitter; normal blends 260 down to 120 as the
// user text grows, and auto mixes in rare very-short and long turns.
func (j *Judge) targetLength(lengthMode string, userLen int) int {
	switch lengthMode {
	case LengthShort:
		return jittered(j.rng, 90, 30)
	case LengthLong:
		return jittered(j.rng, 280, 60)
	case LengthStory:
		return jittered(j.rng, 500, 100)
	case LengthAuto:
		roll := j.rng.Float64()
		switch {
		case roll < 0.05:
			return jittered(j.rng, 45, 15)
		case roll < 0.10:
			return jittered(j.rng, 280, 60)
		}
		return j.blended(userLen)
	default: // normal
		return j.blended(userLen)
	}
}

// blended maps user text length (capped at 300) linearly from 260 down to
// 120 and applies jitter scaled to the blended base.
func (j *Judge) blended(userLen int) int {
	if userLen > maxUserLenForBlend {
		userLen = maxUserLenForBlend
	}
	base := 260 - float64(140*userLen)/maxUserLenForBlend
	return jittered(j.rng, int(base), int(base/5))
}

func jittered(rng *rand.Rand, base, jitter int) int {
	if jitter <= 0 {
		return base
	}
	target := base + rng.Intn(2*jitter+1) - jitter
	if target < 1 {
		target = 1
	}
	return target
}

// closeness is 1 − |length−target|/target clamped to [0,1]; it measures
// length fit, not reply quality.
func closeness(length, target int) float64 {
	if target <= 0 {
		return 0
	}
	score := 1 - absFloat(float64(length-target))/float64(target)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func reason(strategy string, target int, lengthMode string, userLen int, source string, length int) string {
	return fmt.Sprintf("strategy=%s target=%d mode=%s user_len=%d chosen=%s chosen_len=%d",
		strategy, target, lengthMode, userLen, source, length)
}
