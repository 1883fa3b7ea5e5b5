package emotion

import (
	"strings"
	"unicode/utf8"
)

var (
	strongPositiveKeywords = []string{
		"爱你",
		"好爱",
		"想你",
		"亲亲",
		"拥抱",
		"love you",
		"adore you",
		"miss you",
	}
	positiveKeywords = []string{
		"喜欢",
		"开心",
		"谢谢",
		"感激",
		"温柔",
		"可爱",
		"贴心",
		"thank you",
		"thanks",
		"sweet",
		"happy",
	}
	flirtyKeywords = []string{
		"心跳",
		"脸红",
		"害羞",
		"撒娇",
		"blush",
		"flirt",
		"kiss",
	}
	negativeKeywords = []string{
		"失望",
		"难过",
		"冷淡",
		"不喜欢",
		"讨厌",
		"烦",
		"annoy",
		"upset",
		"sad",
	}
	strongNegativeKeywords = []string{
		"恨你",
		"讨厌你",
		"滚",
		"闭嘴",
		"恶心",
		"hate you",
		"shut up",
	}
	argueKeywords = []string{
		"为什么",
		"不对",
		"证明",
		"反驳",
		"wrong",
		"prove",
		"argue",
		"actually",
	}
)

// Analyzer derives a short-term signal from plain text using keyword
// heuristics. No model call is involved; replies stay analyzable offline.
type Analyzer struct{}

// NewAnalyzer returns an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze maps text to a short-term signal. Blank text yields the zero
// signal, not nil.
func (a *Analyzer) Analyze(text string) Signal {
	var sig Signal
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return sig
	}

	if containsAny(lowered, strongPositiveKeywords) {
		sig.Affection += 0.30
		sig.Excitement += 0.20
	}
	if containsAny(lowered, positiveKeywords) {
		sig.Affection += 0.15
		sig.Excitement += 0.10
	}
	if containsAny(lowered, flirtyKeywords) {
		sig.Arousal += 0.25
		sig.Excitement += 0.15
	}
	if containsAny(lowered, negativeKeywords) {
		sig.Sadness += 0.20
		sig.Tension += 0.10
	}
	if containsAny(lowered, strongNegativeKeywords) {
		sig.Anger += 0.30
		sig.Tension += 0.20
	}
	if containsAny(lowered, argueKeywords) {
		sig.Tension += 0.15
		sig.Excitement += 0.10
	}
	return sig
}

// Importance scores how much a turn should move the long-term relationship,
// in [0,1]. Additive capped contributions keep the score deterministic.
func (a *Analyzer) Importance(text string) float64 {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return 0
	}

	score := 0.10
	if containsAny(lowered, strongPositiveKeywords) || containsAny(lowered, strongNegativeKeywords) {
		score += 0.40
	}
	if containsAny(lowered, positiveKeywords) || containsAny(lowered, negativeKeywords) {
		score += 0.20
	}
	if containsAny(lowered, flirtyKeywords) {
		score += 0.10
	}

	length := utf8.RuneCountInString(lowered)
	switch {
	case length >= 200:
		score += 0.20
	case length >= 80:
		score += 0.10
	}

	return clamp(score, 0, 1)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
