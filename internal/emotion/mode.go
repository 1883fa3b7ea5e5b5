package emotion

import "sort"

// Interaction modes, ordered by selector priority.
const (
	ModeErotic = "erotic"
	ModeDebate = "debate"
	ModeNormal = "normal"
)

// Thresholds is the tunable boundary set read by the mode predicates.
// Values here are data so a different set can be swapped in from the
// tuning file without touching the evaluation loop.
type Thresholds struct {
	EroticArousal        float64 `toml:"erotic_arousal"`
	EroticAffection      float64 `toml:"erotic_affection"`
	EroticExcitement     float64 `toml:"erotic_excitement"`
	DebateAnger          float64 `toml:"debate_anger"`
	DebateTension        float64 `toml:"debate_tension"`
	DebateExcitement     float64 `toml:"debate_excitement"`
	DebateArousalCeiling float64 `toml:"debate_arousal_ceiling"`
}

// DefaultThresholds returns the shipped boundary set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EroticArousal:        0.55,
		EroticAffection:      0.75,
		EroticExcitement:     0.40,
		DebateAnger:          0.50,
		DebateTension:        0.65,
		DebateExcitement:     0.70,
		DebateArousalCeiling: 0.30,
	}
}

type modeSelector struct {
	name     string
	priority int
	match    func(Signal, Thresholds) bool
}

// ModeSelector picks the interaction mode from a fused signal. Selectors
// are sorted once by descending priority; the lowest-priority entry matches
// everything so selection always terminates with a mode.
type ModeSelector struct {
	thresholds Thresholds
	selectors  []modeSelector
}

// NewModeSelector builds the selector table for the given thresholds.
func NewModeSelector(thresholds Thresholds) *ModeSelector {
	selectors := []modeSelector{
		{
			name:     ModeErotic,
			priority: 100,
			match: func(sig Signal, t Thresholds) bool {
				return sig.Arousal >= t.EroticArousal ||
					(sig.Affection >= t.EroticAffection && sig.Excitement >= t.EroticExcitement)
			},
		},
		{
			name:     ModeDebate,
			priority: 80,
			match: func(sig Signal, t Thresholds) bool {
				return sig.Anger >= t.DebateAnger ||
					sig.Tension >= t.DebateTension ||
					(sig.Excitement >= t.DebateExcitement && sig.Arousal < t.DebateArousalCeiling)
			},
		},
		{
			name:     ModeNormal,
			priority: 0,
			match:    func(Signal, Thresholds) bool { return true },
		},
	}
	sort.SliceStable(selectors, func(i, j int) bool {
		return selectors[i].priority > selectors[j].priority
	})
	return &ModeSelector{thresholds: thresholds, selectors: selectors}
}

// Select returns the mode of the first matching selector.
func (m *ModeSelector) Select(sig Signal) string {
	for _, sel := range m.selectors {
		if sel.match(sig, m.thresholds) {
			return sel.name
		}
	}
	// Unreachable: the normal selector is total.
	return ModeNormal
}
