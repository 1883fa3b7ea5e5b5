package emotion

// AffectionZone buckets effective affection into coarse bands used by
// prompting and selection biasing.
type AffectionZone string

const (
	ZoneLow     AffectionZone = "low"
	ZoneMid     AffectionZone = "mid"
	ZoneHigh    AffectionZone = "high"
	ZoneExtreme AffectionZone = "extreme"
)

// Relationship stage labels, one per 20-point band of relationship level.
const (
	StageDistant  = "Distant"
	StageNeutral  = "Neutral"
	StageFriendly = "Friendly"
	StageClose    = "Close"
	StageIntimate = "Intimate"
)

// Layer is one sparse source feeding the merged state. Recognized keys are
// the signal components plus "mode", "doki_power", "relationship_level",
// "masking_degree" and "affection_with_doki".
type Layer map[string]any

// State is the merged emotion state for one turn. Signal components stay
// unclamped; the bounded fields are clamped on construction. MaskingDegree
// and AffectionWithDoki are derived on every read unless a layer supplied
// them explicitly.
type State struct {
	Signal
	DokiPower         float64
	RelationshipLevel float64

	explicitMasking       *float64
	explicitAffectionDoki *float64
}

// NewState merges the four layers lowest to highest precedence:
// longTerm < shortTermBase < manual < debug. Later layers overwrite
// key-by-key where present.
func NewState(longTerm, shortTermBase, manual, debug Layer) State {
	var state State
	for _, layer := range []Layer{longTerm, shortTermBase, manual, debug} {
		state.applyLayer(layer)
	}
	state.DokiPower = clamp(state.DokiPower, 0, 100)
	state.RelationshipLevel = clamp(state.RelationshipLevel, 0, 100)
	if state.explicitMasking != nil {
		m := clamp(*state.explicitMasking, 0, 1)
		state.explicitMasking = &m
	}
	return state
}

func (s *State) applyLayer(layer Layer) {
	if len(layer) == 0 {
		return
	}
	s.Signal = s.Signal.Apply(Override(layer))
	if v, ok := toFloat(layer["doki_power"]); ok {
		s.DokiPower = v
	}
	if v, ok := toFloat(layer["relationship_level"]); ok {
		s.RelationshipLevel = v
	}
	if v, ok := toFloat(layer["masking_degree"]); ok {
		s.explicitMasking = &v
	}
	if v, ok := toFloat(layer["affection_with_doki"]); ok {
		s.explicitAffectionDoki = &v
	}
}

// DokiLevel discretizes doki power into 0-4.
func (s State) DokiLevel() int {
	level := int(clamp(s.DokiPower, 0, 100) / 25)
	if level > 4 {
		level = 4
	}
	return level
}

// Zone buckets effective affection. Boundaries are fixed at 0.33/0.66/0.90.
func (s State) Zone() AffectionZone {
	return ZoneFor(s.AffectionWithDoki())
}

// ZoneFor maps an affection value to its zone.
func ZoneFor(affection float64) AffectionZone {
	switch {
	case affection < 0.33:
		return ZoneLow
	case affection < 0.66:
		return ZoneMid
	case affection < 0.90:
		return ZoneHigh
	default:
		return ZoneExtreme
	}
}

// Stage labels the relationship level in five 20-point bands.
func (s State) Stage() string {
	return StageFor(s.RelationshipLevel)
}

// StageFor maps a relationship level to its stage label.
func StageFor(level float64) string {
	switch {
	case level < 20:
		return StageDistant
	case level < 40:
		return StageNeutral
	case level < 60:
		return StageFriendly
	case level < 80:
		return StageClose
	default:
		return StageIntimate
	}
}

// MaskingDegree is how strongly outward expression hides the true state:
// 1 at relationship level 0, 0 at level 100. An explicit layer value wins.
func (s State) MaskingDegree() float64 {
	if s.explicitMasking != nil {
		return *s.explicitMasking
	}
	return 1 - clamp(s.RelationshipLevel, 0, 100)/100
}

// AffectionWithDoki blends baseline affection with a doki bonus of up to
// +0.3, clamped to [0,1]. An explicit layer value wins.
func (s State) AffectionWithDoki() float64 {
	if s.explicitAffectionDoki != nil {
		return *s.explicitAffectionDoki
	}
	return clamp(s.Affection+clamp(s.DokiPower, 0, 100)/100*0.3, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
