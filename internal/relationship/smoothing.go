package relationship

// DefaultAlpha is the shipped smoothing constant. The exact semantics are
// deliberately tunable; see the tuning file.
const DefaultAlpha = 0.2

// Smoother accumulates long-term relationship level across turns with
// exponential smoothing keyed by per-turn importance. Positive valence
// approaches 100, negative valence approaches 0; either way a step is
// proportional to the remaining distance, so the level never overshoots.
type Smoother struct {
	Alpha float64
}

// NewSmoother returns a Smoother, defaulting alpha when unset.
func NewSmoother(alpha float64) Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return Smoother{Alpha: alpha}
}

// NextLevel advances the relationship level for one turn. Importance is
// clamped to [0,1]; valence only contributes its sign.
func (s Smoother) NextLevel(level, importance, valence float64) float64 {
	importance = clamp(importance, 0, 1)
	if importance == 0 {
		return clamp(level, 0, 100)
	}
	level = clamp(level, 0, 100)
	if valence >= 0 {
		level += s.Alpha * importance * (100 - level)
	} else {
		level -= s.Alpha * importance * level
	}
	return clamp(level, 0, 100)
}

// NextDoki blends the previous doki power with the excitement burst of the
// current turn. The burst maps excitement+arousal onto the 0-100 scale.
func (s Smoother) NextDoki(previous, excitement, arousal float64) float64 {
	beta := clamp(s.Alpha*2, 0, 1)
	burst := clamp((excitement+arousal)*100, 0, 100)
	return clamp(previous*(1-beta)+burst*beta, 0, 100)
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
