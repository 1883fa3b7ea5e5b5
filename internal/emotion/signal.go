// Package emotion models the companion's short-term signal, the merged
// emotion state, and the interaction mode derived from them.
package emotion

// Signal is the additive short-term emotion vector. Components are not
// renormalized; after fusion they may leave [0,1].
type Signal struct {
	Mode       string  `json:"mode,omitempty" toml:"mode,omitempty"`
	Affection  float64 `json:"affection" toml:"affection"`
	Arousal    float64 `json:"arousal" toml:"arousal"`
	Tension    float64 `json:"tension" toml:"tension"`
	Anger      float64 `json:"anger" toml:"anger"`
	Sadness    float64 `json:"sadness" toml:"sadness"`
	Excitement float64 `json:"excitement" toml:"excitement"`
}

// Override is a sparse key-by-key patch applied on top of a signal.
// Numeric components take float64 values; "mode" takes a string.
type Override map[string]any

// Add returns the component-wise sum. The receiver's mode is kept unless
// the other signal carries one.
func (s Signal) Add(o Signal) Signal {
	out := Signal{
		Mode:       s.Mode,
		Affection:  s.Affection + o.Affection,
		Arousal:    s.Arousal + o.Arousal,
		Tension:    s.Tension + o.Tension,
		Anger:      s.Anger + o.Anger,
		Sadness:    s.Sadness + o.Sadness,
		Excitement: s.Excitement + o.Excitement,
	}
	if o.Mode != "" {
		out.Mode = o.Mode
	}
	return out
}

// Apply overwrites present keys and returns the patched signal.
// Unknown keys and mistyped values are ignored.
func (s Signal) Apply(patch Override) Signal {
	for key, raw := range patch {
		if key == "mode" {
			if mode, ok := raw.(string); ok {
				s.Mode = mode
			}
			continue
		}
		value, ok := toFloat(raw)
		if !ok {
			continue
		}
		switch key {
		case "affection":
			s.Affection = value
		case "arousal":
			s.Arousal = value
		case "tension":
			s.Tension = value
		case "anger":
			s.Anger = value
		case "sadness":
			s.Sadness = value
		case "excitement":
			s.Excitement = value
		}
	}
	return s
}

// Fuse merges the short-term signal with the scene bonus and the manual and
// debug overrides, highest precedence last. A nil short-term signal yields
// nil so upstream callers skip biasing entirely.
func Fuse(shortTerm *Signal, sceneBonus Signal, manual, debug Override) *Signal {
	if shortTerm == nil {
		return nil
	}
	fused := shortTerm.Add(sceneBonus).Apply(manual).Apply(debug)
	return &fused
}

func toFloat(raw any) (float64, bool) {
	switch cast := raw.(type) {
	case float64:
		return cast, true
	case float32:
		return float64(cast), true
	case int:
		return float64(cast), true
	case int64:
		return float64(cast), true
	default:
		return 0, false
	}
}
