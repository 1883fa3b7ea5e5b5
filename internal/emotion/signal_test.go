package emotion

import "testing"

func TestFuseNilShortTerm(t *testing.T) {
	if got := Fuse(nil, Signal{Affection: 1}, nil, nil); got != nil {
		t.Fatalf("expected nil for absent short-term signal, got %#v", got)
	}
}

func TestFuseAddsSceneBonusWithoutRenormalizing(t *testing.T) {
	shortTerm := Signal{Affection: 0.8, Arousal: 0.2}
	fused := Fuse(&shortTerm, Signal{Affection: 0.5, Tension: 0.1}, nil, nil)
	if fused == nil {
		t.Fatalf("expected fused signal")
	}
	if fused.Affection != 1.3 {
		t.Fatalf("expected additive affection 1.3 (no renormalization), got %v", fused.Affection)
	}
	if fused.Tension != 0.1 || fused.Arousal != 0.2 {
		t.Fatalf("unexpected fused signal: %#v", fused)
	}
}

func TestFuseOverridePrecedence(t *testing.T) {
	shortTerm := Signal{Anger: 0.1}
	fused := Fuse(&shortTerm, Signal{},
		Override{"anger": 0.5, "mode": "debate"},
		Override{"anger": 0.9},
	)
	if fused.Anger != 0.9 {
		t.Fatalf("debug override should win, got %v", fused.Anger)
	}
	if fused.Mode != "debate" {
		t.Fatalf("manual mode override should survive, got %q", fused.Mode)
	}
}

func TestFuseIgnoresUnknownOverrideKeys(t *testing.T) {
	shortTerm := Signal{}
	fused := Fuse(&shortTerm, Signal{}, Override{"charisma": 1.0, "mode": 3}, nil)
	if *fused != (Signal{}) {
		t.Fatalf("unknown keys should be ignored, got %#v", fused)
	}
}

func TestSelectModeScenarios(t *testing.T) {
	selector := NewModeSelector(DefaultThresholds())

	cases := []struct {
		name string
		sig  Signal
		want string
	}{
		{"arousal", Signal{Arousal: 0.6}, ModeErotic},
		{"affection_excitement", Signal{Affection: 0.8, Excitement: 0.5}, ModeErotic},
		{"anger", Signal{Anger: 0.6}, ModeDebate},
		{"tension", Signal{Tension: 0.7}, ModeDebate},
		{"excited_not_aroused", Signal{Excitement: 0.75, Arousal: 0.1}, ModeDebate},
		{"excited_and_aroused", Signal{Excitement: 0.75, Arousal: 0.6}, ModeErotic},
		{"zero", Signal{}, ModeNormal},
		{"negative_components", Signal{Anger: -3, Arousal: -1}, ModeNormal},
	}
	for _, tc := range cases {
		if got := selector.Select(tc.sig); got != tc.want {
			t.Fatalf("%s: Select = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestSelectModeCustomThresholds(t *testing.T) {
	thresholds := DefaultThresholds()
	thresholds.DebateAnger = 0.1
	selector := NewModeSelector(thresholds)

	if got := selector.Select(Signal{Anger: 0.2}); got != ModeDebate {
		t.Fatalf("expected custom threshold to fire debate, got %s", got)
	}
}

func TestAnalyzerSignals(t *testing.T) {
	analyzer := NewAnalyzer()

	if sig := analyzer.Analyze(""); sig != (Signal{}) {
		t.Fatalf("blank text should yield zero signal, got %#v", sig)
	}

	love := analyzer.Analyze("I love you so much")
	if love.Affection <= 0 || love.Excitement <= 0 {
		t.Fatalf("expected positive affection/excitement, got %#v", love)
	}

	angry := analyzer.Analyze("I hate you, shut up")
	if angry.Anger <= 0 || angry.Tension <= 0 {
		t.Fatalf("expected anger/tension, got %#v", angry)
	}
}

func TestAnalyzerImportance(t *testing.T) {
	analyzer := NewAnalyzer()

	if got := analyzer.Importance(""); got != 0 {
		t.Fatalf("blank text importance should be 0, got %v", got)
	}

	small := analyzer.Importance("ok")
	big := analyzer.Importance("I love you, thank you for today")
	if big <= small {
		t.Fatalf("emotional text should rank higher: %v <= %v", big, small)
	}
	if big > 1 {
		t.Fatalf("importance must stay within [0,1], got %v", big)
	}
}
