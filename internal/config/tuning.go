package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/mikanworks/kokoro/internal/composer"
	"github.com/mikanworks/kokoro/internal/emotion"
	"github.com/mikanworks/kokoro/internal/relationship"
	"github.com/mikanworks/kokoro/internal/scene"
)

// Tuning is the TOML-backed knob set: mode thresholds, relationship
// smoothing, scene bonuses, scene composition preferences, and per-source
// generation overrides.
type Tuning struct {
	Alpha      float64                   `toml:"alpha"`
	Thresholds emotion.Thresholds        `toml:"thresholds"`
	Scenes     []scene.Entry             `toml:"scenes"`
	ScenePrefs composer.ScenePrefs       `toml:"scene_prefs"`
	Overrides  map[string]map[string]any `toml:"overrides"`
}

// DefaultTuning returns the shipped knob set.
func DefaultTuning() Tuning {
	return Tuning{
		Alpha:      relationship.DefaultAlpha,
		Thresholds: emotion.DefaultThresholds(),
	}
}

// LoadTuning reads the tuning file and fills unset sections with defaults.
// An empty path returns the defaults unchanged.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tuning, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := toml.Unmarshal(data, &tuning); err != nil {
		return tuning, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}

	if tuning.Alpha <= 0 || tuning.Alpha > 1 {
		tuning.Alpha = relationship.DefaultAlpha
	}
	return tuning, nil
}

// SceneTable builds the scene lookup from the tuning entries, falling back
// to the shipped table when the file defines none.
func (t Tuning) SceneTable() *scene.Table {
	if len(t.Scenes) == 0 {
		return scene.DefaultTable()
	}
	return scene.NewTable(t.Scenes)
}
