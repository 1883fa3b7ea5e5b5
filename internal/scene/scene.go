// Package scene maps the current scene (location, time of day) to an
// emotion bonus signal mixed into the fused per-turn signal.
package scene

import (
	"strings"

	"github.com/mikanworks/kokoro/internal/emotion"
)

// Entry is one row of the scene bonus table.
type Entry struct {
	Location  string         `toml:"location"`
	TimeOfDay string         `toml:"time_of_day"`
	Bonus     emotion.Signal `toml:"bonus"`
}

// Table resolves scene bonuses. Unknown scenes yield the zero signal.
type Table struct {
	bonuses map[string]emotion.Signal
}

// NewTable builds a lookup table from entries. Later duplicates win.
func NewTable(entries []Entry) *Table {
	bonuses := make(map[string]emotion.Signal, len(entries))
	for _, entry := range entries {
		bonuses[sceneKey(entry.Location, entry.TimeOfDay)] = entry.Bonus
	}
	return &Table{bonuses: bonuses}
}

// DefaultTable returns the shipped scene bonuses.
func DefaultTable() *Table {
	return NewTable([]Entry{
		{Location: "park", TimeOfDay: "evening", Bonus: emotion.Signal{Affection: 0.10, Excitement: 0.05}},
		{Location: "home", TimeOfDay: "night", Bonus: emotion.Signal{Affection: 0.15, Arousal: 0.10}},
		{Location: "school", TimeOfDay: "morning", Bonus: emotion.Signal{Tension: 0.10}},
		{Location: "festival", TimeOfDay: "night", Bonus: emotion.Signal{Excitement: 0.20, Affection: 0.05}},
	})
}

// Bonus returns the table entry for the scene, or the zero signal.
func (t *Table) Bonus(location, timeOfDay string) emotion.Signal {
	if t == nil {
		return emotion.Signal{}
	}
	return t.bonuses[sceneKey(location, timeOfDay)]
}

func sceneKey(location, timeOfDay string) string {
	return strings.ToLower(strings.TrimSpace(location)) + "/" + strings.ToLower(strings.TrimSpace(timeOfDay))
}
