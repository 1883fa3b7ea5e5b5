// Package turn sequences fusion, collection, selection, composition, and
// state sync for one conversational turn, isolating every stage.
package turn

import (
	"time"

	"github.com/google/uuid"
)

// TraceEntry is one stage's outcome. Stages append; nothing is cleared
// mid-turn.
type TraceEntry struct {
	Stage  string    `json:"stage"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Trace accumulates the per-turn diagnostic record. User-visible output
// never includes it.
type Trace struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	StartedAt      time.Time    `json:"started_at"`
	Entries        []TraceEntry `json:"entries"`
}

func newTrace(conversationID string) *Trace {
	return &Trace{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		StartedAt:      time.Now(),
	}
}

func (t *Trace) ok(stage, detail string) {
	t.append(stage, "ok", detail)
}

func (t *Trace) fail(stage, detail string) {
	t.append(stage, "error", detail)
}

func (t *Trace) append(stage, status, detail string) {
	t.Entries = append(t.Entries, TraceEntry{
		Stage:  stage,
		Status: status,
		Detail: detail,
		At:     time.Now(),
	})
}

// Failed reports whether any entry for the stage has error status.
func (t *Trace) Failed(stage string) bool {
	for _, entry := range t.Entries {
		if entry.Stage == stage && entry.Status == "error" {
			return true
		}
	}
	return false
}
