package history

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, "conv-1",
			Entry{Role: "user", Content: fmt.Sprintf("u%d", i)},
			Entry{Role: "assistant", Content: fmt.Sprintf("a%d", i)},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	recent, err := store.Recent(ctx, "conv-1", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(recent))
	}
	// Oldest first, trimmed from the front.
	if recent[0].Content != "u3" || recent[3].Content != "a4" {
		t.Fatalf("unexpected window: %#v", recent)
	}

	other, err := store.Recent(ctx, "conv-2", 10)
	if err != nil || len(other) != 0 {
		t.Fatalf("conversations must be isolated: %v %#v", err, other)
	}
}

func TestMessagesConversion(t *testing.T) {
	msgs := Messages([]Entry{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	if len(msgs) != 2 || msgs[1].Role != "assistant" || msgs[1].Content != "hello" {
		t.Fatalf("unexpected conversion: %#v", msgs)
	}
}
