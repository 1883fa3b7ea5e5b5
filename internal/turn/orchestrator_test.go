package turn

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikanworks/kokoro/internal/candidate"
	"github.com/mikanworks/kokoro/internal/composer"
	"github.com/mikanworks/kokoro/internal/emotion"
	"github.com/mikanworks/kokoro/internal/judge"
	"github.com/mikanworks/kokoro/internal/relationship"
	"github.com/mikanworks/kokoro/internal/types"
)

type fakeSource struct {
	name string
	text string
	err  error
}

func (f *fakeSource) Name() string   { return f.name }
func (f *fakeSource) Family() string { return "" }

func (f *fakeSource) Call(context.Context, []types.Message, map[string]any) (string, *candidate.Usage, error) {
	return f.text, nil, f.err
}

type fakeSettings struct {
	cfg Config
	err error
}

func (f *fakeSettings) Settings(context.Context) (Config, error) {
	return f.cfg, f.err
}

type panickingRefiner struct{}

func (panickingRefiner) Refine(context.Context, string) (string, error) {
	panic("refiner bug")
}

func deps(sources []candidate.Source, settings SettingsProvider, store relationship.Store) Deps {
	return Deps{
		Settings:  settings,
		Collector: candidate.NewCollector(sources),
		Judge:     judge.New(rand.New(rand.NewSource(1))),
		Composer:  composer.New(),
		Analyzer:  emotion.NewAnalyzer(),
		Modes:     emotion.NewModeSelector(emotion.DefaultThresholds()),
		Scenes:    nil,
		Store:     store,
		Smoother:  relationship.NewSmoother(0.2),
	}
}

func request(userText string) Request {
	return Request{
		ConversationID: "conv-1",
		Messages:       []types.Message{{Role: "user", Content: userText}},
		UserText:       userText,
	}
}

func TestRunTurnHappyPath(t *testing.T) {
	sources := []candidate.Source{&fakeSource{name: "alpha", text: "想我了吗？今天过得怎么样呀"}}
	settings := &fakeSettings{cfg: Config{EnabledSources: []string{"alpha"}, LengthMode: judge.LengthShort}}
	store := relationship.NewMemoryStore()

	o := New(deps(sources, settings, store), Config{})
	result := o.RunTurn(context.Background(), request("我今天想你了"))

	if result.Text != "想我了吗？今天过得怎么样呀" {
		t.Fatalf("unexpected final text: %q", result.Text)
	}
	if result.Composed.DecisionMode != composer.ModeJudge {
		t.Fatalf("expected judge choice, got %#v", result.Composed)
	}
	if result.Trace == nil || len(result.Trace.Entries) == 0 {
		t.Fatalf("trace must accumulate entries")
	}

	rec, err := store.Read(context.Background(), "conv-1")
	if err != nil || rec.RelationshipLevel <= 0 {
		t.Fatalf("positive turn should raise relationship level: %#v %v", rec, err)
	}
}

func TestRunTurnAllSourcesFailReturnsApology(t *testing.T) {
	sources := []candidate.Source{
		&fakeSource{name: "alpha", err: fmt.Errorf("down")},
		&fakeSource{name: "beta", err: fmt.Errorf("down too")},
	}
	settings := &fakeSettings{cfg: Config{EnabledSources: []string{"alpha", "beta"}}}

	o := New(deps(sources, settings, relationship.NewMemoryStore()), Config{})
	result := o.RunTurn(context.Background(), request("hello"))

	if result.Text != Apology {
		t.Fatalf("expected fixed apology, got %q", result.Text)
	}
	if !result.Trace.Failed("select") || !result.Trace.Failed("compose") {
		t.Fatalf("trace should record select/compose failures: %#v", result.Trace.Entries)
	}
	if result.Composed.DecisionMode != composer.ModeNoText {
		t.Fatalf("expected no_text, got %#v", result.Composed)
	}
}

func TestRunTurnSettingsFailureNonFatal(t *testing.T) {
	sources := []candidate.Source{&fakeSource{name: "alpha", text: "still here"}}
	settings := &fakeSettings{err: fmt.Errorf("config service down")}
	fallback := Config{EnabledSources: []string{"alpha"}, LengthMode: judge.LengthNormal}

	o := New(deps(sources, settings, relationship.NewMemoryStore()), fallback)
	result := o.RunTurn(context.Background(), request("hi"))

	if result.Text != "still here" {
		t.Fatalf("fallback config should keep the turn alive, got %q", result.Text)
	}
	if !result.Trace.Failed("settings") {
		t.Fatalf("settings failure must be traced: %#v", result.Trace.Entries)
	}
}

func TestRunTurnComposePanicFallsBackToSelection(t *testing.T) {
	sources := []candidate.Source{&fakeSource{name: "alpha", text: "selection text"}}
	settings := &fakeSettings{cfg: Config{EnabledSources: []string{"alpha"}}}
	d := deps(sources, settings, relationship.NewMemoryStore())
	d.Composer = composer.New(composer.WithRefiner(panickingRefiner{}))

	o := New(d, Config{})
	result := o.RunTurn(context.Background(), request("hi"))

	if result.Text != "selection text" {
		t.Fatalf("compose panic must fall back to the selector's text, got %q", result.Text)
	}
	if result.Composed.DecisionMode != composer.ModeException {
		t.Fatalf("expected exception decision mode, got %#v", result.Composed)
	}
	if !result.Trace.Failed("compose") {
		t.Fatalf("compose panic must be traced: %#v", result.Trace.Entries)
	}
}

func TestRunTurnSelectionPanicSynthesized(t *testing.T) {
	sources := []candidate.Source{&fakeSource{name: "alpha", text: "ok text"}}
	settings := &fakeSettings{cfg: Config{EnabledSources: []string{"alpha"}}}
	d := deps(sources, settings, relationship.NewMemoryStore())
	d.Judge = nil // nil receiver panics inside the stage boundary

	o := New(d, Config{})
	result := o.RunTurn(context.Background(), request("hi"))

	// Selection failed, but compose falls back over the candidate set.
	if result.Text != "ok text" {
		t.Fatalf("expected fallback_from_models text, got %q", result.Text)
	}
	if result.Composed.DecisionMode != composer.ModeFallback {
		t.Fatalf("expected fallback decision, got %#v", result.Composed)
	}
	if !result.Trace.Failed("select") {
		t.Fatalf("selection panic must be traced: %#v", result.Trace.Entries)
	}
}

type failingStore struct{}

func (failingStore) Read(context.Context, string) (relationship.Record, error) {
	return relationship.Record{}, nil
}

func (failingStore) Write(context.Context, string, relationship.Record) error {
	return fmt.Errorf("db offline")
}

func TestRunTurnSyncFailureDoesNotAlterText(t *testing.T) {
	sources := []candidate.Source{&fakeSource{name: "alpha", text: "reply text"}}
	settings := &fakeSettings{cfg: Config{EnabledSources: []string{"alpha"}}}

	o := New(deps(sources, settings, failingStore{}), Config{})
	result := o.RunTurn(context.Background(), request("hi"))

	if result.Text != "reply text" {
		t.Fatalf("sync failure must not alter text, got %q", result.Text)
	}
	if !result.Trace.Failed("sync") {
		t.Fatalf("sync failure must be traced: %#v", result.Trace.Entries)
	}
}

func TestRunTurnModeHintWins(t *testing.T) {
	sources := []candidate.Source{&fakeSource{name: "alpha", text: "text"}}
	settings := &fakeSettings{cfg: Config{EnabledSources: []string{"alpha"}}}

	o := New(deps(sources, settings, relationship.NewMemoryStore()), Config{})
	result := o.RunTurn(context.Background(), Request{
		ConversationID: "conv-1",
		Messages:       []types.Message{{Role: "user", Content: "hi"}},
		UserText:       "hi",
		ModeHint:       emotion.ModeDebate,
	})

	if result.Mode != emotion.ModeDebate {
		t.Fatalf("mode hint must win, got %q", result.Mode)
	}
}

type slowStore struct {
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (s *slowStore) Read(context.Context, string) (relationship.Record, error) {
	return relationship.Record{}, nil
}

func (s *slowStore) Write(context.Context, string, relationship.Record) error {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	time.Sleep(10 * time.Millisecond)
	s.inFlight.Add(-1)
	return nil
}

func TestRunTurnSerializesPerConversation(t *testing.T) {
	sources := []candidate.Source{&fakeSource{name: "alpha", text: "text"}}
	settings := &fakeSettings{cfg: Config{EnabledSources: []string{"alpha"}}}
	store := &slowStore{}

	o := New(deps(sources, settings, store), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.RunTurn(context.Background(), request("hi"))
		}()
	}
	wg.Wait()

	if store.overlap.Load() {
		t.Fatalf("turns for the same conversation must not overlap")
	}
}

func TestLockConversationReleasesIdleEntries(t *testing.T) {
	sources := []candidate.Source{&fakeSource{name: "alpha", text: "text"}}
	settings := &fakeSettings{cfg: Config{EnabledSources: []string{"alpha"}}}

	o := New(deps(sources, settings, relationship.NewMemoryStore()), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func(conv string) {
				defer wg.Done()
				o.RunTurn(context.Background(), Request{
					ConversationID: conv,
					Messages:       []types.Message{{Role: "user", Content: "hi"}},
					UserText:       "hi",
				})
			}(fmt.Sprintf("conv-%d", i))
		}
	}
	wg.Wait()

	o.mu.Lock()
	remaining := len(o.turnLocks)
	o.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("idle conversation locks must be released, %d left", remaining)
	}
}
