package turn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mikanworks/kokoro/internal/candidate"
	"github.com/mikanworks/kokoro/internal/composer"
	"github.com/mikanworks/kokoro/internal/emotion"
	"github.com/mikanworks/kokoro/internal/judge"
	"github.com/mikanworks/kokoro/internal/relationship"
	"github.com/mikanworks/kokoro/internal/types"
)

// Apology is the fixed in-character reply returned when every stage fails.
// Diagnostics stay in the trace; the user never sees an error message.
const Apology = "抱歉，我刚刚走神了……可以再说一遍吗？"

// Config is the per-turn settings snapshot read from the settings
// collaborator once at the start of a turn.
type Config struct {
	EnabledSources []string
	PriorityOrder  []string
	LengthMode     string
}

// SettingsProvider reads the effective configuration.
type SettingsProvider interface {
	Settings(ctx context.Context) (Config, error)
}

// SceneProvider supplies the scene bonus signal. Absence of a scene yields
// the zero signal.
type SceneProvider interface {
	Bonus(location, timeOfDay string) emotion.Signal
}

// Request is the explicit per-turn context threaded through the pipeline.
type Request struct {
	ConversationID string
	Messages       []types.Message
	UserText       string
	ModeHint       string
	Location       string
	TimeOfDay      string
	DevForceSource string
	ScenePrefs     *composer.ScenePrefs
	ManualOverride emotion.Override
	DebugOverride  emotion.Override
}

// Result bundles the final text with everything the caller may want to
// inspect after the turn.
type Result struct {
	Text     string
	Mode     string
	Composed composer.ComposedResult
	Trace    *Trace
}

// Deps are the orchestrator's collaborators. Collector, Judge, and
// Composer are required; the rest degrade gracefully when nil.
type Deps struct {
	Settings  SettingsProvider
	Collector *candidate.Collector
	Judge     *judge.Judge
	Composer  *composer.Composer
	Analyzer  *emotion.Analyzer
	Modes     *emotion.ModeSelector
	Scenes    SceneProvider
	Overrides candidate.Overrides
	Store     relationship.Store
	Smoother  relationship.Smoother
}

// Orchestrator runs one turn start to finish. It never returns an error to
// its caller; total failure still produces the apology text.
type Orchestrator struct {
	deps     Deps
	fallback Config

	mu        sync.Mutex
	turnLocks map[string]*turnLock
}

// turnLock is a per-conversation mutex with a waiter count so idle entries
// can be dropped from the map once the last turn releases it.
type turnLock struct {
	mu   sync.Mutex
	refs int
}

// New returns an Orchestrator. The fallback config is used whenever the
// settings collaborator is absent or failing.
func New(deps Deps, fallback Config) *Orchestrator {
	if fallback.LengthMode == "" {
		fallback.LengthMode = judge.LengthAuto
	}
	return &Orchestrator{
		deps:      deps,
		fallback:  fallback,
		turnLocks: make(map[string]*turnLock),
	}
}

// RunTurn processes one user turn. Turns for the same conversation are
// serialized; the persisted state is written once, whole, at the end.
func (o *Orchestrator) RunTurn(ctx context.Context, req Request) Result {
	trace := newTrace(req.ConversationID)

	unlock := o.lockConversation(req.ConversationID)
	defer unlock()

	cfg := o.resolveSettings(ctx, trace)
	fused := o.fuseStage(req, trace)

	mode := req.ModeHint
	if mode == "" && fused != nil && o.deps.Modes != nil {
		mode = o.deps.Modes.Select(*fused)
	}
	if mode != "" {
		trace.ok("mode", mode)
	}

	set := o.collectStage(ctx, req, cfg, trace)
	sel := o.selectStage(set, cfg, req, trace)
	composed := o.composeStage(ctx, sel, set, req, trace)

	// The only path returning text: composed, then selection, then apology.
	finalText := composed.Text
	if finalText == "" {
		finalText = sel.ChosenText
	}
	if finalText == "" {
		finalText = Apology
		trace.fail("final", "fallback_apology")
	}

	o.syncStage(ctx, req, finalText, trace)

	return Result{Text: finalText, Mode: mode, Composed: composed, Trace: trace}
}

func (o *Orchestrator) lockConversation(conversationID string) func() {
	o.mu.Lock()
	lock, ok := o.turnLocks[conversationID]
	if !ok {
		lock = &turnLock{}
		o.turnLocks[conversationID] = lock
	}
	lock.refs++
	o.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		o.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(o.turnLocks, conversationID)
		}
		o.mu.Unlock()
	}
}

func (o *Orchestrator) resolveSettings(ctx context.Context, trace *Trace) Config {
	if o.deps.Settings == nil {
		trace.ok("settings", "using fallback config")
		return o.fallback
	}
	cfg, err := o.deps.Settings.Settings(ctx)
	if err != nil {
		slog.Warn("settings sync failed, using fallback", "error", err.Error())
		trace.fail("settings", "settings_sync_failed: "+err.Error())
		return o.fallback
	}
	if cfg.LengthMode == "" {
		cfg.LengthMode = o.fallback.LengthMode
	}
	trace.ok("settings", fmt.Sprintf("enabled=%d priority=%d mode=%s",
		len(cfg.EnabledSources), len(cfg.PriorityOrder), cfg.LengthMode))
	return cfg
}

// fuseStage builds the fused signal. Any failure yields nil so the
// pipeline proceeds unbiased.
func (o *Orchestrator) fuseStage(req Request, trace *Trace) (fused *emotion.Signal) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("emotion fusion panicked", "error", r)
			trace.fail("fuse", fmt.Sprintf("fusion panic: %v", r))
			fused = nil
		}
	}()

	if o.deps.Analyzer == nil {
		trace.fail("fuse", "analyzer not configured")
		return nil
	}

	shortTerm := o.deps.Analyzer.Analyze(req.UserText)
	var bonus emotion.Signal
	if o.deps.Scenes != nil {
		bonus = o.deps.Scenes.Bonus(req.Location, req.TimeOfDay)
	}

	fused = emotion.Fuse(&shortTerm, bonus, req.ManualOverride, req.DebugOverride)
	trace.ok("fuse", fmt.Sprintf("affection=%.2f arousal=%.2f anger=%.2f",
		fused.Affection, fused.Arousal, fused.Anger))
	return fused
}

func (o *Orchestrator) collectStage(ctx context.Context, req Request, cfg Config, trace *Trace) candidate.Set {
	set := o.deps.Collector.Collect(ctx, req.Messages, cfg.EnabledSources, o.deps.Overrides)

	okCount := 0
	for _, cand := range set {
		if cand.Usable() {
			okCount++
		}
	}
	trace.ok("collect", fmt.Sprintf("candidates=%d usable=%d", len(set), okCount))
	return set
}

func (o *Orchestrator) selectStage(set candidate.Set, cfg Config, req Request, trace *Trace) (sel judge.SelectionResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("selection panicked", "error", r)
			sel = judge.SelectionResult{
				Status:         "error",
				DecisionReason: fmt.Sprintf("selection_exception: %v", r),
			}
			trace.fail("select", sel.DecisionReason)
		}
	}()

	sel = o.deps.Judge.Select(set, cfg.PriorityOrder, cfg.LengthMode, req.UserText)
	if sel.OK() {
		trace.ok("select", sel.DecisionReason)
	} else {
		trace.fail("select", sel.DecisionReason)
	}
	return sel
}

func (o *Orchestrator) composeStage(ctx context.Context, sel judge.SelectionResult, set candidate.Set, req Request, trace *Trace) (composed composer.ComposedResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("compose panicked", "error", r)
			composed = composer.ComposedResult{
				Status:       "error",
				Text:         sel.ChosenText,
				SourceModel:  sel.ChosenSource,
				DecisionMode: composer.ModeException,
				Summary:      fmt.Sprintf("compose_exception: %v", r),
			}
			trace.fail("compose", composed.Summary)
		}
	}()

	composed = o.deps.Composer.Compose(ctx, sel, set, req.DevForceSource, req.ScenePrefs)
	if composed.Status == "ok" {
		trace.ok("compose", composed.Summary)
	} else {
		trace.fail("compose", composed.Summary)
	}
	return composed
}

// syncStage derives the post-turn emotion state and writes the persisted
// tuple. Failures are recorded but never alter the already-final text.
func (o *Orchestrator) syncStage(ctx context.Context, req Request, finalText string, trace *Trace) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("state sync panicked", "error", r)
			trace.fail("sync", fmt.Sprintf("sync panic: %v", r))
		}
	}()

	if o.deps.Store == nil || o.deps.Analyzer == nil {
		trace.ok("sync", "skipped: store or analyzer not configured")
		return
	}

	rec, err := o.deps.Store.Read(ctx, req.ConversationID)
	if err != nil {
		trace.fail("sync", "read failed: "+err.Error())
		return
	}

	userSig := o.deps.Analyzer.Analyze(req.UserText)
	replySig := o.deps.Analyzer.Analyze(finalText)
	importance := o.deps.Analyzer.Importance(req.UserText)
	valence := userSig.Affection + userSig.Excitement - userSig.Anger - userSig.Sadness - userSig.Tension

	newLevel := o.deps.Smoother.NextLevel(rec.RelationshipLevel, importance, valence)
	newDoki := o.deps.Smoother.NextDoki(rec.DokiPower, replySig.Excitement, replySig.Arousal)

	state := emotion.NewState(
		emotion.Layer{"relationship_level": newLevel, "doki_power": newDoki},
		emotion.Layer{
			"affection":  replySig.Affection,
			"arousal":    replySig.Arousal,
			"excitement": replySig.Excitement,
		},
		emotion.Layer(req.ManualOverride),
		emotion.Layer(req.DebugOverride),
	)

	out := relationship.Record{
		RelationshipLevel: state.RelationshipLevel,
		DokiPower:         state.DokiPower,
		DokiLevel:         state.DokiLevel(),
	}
	if err := o.deps.Store.Write(ctx, req.ConversationID, out); err != nil {
		trace.fail("sync", "write failed: "+err.Error())
		return
	}
	trace.ok("sync", fmt.Sprintf("level=%.1f stage=%s doki=%.1f zone=%s",
		out.RelationshipLevel, state.Stage(), out.DokiPower, state.Zone()))
}
