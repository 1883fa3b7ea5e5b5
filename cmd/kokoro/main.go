// Package main is the entry point for the kokoro companion engine CLI.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikanworks/kokoro/internal/candidate"
	"github.com/mikanworks/kokoro/internal/composer"
	"github.com/mikanworks/kokoro/internal/config"
	"github.com/mikanworks/kokoro/internal/emotion"
	"github.com/mikanworks/kokoro/internal/history"
	"github.com/mikanworks/kokoro/internal/judge"
	"github.com/mikanworks/kokoro/internal/models"
	"github.com/mikanworks/kokoro/internal/persona"
	"github.com/mikanworks/kokoro/internal/relationship"
	"github.com/mikanworks/kokoro/internal/storage"
	"github.com/mikanworks/kokoro/internal/turn"
	"github.com/mikanworks/kokoro/internal/types"
)

const version = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if ctx.Err() == nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kokoro",
		Short:         "Conversational companion decision engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newChatCmd(), newTurnCmd(), newStateCmd(), newVersionCmd())
	return root
}

// engine bundles the assembled pipeline for the CLI commands.
type engine struct {
	cfg     config.Config
	tuning  config.Tuning
	store   *storage.Store
	orch    *turn.Orchestrator
	prompts *persona.PromptBuilder
	profile *persona.Persona
}

func buildEngine(ctx context.Context) (*engine, error) {
	cfg := config.Load()

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		slog.Warn("tuning file not loaded, using defaults", "error", err.Error())
	}

	sources := []candidate.Source{models.NewLocalSource("local")}
	if cfg.OpenAIAPIKey != "" {
		src, err := models.NewOpenAISource(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if cfg.XAIAPIKey != "" {
		src, err := models.NewGrokSource(cfg.XAIAPIKey, cfg.GrokModel)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if cfg.OpenRouterAPIKey != "" {
		src, err := models.NewOpenRouterSource(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if cfg.GoogleAPIKey != "" {
		src, err := models.NewGeminiSource(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	enabled := cfg.EnabledSources
	if len(enabled) == 0 {
		for _, src := range sources {
			enabled = append(enabled, src.Name())
		}
	}

	store := storage.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		store, err = storage.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	fallback := turn.Config{
		EnabledSources: enabled,
		PriorityOrder:  cfg.PriorityOrder,
		LengthMode:     cfg.LengthMode,
	}
	deps := turn.Deps{
		Settings: staticSettings(fallback),
		Collector: candidate.NewCollector(sources,
			candidate.WithTimeout(time.Duration(cfg.SourceTimeoutSec)*time.Second),
			candidate.WithMaxInFlight(cfg.MaxInFlight)),
		Judge:     judge.New(nil),
		Composer:  composer.New(composer.WithPreferenceOrder(cfg.PriorityOrder)),
		Analyzer:  emotion.NewAnalyzer(),
		Modes:     emotion.NewModeSelector(tuning.Thresholds),
		Scenes:    tuning.SceneTable(),
		Overrides: persona.NewOverrides(tuning.Overrides),
		Store:     store.Relationships,
		Smoother:  relationship.NewSmoother(tuning.Alpha),
	}

	return &engine{
		cfg:     cfg,
		tuning:  tuning,
		store:   store,
		orch:    turn.New(deps, fallback),
		prompts: persona.NewPromptBuilder(),
		profile: persona.Default(),
	}, nil
}

// recordState lifts the persisted tuple into the merged emotion state so
// every derived metric (stage, masking, zone) comes from one place.
func recordState(rec relationship.Record) emotion.State {
	return emotion.NewState(emotion.Layer{
		"relationship_level": rec.RelationshipLevel,
		"doki_power":         rec.DokiPower,
	}, nil, nil, nil)
}

// staticSettings serves the boot-time snapshot on every turn.
type staticSettings turn.Config

func (s staticSettings) Settings(context.Context) (turn.Config, error) {
	return turn.Config(s), nil
}

// buildMessages assembles system prompt + recent history + the user line.
func (e *engine) buildMessages(ctx context.Context, conversationID, userText, location, timeOfDay, mode string) ([]types.Message, error) {
	rec, err := e.store.Relationships.Read(ctx, conversationID)
	if err != nil {
		slog.Warn("relationship read failed, prompting from zero state", "error", err.Error())
		rec = relationship.Record{}
	}

	state := recordState(rec)
	system, err := e.prompts.Build(persona.PromptContext{
		Persona:   e.profile,
		Stage:     state.Stage(),
		Mode:      mode,
		Location:  location,
		TimeOfDay: timeOfDay,
		Masking:   state.MaskingDegree(),
	})
	if err != nil {
		return nil, err
	}

	recent, err := e.store.History.Recent(ctx, conversationID, e.cfg.HistoryLimit)
	if err != nil {
		slog.Warn("history read failed, continuing without history", "error", err.Error())
	}

	messages := []types.Message{{Role: "system", Content: system}}
	messages = append(messages, history.Messages(recent)...)
	messages = append(messages, types.Message{Role: "user", Content: userText})
	return messages, nil
}

func (e *engine) runTurn(ctx context.Context, req turn.Request) (turn.Result, error) {
	messages, err := e.buildMessages(ctx, req.ConversationID, req.UserText, req.Location, req.TimeOfDay, req.ModeHint)
	if err != nil {
		return turn.Result{}, err
	}
	req.Messages = messages
	if req.ScenePrefs == nil && e.tuning.ScenePrefs.PreferShort {
		prefs := e.tuning.ScenePrefs
		req.ScenePrefs = &prefs
	}

	res := e.orch.RunTurn(ctx, req)

	err = e.store.History.Append(ctx, req.ConversationID,
		history.Entry{Role: "user", Content: req.UserText},
		history.Entry{Role: "assistant", Content: res.Text},
	)
	if err != nil {
		slog.Warn("history append failed", "error", err.Error())
	}
	return res, nil
}

func newChatCmd() *cobra.Command {
	var conversationID, location, timeOfDay string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.store.Close()

			fmt.Printf("%s: %s\n", eng.profile.Name, eng.profile.FirstMessage)

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if text == "exit" || text == "quit" {
					break
				}
				if ctx.Err() != nil {
					break
				}

				res, err := eng.runTurn(ctx, turn.Request{
					ConversationID: conversationID,
					UserText:       text,
					Location:       location,
					TimeOfDay:      timeOfDay,
				})
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s\n", eng.profile.Name, res.Text)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "default", "conversation id")
	cmd.Flags().StringVar(&location, "location", "", "scene location")
	cmd.Flags().StringVar(&timeOfDay, "time-of-day", "", "scene time of day")
	return cmd
}

func newTurnCmd() *cobra.Command {
	var conversationID, location, timeOfDay, modeHint, devForce string
	var showTrace bool

	cmd := &cobra.Command{
		Use:   "turn <text>",
		Short: "Run one turn and print the decision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.store.Close()

			res, err := eng.runTurn(ctx, turn.Request{
				ConversationID: conversationID,
				UserText:       strings.Join(args, " "),
				ModeHint:       modeHint,
				Location:       location,
				TimeOfDay:      timeOfDay,
				DevForceSource: devForce,
			})
			if err != nil {
				return err
			}

			out := map[string]any{
				"text":          res.Text,
				"mode":          res.Mode,
				"source_model":  res.Composed.SourceModel,
				"decision_mode": res.Composed.DecisionMode,
			}
			if showTrace {
				out["trace"] = res.Trace
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "default", "conversation id")
	cmd.Flags().StringVar(&location, "location", "", "scene location")
	cmd.Flags().StringVar(&timeOfDay, "time-of-day", "", "scene time of day")
	cmd.Flags().StringVar(&modeHint, "mode", "", "force the interaction mode")
	cmd.Flags().StringVar(&devForce, "force-source", "", "force the reply source")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "include the turn trace")
	return cmd
}

func newStateCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the persisted relationship state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.store.Close()

			rec, err := eng.store.Relationships.Read(ctx, conversationID)
			if err != nil {
				return err
			}
			state := recordState(rec)
			return printJSON(cmd, map[string]any{
				"conversation_id":    conversationID,
				"relationship_level": rec.RelationshipLevel,
				"stage":              state.Stage(),
				"doki_power":         rec.DokiPower,
				"doki_level":         rec.DokiLevel,
				"masking_degree":     state.MaskingDegree(),
			})
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "default", "conversation id")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kokoro "+version)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
