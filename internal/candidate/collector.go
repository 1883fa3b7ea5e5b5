package candidate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikanworks/kokoro/internal/types"
)

const (
	defaultSourceTimeout = 30 * time.Second
	defaultMaxInFlight   = 4
	maxErrMessageLen     = 300
)

// Overrides supplies per-source default call parameters. A missing entry
// yields an empty map, never an error.
type Overrides interface {
	Defaults(source string) map[string]any
}

// Collector fans one message list out to the enabled sources. Every call is
// isolated: error, panic, timeout, or empty return becomes a complete error
// candidate. Retry policy belongs to the sources themselves.
type Collector struct {
	sources     map[string]Source
	timeout     time.Duration
	maxInFlight int
}

// Option configures a Collector.
type Option func(*Collector)

// WithTimeout bounds each individual source call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Collector) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxInFlight bounds the fan-out worker pool.
func WithMaxInFlight(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxInFlight = n
		}
	}
}

// NewCollector registers the given sources.
func NewCollector(sources []Source, opts ...Option) *Collector {
	c := &Collector{
		sources:     make(map[string]Source, len(sources)),
		timeout:     defaultSourceTimeout,
		maxInFlight: defaultMaxInFlight,
	}
	for _, src := range sources {
		if src == nil || src.Name() == "" {
			continue
		}
		c.sources[src.Name()] = src
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect invokes every enabled source concurrently and returns the full
// candidate set. Registered sources missing from the enabled list appear
// with status disabled so the set stays auditable. The returned set is
// never empty.
func (c *Collector) Collect(ctx context.Context, messages []types.Message, enabled []string, overrides Overrides) Set {
	set := make(Set)

	enabledSet := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		if name != "" {
			enabledSet[name] = true
		}
	}

	if len(enabledSet) == 0 {
		set[ReservedNone] = Candidate{
			Source:     ReservedNone,
			Status:     StatusError,
			ErrMessage: "no sources enabled",
		}
		return set
	}

	for name := range c.sources {
		if !enabledSet[name] {
			set[name] = Candidate{Source: name, Status: StatusDisabled, ErrMessage: disabledReason}
		}
	}

	// Every write from this goroutine must land before a worker starts;
	// after that the set is only touched under mu.
	for name := range enabledSet {
		if _, ok := c.sources[name]; !ok {
			set[name] = Candidate{
				Source:     name,
				Status:     StatusError,
				ErrMessage: "source not registered",
			}
		}
	}

	var mu sync.Mutex
	group := &errgroup.Group{}
	group.SetLimit(c.maxInFlight)

	for name := range enabledSet {
		src, ok := c.sources[name]
		if !ok {
			continue
		}
		group.Go(func() error {
			cand := c.callOne(ctx, src, messages, overrides)
			mu.Lock()
			set[cand.Source] = cand
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if len(set) == 0 {
		// Unreachable with a non-empty enabled set, kept as a hard floor
		// for the non-empty invariant.
		set[ReservedNone] = Candidate{
			Source:     ReservedNone,
			Status:     StatusError,
			ErrMessage: "no sources enabled",
		}
	}
	return set
}

func (c *Collector) callOne(ctx context.Context, src Source, messages []types.Message, overrides Overrides) (cand Candidate) {
	name := src.Name()
	cand = Candidate{Source: name, Status: StatusError}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("source call panicked", "source", name, "error", r)
			cand = Candidate{
				Source:     name,
				Status:     StatusError,
				ErrMessage: truncate(fmt.Sprintf("source panic: %v", r)),
			}
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := lookupParams(overrides, name, src.Family())
	text, usage, err := src.Call(callCtx, messages, params)
	if err != nil {
		slog.Error("source call failed", "source", name, "error", err.Error())
		cand.ErrMessage = truncate(err.Error())
		return cand
	}

	text = strings.TrimSpace(text)
	if text == "" {
		cand.ErrMessage = "empty_response"
		return cand
	}

	return Candidate{Source: name, Status: StatusOK, Text: text, Usage: usage}
}

// lookupParams resolves override params by exact source name, then by
// family key, then empty.
func lookupParams(overrides Overrides, name, family string) map[string]any {
	if overrides == nil {
		return map[string]any{}
	}
	if params := overrides.Defaults(name); len(params) > 0 {
		return params
	}
	if family != "" && family != name {
		if params := overrides.Defaults(family); len(params) > 0 {
			return params
		}
	}
	return map[string]any{}
}

func truncate(s string) string {
	if len(s) <= maxErrMessageLen {
		return s
	}
	return s[:maxErrMessageLen] + "..."
}
