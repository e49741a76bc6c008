package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"saintagent/internal/logging"
	"saintagent/internal/store"
	"saintagent/internal/tools"
)

// ErrBusy means a turn is already running for the conversation. Concurrent
// turns against one browser session would interleave navigation, so the
// second request is rejected rather than queued.
var ErrBusy = errors.New("a request is already being processed for this conversation")

// Config bounds the conversation loop.
type Config struct {
	// MaxRounds caps model round-trips per user message. A model that
	// keeps calling tools past the cap gets cut off with an error event.
	MaxRounds int
}

// DefaultConfig returns the default loop bounds.
func DefaultConfig() Config {
	return Config{MaxRounds: 10}
}

// Agent owns the conversation loop for every conversation key.
type Agent struct {
	cfg   Config
	model ModelClient
	st    *store.Store

	mu    sync.Mutex
	locks map[string]*convLock
}

// convLock serializes turns for one conversation key. Refcounted so the
// map entry is removed when the last interested turn finishes.
type convLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an agent over the given model and persistence layer.
func New(cfg Config, model ModelClient, st *store.Store) *Agent {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultConfig().MaxRounds
	}
	return &Agent{
		cfg:   cfg,
		model: model,
		st:    st,
		locks: make(map[string]*convLock),
	}
}

// acquire takes the conversation lock for key, reporting false when a turn
// is already running.
func (a *Agent) acquire(key string) (*convLock, bool) {
	a.mu.Lock()
	l, ok := a.locks[key]
	if !ok {
		l = &convLock{}
		a.locks[key] = l
	}
	l.refs++
	a.mu.Unlock()

	if !l.mu.TryLock() {
		a.release(key, l)
		return nil, false
	}
	return l, true
}

func (a *Agent) release(key string, l *convLock) {
	a.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(a.locks, key)
	}
	a.mu.Unlock()
}

// HandleMessage runs one full conversation turn and streams progress events.
// The returned channel is closed when the turn finishes; the final event is
// always an EventMessage or EventError. If a turn is already running for the
// key, a single busy EventError is emitted.
func (a *Agent) HandleMessage(ctx context.Context, key string, registry *tools.Registry, userMessage string) <-chan Event {
	events := make(chan Event, 8)

	go func() {
		defer close(events)

		l, ok := a.acquire(key)
		if !ok {
			events <- failure("I'm still working on your previous request. Please wait for it to finish.")
			return
		}
		defer func() {
			l.mu.Unlock()
			a.release(key, l)
		}()

		if err := a.runTurn(ctx, key, registry, userMessage, events); err != nil {
			logging.Get(logging.CategoryAgent).Warn("turn failed (%s): %v", key, err)
		}
	}()

	return events
}

func (a *Agent) runTurn(ctx context.Context, key string, registry *tools.Registry, userMessage string, events chan<- Event) error {
	if _, err := Repair(a.st, key); err != nil {
		events <- failure("I couldn't restore the conversation state. Please try again.")
		return err
	}

	turns, err := a.st.LoadLedger(key)
	if err != nil {
		events <- failure("I couldn't load the conversation. Please try again.")
		return err
	}
	if len(turns) == 0 {
		sys := store.Turn{Role: store.RoleSystem, Content: systemPrompt}
		if err := a.st.AppendTurn(key, sys); err != nil {
			events <- failure("I couldn't start the conversation. Please try again.")
			return err
		}
		turns = append(turns, sys)
	}

	userTurn := store.Turn{Role: store.RoleUser, Content: userMessage}
	if err := a.st.AppendTurn(key, userTurn); err != nil {
		events <- failure("I couldn't record your message. Please try again.")
		return err
	}
	turns = append(turns, userTurn)

	decls := registry.Declarations()
	for round := 0; round < a.cfg.MaxRounds; round++ {
		modelTurn, err := a.model.Generate(ctx, turns, decls)
		if err != nil {
			if errors.Is(err, ErrProtocolRejected) {
				return a.resetAfterRejection(key, events, err)
			}
			events <- failure("I couldn't reach the assistant service. Please try again.")
			return err
		}

		if err := a.st.AppendTurn(key, modelTurn); err != nil {
			events <- failure("I couldn't record the reply. Please try again.")
			return err
		}
		turns = append(turns, modelTurn)

		if len(modelTurn.ToolCalls) == 0 {
			text := modelTurn.Content
			if text == "" {
				text = "Done."
			}
			events <- message(text)
			return nil
		}

		toolTurn := store.Turn{Role: store.RoleTool}
		var toolErr error
		for _, call := range modelTurn.ToolCalls {
			result := store.ToolResult{ID: call.ID, Name: call.Name}
			if toolErr != nil {
				// A tool already failed this round; close the remaining
				// declared calls without running them so the ledger stays
				// settled.
				result.Output = "not executed: a previous tool call failed"
				result.IsError = true
				toolTurn.ToolResults = append(toolTurn.ToolResults, result)
				continue
			}

			events <- toolStart(call.Name, registry.Describe(call.Name, call.Args))
			out, err := registry.Execute(ctx, call.Name, call.Args)
			result.Output = out
			if err != nil {
				result.Output = err.Error()
				result.IsError = true
				toolErr = fmt.Errorf("tool %s: %w", call.Name, err)
			}
			toolTurn.ToolResults = append(toolTurn.ToolResults, result)
		}

		if err := a.st.AppendTurn(key, toolTurn); err != nil {
			events <- failure("I couldn't record the tool results. Please try again.")
			return err
		}
		turns = append(turns, toolTurn)

		// A failed tool ends the turn: the failure is reported to the user,
		// who decides whether to re-send the request.
		if toolErr != nil {
			events <- failure("A step failed while handling your request. Please try again.")
			return toolErr
		}
	}

	events <- failure("This request took too many steps. Please try a simpler request.")
	return fmt.Errorf("round limit reached for %s", key)
}

// resetAfterRejection clears the ledger once and tells the user to retry.
// No automatic re-drive: the failed exchange is gone and retrying blind
// could loop on the same rejection.
func (a *Agent) resetAfterRejection(key string, events chan<- Event, cause error) error {
	logging.Agent("protocol rejection for %s, resetting ledger: %v", key, cause)
	if err := a.st.ResetLedger(key); err != nil {
		events <- failure("The conversation is corrupted and could not be reset. Please try again later.")
		return err
	}
	events <- failure("The conversation history was corrupted and has been reset. Please send your request again.")
	return cause
}
