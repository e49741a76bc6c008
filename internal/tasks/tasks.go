// Package tasks defines the scheduled automation tasks the change detector
// runs. Each task produces a string observation; the scheduler compares it
// to the stored last known result and decides whether to notify.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"saintagent/internal/store"
)

var (
	// ErrUnknownTask means a schedule names a task type with no
	// implementation. Its run is skipped, other schedules unaffected.
	ErrUnknownTask = errors.New("unknown task type")

	// ErrInvalidTask means a registration was rejected at construction.
	ErrInvalidTask = errors.New("invalid task definition")

	// ErrNoResult means the task ran but produced nothing to record
	// (for example an empty menu day). The run is a no-op.
	ErrNoResult = errors.New("task produced no result")
)

// RunFunc executes one task for one schedule and returns the observation.
type RunFunc func(ctx context.Context, sched store.Schedule) (string, error)

// Task is one registered task type.
type Task struct {
	Type string

	// NotifyAlways makes every non-empty observation notify, regardless of
	// whether it differs from the last known result. Menu-style tasks use
	// this: the user wants today's menu every time, not only when the menu
	// text changes.
	NotifyAlways bool

	Run RunFunc

	// Notification renders the user-facing message for a notifying run.
	Notification func(prev *string, current string) string
}

// Registry holds the validated task set.
type Registry struct {
	tasks map[string]Task
}

// NewRegistry builds a registry, rejecting malformed definitions up front.
func NewRegistry(ts ...Task) (*Registry, error) {
	r := &Registry{tasks: make(map[string]Task, len(ts))}
	for _, t := range ts {
		if t.Type == "" {
			return nil, fmt.Errorf("%w: empty type", ErrInvalidTask)
		}
		if t.Run == nil {
			return nil, fmt.Errorf("%w: %s: nil run func", ErrInvalidTask, t.Type)
		}
		if t.Notification == nil {
			return nil, fmt.Errorf("%w: %s: nil notification func", ErrInvalidTask, t.Type)
		}
		if _, dup := r.tasks[t.Type]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate type", ErrInvalidTask, t.Type)
		}
		r.tasks[t.Type] = t
	}
	return r, nil
}

// Get returns the task for a schedule's type.
func (r *Registry) Get(taskType string) (Task, error) {
	t, ok := r.tasks[taskType]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, taskType)
	}
	return t, nil
}

// Types returns the registered task type names.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		out = append(out, name)
	}
	return out
}

// decodeParams parses a schedule's JSON params blob. Empty params decode to
// an empty map.
func decodeParams(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode task params: %w", err)
	}
	return out, nil
}
