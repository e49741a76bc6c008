// Package tools holds the model-callable tool registry. Tools are the only
// bridge between the conversation loop and the automation layer; the loop
// never touches the browser directly.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"google.golang.org/genai"

	"saintagent/internal/logging"
)

var (
	// ErrUnknownTool means the model requested a name no tool registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidTool means a registration was rejected at construction.
	ErrInvalidTool = errors.New("invalid tool definition")
)

// Handler executes a tool call. Args carry the decoded function-call
// arguments; the returned string is delivered verbatim to the model.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool binds a declaration the model sees to the handler that serves it.
type Tool struct {
	Name        string
	Description string
	Parameters  *genai.Schema

	// Describe renders a short user-facing progress line for the call,
	// for example "Navigating to 학사관리". Optional; falls back to Name.
	Describe func(args map[string]any) string

	Handler Handler
}

// Registry is the validated tool set. Registration failures are programming
// errors and surface at startup, never mid-conversation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register validates and adds a tool. Duplicate names are rejected.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTool)
	}
	if t.Description == "" {
		return fmt.Errorf("%w: %s: empty description", ErrInvalidTool, t.Name)
	}
	if t.Handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrInvalidTool, t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s: already registered", ErrInvalidTool, t.Name)
	}
	r.tools[t.Name] = t
	logging.ToolsDebug("registered tool %s", t.Name)
	return nil
}

// MustRegister registers each tool and panics on the first failure. Used
// during wiring, where a bad definition should abort startup.
func (r *Registry) MustRegister(ts ...Tool) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Execute dispatches one tool call. Handler errors come back as errors, not
// panics; the caller converts them into model-visible failure responses.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	logging.Tools("executing %s", name)
	out, err := t.Handler(ctx, args)
	if err != nil {
		logging.Get(logging.CategoryTools).Warn("%s failed: %v", name, err)
		return "", err
	}
	return out, nil
}

// Describe returns the progress line for a pending call.
func (r *Registry) Describe(name string, args map[string]any) string {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok || t.Describe == nil {
		return name
	}
	return t.Describe(args)
}

// Declarations returns the function declarations in stable name order.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	decls := make([]*genai.FunctionDeclaration, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return decls
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}
