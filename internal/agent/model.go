package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"saintagent/internal/store"
)

// ErrProtocolRejected means the model API refused the conversation history
// itself (malformed call/response pairing), as opposed to a transient
// failure. The loop answers it by resetting the ledger.
var ErrProtocolRejected = errors.New("model rejected conversation history")

// ModelClient is the loop's view of the model. Generate receives the full
// ledger and the available tool declarations and returns the next model
// turn.
type ModelClient interface {
	Generate(ctx context.Context, turns []store.Turn, decls []*genai.FunctionDeclaration) (store.Turn, error)
}

// GeminiModel implements ModelClient over the Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates a model client. apiKey may come from config or
// the GEMINI_API_KEY environment variable.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

// Generate maps the ledger onto the wire format, calls the model and maps
// the response back into a ledger turn.
func (m *GeminiModel) Generate(ctx context.Context, turns []store.Turn, decls []*genai.FunctionDeclaration) (store.Turn, error) {
	contents, system := toContents(turns)

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && isProtocolRejection(apiErr) {
			return store.Turn{}, fmt.Errorf("%w: %v", ErrProtocolRejected, err)
		}
		return store.Turn{}, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return store.Turn{}, errors.New("model returned no candidates")
	}

	return fromContent(resp.Candidates[0].Content), nil
}

// isProtocolRejection reports whether an API error is the bad-request
// rejection of a malformed tool-call sequence in the history. Only that
// rejection warrants a ledger reset; other 400s (oversized request, bad
// schema) must not destroy the conversation.
func isProtocolRejection(apiErr genai.APIError) bool {
	if apiErr.Code != 400 {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "function call") || strings.Contains(msg, "function response")
}

// toContents converts ledger turns into wire contents. The system turn is
// lifted out into the system instruction; tool turns become user-role
// contents carrying function responses, which is how the API expects them.
func toContents(turns []store.Turn) (contents []*genai.Content, system string) {
	for _, t := range turns {
		switch t.Role {
		case store.RoleSystem:
			system = t.Content

		case store.RoleUser:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))

		case store.RoleModel:
			var parts []*genai.Part
			if t.Content != "" {
				parts = append(parts, &genai.Part{Text: t.Content})
			}
			for _, call := range t.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: call.Args,
				}})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})

		case store.RoleTool:
			var parts []*genai.Part
			for _, res := range t.ToolResults {
				response := map[string]any{"output": res.Output}
				if res.IsError {
					response = map[string]any{"error": res.Output}
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       res.ID,
					Name:     res.Name,
					Response: response,
				}})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
		}
	}
	return contents, system
}

// fromContent converts a response content into a ledger model turn.
func fromContent(c *genai.Content) store.Turn {
	t := store.Turn{Role: store.RoleModel}
	for _, part := range c.Parts {
		if part.Text != "" {
			if t.Content != "" {
				t.Content += "\n"
			}
			t.Content += part.Text
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				// The API may omit call IDs; the ledger keys results by
				// ID, so synthesize one.
				id = uuid.NewString()
			}
			t.ToolCalls = append(t.ToolCalls, store.ToolCall{
				ID:   id,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	return t
}
