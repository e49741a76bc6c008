package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"saintagent/internal/browser"
	"saintagent/internal/creds"
	"saintagent/internal/portal"
)

// PortalToolSet builds the tools for one conversation's session. Every tool
// starts the session lazily on first use, so an idle conversation costs no
// browser process.
type PortalToolSet struct {
	client   *portal.Client
	sessions *browser.Store
	key      string
	userID   int64
	creds    creds.Provider
}

// NewPortalToolSet binds the portal primitives to a session key.
func NewPortalToolSet(client *portal.Client, sessions *browser.Store, key string, userID int64, provider creds.Provider) *PortalToolSet {
	return &PortalToolSet{
		client:   client,
		sessions: sessions,
		key:      key,
		userID:   userID,
		creds:    provider,
	}
}

// session returns the started session for this conversation.
func (ts *PortalToolSet) session(ctx context.Context) (*browser.Session, error) {
	s := ts.sessions.GetOrCreate(ts.key)
	if err := ts.sessions.Start(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterAll installs every portal tool into the registry.
func (ts *PortalToolSet) RegisterAll(r *Registry) error {
	all := []Tool{
		ts.loginTool(),
		ts.selectMenuTool(),
		ts.readScreenTool(),
		ts.listElementsTool(),
		ts.clickTool(),
		ts.typeTextTool(),
	}
	for _, t := range all {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (ts *PortalToolSet) loginTool() Tool {
	return Tool{
		Name: "portal_login",
		Description: "Log in to the university portal. Must be called before any " +
			"other portal tool on a fresh session. Safe to call when already " +
			"logged in.",
		Parameters: &genai.Schema{Type: genai.TypeObject},
		Describe:   func(map[string]any) string { return "Logging in to the portal" },
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			s, err := ts.session(ctx)
			if err != nil {
				return "", err
			}
			id, pw, err := ts.creds.Lookup(ts.userID)
			if err != nil {
				return "", err
			}
			if err := ts.client.Login(ctx, s, id, pw); err != nil {
				return "", err
			}
			return "logged in", nil
		},
	}
}

func (ts *PortalToolSet) selectMenuTool() Tool {
	return Tool{
		Name: "select_menu",
		Description: "Navigate the portal by clicking a menu entry with the given " +
			"exact title. Navigating replaces the current screen. Call read_screen " +
			"afterwards to see the result.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title": {Type: genai.TypeString, Description: "Exact menu entry title"},
			},
			Required: []string{"title"},
		},
		Describe: func(args map[string]any) string {
			if title, ok := args["title"].(string); ok {
				return fmt.Sprintf("Navigating to %s", title)
			}
			return "Navigating"
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			title, err := stringArg(args, "title")
			if err != nil {
				return "", err
			}
			s, err := ts.session(ctx)
			if err != nil {
				return "", err
			}
			if err := ts.client.SelectMenu(ctx, s, title); err != nil {
				return "", err
			}
			return fmt.Sprintf("navigated to %s", title), nil
		},
	}
}

func (ts *PortalToolSet) readScreenTool() Tool {
	return Tool{
		Name: "read_screen",
		Description: "Read the visible text of the current portal screen. " +
			"Returns plain text with decorative duplicates removed.",
		Parameters: &genai.Schema{Type: genai.TypeObject},
		Describe:   func(map[string]any) string { return "Reading the screen" },
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			s, err := ts.session(ctx)
			if err != nil {
				return "", err
			}
			text, err := ts.client.ReadContent(ctx, s)
			if err != nil {
				return "", err
			}
			if text == "" {
				return "the screen is empty", nil
			}
			return text, nil
		},
	}
}

func (ts *PortalToolSet) listElementsTool() Tool {
	return Tool{
		Name: "list_elements",
		Description: "List the clickable and fillable elements on the current " +
			"screen with the selectors to target them. Selectors become stale " +
			"after any navigation.",
		Parameters: &genai.Schema{Type: genai.TypeObject},
		Describe:   func(map[string]any) string { return "Inspecting the screen" },
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			s, err := ts.session(ctx)
			if err != nil {
				return "", err
			}
			elements, err := ts.client.InteractiveElements(ctx, s)
			if err != nil {
				return "", err
			}
			return portal.FormatElements(elements), nil
		},
	}
}

func (ts *PortalToolSet) clickTool() Tool {
	return Tool{
		Name: "click_element",
		Description: "Click the element matching the given CSS selector on the " +
			"current screen. Use selectors from list_elements.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"selector": {Type: genai.TypeString, Description: "CSS selector of the element"},
			},
			Required: []string{"selector"},
		},
		Describe: func(args map[string]any) string {
			if sel, ok := args["selector"].(string); ok {
				return fmt.Sprintf("Clicking %s", sel)
			}
			return "Clicking"
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			sel, err := stringArg(args, "selector")
			if err != nil {
				return "", err
			}
			s, err := ts.session(ctx)
			if err != nil {
				return "", err
			}
			if err := ts.client.Click(ctx, s, sel); err != nil {
				return "", err
			}
			return fmt.Sprintf("clicked %s", sel), nil
		},
	}
}

func (ts *PortalToolSet) typeTextTool() Tool {
	return Tool{
		Name: "type_text",
		Description: "Type text into the currently focused element. Click the " +
			"target input first with click_element.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text": {Type: genai.TypeString, Description: "Text to type"},
			},
			Required: []string{"text"},
		},
		Describe: func(map[string]any) string { return "Typing" },
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			text, err := stringArg(args, "text")
			if err != nil {
				return "", err
			}
			s, err := ts.session(ctx)
			if err != nil {
				return "", err
			}
			if err := ts.client.TypeText(ctx, s, text); err != nil {
				return "", err
			}
			return "typed", nil
		},
	}
}
