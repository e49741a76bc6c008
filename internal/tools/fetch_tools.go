package tools

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"saintagent/internal/cafeteria"
	"saintagent/internal/knowledge"
)

// CafeteriaTool exposes the campus menu fetcher to the model.
func CafeteriaTool(client *cafeteria.Client) Tool {
	return Tool{
		Name: "fetch_cafeteria_menu",
		Description: "Fetch the campus cafeteria menu. Restaurant codes: " +
			"1=학생식당, 2=숭실도담식당, 4=스넥코너, 5=푸드코트, 6=THE KITCHEN, " +
			"7=FACULTY LOUNGE. Date is YYYYMMDD; omit it for today.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"restaurant_code": {Type: genai.TypeInteger, Description: "Restaurant code (1, 2, 4, 5, 6 or 7)"},
				"date":            {Type: genai.TypeString, Description: "Date in YYYYMMDD format; defaults to today"},
			},
			Required: []string{"restaurant_code"},
		},
		Describe: func(map[string]any) string { return "Checking the cafeteria menu" },
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			code, err := intArg(args, "restaurant_code")
			if err != nil {
				return "", err
			}
			date, _ := args["date"].(string)
			if date == "" {
				date = time.Now().Format("20060102")
			}
			day, err := client.FetchMenu(ctx, code, date)
			if err != nil {
				return "", err
			}
			return cafeteria.Format(day), nil
		},
	}
}

// NoticeSearchTool exposes the archived notice board search.
func NoticeSearchTool(kb knowledge.Searcher) Tool {
	return Tool{
		Name: "search_notices",
		Description: "Search archived university announcements by keywords. " +
			"Returns matching notice titles with links, newest first.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {Type: genai.TypeString, Description: "Space-separated keywords; all must match"},
			},
			Required: []string{"query"},
		},
		Describe: func(args map[string]any) string {
			if q, ok := args["query"].(string); ok {
				return fmt.Sprintf("Searching notices for %q", q)
			}
			return "Searching notices"
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := stringArg(args, "query")
			if err != nil {
				return "", err
			}
			hits, err := kb.Search(ctx, query, 10)
			if err != nil {
				return "", err
			}
			return knowledge.FormatResults(hits), nil
		},
	}
}

// intArg extracts a required integer argument. The wire decodes numbers as
// float64, so both forms are accepted.
func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", key)
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}
