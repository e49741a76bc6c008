package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func noopTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "test tool " + name,
		Parameters:  &genai.Schema{Type: genai.TypeObject},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	}
}

func TestRegisterRejectsInvalidDefinitions(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Tool{Description: "d", Handler: noopTool("x").Handler})
	assert.ErrorIs(t, err, ErrInvalidTool)

	err = r.Register(Tool{Name: "n", Handler: noopTool("x").Handler})
	assert.ErrorIs(t, err, ErrInvalidTool)

	err = r.Register(Tool{Name: "n", Description: "d"})
	assert.ErrorIs(t, err, ErrInvalidTool)

	assert.Zero(t, r.Len())
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopTool("read_screen")))

	err := r.Register(noopTool("read_screen"))
	assert.ErrorIs(t, err, ErrInvalidTool)
	assert.Equal(t, 1, r.Len())
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestExecutePropagatesHandlerError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("frame gone")
	tool := noopTool("flaky")
	tool.Handler = func(ctx context.Context, args map[string]any) (string, error) {
		return "", boom
	}
	require.NoError(t, r.Register(tool))

	_, err := r.Execute(context.Background(), "flaky", nil)
	assert.ErrorIs(t, err, boom)
}

func TestDeclarationsAreSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopTool("zeta")))
	require.NoError(t, r.Register(noopTool("alpha")))
	require.NoError(t, r.Register(noopTool("mid")))

	decls := r.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, "alpha", decls[0].Name)
	assert.Equal(t, "mid", decls[1].Name)
	assert.Equal(t, "zeta", decls[2].Name)
}

func TestDescribeFallsBackToName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopTool("read_screen")))

	assert.Equal(t, "read_screen", r.Describe("read_screen", nil))
	assert.Equal(t, "ghost", r.Describe("ghost", nil))
}

func TestDescribeUsesToolDescriber(t *testing.T) {
	r := NewRegistry()
	tool := noopTool("select_menu")
	tool.Describe = func(args map[string]any) string {
		if title, ok := args["title"].(string); ok {
			return "Navigating to " + title
		}
		return "Navigating"
	}
	require.NoError(t, r.Register(tool))

	got := r.Describe("select_menu", map[string]any{"title": "학사관리"})
	assert.Equal(t, "Navigating to 학사관리", got)
}

func TestStringArg(t *testing.T) {
	_, err := stringArg(map[string]any{}, "title")
	assert.Error(t, err)

	_, err = stringArg(map[string]any{"title": 7}, "title")
	assert.Error(t, err)

	got, err := stringArg(map[string]any{"title": "성적"}, "title")
	require.NoError(t, err)
	assert.Equal(t, "성적", got)
}
