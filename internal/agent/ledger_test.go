package agent

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saintagent/internal/store"
)

func TestSettled(t *testing.T) {
	assert.True(t, Settled(nil))
	assert.True(t, Settled([]store.Turn{
		{Role: store.RoleUser, Content: "hi"},
	}))
	assert.True(t, Settled([]store.Turn{
		{Role: store.RoleModel, Content: "hello"},
	}))
	assert.False(t, Settled([]store.Turn{
		{Role: store.RoleModel, ToolCalls: []store.ToolCall{{ID: "c1", Name: "read_screen"}}},
	}))
	// Answered calls settle the ledger even though the model turn has calls.
	assert.True(t, Settled([]store.Turn{
		{Role: store.RoleModel, ToolCalls: []store.ToolCall{{ID: "c1", Name: "read_screen"}}},
		{Role: store.RoleTool, ToolResults: []store.ToolResult{{ID: "c1", Name: "read_screen", Output: "x"}}},
	}))
}

func TestRepairDropsExactlyTheDanglingTurn(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "repair.db"))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.AppendTurn("user:1", store.Turn{Role: store.RoleSystem, Content: "sys"}))
	require.NoError(t, st.AppendTurn("user:1", store.Turn{Role: store.RoleUser, Content: "gpa?"}))
	require.NoError(t, st.AppendTurn("user:1", store.Turn{
		Role:      store.RoleModel,
		ToolCalls: []store.ToolCall{{ID: "c1", Name: "read_screen"}},
	}))

	dropped, err := Repair(st, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	turns, err := st.LoadLedger("user:1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, store.RoleUser, turns[1].Role)
}

func TestRepairOnSettledLedgerIsNoop(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "repair.db"))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.AppendTurn("user:1", store.Turn{Role: store.RoleUser, Content: "hi"}))
	require.NoError(t, st.AppendTurn("user:1", store.Turn{Role: store.RoleModel, Content: "hello"}))

	dropped, err := Repair(st, "user:1")
	require.NoError(t, err)
	assert.Zero(t, dropped)

	n, err := st.LedgerLen("user:1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRepairEmptyLedger(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "repair.db"))
	require.NoError(t, err)
	defer st.Close()

	dropped, err := Repair(st, "user:unknown")
	require.NoError(t, err)
	assert.Zero(t, dropped)
}
