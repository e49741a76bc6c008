package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Turn roles. The model side of the wire only knows user/model; tool turns
// carry function responses and system turns carry the standing instructions.
const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleModel  = "model"
	RoleTool   = "tool"
)

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the outcome of one tool call, paired by ID.
type ToolResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

// Turn is one ledger entry. A model turn may carry text, tool calls or
// both; a tool turn carries only results.
type Turn struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// LoadLedger returns the full ledger for a conversation in append order.
func (s *Store) LoadLedger(sessionKey string) ([]Turn, error) {
	rows, err := s.db.Query(
		`SELECT role, content, tool_calls, tool_results
		 FROM ledger_turns WHERE session_key = ? ORDER BY seq`, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", sessionKey, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var calls, results string
		if err := rows.Scan(&t.Role, &t.Content, &calls, &results); err != nil {
			return nil, fmt.Errorf("scan ledger turn: %w", err)
		}
		if calls != "" {
			if err := json.Unmarshal([]byte(calls), &t.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		if results != "" {
			if err := json.Unmarshal([]byte(results), &t.ToolResults); err != nil {
				return nil, fmt.Errorf("decode tool results: %w", err)
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// AppendTurn appends a turn at the next sequence number.
func (s *Store) AppendTurn(sessionKey string, t Turn) error {
	calls, results, err := encodeTurn(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO ledger_turns (session_key, seq, role, content, tool_calls, tool_results)
		 VALUES (?, (SELECT COALESCE(MAX(seq), -1) + 1 FROM ledger_turns WHERE session_key = ?),
		         ?, ?, ?, ?)`,
		sessionKey, sessionKey, t.Role, t.Content, calls, results)
	if err != nil {
		return fmt.Errorf("append turn for %s: %w", sessionKey, err)
	}
	return nil
}

// DropTrailingTurn removes the most recent turn. Used to repair a ledger
// whose final model turn has unanswered tool calls.
func (s *Store) DropTrailingTurn(sessionKey string) error {
	res, err := s.db.Exec(
		`DELETE FROM ledger_turns WHERE session_key = ?
		 AND seq = (SELECT MAX(seq) FROM ledger_turns WHERE session_key = ?)`,
		sessionKey, sessionKey)
	if err != nil {
		return fmt.Errorf("drop trailing turn for %s: %w", sessionKey, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ResetLedger deletes every turn for the conversation.
func (s *Store) ResetLedger(sessionKey string) error {
	_, err := s.db.Exec(`DELETE FROM ledger_turns WHERE session_key = ?`, sessionKey)
	if err != nil {
		return fmt.Errorf("reset ledger for %s: %w", sessionKey, err)
	}
	return nil
}

// LedgerLen returns the number of turns stored for the conversation.
func (s *Store) LedgerLen(sessionKey string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM ledger_turns WHERE session_key = ?`, sessionKey).Scan(&n)
	return n, err
}

func encodeTurn(t Turn) (calls, results string, err error) {
	if len(t.ToolCalls) > 0 {
		b, err := json.Marshal(t.ToolCalls)
		if err != nil {
			return "", "", fmt.Errorf("encode tool calls: %w", err)
		}
		calls = string(b)
	}
	if len(t.ToolResults) > 0 {
		b, err := json.Marshal(t.ToolResults)
		if err != nil {
			return "", "", fmt.Errorf("encode tool results: %w", err)
		}
		results = string(b)
	}
	return calls, results, nil
}
