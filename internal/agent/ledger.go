// Package agent runs the tool-calling conversation loop between the user,
// the model and the portal automation layer.
package agent

import (
	"database/sql"
	"errors"

	"saintagent/internal/logging"
	"saintagent/internal/store"
)

// Settled reports whether the ledger is safe to extend: every tool call in
// the trailing model turn has a matching result. A ledger whose last model
// turn has unanswered calls is rejected by the model API, so it must be
// repaired before the next exchange.
func Settled(turns []store.Turn) bool {
	if len(turns) == 0 {
		return true
	}
	last := turns[len(turns)-1]
	if last.Role != store.RoleModel {
		return true
	}
	return len(last.ToolCalls) == 0
}

// Repair drops trailing turns until the ledger is settled. A crash between
// persisting a model turn and persisting its tool results leaves exactly one
// dangling turn, but the loop tolerates more.
func Repair(st *store.Store, sessionKey string) (int, error) {
	var dropped int
	for {
		turns, err := st.LoadLedger(sessionKey)
		if err != nil {
			return dropped, err
		}
		if Settled(turns) {
			if dropped > 0 {
				logging.Agent("repaired ledger %s: dropped %d turn(s)", sessionKey, dropped)
			}
			return dropped, nil
		}
		if err := st.DropTrailingTurn(sessionKey); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return dropped, nil
			}
			return dropped, err
		}
		dropped++
	}
}
