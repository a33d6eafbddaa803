package messages

import (
	"strings"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
)

// ResetScope is the "type" field of a reset command.
type ResetScope string

const (
	ScopeCall ResetScope = "call"
	ScopeBill ResetScope = "bill"
	ScopeAll  ResetScope = "all"
)

func ParseResetScope(s string) (ResetScope, bool) {
	switch sc := ResetScope(strings.TrimSpace(s)); sc {
	case ScopeCall, ScopeBill, ScopeAll:
		return sc, true
	default:
		return "", false
	}
}

// ResetCommand asks the station named by Target to clear both channels.
// Status must be false for the command to be actionable.
type ResetCommand struct {
	OriginID  model.NodeID
	Scope     ResetScope
	Status    bool
	Target    model.NodeID
	Timestamp time.Time
}

func (ResetCommand) isMessage() {}
