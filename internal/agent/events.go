package agent

// EventType discriminates the progress events streamed to the caller.
type EventType string

const (
	// EventToolStart announces a tool call about to run, with a
	// human-readable description ("Navigating to 학사관리").
	EventToolStart EventType = "tool_start"

	// EventMessage carries the model's user-facing text. The final
	// message of a turn is always one of EventMessage or EventError.
	EventMessage EventType = "agent_message"

	// EventError carries a user-facing failure description.
	EventError EventType = "error"
)

// Event is one progress update from a running conversation turn. Tool is
// set only on EventToolStart.
type Event struct {
	Type EventType
	Tool string
	Text string
}

func toolStart(tool, text string) Event { return Event{Type: EventToolStart, Tool: tool, Text: text} }
func message(text string) Event         { return Event{Type: EventMessage, Text: text} }
func failure(text string) Event         { return Event{Type: EventError, Text: text} }
