package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart    Action = "start"
	ActionAutosave Action = "autosave"
	ActionNext     Action = "next"
	ActionPrev     Action = "prev"
	ActionJump     Action = "jump"
	ActionMark     Action = "mark"
	ActionClear    Action = "clear"
	ActionRun      Action = "run"
	ActionSecurity Action = "security"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Request is the single client message shape. Action selects which of the
// optional fields matter; unused fields stay at their zero value.
type Request struct {
	Action Action `json:"action"`
	// Autosave / run
	QID  string `json:"q_id,omitempty"`
	Code string `json:"code,omitempty"`
	// Jump
	Index int `json:"index,omitempty"`
	// Security
	Fullscreen bool `json:"fullscreen"`
	Visible    bool `json:"visible"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSuccess   Event = "success"
	EventState     Event = "state"
	EventRunResult Event = "run_result"
	EventWarning   Event = "warning"
	EventGraded    Event = "graded"
	EventPong      Event = "pong"
)

// SuccessResponse acknowledges an action that has no richer payload.
type SuccessResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
}

// StateResponse carries the authoritative session snapshot.
type StateResponse struct {
	Event Event `json:"event"`
	State any   `json:"state"`
}

// RunResultResponse carries the outcome of a code run.
type RunResultResponse struct {
	Event  Event  `json:"event"`
	QID    string `json:"q_id"`
	Result any    `json:"result"`
}

// WarningResponse signals a proctoring event to the client.
type WarningResponse struct {
	Event     Event  `json:"event"`
	Message   string `json:"message"`
	ExitCount int    `json:"exit_count"`
	OverLimit bool   `json:"over_limit"`
}

// GradedResponse reports the final persisted score.
type GradedResponse struct {
	Event         Event   `json:"event"`
	Score         float64 `json:"score"`
	AutoSubmitted bool    `json:"auto_submitted"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
