package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventPersisted Event = "persisted"
	EventCompleted Event = "completed"
	EventPong      Event = "pong"
)

// PersistedResponse acknowledges that a progress snapshot reached the
// authoritative store.
type PersistedResponse struct {
	Event        Event  `json:"event"`
	Module       string `json:"module"`
	Cycle        int    `json:"cycle"`
	CurrentIndex int    `json:"currentIndex"`
}

// CompletedResponse announces that a cycle's final snapshot was persisted.
type CompletedResponse struct {
	Event  Event  `json:"event"`
	Module string `json:"module"`
	Cycle  int    `json:"cycle"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
