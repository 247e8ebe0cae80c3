package signaling

import "encoding/json"

// Message types for the offer/answer exchange.
const (
	TypeOffer  = "offer"
	TypeAnswer = "answer"
	TypeError  = "error"
)

// Path is the HTTP path the receiver serves signaling on.
const Path = "/signal"

// Message is the envelope for all signaling messages.
type Message struct {
	Type    string          `json:"type"`
	Stream  string          `json:"stream,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Msg     string          `json:"message,omitempty"`
}
