package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

const (
	// Client to server messages
	MessageTypeSit        MessageType = "sit"
	MessageTypeLeave      MessageType = "leave"
	MessageTypeStart      MessageType = "start"
	MessageTypeAction     MessageType = "action"
	MessageTypeSitOut     MessageType = "sit_out"
	MessageTypeSitIn      MessageType = "sit_in"
	MessageTypeRunItTwice MessageType = "run_it_twice"

	// Server to client messages
	MessageTypeState     MessageType = "state"
	MessageTypeHoleCards MessageType = "hole_cards"
	MessageTypeError     MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
