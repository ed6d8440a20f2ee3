package server

import (
	"encoding/json"
	"time"

	"github.com/lox/holdem-engine/poker"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

// SitData asks for a seat. A nil Seat takes the first open one and an empty
// Name uses the player id.
type SitData struct {
	Seat  *int   `json:"seat,omitempty"`
	BuyIn int    `json:"buyIn"`
	Name  string `json:"name,omitempty"`
}

// ActionData is a betting decision for the turn identified by TurnID.
type ActionData struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
	TurnID string `json:"turnId"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type HoleCardsData struct {
	Hand  int           `json:"hand"`
	Cards [2]poker.Card `json:"cards"`
}

// RunItTwiceData reports who has agreed to run the board twice so far.
type RunItTwiceData struct {
	Hand   int      `json:"hand"`
	Agreed []string `json:"agreed"`
}
