package websocket

import (
	"encoding/json"

	"github.com/gianpietrodimatteo/tictactoe-backend/internal/entity"
)

const (
	actionGameState   = "game:state"
	actionGamePlay    = "game:play"
	actionGameJump    = "game:jump"
	actionGameReverse = "game:reverse"
)

// Message is the envelope for everything sent over the socket in either direction.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload carries command arguments from the client and errors back to it.
type Payload struct {
	Index *int   `json:"index,omitempty"`
	Step  *int   `json:"step,omitempty"`
	Error string `json:"error,omitempty"`
}

func newMessage(action string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{Action: action, Payload: raw}, nil
}

func stateMessage(snapshot entity.Snapshot) (Message, error) {
	return newMessage(actionGameState, snapshot)
}

func errorMessage(action, errorMsg string) Message {
	msg, _ := newMessage(action, Payload{Error: errorMsg})
	return msg
}
