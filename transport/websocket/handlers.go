package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errMissingArgument  = errors.New("missing argument")
	errMalformedPayload = errors.New("malformed payload")
)

// Command results reach the client through the hub like every other subscriber, so handlers only report errors.

func (that *Server) handleGamePlay(ctx context.Context, gameID string, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.Index == nil {
		return fmt.Errorf("%w: index", errMissingArgument)
	}

	if _, err = that.games.Play(ctx, gameID, *payload.Index); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	return nil
}

func (that *Server) handleGameJump(ctx context.Context, gameID string, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.Step == nil {
		return fmt.Errorf("%w: step", errMissingArgument)
	}

	if _, err = that.games.JumpTo(ctx, gameID, *payload.Step); err != nil {
		return fmt.Errorf("failed to jump: %w", err)
	}

	return nil
}

func (that *Server) handleGameReverse(ctx context.Context, gameID string, _ *Message) error {
	if _, err := that.games.ToggleReverse(ctx, gameID); err != nil {
		return fmt.Errorf("failed to toggle reverse: %w", err)
	}

	return nil
}

func decodePayload(msg *Message) (Payload, error) {
	var payload Payload
	if len(msg.Payload) == 0 {
		return payload, nil
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("%w: %w", errMalformedPayload, err)
	}

	return payload, nil
}
