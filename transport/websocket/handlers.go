package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridbox/tictactoe-match/internal/entity"
	"github.com/gridbox/tictactoe-match/internal/match"
)

// handleConnect - binds a user identity to the session.
func (that *Server) handleConnect(_ context.Context, s *session, message *Message) error {
	var payload ConnectPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return that.sendErrorResponse(s, "connect:ack", "invalid payload")
	}

	if payload.UserID == "" {
		return that.sendErrorResponse(s, "connect:ack", "userId is required")
	}

	s.presence = entity.Presence{
		UserID:    payload.UserID,
		Username:  payload.Username,
		SessionID: s.id,
	}

	return s.send("connect:ack", AckPayload{SessionID: s.id})
}

// handleCreateMatch - creates a fresh match and acks its id.
func (that *Server) handleCreateMatch(_ context.Context, s *session, _ *Message) error {
	if s.presence.UserID == "" {
		return that.sendErrorResponse(s, "match:create:ack", "connect first")
	}

	matchID := that.registry.CreateMatch(match.CreateParams{})

	return s.send("match:create:ack", AckPayload{MatchID: matchID})
}

// handleJoinMatch - seats the session's user in a match.
func (that *Server) handleJoinMatch(ctx context.Context, s *session, message *Message) error {
	if s.presence.UserID == "" {
		return that.sendErrorResponse(s, "match:join:ack", "connect first")
	}

	var payload MatchPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return that.sendErrorResponse(s, "match:join:ack", "invalid payload")
	}

	runner, err := that.registry.Get(payload.MatchID)
	if err != nil {
		return that.sendErrorResponse(s, "match:join:ack", "match not found")
	}

	accepted, reason, err := runner.JoinAttempt(ctx, s.presence)
	if err != nil {
		return fmt.Errorf("join attempt failed: %w", err)
	}

	if !accepted {
		return that.sendErrorResponse(s, "match:join:ack", reason)
	}

	that.hub.subscribe(runner.ID(), s)

	if err = runner.Join(s.presence); err != nil {
		that.hub.unsubscribe(runner.ID(), s)
		return fmt.Errorf("join failed: %w", err)
	}

	return s.send("match:join:ack", AckPayload{MatchID: runner.ID()})
}

// handleMove - forwards a move to the match.
func (that *Server) handleMove(_ context.Context, s *session, message *Message) error {
	var payload MatchPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return that.sendErrorResponse(s, "match:move:ack", "invalid payload")
	}

	runner, err := that.registry.Get(payload.MatchID)
	if err != nil {
		return that.sendErrorResponse(s, "match:move:ack", "match not found")
	}

	data, err := json.Marshal(match.MovePayload{Position: payload.Position})
	if err != nil {
		return fmt.Errorf("failed to marshal move: %w", err)
	}

	if err = runner.SendMessage(match.Message{
		OpCode: match.OpCodeMove,
		Sender: s.presence,
		Data:   data,
	}); err != nil {
		return that.sendErrorResponse(s, "match:move:ack", err.Error())
	}

	return nil
}

// handleLeaveMatch - removes the session's user from a match.
func (that *Server) handleLeaveMatch(_ context.Context, s *session, message *Message) error {
	var payload MatchPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return that.sendErrorResponse(s, "match:leave:ack", "invalid payload")
	}

	runner, err := that.registry.Get(payload.MatchID)
	if err != nil {
		return that.sendErrorResponse(s, "match:leave:ack", "match not found")
	}

	that.hub.unsubscribe(payload.MatchID, s)

	if err = runner.Leave(s.presence); err != nil {
		return fmt.Errorf("leave failed: %w", err)
	}

	return s.send("match:leave:ack", AckPayload{MatchID: payload.MatchID})
}

// handleQuickMatch - queues the user for matchmaking. When a pair forms
// both players are notified through the notification channel, so the ack
// only reports queue placement unless the match was made right away.
func (that *Server) handleQuickMatch(ctx context.Context, s *session, _ *Message) error {
	if s.presence.UserID == "" {
		return that.sendErrorResponse(s, "match:quick:ack", "connect first")
	}

	matchID, matched := that.matchmaking.Enqueue(ctx, s.presence)
	if !matched {
		return s.send("match:quick:ack", AckPayload{Message: "waiting for opponent"})
	}

	return s.send("match:quick:ack", AckPayload{MatchID: matchID})
}

func (that *Server) sendErrorResponse(s *session, action, reason string) error {
	return s.send(action, AckPayload{Error: reason})
}
