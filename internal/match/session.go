package match

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gridbox/tictactoe-match/internal/apperror"
	"github.com/gridbox/tictactoe-match/internal/entity"
	"github.com/gridbox/tictactoe-match/internal/tictactoe"
)

const ModeName = "tictactoe"

// Dispatcher delivers outbound events for one match: broadcasts to the
// seated sessions and updates to the discovery label.
type Dispatcher interface {
	BroadcastMessage(opCode OpCode, data []byte) error
	MatchLabelUpdate(label string) error
}

// AccountLookup resolves an authoritative display name for a user.
type AccountLookup interface {
	Username(ctx context.Context, userID string) (string, error)
}

// StatsAccrual records the outcome of a finished match. Implementations
// handle their own failures; the session never aborts on accrual.
type StatsAccrual interface {
	Accrue(ctx context.Context, players []entity.PlayerInfo, winner string)
}

// Session is the state machine for one match. All methods must be called
// from a single goroutine; the runner guarantees that.
type Session struct {
	logger     *slog.Logger
	state      *entity.MatchState
	dispatcher Dispatcher
	accounts   AccountLookup
	stats      StatsAccrual
}

func NewSession(logger *slog.Logger, state *entity.MatchState, dispatcher Dispatcher, accounts AccountLookup, stats StatsAccrual) *Session {
	return &Session{
		logger:     logger.With("component", "match", "matchID", state.ID),
		state:      state,
		dispatcher: dispatcher,
		accounts:   accounts,
		stats:      stats,
	}
}

func (that *Session) State() *entity.MatchState {
	return that.state
}

// Label renders the current discovery label.
func (that *Session) Label() string {
	label := Label{
		Mode:       ModeName,
		Status:     that.state.Status,
		Players:    len(that.state.Players),
		MaxPlayers: entity.MaxPlayers,
	}

	raw, err := json.Marshal(label)
	if err != nil {
		that.logger.Error("failed to marshal label", "error", err)
		return ""
	}

	return string(raw)
}

// JoinAttempt gates admission before any seat is assigned. It never
// mutates state.
func (that *Session) JoinAttempt(presence entity.Presence) (bool, string) {
	if len(that.state.Players) >= entity.MaxPlayers {
		return false, rejectReason(apperror.ErrMatchFull)
	}

	if that.state.IsReserved() && !that.state.IsReservedFor(presence.UserID) {
		that.logger.Warn("user attempted to join reserved match", "userID", presence.UserID)
		return false, rejectReason(apperror.ErrMatchReserved)
	}

	that.logger.Info("player join attempt accepted", "userID", presence.UserID)

	return true, ""
}

// rejectReason maps an admission error to the reject message sent back to
// the client.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, apperror.ErrMatchFull):
		return "Match is full"
	case errors.Is(err, apperror.ErrMatchReserved):
		return "Match is reserved for matched players"
	default:
		return err.Error()
	}
}

// Join seats newly admitted presences. When the second seat fills the match
// goes active, the game-start event is broadcast and the label republished.
func (that *Session) Join(ctx context.Context, presences []entity.Presence) {
	for _, presence := range presences {
		// two admissions can race for the last seat; the late one is dropped
		if len(that.state.Players) >= entity.MaxPlayers {
			that.logger.Warn("no seat left for admitted player", "userID", presence.UserID)
			continue
		}

		username := that.resolveUsername(ctx, presence)
		symbol := that.state.NextSymbol()

		that.state.Players = append(that.state.Players, entity.PlayerInfo{
			UserID:    presence.UserID,
			Username:  username,
			Symbol:    symbol,
			SessionID: presence.SessionID,
		})

		that.logger.Info("player joined", "userID", presence.UserID, "symbol", symbol)
	}

	if len(that.state.Players) == entity.MaxPlayers && that.state.IsWaiting() {
		that.state.Status = entity.StatusActive

		that.broadcast(OpCodeUpdate, GameStartPayload{
			Type:        payloadTypeGameStart,
			Players:     that.state.Players,
			CurrentTurn: that.state.CurrentTurn,
			Board:       that.state.Board,
		})

		that.updateLabel()

		that.logger.Info("game started with 2 players")
	}
}

// Leave removes departing presences. Departure from an active match forces
// completion: the remaining player is credited with the win and the
// departed one receives no stat update.
func (that *Session) Leave(ctx context.Context, presences []entity.Presence) {
	for _, presence := range presences {
		that.state.RemoveBySessionID(presence.SessionID)
		that.logger.Info("player left", "userID", presence.UserID)
	}

	if !that.state.IsActive() || len(that.state.Players) == 0 {
		return
	}

	that.broadcast(OpCodeOpponentLeft, OpponentLeftPayload{Type: payloadTypeOpponentLeft})
	that.state.Status = entity.StatusCompleted
	that.updateLabel()

	if len(that.state.Players) == 1 {
		remaining := that.state.Players[0]
		that.stats.Accrue(ctx, that.state.Players, remaining.Symbol)
	}
}

// Loop processes one batch of queued realtime messages. Only MOVE messages
// are interpreted; everything else is ignored.
func (that *Session) Loop(ctx context.Context, messages []Message) {
	for _, message := range messages {
		if message.OpCode != OpCodeMove {
			continue
		}

		that.processMove(ctx, message)
	}
}

// processMove validates and applies one move. Rejections are logged only:
// no state change, no broadcast.
func (that *Session) processMove(ctx context.Context, message Message) {
	if !that.state.IsActive() {
		that.logger.Warn("move while match not active", "userID", message.Sender.UserID)
		return
	}

	var payload MovePayload
	if err := json.Unmarshal(message.Data, &payload); err != nil {
		that.logger.Warn("malformed move payload", "error", err)
		return
	}

	currentPlayer := that.state.CurrentPlayer()
	if currentPlayer == nil || message.Sender.UserID != currentPlayer.UserID {
		that.logger.Warn("not player turn", "userID", message.Sender.UserID)
		return
	}

	if !tictactoe.IsLegalMove(that.state.Board, payload.Position) {
		that.logger.Warn("invalid move", "position", payload.Position)
		return
	}

	that.state.Board[payload.Position] = currentPlayer.Symbol
	that.state.MoveHistory = append(that.state.MoveHistory, entity.Move{
		Player:    currentPlayer.UserID,
		Position:  payload.Position,
		Timestamp: time.Now().UnixMilli(),
	})

	that.logger.Info("move made", "symbol", currentPlayer.Symbol, "position", payload.Position)

	winner := tictactoe.DetectWinner(that.state.Board)

	switch {
	case winner != entity.EmptyCell:
		that.state.Winner = winner
		that.state.Status = entity.StatusCompleted

		that.broadcast(OpCodeGameOver, GameOverPayload{
			Type:   payloadTypeGameOver,
			Winner: winner,
			Board:  that.state.Board,
			Reason: reasonWin,
		})
		that.updateLabel()

		that.logger.Info("game over", "winner", winner)

		that.stats.Accrue(ctx, that.state.Players, winner)

	case tictactoe.IsDraw(that.state.Board, len(that.state.MoveHistory)):
		that.state.Status = entity.StatusCompleted

		that.broadcast(OpCodeGameOver, GameOverPayload{
			Type:   payloadTypeGameOver,
			Board:  that.state.Board,
			Reason: reasonDraw,
		})
		that.updateLabel()

		that.logger.Info("game over, draw")

		that.stats.Accrue(ctx, that.state.Players, entity.EmptyCell)

	default:
		if that.state.CurrentTurn == 0 {
			that.state.CurrentTurn = 1
		} else {
			that.state.CurrentTurn = 0
		}

		that.broadcast(OpCodeUpdate, BoardUpdatePayload{
			Type:        payloadTypeBoardUpdate,
			Board:       that.state.Board,
			CurrentTurn: that.state.CurrentTurn,
			LastMove:    payload.Position,
		})
	}
}

// Signal handles an out-of-band signal at any point of the match lifecycle.
// Malformed payloads are logged and ignored.
func (that *Session) Signal(data []byte) {
	var payload SignalPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		that.logger.Error("failed to process match signal", "error", err)
		return
	}

	if payload.Type != signalTypeReserve || payload.UserID == "" {
		return
	}

	that.state.Reserve(payload.UserID)
	that.logger.Info("reserved spot for user", "userID", payload.UserID)
}

// Terminate acknowledges host-driven teardown and hands back the final
// state for any persistence the host performs.
func (that *Session) Terminate(graceSeconds int) *entity.MatchState {
	that.logger.Info("match terminated", "graceSeconds", graceSeconds)
	return that.state
}

func (that *Session) resolveUsername(ctx context.Context, presence entity.Presence) string {
	username, err := that.accounts.Username(ctx, presence.UserID)
	if err == nil && username != "" {
		return username
	}

	if err != nil {
		that.logger.Warn("account lookup failed, using presence username", "userID", presence.UserID, "error", err)
	}

	if presence.Username != "" {
		return presence.Username
	}

	return "Player"
}

func (that *Session) broadcast(opCode OpCode, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		that.logger.Error("failed to marshal broadcast payload", "error", err)
		return
	}

	if err = that.dispatcher.BroadcastMessage(opCode, raw); err != nil {
		that.logger.Error("failed to broadcast message", "opCode", opCode, "error", err)
	}
}

func (that *Session) updateLabel() {
	if err := that.dispatcher.MatchLabelUpdate(that.Label()); err != nil {
		that.logger.Error("failed to update match label", "error", err)
	}
}
