package match

import (
	"encoding/json"

	"github.com/gridbox/tictactoe-match/internal/entity"
)

// Message is one inbound realtime message, attributed to a connected session.
type Message struct {
	OpCode OpCode          `json:"opCode"`
	Sender entity.Presence `json:"sender"`
	Data   json.RawMessage `json:"data"`
}

// MovePayload is the data of an OpCodeMove message.
type MovePayload struct {
	Position int `json:"position"`
}

// CreateParams are the optional parameters passed at match creation.
type CreateParams struct {
	MatchedUsers []entity.Presence `json:"matchedUsers,omitempty"`
}

// SignalPayload is an out-of-band signal delivered regardless of match
// status. Only the "reserve" type is understood.
type SignalPayload struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

const signalTypeReserve = "reserve"

// Label is the match discovery label, republished whenever occupancy or
// status changes.
type Label struct {
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
}

type GameStartPayload struct {
	Type        string                   `json:"type"`
	Players     []entity.PlayerInfo      `json:"players"`
	CurrentTurn int                      `json:"currentTurn"`
	Board       [entity.BoardSize]string `json:"board"`
}

type BoardUpdatePayload struct {
	Type        string                   `json:"type"`
	Board       [entity.BoardSize]string `json:"board"`
	CurrentTurn int                      `json:"currentTurn"`
	LastMove    int                      `json:"lastMove"`
}

type GameOverPayload struct {
	Type   string                   `json:"type"`
	Winner string                   `json:"winner"`
	Board  [entity.BoardSize]string `json:"board"`
	Reason string                   `json:"reason"`
}

type OpponentLeftPayload struct {
	Type string `json:"type"`
}

const (
	payloadTypeGameStart    = "game_start"
	payloadTypeBoardUpdate  = "board_update"
	payloadTypeGameOver     = "game_over"
	payloadTypeOpponentLeft = "opponent_left"

	reasonWin  = "win"
	reasonDraw = "draw"
)
