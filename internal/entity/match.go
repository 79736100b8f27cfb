package entity

import "time"

const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"

	SymbolX = "X"
	SymbolO = "O"

	EmptyCell = ""

	MaxPlayers = 2

	BoardSize = 9
)

// Presence is a connected user/session pair as seen by the transport layer.
type Presence struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	SessionID string `json:"sessionId"`
}

// PlayerInfo is a seated player inside a match.
type PlayerInfo struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Symbol    string `json:"symbol"`
	SessionID string `json:"sessionId"`
}

// Move is one accepted move, appended to the match history.
type Move struct {
	Player    string `json:"player"`
	Position  int    `json:"position"`
	Timestamp int64  `json:"timestamp"`
}

// MatchState is the authoritative record of one game instance. It is owned
// exclusively by the match runner for the lifetime of the match; nothing
// outside that single goroutine mutates it.
type MatchState struct {
	ID              string            `json:"id"`
	Board           [BoardSize]string `json:"board"`
	Players         []PlayerInfo      `json:"players"`
	ReservedPlayers []string          `json:"reservedPlayers"`
	CurrentTurn     int               `json:"currentTurn"`
	Winner          string            `json:"winner"`
	Status          string            `json:"gameStatus"`
	MoveHistory     []Move            `json:"moveHistory"`
	StartTime       time.Time         `json:"startTime"`
}

func NewMatchState(id string, matchedUsers []Presence) *MatchState {
	state := &MatchState{
		ID:        id,
		Status:    StatusWaiting,
		StartTime: time.Now(),
	}

	for _, user := range matchedUsers {
		state.ReservedPlayers = append(state.ReservedPlayers, user.UserID)
	}

	return state
}

func (that *MatchState) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *MatchState) IsActive() bool {
	return that.Status == StatusActive
}

func (that *MatchState) IsCompleted() bool {
	return that.Status == StatusCompleted
}

// IsReserved reports whether the match is restricted to a matched cohort.
func (that *MatchState) IsReserved() bool {
	return len(that.ReservedPlayers) > 0
}

func (that *MatchState) IsReservedFor(userID string) bool {
	for _, reserved := range that.ReservedPlayers {
		if reserved == userID {
			return true
		}
	}
	return false
}

// Reserve adds a user to the reserved set. Idempotent.
func (that *MatchState) Reserve(userID string) {
	if that.IsReservedFor(userID) {
		return
	}
	that.ReservedPlayers = append(that.ReservedPlayers, userID)
}

// CurrentPlayer returns the player whose move is legal next, or nil while
// the match is not fully seated.
func (that *MatchState) CurrentPlayer() *PlayerInfo {
	if that.CurrentTurn < 0 || that.CurrentTurn >= len(that.Players) {
		return nil
	}
	return &that.Players[that.CurrentTurn]
}

// NextSymbol returns the symbol the next seated player receives: the first
// joiner always gets X, the second O.
func (that *MatchState) NextSymbol() string {
	if len(that.Players) == 0 {
		return SymbolX
	}
	return SymbolO
}

func (that *MatchState) RemoveBySessionID(sessionID string) {
	players := that.Players[:0]
	for _, player := range that.Players {
		if player.SessionID != sessionID {
			players = append(players, player)
		}
	}
	that.Players = players
}
