package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gridbox/tictactoe-match/internal/apperror"
	"github.com/gridbox/tictactoe-match/internal/entity"
	"github.com/gridbox/tictactoe-match/internal/match"
	"github.com/gridbox/tictactoe-match/internal/stats"
)

type matchService interface {
	CreateMatch(params match.CreateParams) string
	Signal(id string, data []byte) error
}

type matchmakerService interface {
	Cancel(userID string) bool
}

type leaderboardLister interface {
	ListTop(ctx context.Context, leaderboardID string, limit int) ([]entity.LeaderboardEntry, error)
}

type statsReader interface {
	Get(ctx context.Context, userID string) (*entity.PlayerStats, error)
}

type Handlers struct {
	logger      *slog.Logger
	matches     matchService
	matchmaking matchmakerService
	leaderboard leaderboardLister
	stats       statsReader
}

func NewHandlers(logger *slog.Logger, matches matchService, matchmaking matchmakerService, leaderboard leaderboardLister, statsRepo statsReader) *Handlers {
	return &Handlers{
		logger:      logger.With("component", "rest"),
		matches:     matches,
		matchmaking: matchmaking,
		leaderboard: leaderboard,
		stats:       statsRepo,
	}
}

type rpcResponse struct {
	Success     bool                      `json:"success"`
	MatchID     string                    `json:"matchId,omitempty"`
	Message     string                    `json:"message,omitempty"`
	Error       string                    `json:"error,omitempty"`
	Leaderboard []entity.LeaderboardEntry `json:"leaderboard,omitempty"`
	Stats       *entity.PlayerStats       `json:"stats,omitempty"`
	Timestamp   int64                     `json:"timestamp,omitempty"`
}

// CreateMatch creates a private match.
func (that *Handlers) CreateMatch(w http.ResponseWriter, _ *http.Request) {
	matchID := that.matches.CreateMatch(match.CreateParams{})

	that.logger.Info("private match created", "matchID", matchID)

	that.writeJSON(w, http.StatusOK, rpcResponse{Success: true, MatchID: matchID})
}

type findMatchRequest struct {
	Region string `json:"region"`
	Skill  int    `json:"skill"`
}

// FindMatch creates an open match for matchmaking. Region and skill are
// accepted for client compatibility but not used for placement.
func (that *Handlers) FindMatch(w http.ResponseWriter, r *http.Request) {
	// an empty or malformed body falls back to default placement
	var request findMatchRequest
	_ = json.NewDecoder(r.Body).Decode(&request)

	matchID := that.matches.CreateMatch(match.CreateParams{})

	that.logger.Info("match created for matchmaking", "matchID", matchID, "region", request.Region)

	that.writeJSON(w, http.StatusOK, rpcResponse{
		Success: true,
		MatchID: matchID,
		Message: "Match created for matchmaking",
	})
}

type cancelMatchmakingRequest struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

func (that *Handlers) CancelMatchmaking(w http.ResponseWriter, r *http.Request) {
	var request cancelMatchmakingRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		that.writeJSON(w, http.StatusBadRequest, rpcResponse{Success: false, Error: "Invalid request"})
		return
	}

	if request.MatchID == "" {
		that.writeJSON(w, http.StatusBadRequest, rpcResponse{Success: false, Error: "Match ID required"})
		return
	}

	if request.UserID != "" {
		that.matchmaking.Cancel(request.UserID)
	}

	that.logger.Info("matchmaking cancellation requested", "matchID", request.MatchID, "userID", request.UserID)

	that.writeJSON(w, http.StatusOK, rpcResponse{Success: true, Message: "Matchmaking cancellation noted"})
}

type reserveRequest struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

// Reserve delivers an out-of-band reservation signal to a live match.
func (that *Handlers) Reserve(w http.ResponseWriter, r *http.Request) {
	var request reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.MatchID == "" || request.UserID == "" {
		that.writeJSON(w, http.StatusBadRequest, rpcResponse{Success: false, Error: "Match ID and user ID required"})
		return
	}

	signal, err := json.Marshal(match.SignalPayload{Type: "reserve", UserID: request.UserID})
	if err != nil {
		that.writeJSON(w, http.StatusInternalServerError, rpcResponse{Success: false, Error: "Failed to build signal"})
		return
	}

	if err = that.matches.Signal(request.MatchID, signal); err != nil {
		that.logger.Error("failed to signal match", "matchID", request.MatchID, "error", err)
		that.writeJSON(w, http.StatusNotFound, rpcResponse{Success: false, Error: "Match not found"})
		return
	}

	that.writeJSON(w, http.StatusOK, rpcResponse{Success: true})
}

const leaderboardLimit = 100

func (that *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := that.leaderboard.ListTop(r.Context(), stats.LeaderboardID, leaderboardLimit)
	if err != nil {
		that.logger.Error("failed to fetch leaderboard", "error", err)
		that.writeJSON(w, http.StatusInternalServerError, rpcResponse{Success: false, Error: "Failed to fetch leaderboard"})
		return
	}

	that.logger.Info("leaderboard fetched", "entries", len(entries))

	that.writeJSON(w, http.StatusOK, rpcResponse{Success: true, Leaderboard: entries})
}

func (that *Handlers) PlayerStats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		that.writeJSON(w, http.StatusBadRequest, rpcResponse{Success: false, Error: "User ID required"})
		return
	}

	record, err := that.stats.Get(r.Context(), userID)
	if errors.Is(err, apperror.ErrStatsNotFound) {
		record = &entity.PlayerStats{}
	} else if err != nil {
		that.logger.Error("failed to fetch player stats", "userID", userID, "error", err)
		that.writeJSON(w, http.StatusInternalServerError, rpcResponse{Success: false, Error: "Failed to fetch stats"})
		return
	}

	that.writeJSON(w, http.StatusOK, rpcResponse{Success: true, Stats: record})
}

func (that *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, rpcResponse{
		Success:   true,
		Message:   "Server is healthy",
		Timestamp: time.Now().UnixMilli(),
	})
}

func (that *Handlers) writeJSON(w http.ResponseWriter, status int, response rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}
