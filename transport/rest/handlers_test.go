package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gridbox/tictactoe-match/internal/apperror"
	"github.com/gridbox/tictactoe-match/internal/entity"
	"github.com/gridbox/tictactoe-match/internal/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMatchService struct {
	created int
	signals map[string][]byte
}

func (that *fakeMatchService) CreateMatch(_ match.CreateParams) string {
	that.created++
	return "match-1"
}

func (that *fakeMatchService) Signal(id string, data []byte) error {
	if id != "match-1" {
		return apperror.ErrMatchNotFound
	}

	if that.signals == nil {
		that.signals = make(map[string][]byte)
	}
	that.signals[id] = data
	return nil
}

type fakeMatchmaking struct {
	cancelled []string
}

func (that *fakeMatchmaking) Cancel(userID string) bool {
	that.cancelled = append(that.cancelled, userID)
	return true
}

type fakeLeaderboard struct {
	entries []entity.LeaderboardEntry
}

func (that *fakeLeaderboard) ListTop(_ context.Context, _ string, _ int) ([]entity.LeaderboardEntry, error) {
	return that.entries, nil
}

type fakeStats struct {
	records map[string]*entity.PlayerStats
}

func (that *fakeStats) Get(_ context.Context, userID string) (*entity.PlayerStats, error) {
	record, ok := that.records[userID]
	if !ok {
		return nil, apperror.ErrStatsNotFound
	}
	return record, nil
}

func newTestHandlers() (*Handlers, *fakeMatchService, *fakeMatchmaking) {
	matches := &fakeMatchService{}
	matchmaking := &fakeMatchmaking{}
	leaderboard := &fakeLeaderboard{entries: []entity.LeaderboardEntry{
		{UserID: "user-1", Username: "alice", Wins: 3, TotalGames: 4, WinRate: 75, Rank: 1},
	}}
	statsRepo := &fakeStats{records: map[string]*entity.PlayerStats{
		"user-1": {Wins: 3, Losses: 1, TotalGames: 4},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewHandlers(logger, matches, matchmaking, leaderboard, statsRepo), matches, matchmaking
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) rpcResponse {
	t.Helper()

	var response rpcResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))

	return response
}

func TestHandlers_CreateMatch(t *testing.T) {
	handlers, matches, _ := newTestHandlers()

	recorder := httptest.NewRecorder()
	handlers.CreateMatch(recorder, httptest.NewRequest(http.MethodPost, "/rpc/create_match", nil))

	response := decodeResponse(t, recorder)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, response.Success)
	assert.Equal(t, "match-1", response.MatchID)
	assert.Equal(t, 1, matches.created)
}

func TestHandlers_FindMatch(t *testing.T) {
	t.Run("With request body", func(t *testing.T) {
		handlers, matches, _ := newTestHandlers()

		recorder := httptest.NewRecorder()
		body := strings.NewReader(`{"region":"eu","skill":3}`)
		handlers.FindMatch(recorder, httptest.NewRequest(http.MethodPost, "/rpc/find_match", body))

		response := decodeResponse(t, recorder)

		require.True(t, response.Success)
		assert.Equal(t, "match-1", response.MatchID)
		assert.Equal(t, "Match created for matchmaking", response.Message)
		assert.Equal(t, 1, matches.created)
	})

	t.Run("Empty body still creates a match", func(t *testing.T) {
		handlers, matches, _ := newTestHandlers()

		recorder := httptest.NewRecorder()
		handlers.FindMatch(recorder, httptest.NewRequest(http.MethodPost, "/rpc/find_match", nil))

		require.True(t, decodeResponse(t, recorder).Success)
		assert.Equal(t, 1, matches.created)
	})
}

func TestHandlers_CancelMatchmaking(t *testing.T) {
	t.Run("Requires a match id", func(t *testing.T) {
		handlers, _, _ := newTestHandlers()

		recorder := httptest.NewRecorder()
		body := strings.NewReader(`{}`)
		handlers.CancelMatchmaking(recorder, httptest.NewRequest(http.MethodPost, "/rpc/cancel_matchmaking", body))

		response := decodeResponse(t, recorder)

		require.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.False(t, response.Success)
		assert.Equal(t, "Match ID required", response.Error)
	})

	t.Run("Removes the user from the queue", func(t *testing.T) {
		handlers, _, matchmaking := newTestHandlers()

		recorder := httptest.NewRecorder()
		body := strings.NewReader(`{"matchId":"match-1","userId":"user-1"}`)
		handlers.CancelMatchmaking(recorder, httptest.NewRequest(http.MethodPost, "/rpc/cancel_matchmaking", body))

		response := decodeResponse(t, recorder)

		require.True(t, response.Success)
		assert.Equal(t, []string{"user-1"}, matchmaking.cancelled)
	})
}

func TestHandlers_Reserve(t *testing.T) {
	t.Run("Signals the match", func(t *testing.T) {
		handlers, matches, _ := newTestHandlers()

		recorder := httptest.NewRecorder()
		body := strings.NewReader(`{"matchId":"match-1","userId":"user-9"}`)
		handlers.Reserve(recorder, httptest.NewRequest(http.MethodPost, "/rpc/reserve", body))

		require.True(t, decodeResponse(t, recorder).Success)

		var signal match.SignalPayload
		require.NoError(t, json.Unmarshal(matches.signals["match-1"], &signal))
		assert.Equal(t, "reserve", signal.Type)
		assert.Equal(t, "user-9", signal.UserID)
	})

	t.Run("Unknown match is not found", func(t *testing.T) {
		handlers, _, _ := newTestHandlers()

		recorder := httptest.NewRecorder()
		body := strings.NewReader(`{"matchId":"missing","userId":"user-9"}`)
		handlers.Reserve(recorder, httptest.NewRequest(http.MethodPost, "/rpc/reserve", body))

		require.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestHandlers_Leaderboard(t *testing.T) {
	handlers, _, _ := newTestHandlers()

	recorder := httptest.NewRecorder()
	handlers.Leaderboard(recorder, httptest.NewRequest(http.MethodGet, "/rpc/leaderboard", nil))

	response := decodeResponse(t, recorder)

	require.True(t, response.Success)
	require.Len(t, response.Leaderboard, 1)
	assert.Equal(t, "alice", response.Leaderboard[0].Username)
	assert.Equal(t, 1, response.Leaderboard[0].Rank)
}

func TestHandlers_PlayerStats(t *testing.T) {
	t.Run("Existing record", func(t *testing.T) {
		handlers, _, _ := newTestHandlers()

		recorder := httptest.NewRecorder()
		handlers.PlayerStats(recorder, httptest.NewRequest(http.MethodGet, "/rpc/player_stats?user_id=user-1", nil))

		response := decodeResponse(t, recorder)

		require.True(t, response.Success)
		require.NotNil(t, response.Stats)
		assert.Equal(t, 3, response.Stats.Wins)
	})

	t.Run("Missing record returns zeros", func(t *testing.T) {
		handlers, _, _ := newTestHandlers()

		recorder := httptest.NewRecorder()
		handlers.PlayerStats(recorder, httptest.NewRequest(http.MethodGet, "/rpc/player_stats?user_id=nobody", nil))

		response := decodeResponse(t, recorder)

		require.True(t, response.Success)
		require.NotNil(t, response.Stats)
		assert.Equal(t, &entity.PlayerStats{}, response.Stats)
	})

	t.Run("Missing user id is rejected", func(t *testing.T) {
		handlers, _, _ := newTestHandlers()

		recorder := httptest.NewRecorder()
		handlers.PlayerStats(recorder, httptest.NewRequest(http.MethodGet, "/rpc/player_stats", nil))

		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestHandlers_HealthCheck(t *testing.T) {
	handlers, _, _ := newTestHandlers()

	recorder := httptest.NewRecorder()
	handlers.HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/rpc/healthcheck", nil))

	response := decodeResponse(t, recorder)

	require.True(t, response.Success)
	assert.Equal(t, "Server is healthy", response.Message)
	assert.NotZero(t, response.Timestamp)
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(_ string, _ match.OpCode, _ []byte) error { return nil }

type noopAccounts struct{}

func (noopAccounts) Username(_ context.Context, _ string) (string, error) {
	return "", apperror.ErrAccountNotFound
}

type noopAccrual struct{}

func (noopAccrual) Accrue(_ context.Context, _ []entity.PlayerInfo, _ string) {}

func TestHandlers_CreateMatch_OutlivesRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Given: handlers backed by a real registry bound to the app context
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := match.NewRegistry(ctx, logger, noopBroadcaster{}, noopAccounts{}, noopAccrual{})
	handlers := NewHandlers(logger, registry, &fakeMatchmaking{}, &fakeLeaderboard{}, &fakeStats{})

	// When: a match is created over a request whose context ends with it
	requestCtx, finishRequest := context.WithCancel(context.Background())
	request := httptest.NewRequest(http.MethodPost, "/rpc/create_match", nil).WithContext(requestCtx)

	recorder := httptest.NewRecorder()
	handlers.CreateMatch(recorder, request)
	finishRequest()

	response := decodeResponse(t, recorder)
	require.True(t, response.Success)
	require.NotEmpty(t, response.MatchID)

	// Then: the match is still resolvable and admits a player
	runner, err := registry.Get(response.MatchID)
	require.NoError(t, err)

	accept, _, err := runner.JoinAttempt(context.Background(), entity.Presence{
		UserID:    "user-1",
		Username:  "alice",
		SessionID: "session-1",
	})
	require.NoError(t, err)
	assert.True(t, accept)
}
