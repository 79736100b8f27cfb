package repository

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/gridbox/tictactoe-match/internal/entity"
)

type LeaderboardRepository interface {
	Create(ctx context.Context, leaderboardID string) error
	Write(ctx context.Context, leaderboardID, userID, username string, scoreDelta, subscoreDelta int) error
	ListTop(ctx context.Context, leaderboardID string, limit int) ([]entity.LeaderboardEntry, error)
}

type dbLeaderboard struct {
	logger *slog.Logger
	client *redis.Client
}

func NewLeaderboardRepository(logger *slog.Logger, client *redis.Client) LeaderboardRepository {
	return &dbLeaderboard{
		logger: logger.With("component", "leaderboard"),
		client: client,
	}
}

func scoreKey(leaderboardID string) string {
	return "leaderboard:" + leaderboardID + ":score"
}

func gamesKey(leaderboardID string) string {
	return "leaderboard:" + leaderboardID + ":games"
}

func usernamesKey(leaderboardID string) string {
	return "leaderboard:" + leaderboardID + ":usernames"
}

// Create registers the leaderboard metadata. Idempotent: a pre-existing
// leaderboard is left untouched.
func (that *dbLeaderboard) Create(ctx context.Context, leaderboardID string) error {
	created, err := that.client.SetNX(ctx, "leaderboard:"+leaderboardID+":meta", "incremental,descending", 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create leaderboard: %w", err)
	}

	if !created {
		that.logger.Warn("leaderboard already exists", "leaderboardID", leaderboardID)
		return nil
	}

	that.logger.Info("leaderboard created", "leaderboardID", leaderboardID)

	return nil
}

// Write applies an incremental record update. The deltas are added on the
// storage side, so concurrent writes for the same user from different
// matches accumulate instead of overwriting each other.
func (that *dbLeaderboard) Write(ctx context.Context, leaderboardID, userID, username string, scoreDelta, subscoreDelta int) error {
	pipe := that.client.TxPipeline()
	pipe.ZIncrBy(ctx, scoreKey(leaderboardID), float64(scoreDelta), userID)
	pipe.HIncrBy(ctx, gamesKey(leaderboardID), userID, int64(subscoreDelta))
	pipe.HSet(ctx, usernamesKey(leaderboardID), userID, username)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write leaderboard record: %w", err)
	}

	return nil
}

// ListTop returns the highest-scored records with rank, cumulative games,
// and win rate resolved.
func (that *dbLeaderboard) ListTop(ctx context.Context, leaderboardID string, limit int) ([]entity.LeaderboardEntry, error) {
	scores, err := that.client.ZRevRangeWithScores(ctx, scoreKey(leaderboardID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard records: %w", err)
	}

	if len(scores) == 0 {
		return []entity.LeaderboardEntry{}, nil
	}

	games, err := that.client.HGetAll(ctx, gamesKey(leaderboardID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard game counts: %w", err)
	}

	usernames, err := that.client.HGetAll(ctx, usernamesKey(leaderboardID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard usernames: %w", err)
	}

	entries := make([]entity.LeaderboardEntry, 0, len(scores))
	for i, record := range scores {
		userID, ok := record.Member.(string)
		if !ok {
			continue
		}

		wins := int(record.Score)

		totalGames, _ := strconv.Atoi(games[userID])

		username := usernames[userID]
		if username == "" {
			username = "Unknown"
		}

		winRate := 0.0
		if totalGames > 0 {
			winRate = math.Round(float64(wins)/float64(totalGames)*100*100) / 100
		}

		entries = append(entries, entity.LeaderboardEntry{
			UserID:     userID,
			Username:   username,
			Wins:       wins,
			TotalGames: totalGames,
			WinRate:    winRate,
			Rank:       i + 1,
		})
	}

	return entries, nil
}
