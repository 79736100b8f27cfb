package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gridbox/tictactoe-match/internal/apperror"
	"github.com/gridbox/tictactoe-match/internal/entity"
)

// LeaderboardID is the single wins leaderboard every match writes to.
const LeaderboardID = "tictactoe_wins"

const placeholderUsername = "Unknown"

// LeaderboardWriter submits an incremental record update: deltas are added
// to the stored score and subscore, never overwritten, so concurrent
// submissions from different matches accumulate correctly.
type LeaderboardWriter interface {
	Write(ctx context.Context, leaderboardID, userID, username string, scoreDelta, subscoreDelta int) error
}

// Repository stores the detailed per-user stat record. The read-modify-write
// it enables is not atomic across matches; two completions for the same user
// in a narrow window can lose an update.
type Repository interface {
	Get(ctx context.Context, userID string) (*entity.PlayerStats, error)
	Save(ctx context.Context, userID string, record *entity.PlayerStats) error
}

type AccountLookup interface {
	Username(ctx context.Context, userID string) (string, error)
}

// Accrual converts a terminal match outcome into durable per-player
// aggregates. Every failure is logged and skipped; accrual never aborts.
type Accrual struct {
	logger      *slog.Logger
	leaderboard LeaderboardWriter
	records     Repository
	accounts    AccountLookup
}

func New(logger *slog.Logger, leaderboard LeaderboardWriter, records Repository, accounts AccountLookup) *Accrual {
	return &Accrual{
		logger:      logger.With("component", "stats"),
		leaderboard: leaderboard,
		records:     records,
		accounts:    accounts,
	}
}

// Accrue records the outcome for every player still tracked at completion.
// The winner symbol is empty for a draw.
func (that *Accrual) Accrue(ctx context.Context, players []entity.PlayerInfo, winner string) {
	that.logger.Info("starting stats update", "winner", winner, "players", len(players))

	for _, player := range players {
		isWinner := winner != entity.EmptyCell && player.Symbol == winner
		username := that.resolveUsername(ctx, player)

		score := 0
		if isWinner {
			score = 1
		}

		if err := that.leaderboard.Write(ctx, LeaderboardID, player.UserID, username, score, 1); err != nil {
			that.logger.Error("failed to update leaderboard", "userID", player.UserID, "error", err)
		}

		if err := that.updateRecord(ctx, player.UserID, isWinner, winner); err != nil {
			that.logger.Error("failed to update detailed stats", "userID", player.UserID, "error", err)
		}
	}

	that.logger.Info("stats update completed")
}

// updateRecord increments exactly one of wins/losses/draws plus the total.
// A missing record starts from all zeros.
func (that *Accrual) updateRecord(ctx context.Context, userID string, isWinner bool, winner string) error {
	record, err := that.records.Get(ctx, userID)
	if errors.Is(err, apperror.ErrStatsNotFound) {
		record = &entity.PlayerStats{}
	} else if err != nil {
		return fmt.Errorf("failed to read stats record: %w", err)
	}

	switch {
	case isWinner:
		record.Wins++
	case winner == entity.EmptyCell:
		record.Draws++
	default:
		record.Losses++
	}
	record.TotalGames++

	if err = that.records.Save(ctx, userID, record); err != nil {
		return fmt.Errorf("failed to save stats record: %w", err)
	}

	that.logger.Info("detailed stats updated", "userID", userID,
		"wins", record.Wins, "losses", record.Losses, "draws", record.Draws)

	return nil
}

// resolveUsername prefers the seated name, then an authoritative lookup,
// then a truncated user id.
func (that *Accrual) resolveUsername(ctx context.Context, player entity.PlayerInfo) string {
	if player.Username != "" && player.Username != placeholderUsername {
		return player.Username
	}

	username, err := that.accounts.Username(ctx, player.UserID)
	if err == nil && username != "" {
		return username
	}

	if err != nil {
		that.logger.Warn("could not fetch username", "userID", player.UserID, "error", err)
	}

	return truncateID(player.UserID)
}

func truncateID(userID string) string {
	if len(userID) > 8 {
		return userID[:8]
	}
	return userID
}
