package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gridbox/tictactoe-match/internal/apperror"
	"github.com/gridbox/tictactoe-match/internal/entity"
)

// statsCollection mirrors the storage layout of the original module: the
// record for a user lives at player_stats:stats_<userId>.
const statsCollection = "player_stats"

type StatsRepository interface {
	Get(ctx context.Context, userID string) (*entity.PlayerStats, error)
	Save(ctx context.Context, userID string, record *entity.PlayerStats) error
}

type dbStats struct {
	client *redis.Client
}

func NewStatsRepository(client *redis.Client) StatsRepository {
	return &dbStats{
		client: client,
	}
}

func statsKey(userID string) string {
	return fmt.Sprintf("%s:stats_%s", statsCollection, userID)
}

func (that *dbStats) Get(ctx context.Context, userID string) (*entity.PlayerStats, error) {
	response, err := that.client.Get(ctx, statsKey(userID)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrStatsNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get stats record: %w", err)
	}

	var record entity.PlayerStats
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats record: %w", err)
	}

	return &record, nil
}

func (that *dbStats) Save(ctx context.Context, userID string, record *entity.PlayerStats) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal stats record: %w", err)
	}

	if err = that.client.Set(ctx, statsKey(userID), recordJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set stats record: %w", err)
	}

	return nil
}
