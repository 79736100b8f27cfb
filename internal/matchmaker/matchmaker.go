package matchmaker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gridbox/tictactoe-match/internal/entity"
	"github.com/gridbox/tictactoe-match/internal/match"
	"github.com/gridbox/tictactoe-match/internal/notifier"
)

type matchCreator interface {
	CreateMatch(params match.CreateParams) string
}

type notificationSender interface {
	Send(ctx context.Context, userID string, notification notifier.Notification) error
}

// Matchmaker pairs queued players. When two are waiting it creates a match
// reserved for both and notifies them where to join.
type Matchmaker struct {
	logger        *slog.Logger
	matches       matchCreator
	notifications notificationSender

	mu    sync.Mutex
	queue []entity.Presence
}

func New(logger *slog.Logger, matches matchCreator, notifications notificationSender) *Matchmaker {
	return &Matchmaker{
		logger:        logger.With("component", "matchmaker"),
		matches:       matches,
		notifications: notifications,
	}
}

// Enqueue adds a presence to the waiting pool. It returns the created match
// id when the presence completed a pair.
func (that *Matchmaker) Enqueue(ctx context.Context, presence entity.Presence) (string, bool) {
	that.mu.Lock()

	for _, waiting := range that.queue {
		if waiting.UserID == presence.UserID {
			that.mu.Unlock()
			that.logger.Info("user already queued", "userID", presence.UserID)
			return "", false
		}
	}

	that.queue = append(that.queue, presence)
	if len(that.queue) < 2 {
		that.mu.Unlock()
		that.logger.Info("user queued for matchmaking", "userID", presence.UserID)
		return "", false
	}

	matched := []entity.Presence{that.queue[0], that.queue[1]}
	that.queue = that.queue[2:]
	that.mu.Unlock()

	matchID := that.matches.CreateMatch(match.CreateParams{MatchedUsers: matched})

	that.logger.Info("created match for matched players", "matchID", matchID)

	for _, user := range matched {
		err := that.notifications.Send(ctx, user.UserID, notifier.Notification{
			Subject: "Match Ready",
			Content: map[string]any{
				"matchId": matchID,
				"message": "Match found! Join now.",
			},
			Code: 1,
		})
		if err != nil {
			that.logger.Error("failed to send notification", "userID", user.UserID, "error", err)
			continue
		}

		that.logger.Info("sent match notification", "userID", user.UserID)
	}

	return matchID, true
}

// Cancel removes a queued user. It reports whether anything was removed.
func (that *Matchmaker) Cancel(userID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i, waiting := range that.queue {
		if waiting.UserID == userID {
			that.queue = append(that.queue[:i], that.queue[i+1:]...)
			that.logger.Info("matchmaking cancelled", "userID", userID)
			return true
		}
	}

	return false
}
