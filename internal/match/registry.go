package match

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/gridbox/tictactoe-match/internal/apperror"
)

// Registry owns the live matches of this process. Each match runs
// independently on its own runner goroutine; the registry only routes.
// Runner lifetimes are bound to the context given at construction, never
// to the caller that happened to create the match.
type Registry struct {
	runCtx      context.Context
	logger      *slog.Logger
	broadcaster Broadcaster
	accounts    AccountLookup
	stats       StatsAccrual

	mu      sync.RWMutex
	matches map[string]*Runner
}

func NewRegistry(ctx context.Context, logger *slog.Logger, broadcaster Broadcaster, accounts AccountLookup, stats StatsAccrual) *Registry {
	return &Registry{
		runCtx:      ctx,
		logger:      logger.With("component", "registry"),
		broadcaster: broadcaster,
		accounts:    accounts,
		stats:       stats,
		matches:     make(map[string]*Runner),
	}
}

// CreateMatch spawns a new match runner and returns its id. The runner
// lives until the registry context is cancelled, the match is terminated,
// or the post-completion grace expires.
func (that *Registry) CreateMatch(params CreateParams) string {
	id := uuid.NewString()

	runner := newRunner(that.logger, id, that.broadcaster, that.accounts, that.stats, params, that.remove)

	that.mu.Lock()
	that.matches[id] = runner
	that.mu.Unlock()

	go runner.run(that.runCtx)

	that.logger.Info("match created", "matchID", id, "reserved", len(params.MatchedUsers))

	return id
}

func (that *Registry) Get(id string) (*Runner, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	runner, ok := that.matches[id]
	if !ok {
		return nil, apperror.ErrMatchNotFound
	}

	return runner, nil
}

// Labels returns the discovery labels of all live matches keyed by id.
func (that *Registry) Labels() map[string]string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	labels := make(map[string]string, len(that.matches))
	for id, runner := range that.matches {
		labels[id] = runner.Label()
	}

	return labels
}

// Signal routes an out-of-band signal to a live match.
func (that *Registry) Signal(id string, data []byte) error {
	runner, err := that.Get(id)
	if err != nil {
		return err
	}

	return runner.Signal(data)
}

func (that *Registry) Terminate(id string, graceSeconds int) error {
	runner, err := that.Get(id)
	if err != nil {
		return err
	}

	return runner.Terminate(graceSeconds)
}

func (that *Registry) remove(id string) {
	that.mu.Lock()
	delete(that.matches, id)
	that.mu.Unlock()

	that.logger.Info("match removed", "matchID", id)
}
