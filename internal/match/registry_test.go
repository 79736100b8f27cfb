package match

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gridbox/tictactoe-match/internal/apperror"
	"github.com/gridbox/tictactoe-match/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (that *fakeBroadcaster) Broadcast(_ string, opCode OpCode, data []byte) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.calls = append(that.calls, broadcastCall{OpCode: opCode, Data: data})
	return nil
}

func (that *fakeBroadcaster) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.calls)
}

func newTestRegistry(ctx context.Context) (*Registry, *fakeBroadcaster) {
	broadcaster := &fakeBroadcaster{}
	registry := NewRegistry(ctx, testLogger(), broadcaster, &fakeAccounts{}, &fakeAccrual{})

	return registry, broadcaster
}

func labelStatus(t *testing.T, raw string) string {
	t.Helper()

	var label Label
	require.NoError(t, json.Unmarshal([]byte(raw), &label))

	return label.Status
}

func TestRegistry_CreateAndGet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, _ := newTestRegistry(ctx)

	// When: a match is created
	matchID := registry.CreateMatch(CreateParams{})

	// Then: it is resolvable and advertises a waiting label
	runner, err := registry.Get(matchID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusWaiting, labelStatus(t, runner.Label()))

	// Then: unknown ids are not found
	_, err = registry.Get("missing")
	require.ErrorIs(t, err, apperror.ErrMatchNotFound)
}

func TestRegistry_FullMatchFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, broadcaster := newTestRegistry(ctx)

	matchID := registry.CreateMatch(CreateParams{})
	runner, err := registry.Get(matchID)
	require.NoError(t, err)

	first, second := presence(1), presence(2)

	// When: both players pass the admission gate and join
	accept, _, err := runner.JoinAttempt(ctx, first)
	require.NoError(t, err)
	require.True(t, accept)
	require.NoError(t, runner.Join(first))

	accept, _, err = runner.JoinAttempt(ctx, second)
	require.NoError(t, err)
	require.True(t, accept)
	require.NoError(t, runner.Join(second))

	// Then: the label eventually reports the match as active
	require.Eventually(t, func() bool {
		return labelStatus(t, runner.Label()) == entity.StatusActive
	}, 2*time.Second, 10*time.Millisecond)

	// When: X plays out a top-row win, O answering in between
	moves := []struct {
		sender   entity.Presence
		position int
	}{
		{first, 0}, {second, 4}, {first, 1}, {second, 5}, {first, 2},
	}
	for _, move := range moves {
		require.NoError(t, runner.SendMessage(moveMessage(move.sender, move.position)))
	}

	// Then: the queued moves are drained on ticks until the match completes
	require.Eventually(t, func() bool {
		return labelStatus(t, runner.Label()) == entity.StatusCompleted
	}, 10*time.Second, 50*time.Millisecond)

	assert.GreaterOrEqual(t, broadcaster.count(), 2)
}

func TestRegistry_Terminate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, _ := newTestRegistry(ctx)

	matchID := registry.CreateMatch(CreateParams{})

	// When: the host terminates the match
	require.NoError(t, registry.Terminate(matchID, 0))

	// Then: the runner is removed from the registry
	require.Eventually(t, func() bool {
		_, err := registry.Get(matchID)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, registry.Labels())
}

func TestRunner_QueueOverflow(t *testing.T) {
	// Given: a runner whose goroutine is not draining events
	runner := newRunner(testLogger(), "match-1", &fakeBroadcaster{}, &fakeAccounts{}, &fakeAccrual{}, CreateParams{}, nil)

	// When: more events than the queue holds are enqueued
	var err error
	for i := 0; i <= eventQueueSize; i++ {
		err = runner.SendMessage(moveMessage(presence(1), 0))
	}

	// Then: the overflowing event is rejected, not blocked
	require.ErrorIs(t, err, apperror.ErrQueueOverflow)
}

func TestRegistry_SignalReservesSeat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, _ := newTestRegistry(ctx)

	matchID := registry.CreateMatch(CreateParams{})
	runner, err := registry.Get(matchID)
	require.NoError(t, err)

	// When: a reserve signal arrives before any join
	require.NoError(t, runner.Signal([]byte(`{"type":"reserve","userId":"user-1"}`)))

	// Then: the reserved user is admitted and others are rejected
	require.Eventually(t, func() bool {
		accept, _, attemptErr := runner.JoinAttempt(ctx, presence(1))
		return attemptErr == nil && accept
	}, 2*time.Second, 10*time.Millisecond)

	accept, rejectMessage, err := runner.JoinAttempt(ctx, presence(2))
	require.NoError(t, err)
	require.False(t, accept)
	assert.Equal(t, "Match is reserved for matched players", rejectMessage)
}

func TestRegistry_RunnerLifetime(t *testing.T) {
	registryCtx, cancel := context.WithCancel(context.Background())

	registry, _ := newTestRegistry(registryCtx)

	// Given: a match created on behalf of a short-lived caller, like one
	// HTTP request whose context dies when the handler returns
	matchID := registry.CreateMatch(CreateParams{})

	// Then: the match stays resolvable and keeps admitting players long
	// after that caller is gone
	runner, err := registry.Get(matchID)
	require.NoError(t, err)

	accept, _, err := runner.JoinAttempt(context.Background(), presence(1))
	require.NoError(t, err)
	assert.True(t, accept)

	// When: the registry's own lifetime context ends
	cancel()

	// Then: the runner winds down and the match is forgotten
	require.Eventually(t, func() bool {
		_, getErr := registry.Get(matchID)
		return errors.Is(getErr, apperror.ErrMatchNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}
