package match

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gridbox/tictactoe-match/internal/apperror"
	"github.com/gridbox/tictactoe-match/internal/entity"
)

const (
	eventQueueSize = 64
	tickInterval   = time.Second

	// completedGrace is how long a completed match stays resident before
	// the runner tears itself down.
	completedGrace = 30 * time.Second
)

// Broadcaster fans a match broadcast out to the sessions connected to it.
type Broadcaster interface {
	Broadcast(matchID string, opCode OpCode, data []byte) error
}

type eventKind int

const (
	eventJoinAttempt eventKind = iota
	eventJoin
	eventLeave
	eventMessage
	eventSignal
	eventTerminate
)

type joinDecision struct {
	Accept        bool
	RejectMessage string
}

type event struct {
	kind      eventKind
	presence  entity.Presence
	presences []entity.Presence
	message   Message
	data      []byte
	grace     int
	reply     chan joinDecision
}

// Runner is the single thread of execution for one match. All inbound
// events are funneled through a bounded queue into one goroutine, so the
// session never needs locks.
type Runner struct {
	id      string
	logger  *slog.Logger
	session *Session

	events  chan event
	stopped chan struct{}
	onStop  func(id string)

	broadcaster Broadcaster

	labelMu sync.RWMutex
	label   string
}

func newRunner(logger *slog.Logger, id string, broadcaster Broadcaster, accounts AccountLookup, stats StatsAccrual, params CreateParams, onStop func(id string)) *Runner {
	runner := &Runner{
		id:          id,
		logger:      logger.With("component", "runner", "matchID", id),
		events:      make(chan event, eventQueueSize),
		stopped:     make(chan struct{}),
		onStop:      onStop,
		broadcaster: broadcaster,
	}

	state := entity.NewMatchState(id, params.MatchedUsers)
	runner.session = NewSession(logger, state, runner, accounts, stats)
	runner.label = runner.session.Label()

	return runner
}

func (that *Runner) ID() string {
	return that.id
}

// Label returns the last published discovery label.
func (that *Runner) Label() string {
	that.labelMu.RLock()
	defer that.labelMu.RUnlock()

	return that.label
}

// BroadcastMessage implements Dispatcher for the session.
func (that *Runner) BroadcastMessage(opCode OpCode, data []byte) error {
	return that.broadcaster.Broadcast(that.id, opCode, data)
}

// MatchLabelUpdate implements Dispatcher for the session.
func (that *Runner) MatchLabelUpdate(label string) error {
	that.labelMu.Lock()
	that.label = label
	that.labelMu.Unlock()

	return nil
}

// JoinAttempt asks the match goroutine for an admission decision and waits
// for the reply.
func (that *Runner) JoinAttempt(ctx context.Context, presence entity.Presence) (bool, string, error) {
	reply := make(chan joinDecision, 1)

	if err := that.enqueue(event{kind: eventJoinAttempt, presence: presence, reply: reply}); err != nil {
		return false, "", err
	}

	select {
	case decision := <-reply:
		return decision.Accept, decision.RejectMessage, nil
	case <-that.stopped:
		return false, "", apperror.ErrMatchNotFound
	case <-ctx.Done():
		return false, "", ctx.Err()
	}
}

func (that *Runner) Join(presences ...entity.Presence) error {
	return that.enqueue(event{kind: eventJoin, presences: presences})
}

func (that *Runner) Leave(presences ...entity.Presence) error {
	return that.enqueue(event{kind: eventLeave, presences: presences})
}

// SendMessage queues a realtime message; it is drained into the session on
// the next tick.
func (that *Runner) SendMessage(message Message) error {
	return that.enqueue(event{kind: eventMessage, message: message})
}

func (that *Runner) Signal(data []byte) error {
	return that.enqueue(event{kind: eventSignal, data: data})
}

func (that *Runner) Terminate(graceSeconds int) error {
	return that.enqueue(event{kind: eventTerminate, grace: graceSeconds})
}

func (that *Runner) enqueue(ev event) error {
	select {
	case <-that.stopped:
		return apperror.ErrMatchNotFound
	default:
	}

	select {
	case that.events <- ev:
		return nil
	default:
		return apperror.ErrQueueOverflow
	}
}

// run drives the match until termination, context cancellation, or the
// post-completion grace expires.
func (that *Runner) run(ctx context.Context) {
	defer that.stop()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var pending []Message
	var completedAt time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-that.events:
			if that.handle(ctx, ev, &pending) {
				return
			}

		case <-ticker.C:
			if len(pending) > 0 {
				that.session.Loop(ctx, pending)
				pending = pending[:0]
			}

			if that.session.State().IsCompleted() {
				if completedAt.IsZero() {
					completedAt = time.Now()
				} else if time.Since(completedAt) >= completedGrace {
					that.logger.Info("completed match torn down after grace")
					return
				}
			}
		}
	}
}

// handle applies one event. Realtime messages are queued until the next
// tick; everything else is applied immediately. It reports whether the
// runner should stop.
func (that *Runner) handle(ctx context.Context, ev event, pending *[]Message) bool {
	switch ev.kind {
	case eventJoinAttempt:
		accept, rejectMessage := that.session.JoinAttempt(ev.presence)
		ev.reply <- joinDecision{Accept: accept, RejectMessage: rejectMessage}

	case eventJoin:
		that.session.Join(ctx, ev.presences)

	case eventLeave:
		that.session.Leave(ctx, ev.presences)

	case eventMessage:
		*pending = append(*pending, ev.message)

	case eventSignal:
		that.session.Signal(ev.data)

	case eventTerminate:
		that.session.Terminate(ev.grace)
		return true
	}

	return false
}

func (that *Runner) stop() {
	close(that.stopped)

	if that.onStop != nil {
		that.onStop(that.id)
	}
}
