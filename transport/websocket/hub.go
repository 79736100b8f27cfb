package websocket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gridbox/tictactoe-match/internal/entity"
	"github.com/gridbox/tictactoe-match/internal/match"
)

const actionMatchData = "match:data"

// session is one connected client. Frame writes are serialized by the
// session mutex because broadcasts race with direct replies.
type session struct {
	id       string
	presence entity.Presence

	writeMu sync.Mutex
	bufrw   *bufio.ReadWriter
}

func (that *session) send(action string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	responseBytes, err := json.Marshal(Message{Action: action, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	return writeFrame(that.bufrw, frame{
		isFin:   true,
		opCode:  1, // text message
		length:  uint64(len(responseBytes)),
		payload: responseBytes,
	})
}

// Hub tracks connected sessions and their match subscriptions, and fans
// match broadcasts out to them. It implements match.Broadcaster.
type Hub struct {
	logger *slog.Logger

	mu            sync.RWMutex
	sessions      map[string]*session
	matchSessions map[string]map[string]*session
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:        logger.With("component", "hub"),
		sessions:      make(map[string]*session),
		matchSessions: make(map[string]map[string]*session),
	}
}

func (that *Hub) add(s *session) {
	that.mu.Lock()
	that.sessions[s.id] = s
	that.mu.Unlock()
}

// remove drops a session and returns the match ids it was subscribed to,
// so the caller can deliver the leaves.
func (that *Hub) remove(s *session) []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, s.id)

	var matchIDs []string
	for matchID, sessions := range that.matchSessions {
		if _, ok := sessions[s.id]; !ok {
			continue
		}

		delete(sessions, s.id)
		if len(sessions) == 0 {
			delete(that.matchSessions, matchID)
		}

		matchIDs = append(matchIDs, matchID)
	}

	return matchIDs
}

func (that *Hub) subscribe(matchID string, s *session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	sessions, ok := that.matchSessions[matchID]
	if !ok {
		sessions = make(map[string]*session)
		that.matchSessions[matchID] = sessions
	}

	sessions[s.id] = s
}

func (that *Hub) unsubscribe(matchID string, s *session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	sessions, ok := that.matchSessions[matchID]
	if !ok {
		return
	}

	delete(sessions, s.id)
	if len(sessions) == 0 {
		delete(that.matchSessions, matchID)
	}
}

// Broadcast delivers a match event to every subscribed session. A failed
// write only loses that one client.
func (that *Hub) Broadcast(matchID string, opCode match.OpCode, data []byte) error {
	that.mu.RLock()
	sessions := make([]*session, 0, len(that.matchSessions[matchID]))
	for _, s := range that.matchSessions[matchID] {
		sessions = append(sessions, s)
	}
	that.mu.RUnlock()

	payload := MatchData{MatchID: matchID, OpCode: opCode, Data: data}

	for _, s := range sessions {
		if err := s.send(actionMatchData, payload); err != nil {
			that.logger.Error("failed to deliver broadcast", "sessionID", s.id, "error", err)
		}
	}

	return nil
}
