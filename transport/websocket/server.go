package websocket

import (
	"context"
	"crypto/sha1" //nolint: gosec // RFC 6455 requires SHA-1 for the handshake
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gridbox/tictactoe-match/internal/entity"
	"github.com/gridbox/tictactoe-match/internal/match"
)

// Static GUID defined in RFC 6455 for WebSocket.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

type matchRegistry interface {
	CreateMatch(params match.CreateParams) string
	Get(id string) (*match.Runner, error)
}

type matchmakerService interface {
	Enqueue(ctx context.Context, presence entity.Presence) (string, bool)
	Cancel(userID string) bool
}

type Server struct {
	logger      *slog.Logger
	hub         *Hub
	registry    matchRegistry
	matchmaking matchmakerService

	handlers map[string]func(ctx context.Context, s *session, message *Message) error
}

func New(logger *slog.Logger, hub *Hub, registry matchRegistry, matchmaking matchmakerService) *Server {
	server := &Server{
		logger:      logger.With("component", "websocket"),
		hub:         hub,
		registry:    registry,
		matchmaking: matchmaking,

		handlers: make(map[string]func(context.Context, *session, *Message) error),
	}

	server.handlers["connect"] = server.handleConnect
	server.handlers["match:create"] = server.handleCreateMatch
	server.handlers["match:join"] = server.handleJoinMatch
	server.handlers["match:move"] = server.handleMove
	server.handlers["match:leave"] = server.handleLeaveMatch
	server.handlers["match:quick"] = server.handleQuickMatch

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// generateAcceptKey builds the handshake response key.
func generateAcceptKey(key string) string {
	h := sha1.New() //nolint: gosec // see websocketGUID

	h.Write([]byte(key + websocketGUID))

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	if req.Header.Get("Upgrade") != "websocket" {
		http.Error(writer, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	key := req.Header.Get("Sec-WebSocket-Key")

	writer.Header().Set("Upgrade", "websocket")
	writer.Header().Set("Connection", "Upgrade")
	writer.Header().Set("Sec-WebSocket-Accept", generateAcceptKey(key))
	writer.WriteHeader(http.StatusSwitchingProtocols)

	hijacker, ok := writer.(http.Hijacker)
	if !ok {
		log.Error("web server does not support hijacking")
		return
	}

	conn, bufrw, err := hijacker.Hijack()
	if err != nil {
		log.Error("failed to hijack connection", "error", err)
		return
	}

	defer conn.Close()

	clientSession := &session{
		id:    uuid.NewString(),
		bufrw: bufrw,
	}
	that.hub.add(clientSession)

	log.Info("WebSocket connection established", "sessionID", clientSession.id)

	defer that.disconnect(clientSession)

	if err = that.handleMessages(ctx, clientSession); err != nil {
		log.Error("error handling messages", "error", err)
	}
}

// handleMessages - processes messages from the client until it disconnects.
func (that *Server) handleMessages(ctx context.Context, s *session) error {
	log := that.logger.With("method", "handleMessages", "sessionID", s.id)

	for {
		reqBody, err := readRequest(s.bufrw)
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		if len(reqBody) == 0 {
			continue
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			continue
		}

		if err = handler(ctx, s, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// disconnect delivers the session's leaves and forgets the connection.
func (that *Server) disconnect(s *session) {
	matchIDs := that.hub.remove(s)

	if s.presence.UserID != "" {
		that.matchmaking.Cancel(s.presence.UserID)
	}

	for _, matchID := range matchIDs {
		runner, err := that.registry.Get(matchID)
		if err != nil {
			continue
		}

		if err = runner.Leave(s.presence); err != nil {
			that.logger.Error("failed to deliver leave", "matchID", matchID, "error", err)
		}
	}

	that.logger.Info("WebSocket connection closed", "sessionID", s.id)
}
