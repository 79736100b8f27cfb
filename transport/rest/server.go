package rest

import (
	"fmt"
	"net/http"
	"time"
)

// Start serves the RPC endpoints the original clients call between matches.
func Start(port string, handlers *Handlers) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc/create_match", handlers.CreateMatch)
	mux.HandleFunc("POST /rpc/find_match", handlers.FindMatch)
	mux.HandleFunc("POST /rpc/cancel_matchmaking", handlers.CancelMatchmaking)
	mux.HandleFunc("POST /rpc/reserve", handlers.Reserve)
	mux.HandleFunc("GET /rpc/leaderboard", handlers.Leaderboard)
	mux.HandleFunc("GET /rpc/player_stats", handlers.PlayerStats)
	mux.HandleFunc("GET /rpc/healthcheck", handlers.HealthCheck)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
