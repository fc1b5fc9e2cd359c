package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenroom/go/internal/gateway"
)

func setupServer(cfg *Config, svc *gateway.Service) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// Register gateway routes (WebSocket and REST)
	svc.RegisterRoutes(mux)

	// Add health check endpoint
	setupHealthCheck(mux)

	// Add service info
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		stats := svc.Stats()
		stats["service"] = "listenroom"
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Error().Err(err).Msg("failed to write info response")
		}
	})

	// Wrap with CORS
	handler := c.Handler(mux)

	return &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
