package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenroom/go/clients/catalog"
	"github.com/mcdev12/listenroom/go/internal/room"
)

// Service wires the room registry, the WebSocket connection manager,
// and the request router into one unit with a single lifecycle.
type Service struct {
	registry       *room.Registry
	manager        *ConnectionManager
	router         *Router
	wsHandler      *WebSocketHandler
	catalogHandler *CatalogHandler

	sweepInterval time.Duration
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	SyncPolicy       room.SyncPolicy
	SweepInterval    time.Duration
	CatalogBaseURL   string
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		SyncPolicy:       room.DefaultSyncPolicy(),
		SweepInterval:    time.Minute,
		CatalogBaseURL:   catalog.DefaultBaseURL,
	}
}

// NewService creates the gateway service.
func NewService(config Config, clock clockwork.Clock) *Service {
	manager := NewConnectionManager(config.ConnectionConfig)
	registry := room.NewRegistry(clock, manager, config.SyncPolicy)
	router := NewRouter(registry, manager)
	manager.SetMessageHandler(router)

	return &Service{
		registry:       registry,
		manager:        manager,
		router:         router,
		wsHandler:      NewWebSocketHandler(manager),
		catalogHandler: NewCatalogHandler(catalog.NewClient(config.CatalogBaseURL)),
		sweepInterval:  config.SweepInterval,
	}
}

// Registry exposes the room registry, mainly for tests and stats.
func (s *Service) Registry() *room.Registry {
	return s.registry
}

// Start runs the broadcast loop and the eviction sweeper until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway service")

	go s.manager.Start(ctx)
	go s.registry.RunSweeper(ctx, s.sweepInterval)

	<-ctx.Done()
	log.Info().Msg("room gateway service shutting down")
	return nil
}

// RegisterRoutes registers the WebSocket and REST routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/room", s.wsHandler.HandleRoomConnection)
	mux.HandleFunc("/ws/stats", s.wsHandler.HandleConnectionStats)
	mux.HandleFunc("/api/songs/search", s.catalogHandler.HandleSearch)
	log.Info().Msg("room gateway routes registered")
}

// Stats returns statistics about the gateway service.
func (s *Service) Stats() map[string]interface{} {
	total, rooms := s.manager.Stats()
	return map[string]interface{}{
		"total_connections": total,
		"active_rooms":      s.registry.Len(),
		"room_connections":  rooms,
	}
}
