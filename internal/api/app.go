package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/whiteboardhq/go-whiteboard/internal/config"
	"github.com/whiteboardhq/go-whiteboard/internal/database"
	"github.com/whiteboardhq/go-whiteboard/internal/server"
)

type WhiteboardApp struct {
	log            *log.Logger
	db             database.WhiteboardRepository
	mux            *http.Server
	bs             *server.BoardServer
	allowedOrigins []string
}

func NewWhiteboardApp(mux *http.ServeMux, logger *log.Logger, bs *server.BoardServer, db database.WhiteboardRepository, cfg *config.Config) *WhiteboardApp {
	s := &WhiteboardApp{
		log:            logger,
		db:             db,
		bs:             bs,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /api/rooms", s.listRooms)
	mux.HandleFunc("POST /api/rooms/create", s.createRoom)
	mux.HandleFunc("POST /api/rooms/join", s.joinRoom)
	mux.HandleFunc("GET /api/rooms/code", s.suggestRoomCode)
	mux.HandleFunc("GET /api/rooms/{roomId}", s.getRoom)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *WhiteboardApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *WhiteboardApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
