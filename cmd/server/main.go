package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/whiteboardhq/go-whiteboard/internal/api"
	"github.com/whiteboardhq/go-whiteboard/internal/config"
	"github.com/whiteboardhq/go-whiteboard/internal/database"
	"github.com/whiteboardhq/go-whiteboard/internal/server"
	"github.com/whiteboardhq/go-whiteboard/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr           string
	dsn            string
	allowedOrigins stringSliceFlag
)

func main() {
	// missing .env is fine, flags and the environment still apply
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("WHITEBOARD_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("WHITEBOARD_DSN",
		"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if env := os.Getenv("WHITEBOARD_ALLOWED_ORIGINS"); env != "" {
			allowedOrigins = strings.Split(env, ",")
		}
	}

	logger := log.New(os.Stderr, "[whiteboard] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgWhiteboardRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	boardStats := stats.NewBoardStats(mux)

	boardServer, err := server.NewBoardServer(logger, dbConn, boardStats)
	if err != nil {
		logger.Fatal("new board server:", err)
	}

	srv := api.NewWhiteboardApp(mux, logger, boardServer, dbConn, cfg)

	boardStats.Run()
	defer boardStats.Stop()

	go boardServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down board server...")
	if err := boardServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("board server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
