package main

import (
	"context"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stuffhappens/auth"
	"stuffhappens/config"
	"stuffhappens/game"
	httpserver "stuffhappens/http"
	"stuffhappens/store"
)

func main() {
	log.Println("Starting Stuff Happens server...")

	cfg := config.Load()
	log.Printf("Configuration loaded - Server port: %s, DB path: %s", cfg.ServerPort, cfg.DBPath)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	log.Println("Database initialized successfully")

	sessionManager := auth.NewSessionManager()
	authService := auth.NewService(db, sessionManager)
	engine := game.NewEngine(db, cfg.MaxResponseTime)

	server := httpserver.NewServer(authService, engine, db)
	srv := server.GetHTTPServer(cfg.ServerPort)

	go func() {
		log.Printf("Server listening on http://localhost%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
