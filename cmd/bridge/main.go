package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"etlaq/internal/bridge"
	"etlaq/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	registry := bridge.NewRegistry(cfg.Bridge.SessionTTL)
	defer registry.Close()

	server := bridge.NewServer(bridge.Config{
		StudioURL: cfg.Bridge.StudioURL,
		ChatID:    cfg.Bridge.ChatID,
	}, registry)
	app := server.App()

	log.Printf("[GRAB] Bridge running on port %s", cfg.Bridge.Port)
	log.Printf("[GRAB] Studio API: %s", cfg.Bridge.StudioURL)
	if cfg.Bridge.ChatID != "" {
		log.Println("[GRAB] Chat ID: configured")
	} else {
		log.Println("[GRAB] Chat ID: missing")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.Bridge.Port); err != nil {
			log.Fatalf("Bridge failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("[GRAB] Shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during bridge shutdown: %v", err)
	}
}
