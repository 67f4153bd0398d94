package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mfekete/exfil/backend/internal/bus"
	"github.com/mfekete/exfil/backend/internal/config"
	"github.com/mfekete/exfil/backend/internal/dispatch"
	"github.com/mfekete/exfil/backend/internal/kvstore"
	"github.com/mfekete/exfil/backend/internal/logger"
)

// The configuration-window process answers window-open requests: it asks the
// background for the selected headers, proposes cleaned filenames and sends
// the confirmed export request back. Without an interactive surface it
// confirms every proposal with the persisted format flags.
func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	minLevel := logger.LevelInfo
	if cfg.Environment == "development" {
		minLevel = logger.LevelDebug
	}
	appLog := logger.New(minLevel, 100)

	ctx := context.Background()
	pool, err := kvstore.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	opts := dispatch.LoadOptions(ctx, kvstore.NewPGStore(pool), appLog)

	client, err := bus.Connect("localhost:"+cfg.BusPort, dispatch.ContextConfigWindow, appLog)
	if err != nil {
		log.Fatalf("Failed to join the bus: %v", err)
	}
	defer client.Close()

	window := dispatch.NewConfigWindow(client, dispatch.AcceptAllConfirmer{Flags: opts.Flags}, opts, appLog)
	client.OnReceive(window.Handle)

	log.Printf("Configuration-window context ready")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
		log.Printf("Shutting down")
	case <-client.Done():
		log.Printf("Bus connection closed, shutting down")
	}
}
