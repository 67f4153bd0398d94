package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfekete/exfil/backend/internal/bus"
	"github.com/mfekete/exfil/backend/internal/config"
	"github.com/mfekete/exfil/backend/internal/dispatch"
	"github.com/mfekete/exfil/backend/internal/export"
	"github.com/mfekete/exfil/backend/internal/filesink"
	"github.com/mfekete/exfil/backend/internal/kvstore"
	"github.com/mfekete/exfil/backend/internal/logger"
	"github.com/mfekete/exfil/backend/internal/mailstore"
	"github.com/mfekete/exfil/backend/internal/render"
)

// The server process hosts the message bus and runs the background context:
// it owns the mail store, the export pipeline and the persisted settings.
// Popup and configuration-window processes connect to it as bus clients.
func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	minLevel := logger.LevelInfo
	if cfg.Environment == "development" {
		minLevel = logger.LevelDebug
	}
	appLog := logger.New(minLevel, 500)

	ctx := context.Background()
	pool, err := kvstore.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := kvstore.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to prepare settings schema: %v", err)
	}
	settings := kvstore.NewPGStore(pool)
	if err := dispatch.SeedOptions(ctx, settings, cfg.FilenameTemplate); err != nil {
		log.Fatalf("Failed to seed export options: %v", err)
	}

	log.Printf("Successfully connected to database")

	store, err := mailstore.Connect(cfg.IMAPHost, cfg.IMAPUsername, cfg.IMAPPassword, cfg.IMAPFolder, appLog)
	if err != nil {
		log.Fatalf("Failed to connect to mail store: %v", err)
	}
	defer store.Close()

	sink := filesink.NewSink(filesink.FixedDirectoryPrompter{Dir: cfg.ExportDir}, appLog)
	pipeline := export.NewPipeline(store, sink, render.NewMessageRenderer(), appLog)
	if loc, err := time.LoadLocation(cfg.Timezone); err != nil {
		log.Printf("Unknown timezone %q, filenames keep message time", cfg.Timezone)
	} else {
		pipeline.SetLocation(loc)
	}

	hub := bus.NewHub(appLog)
	mux := http.NewServeMux()
	mux.Handle("/bus", hub.Handler())

	address := ":" + cfg.BusPort
	go func() {
		log.Printf("Exfil bus starting on %s (environment: %s)", address, cfg.Environment)
		if err := http.ListenAndServe(address, mux); err != nil {
			log.Fatalf("Bus server failed: %v", err)
		}
	}()

	client, err := bus.Connect("localhost:"+cfg.BusPort, dispatch.ContextBackground, appLog)
	if err != nil {
		log.Fatalf("Failed to join the bus: %v", err)
	}
	defer client.Close()

	background := dispatch.NewBackground(store, pipeline, client, settings, dispatch.LogWindowOpener{Log: appLog}, cfg.ExportDir, appLog)
	client.OnReceive(background.Handle)

	log.Printf("Background context ready")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
		log.Printf("Shutting down")
	case <-client.Done():
		log.Printf("Bus connection closed, shutting down")
	}
}
