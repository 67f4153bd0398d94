package main

import (
	"flag"
	"log"
	"time"

	"github.com/mfekete/exfil/backend/internal/bus"
	"github.com/mfekete/exfil/backend/internal/dispatch"
	"github.com/mfekete/exfil/backend/internal/logger"
)

// The popup process triggers an export and reports its outcome. "archive"
// opens the configuration window for the full flow; "attachments" saves the
// selected messages' attachments without any window.
func main() {
	busAddr := flag.String("bus", "localhost:8765", "host:port of the message bus")
	action := flag.String("action", "archive", "archive or attachments")
	tabID := flag.Int("tab", 0, "mail tab to export from")
	wait := flag.Duration("wait", 10*time.Minute, "how long to wait for the export to finish")
	flag.Parse()

	appLog := logger.New(logger.LevelInfo, 100)

	client, err := bus.Connect(*busAddr, dispatch.ContextPopup, appLog)
	if err != nil {
		log.Fatalf("Failed to join the bus: %v", err)
	}
	defer client.Close()

	popup := dispatch.NewPopup(client, appLog)
	client.OnReceive(popup.Handle)

	switch *action {
	case "archive":
		err = popup.Archive(*tabID)
	case "attachments":
		err = popup.SaveAttachments(*tabID)
	default:
		log.Fatalf("Unknown action %q", *action)
	}
	if err != nil {
		log.Fatalf("Failed to start the export: %v", err)
	}

	select {
	case result := <-popup.Results():
		if result.Cancelled {
			log.Printf("Export cancelled after %d file(s)", result.Saved)
			return
		}
		log.Printf("Export finished: %d saved, %d skipped", result.Saved, result.Skipped)
	case <-client.Done():
		log.Fatalf("Bus connection closed before the export finished")
	case <-time.After(*wait):
		log.Fatalf("Gave up waiting for the export after %s", *wait)
	}
}
