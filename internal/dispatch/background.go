package dispatch

import (
	"context"

	"github.com/mfekete/exfil/backend/internal/envelope"
	"github.com/mfekete/exfil/backend/internal/export"
	"github.com/mfekete/exfil/backend/internal/kvstore"
	"github.com/mfekete/exfil/backend/internal/logger"
	"github.com/mfekete/exfil/backend/internal/mailstore"
)

// ContextBackground is the identity the background context sends under.
const ContextBackground = "background"

// Poster sends a message to the other contexts through the bus.
type Poster interface {
	Post(m envelope.Message) error
}

// WindowOpener brings up the configuration window context for a tab.
type WindowOpener interface {
	OpenConfigWindow(tabID int) error
}

// LogWindowOpener stands in where the window process is launched by the
// user rather than by us.
type LogWindowOpener struct {
	Log *logger.Logger
}

func (o LogWindowOpener) OpenConfigWindow(tabID int) error {
	o.Log.Infof("dispatch", "configuration window requested for tab %d", tabID)
	return nil
}

// Background handles the envelopes owned by the background/main context:
// it answers header listings and runs export batches. The handler itself
// returns immediately; the work runs in a spawned goroutine.
type Background struct {
	store    mailstore.Store
	pipeline *export.Pipeline
	poster   Poster
	settings kvstore.Store
	opener   WindowOpener
	log      *logger.Logger

	defaultDir string
}

func NewBackground(store mailstore.Store, pipeline *export.Pipeline, poster Poster, settings kvstore.Store, opener WindowOpener, defaultDir string, log *logger.Logger) *Background {
	return &Background{
		store:      store,
		pipeline:   pipeline,
		poster:     poster,
		settings:   settings,
		opener:     opener,
		log:        log,
		defaultDir: defaultDir,
	}
}

// Handle implements the bus handler contract: a synchronous boolean answer,
// with the matched envelope's work spawned fire-and-forget. Exceptions never
// escape to the bus; they are caught, logged and turn into a false return
// at worst.
func (b *Background) Handle(raw []byte) bool {
	m, ok := envelope.Decode(raw)
	if !ok {
		return false
	}

	switch msg := m.(type) {
	case *envelope.InitConfigWindow:
		b.spawn("init-config-window", func() { b.handleInitConfigWindow(msg) })
		return true
	case *envelope.LoadHeadersRequest:
		b.spawn("load-headers", func() { b.handleLoadHeaders(msg) })
		return true
	case *envelope.ExfiltrateRequest:
		b.spawn("exfiltrate", func() { b.handleExfiltrate(msg) })
		return true
	default:
		return false
	}
}

func (b *Background) spawn(what string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.log.Errorf("dispatch", "background %s handler failed: %v", what, r)
			}
		}()
		fn()
	}()
}

func (b *Background) handleInitConfigWindow(msg *envelope.InitConfigWindow) {
	if err := b.opener.OpenConfigWindow(msg.TabID); err != nil {
		b.log.Warnf("dispatch", "failed to open configuration window for tab %d: %v", msg.TabID, err)
	}
}

// handleLoadHeaders answers with the tab's headers under the requester's
// conversation ID. A listing failure still answers, with an empty batch, so
// the requester's conversation does not hang.
func (b *Background) handleLoadHeaders(msg *envelope.LoadHeadersRequest) {
	ctx := context.Background()

	headers, err := b.store.ListHeaders(ctx, msg.TabID, msg.SelectedOnly)
	if err != nil {
		b.log.Errorf("dispatch", "failed to list headers for tab %d: %v", msg.TabID, err)
		headers = nil
	}

	answer := &envelope.HeadersLoaded{
		Base: envelope.Base{
			Kind:           envelope.KindHeadersLoaded,
			SentBy:         ContextBackground,
			ConversationID: msg.ConversationID,
		},
		TabID:        msg.TabID,
		SelectedOnly: msg.SelectedOnly,
		Headers:      headers,
	}

	if err := b.poster.Post(answer); err != nil {
		b.log.Errorf("dispatch", "failed to answer load-headers request: %v", err)
	}
}

// handleExfiltrate builds the job, runs the pipeline and reports the batch
// outcome under the requester's conversation ID.
func (b *Background) handleExfiltrate(msg *envelope.ExfiltrateRequest) {
	ctx := context.Background()

	if !msg.Flags.Any() {
		b.log.Warnf("dispatch", "export request with no formats selected, nothing to do")
		b.answerExportDone(msg.ConversationID, 0, 0, false)
		return
	}

	opts := LoadOptions(ctx, b.settings, b.log)

	job := export.NewJob(msg.Headers, msg.Flags)
	job.FilenameTemplate = opts.FilenameTemplate
	for id, subject := range msg.SubjectOverrides {
		job.SubjectOverrides[id] = subject
	}
	for id, sender := range msg.SenderOverrides {
		job.SenderOverrides[id] = sender
	}

	job.TargetDirectory = msg.TargetDirectory
	if job.TargetDirectory == "" {
		job.TargetDirectory = b.defaultDir
	}

	b.log.Infof("dispatch", "starting export of %d message(s)", len(msg.Headers))
	b.pipeline.ExfiltrateEmails(ctx, job)

	b.answerExportDone(msg.ConversationID, job.Saved, job.Skipped, job.Status == export.StatusCancelled)
}

func (b *Background) answerExportDone(conversationID string, saved, skipped int, cancelled bool) {
	answer := &envelope.ExportDone{
		Base: envelope.Base{
			Kind:           envelope.KindExportDone,
			SentBy:         ContextBackground,
			ConversationID: conversationID,
		},
		Saved:     saved,
		Skipped:   skipped,
		Cancelled: cancelled,
	}

	if err := b.poster.Post(answer); err != nil {
		b.log.Errorf("dispatch", "failed to report export outcome: %v", err)
	}
}
