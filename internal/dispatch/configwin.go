package dispatch

import (
	"sync"

	"github.com/mfekete/exfil/backend/internal/cleaner"
	"github.com/mfekete/exfil/backend/internal/envelope"
	"github.com/mfekete/exfil/backend/internal/logger"
	"github.com/mfekete/exfil/backend/internal/models"
	"github.com/mfekete/exfil/backend/internal/names"
)

// ContextConfigWindow is the identity the configuration window sends under.
const ContextConfigWindow = "configwin"

// Decision is the user's answer from the configuration surface.
type Decision struct {
	SubjectOverrides map[string]string
	SenderOverrides  map[string]string
	Flags            models.SaveFlags
	TargetDirectory  string
}

// Confirmer presents the proposed cleanups and lets the user edit and
// confirm them. Returning ok=false means the user pressed Cancel.
type Confirmer interface {
	Confirm(headers []models.MessageHeader, subjectProposals, senderProposals map[string]string) (Decision, bool)
}

// AcceptAllConfirmer confirms every proposal unchanged, with fixed flags.
// It backs the non-interactive window deployment.
type AcceptAllConfirmer struct {
	Flags models.SaveFlags
}

func (c AcceptAllConfirmer) Confirm(_ []models.MessageHeader, subjectProposals, senderProposals map[string]string) (Decision, bool) {
	return Decision{
		SubjectOverrides: subjectProposals,
		SenderOverrides:  senderProposals,
		Flags:            c.Flags,
	}, true
}

// ConfigWindow drives the window side of the conversation: on
// InitConfigWindow it requests the headers, on HeadersLoaded it proposes
// cleaned unique subjects and cleaned senders, asks the user to confirm,
// and answers with an ExfiltrateRequest.
type ConfigWindow struct {
	poster  Poster
	confirm Confirmer
	opts    Options
	log     *logger.Logger

	mu      sync.Mutex
	pending map[string]bool
}

func NewConfigWindow(poster Poster, confirm Confirmer, opts Options, log *logger.Logger) *ConfigWindow {
	return &ConfigWindow{
		poster:  poster,
		confirm: confirm,
		opts:    opts,
		log:     log,
		pending: make(map[string]bool),
	}
}

// Handle implements the bus handler contract for the window context.
func (w *ConfigWindow) Handle(raw []byte) bool {
	m, ok := envelope.Decode(raw)
	if !ok {
		return false
	}

	switch msg := m.(type) {
	case *envelope.InitConfigWindow:
		w.spawn("init", func() { w.handleInit(msg) })
		return true
	case *envelope.HeadersLoaded:
		// Only answers to our own load requests are ours to handle.
		if !w.takePending(msg.ConversationID) {
			return false
		}
		w.spawn("headers-loaded", func() { w.handleHeadersLoaded(msg) })
		return true
	case *envelope.ExportDone:
		w.log.Infof("dispatch", "export finished: %d saved, %d skipped, cancelled=%t",
			msg.Saved, msg.Skipped, msg.Cancelled)
		return true
	default:
		return false
	}
}

func (w *ConfigWindow) spawn(what string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Errorf("dispatch", "configwin %s handler failed: %v", what, r)
			}
		}()
		fn()
	}()
}

func (w *ConfigWindow) addPending(conversationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[conversationID] = true
}

func (w *ConfigWindow) takePending(conversationID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pending[conversationID] {
		return false
	}
	delete(w.pending, conversationID)
	return true
}

func (w *ConfigWindow) handleInit(msg *envelope.InitConfigWindow) {
	conversationID := envelope.NewConversationID()
	w.addPending(conversationID)

	request := &envelope.LoadHeadersRequest{
		Base: envelope.Base{
			Kind:           envelope.KindLoadHeadersRequest,
			SentBy:         ContextConfigWindow,
			ConversationID: conversationID,
		},
		TabID:        msg.TabID,
		SelectedOnly: true,
	}

	if err := w.poster.Post(request); err != nil {
		w.log.Errorf("dispatch", "failed to request headers for tab %d: %v", msg.TabID, err)
		w.takePending(conversationID)
	}
}

func (w *ConfigWindow) handleHeadersLoaded(msg *envelope.HeadersLoaded) {
	if len(msg.Headers) == 0 {
		w.log.Infof("dispatch", "no messages to export for tab %d", msg.TabID)
		return
	}

	subjectProposals, senderProposals := w.proposeCleanups(msg.Headers)

	decision, ok := w.confirm.Confirm(msg.Headers, subjectProposals, senderProposals)
	if !ok {
		w.log.Infof("dispatch", "export cancelled in the configuration window")
		return
	}

	request := &envelope.ExfiltrateRequest{
		Base: envelope.Base{
			Kind:           envelope.KindExfiltrateRequest,
			SentBy:         ContextConfigWindow,
			ConversationID: envelope.NewConversationID(),
		},
		Headers:          msg.Headers,
		SubjectOverrides: decision.SubjectOverrides,
		SenderOverrides:  decision.SenderOverrides,
		TargetDirectory:  decision.TargetDirectory,
		Flags:            decision.Flags,
	}

	if err := w.poster.Post(request); err != nil {
		w.log.Errorf("dispatch", "failed to send exfiltrate request: %v", err)
	}
}

// proposeCleanups runs the rule cascades over the batch and de-duplicates
// the cleaned subjects, so the proposals the user sees are exactly the
// distinct names the export would use.
func (w *ConfigWindow) proposeCleanups(headers []models.MessageHeader) (map[string]string, map[string]string) {
	subjectRepl := cleaner.BuildReplacementMap(headers, cleaner.SubjectField, w.opts.SubjectRuleset(w.log))
	senderRepl := cleaner.BuildReplacementMap(headers, cleaner.SenderField, w.opts.SenderRuleset(w.log))

	subjects := make(map[string]string, len(headers))
	senders := make(map[string]string, len(headers))

	registry := names.NewRegistry()
	for _, header := range headers {
		cleaned, ok := subjectRepl[header.Subject]
		if !ok {
			cleaned = header.Subject
		}
		unique := names.MakeUnique(cleaned, registry, names.DefaultOptions())
		if unique == "" {
			unique = cleaned
		}
		subjects[header.ID] = unique

		persons := cleaner.SplitPersonList(header.Author)
		if len(persons) > 0 {
			sender, ok := senderRepl[persons[0]]
			if !ok {
				sender = persons[0]
			}
			senders[header.ID] = sender
		}
	}

	return subjects, senders
}
