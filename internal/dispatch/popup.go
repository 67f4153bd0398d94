package dispatch

import (
	"sync"

	"github.com/mfekete/exfil/backend/internal/envelope"
	"github.com/mfekete/exfil/backend/internal/logger"
	"github.com/mfekete/exfil/backend/internal/models"
)

// ContextPopup is the identity the action popup sends under.
const ContextPopup = "popup"

// Popup drives the two popup buttons. Archive opens the full configuration
// flow; SaveAttachments short-circuits the window and exports only the
// attachments of the selection.
type Popup struct {
	poster Poster
	log    *logger.Logger

	mu      sync.Mutex
	pending map[string]bool

	results chan *envelope.ExportDone
}

func NewPopup(poster Poster, log *logger.Logger) *Popup {
	return &Popup{
		poster:  poster,
		log:     log,
		pending: make(map[string]bool),
		results: make(chan *envelope.ExportDone, 1),
	}
}

// Archive asks the background context to open the configuration window for
// the tab; the window takes the conversation from there.
func (p *Popup) Archive(tabID int) error {
	return p.poster.Post(&envelope.InitConfigWindow{
		Base: envelope.Base{
			Kind:   envelope.KindInitConfigWindow,
			SentBy: ContextPopup,
		},
		TabID: tabID,
	})
}

// SaveAttachments requests the selection's headers; the answer triggers an
// attachments-only export without the configuration window.
func (p *Popup) SaveAttachments(tabID int) error {
	conversationID := envelope.NewConversationID()

	p.mu.Lock()
	p.pending[conversationID] = true
	p.mu.Unlock()

	err := p.poster.Post(&envelope.LoadHeadersRequest{
		Base: envelope.Base{
			Kind:           envelope.KindLoadHeadersRequest,
			SentBy:         ContextPopup,
			ConversationID: conversationID,
		},
		TabID:        tabID,
		SelectedOnly: true,
	})
	if err != nil {
		p.mu.Lock()
		delete(p.pending, conversationID)
		p.mu.Unlock()
	}
	return err
}

// Results delivers the outcome of finished batches.
func (p *Popup) Results() <-chan *envelope.ExportDone {
	return p.results
}

// Handle implements the bus handler contract for the popup context.
func (p *Popup) Handle(raw []byte) bool {
	m, ok := envelope.Decode(raw)
	if !ok {
		return false
	}

	switch msg := m.(type) {
	case *envelope.HeadersLoaded:
		if !p.takePending(msg.ConversationID) {
			return false
		}
		p.spawn(func() { p.handleHeadersLoaded(msg) })
		return true
	case *envelope.ExportDone:
		p.log.Infof("dispatch", "export finished: %d saved, %d skipped, cancelled=%t",
			msg.Saved, msg.Skipped, msg.Cancelled)
		select {
		case p.results <- msg:
		default:
		}
		return true
	default:
		return false
	}
}

func (p *Popup) spawn(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Errorf("dispatch", "popup handler failed: %v", r)
			}
		}()
		fn()
	}()
}

func (p *Popup) takePending(conversationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending[conversationID] {
		return false
	}
	delete(p.pending, conversationID)
	return true
}

func (p *Popup) handleHeadersLoaded(msg *envelope.HeadersLoaded) {
	if len(msg.Headers) == 0 {
		p.log.Infof("dispatch", "no messages selected in tab %d", msg.TabID)
		return
	}

	request := &envelope.ExfiltrateRequest{
		Base: envelope.Base{
			Kind:           envelope.KindExfiltrateRequest,
			SentBy:         ContextPopup,
			ConversationID: envelope.NewConversationID(),
		},
		Headers: msg.Headers,
		Flags:   models.SaveFlags{Attachments: true},
	}

	if err := p.poster.Post(request); err != nil {
		p.log.Errorf("dispatch", "failed to request attachment export: %v", err)
	}
}
