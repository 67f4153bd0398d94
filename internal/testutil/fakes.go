package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mfekete/exfil/backend/internal/mailstore"
	"github.com/mfekete/exfil/backend/internal/models"
)

// FakeMailStore serves canned messages and attachments from memory.
type FakeMailStore struct {
	Headers     []models.MessageHeader
	Raw         map[string][]byte                  // message ID -> RFC 822 bytes
	Attachments map[string][]models.AttachmentMeta // message ID -> parts
	Parts       map[string][]byte                  // "messageID/partID" -> content
	FailParts   map[string]bool                    // parts whose fetch should fail
}

func NewFakeMailStore() *FakeMailStore {
	return &FakeMailStore{
		Raw:         make(map[string][]byte),
		Attachments: make(map[string][]models.AttachmentMeta),
		Parts:       make(map[string][]byte),
		FailParts:   make(map[string]bool),
	}
}

func (s *FakeMailStore) ListHeaders(context.Context, int, bool) ([]models.MessageHeader, error) {
	return s.Headers, nil
}

func (s *FakeMailStore) GetRawBytes(_ context.Context, messageID string) ([]byte, error) {
	raw, ok := s.Raw[messageID]
	if !ok || len(raw) == 0 {
		return nil, mailstore.ErrDataUnavailable
	}
	return raw, nil
}

func (s *FakeMailStore) ListAttachments(_ context.Context, messageID string) ([]models.AttachmentMeta, error) {
	return s.Attachments[messageID], nil
}

func (s *FakeMailStore) GetAttachmentBytes(_ context.Context, messageID, partID string) ([]byte, error) {
	key := messageID + "/" + partID
	if s.FailParts[key] {
		return nil, mailstore.ErrAttachmentUnavailable
	}
	content, ok := s.Parts[key]
	if !ok {
		return nil, mailstore.ErrAttachmentUnavailable
	}
	return content, nil
}

// SavedFile records one FakeSink.Save call that wrote a file.
type SavedFile struct {
	Path string
	Data []byte
}

// FakeSink pretends to write files and can report a user cancellation at a
// chosen save call.
type FakeSink struct {
	Dir      string
	CancelAt int // 1-based index of the save call that reports cancellation; 0 disables
	PromptOK bool

	mu      sync.Mutex
	calls   int
	Saves   []SavedFile
	Prompts int
}

func NewFakeSink(dir string) *FakeSink {
	return &FakeSink{Dir: dir, PromptOK: true}
}

func (s *FakeSink) Save(data []byte, suggestedName, knownDirectory, extensionOverride string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.CancelAt > 0 && s.calls >= s.CancelAt {
		return "", true, nil
	}

	dir := knownDirectory
	if dir == "" {
		s.Prompts++
		if !s.PromptOK {
			return "", true, nil
		}
		dir = s.Dir
	}

	name := suggestedName
	if extensionOverride != "" && !strings.HasSuffix(name, extensionOverride) {
		name += extensionOverride
	}

	path := filepath.Join(dir, name)
	s.Saves = append(s.Saves, SavedFile{Path: path, Data: data})
	return path, false, nil
}

// SavedNames returns the base names of every file written, in order.
func (s *FakeSink) SavedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.Saves))
	for i, saved := range s.Saves {
		names[i] = filepath.Base(saved.Path)
	}
	return names
}

// FakeRenderer serializes documents to deterministic placeholder bytes.
type FakeRenderer struct {
	Rendered int
	FailFor  map[string]bool // message IDs whose render should fail
}

func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{FailFor: make(map[string]bool)}
}

func (r *FakeRenderer) RenderMessageDocument(header models.MessageHeader, raw []byte) (*models.Document, error) {
	if r.FailFor[header.ID] {
		return nil, fmt.Errorf("render failed for %s", header.ID)
	}
	r.Rendered++
	return &models.Document{Header: header, BodyHTML: "<p>" + header.Subject + "</p>", BodyText: string(raw)}, nil
}

func (r *FakeRenderer) SerializeAsHTML(doc *models.Document) ([]byte, error) {
	return []byte("html:" + doc.Header.ID), nil
}

func (r *FakeRenderer) SerializeAsPDF(doc *models.Document) ([]byte, error) {
	return []byte("pdf:" + doc.Header.ID), nil
}
