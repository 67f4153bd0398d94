package envelope

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mfekete/exfil/backend/internal/models"
)

// Kind discriminates the closed set of message variants carried by the bus.
// Receivers must ignore kinds they don't recognize, never fail on them.
type Kind string

const (
	KindInitConfigWindow   Kind = "init-config-window"
	KindLoadHeadersRequest Kind = "load-headers-request"
	KindHeadersLoaded      Kind = "headers-loaded"
	KindExfiltrateRequest  Kind = "exfiltrate-request"
	KindExportDone         Kind = "export-done"
)

// Base carries the fields shared by every message variant.
// ConversationID correlates a request with its eventual answer; the bus
// itself provides no request/response linkage.
type Base struct {
	Kind           Kind   `json:"kind"`
	SentBy         string `json:"sent_by"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Envelope returns the shared fields; it also marks a struct as a bus message.
func (b Base) Envelope() Base {
	return b
}

// Message is implemented by every variant via an embedded Base.
type Message interface {
	Envelope() Base
}

// InitConfigWindow asks the background context to open the configuration
// window for the given mail tab.
type InitConfigWindow struct {
	Base
	TabID int `json:"tab_id"`
}

// LoadHeadersRequest asks the background context for the headers of the
// tab's messages, optionally restricted to the user's selection.
type LoadHeadersRequest struct {
	Base
	TabID        int  `json:"tab_id"`
	SelectedOnly bool `json:"selected_only"`
}

// HeadersLoaded answers a LoadHeadersRequest with the same conversation ID.
type HeadersLoaded struct {
	Base
	TabID        int                    `json:"tab_id"`
	SelectedOnly bool                   `json:"selected_only"`
	Headers      []models.MessageHeader `json:"headers"`
}

// ExfiltrateRequest asks the background context to export the given batch.
// Override maps are keyed by message ID; absent key means "no change".
type ExfiltrateRequest struct {
	Base
	Headers          []models.MessageHeader `json:"headers"`
	SubjectOverrides map[string]string      `json:"subject_overrides,omitempty"`
	SenderOverrides  map[string]string      `json:"sender_overrides,omitempty"`
	TargetDirectory  string                 `json:"target_directory,omitempty"`
	Flags            models.SaveFlags       `json:"flags"`
}

// ExportDone answers an ExfiltrateRequest with the batch outcome.
type ExportDone struct {
	Base
	Saved     int  `json:"saved"`
	Skipped   int  `json:"skipped"`
	Cancelled bool `json:"cancelled"`
}

// NewConversationID returns a fresh correlation ID for a request message.
func NewConversationID() string {
	return uuid.NewString()
}

// Encode serializes a message for the bus.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode narrows a raw bus frame to its concrete variant. It is total:
// malformed input or an unrecognized kind yields (nil, false), never a panic.
func Decode(raw []byte) (Message, bool) {
	var base Base
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, false
	}

	switch base.Kind {
	case KindInitConfigWindow:
		var m InitConfigWindow
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, false
		}
		return &m, true
	case KindLoadHeadersRequest:
		var m LoadHeadersRequest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, false
		}
		return &m, true
	case KindHeadersLoaded:
		var m HeadersLoaded
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, false
		}
		return &m, true
	case KindExfiltrateRequest:
		var m ExfiltrateRequest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, false
		}
		return &m, true
	case KindExportDone:
		var m ExportDone
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, false
		}
		return &m, true
	default:
		return nil, false
	}
}

// IsEnvelope reports whether raw is a recognizable message and, when expected
// kinds are given, whether its kind is among them. It never fails on
// arbitrary input.
func IsEnvelope(raw []byte, expected ...Kind) bool {
	m, ok := Decode(raw)
	if !ok {
		return false
	}

	if len(expected) == 0 {
		return true
	}

	kind := m.Envelope().Kind
	for _, e := range expected {
		if kind == e {
			return true
		}
	}
	return false
}
