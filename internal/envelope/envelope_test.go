package envelope

import (
	"testing"

	"github.com/mfekete/exfil/backend/internal/models"
)

func TestDecode(t *testing.T) {
	t.Run("round-trips a request variant", func(t *testing.T) {
		original := &LoadHeadersRequest{
			Base: Base{
				Kind:           KindLoadHeadersRequest,
				SentBy:         "popup",
				ConversationID: NewConversationID(),
			},
			TabID:        7,
			SelectedOnly: true,
		}

		raw, err := Encode(original)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		decoded, ok := Decode(raw)
		if !ok {
			t.Fatal("Decode returned false for a valid message")
		}

		req, ok := decoded.(*LoadHeadersRequest)
		if !ok {
			t.Fatalf("expected *LoadHeadersRequest, got %T", decoded)
		}
		if req.TabID != 7 || !req.SelectedOnly {
			t.Errorf("payload fields lost: %+v", req)
		}
		if req.ConversationID != original.ConversationID {
			t.Errorf("conversation ID lost: %q != %q", req.ConversationID, original.ConversationID)
		}
	})

	t.Run("preserves header payloads", func(t *testing.T) {
		original := &HeadersLoaded{
			Base:    Base{Kind: KindHeadersLoaded, SentBy: "background"},
			Headers: []models.MessageHeader{{ID: "msg-1", Subject: "Budget"}},
		}

		raw, err := Encode(original)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		decoded, ok := Decode(raw)
		if !ok {
			t.Fatal("Decode returned false")
		}

		loaded := decoded.(*HeadersLoaded)
		if len(loaded.Headers) != 1 || loaded.Headers[0].Subject != "Budget" {
			t.Errorf("headers payload lost: %+v", loaded.Headers)
		}
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		if _, ok := Decode([]byte(`{"kind":"launch-missiles"}`)); ok {
			t.Error("expected Decode to refuse an unknown kind")
		}
	})

	t.Run("rejects malformed input without panicking", func(t *testing.T) {
		for _, raw := range []string{"", "not json", "42", `"string"`, `[1,2]`, `{"kind":7}`} {
			if _, ok := Decode([]byte(raw)); ok {
				t.Errorf("expected Decode to reject %q", raw)
			}
		}
	})
}

func TestIsEnvelope(t *testing.T) {
	raw, err := Encode(&ExportDone{Base: Base{Kind: KindExportDone, SentBy: "background"}, Saved: 2})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	t.Run("matches without an expected kind", func(t *testing.T) {
		if !IsEnvelope(raw) {
			t.Error("expected IsEnvelope to accept a valid message")
		}
	})

	t.Run("matches the exact expected kind", func(t *testing.T) {
		if !IsEnvelope(raw, KindExportDone) {
			t.Error("expected IsEnvelope to match KindExportDone")
		}
	})

	t.Run("rejects a different expected kind", func(t *testing.T) {
		if IsEnvelope(raw, KindHeadersLoaded) {
			t.Error("expected IsEnvelope to reject a non-matching kind")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if IsEnvelope([]byte("garbage"), KindExportDone) {
			t.Error("expected IsEnvelope to reject garbage input")
		}
	})
}

func TestNewConversationID(t *testing.T) {
	a := NewConversationID()
	b := NewConversationID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty conversation IDs, got %q and %q", a, b)
	}
}
