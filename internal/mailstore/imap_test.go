package mailstore

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
)

func TestHeaderFromMessage(t *testing.T) {
	t.Run("maps envelope fields", func(t *testing.T) {
		date := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
		msg := &imap.Message{
			Uid:  42,
			Size: 1234,
			Envelope: &imap.Envelope{
				Subject: "Budget",
				Date:    date,
				From: []*imap.Address{
					{PersonalName: "John Doe", MailboxName: "john", HostName: "example.com"},
				},
				To: []*imap.Address{
					{MailboxName: "jane", HostName: "example.com"},
				},
				Cc: []*imap.Address{
					{PersonalName: "Team", MailboxName: "team", HostName: "example.com"},
				},
			},
		}

		header := headerFromMessage(msg)

		if header.ID != "42" {
			t.Errorf("expected ID '42', got %q", header.ID)
		}
		if header.Subject != "Budget" {
			t.Errorf("expected subject 'Budget', got %q", header.Subject)
		}
		if header.Author != "John Doe <john@example.com>" {
			t.Errorf("unexpected author %q", header.Author)
		}
		if len(header.Recipients) != 1 || header.Recipients[0] != "jane@example.com" {
			t.Errorf("unexpected recipients %v", header.Recipients)
		}
		if len(header.CCList) != 1 || header.CCList[0] != "Team <team@example.com>" {
			t.Errorf("unexpected cc list %v", header.CCList)
		}
		if !header.Date.Equal(date) {
			t.Errorf("unexpected date %v", header.Date)
		}
		if header.SizeBytes != 1234 {
			t.Errorf("unexpected size %d", header.SizeBytes)
		}
	})

	t.Run("tolerates a missing envelope", func(t *testing.T) {
		header := headerFromMessage(&imap.Message{Uid: 7})
		if header.ID != "7" || header.Subject != "" {
			t.Errorf("unexpected header %+v", header)
		}
	})

	t.Run("joins multiple senders", func(t *testing.T) {
		msg := &imap.Message{
			Uid: 1,
			Envelope: &imap.Envelope{
				From: []*imap.Address{
					{PersonalName: "A", MailboxName: "a", HostName: "x.com"},
					{MailboxName: "b", HostName: "x.com"},
				},
			},
		}

		header := headerFromMessage(msg)
		if header.Author != "A <a@x.com>, b@x.com" {
			t.Errorf("unexpected author %q", header.Author)
		}
	})
}

func TestFormatAddress(t *testing.T) {
	t.Run("nil address yields empty string", func(t *testing.T) {
		if got := formatAddress(nil); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("empty address yields empty string", func(t *testing.T) {
		if got := formatAddress(&imap.Address{}); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestParseMessageID(t *testing.T) {
	t.Run("parses a numeric id", func(t *testing.T) {
		uid, err := parseMessageID("42")
		if err != nil || uid != 42 {
			t.Errorf("expected uid 42, got (%d, %v)", uid, err)
		}
	})

	t.Run("rejects a non-numeric id", func(t *testing.T) {
		if _, err := parseMessageID("msg-42"); err == nil {
			t.Error("expected error for non-numeric id")
		}
	})
}
