package mailstore

import (
	"context"
	"errors"

	"github.com/mfekete/exfil/backend/internal/models"
)

// ErrDataUnavailable is returned when the store has no content for a message.
var ErrDataUnavailable = errors.New("message content unavailable")

// ErrAttachmentUnavailable is returned when an attachment part cannot be fetched.
var ErrAttachmentUnavailable = errors.New("attachment unavailable")

// Store exposes read access to messages and attachments. The export flow
// only ever reads; nothing here mutates the mailbox.
type Store interface {
	// ListHeaders lists the headers of the folder shown in the given tab.
	// With selectedOnly, only the user's selected (flagged) messages are
	// returned.
	ListHeaders(ctx context.Context, tabID int, selectedOnly bool) ([]models.MessageHeader, error)

	// GetRawBytes returns the full RFC 822 bytes of a message.
	// Returns ErrDataUnavailable when the server has no content for it.
	GetRawBytes(ctx context.Context, messageID string) ([]byte, error)

	// ListAttachments enumerates the attachment parts of a message.
	ListAttachments(ctx context.Context, messageID string) ([]models.AttachmentMeta, error)

	// GetAttachmentBytes returns the decoded content of one attachment part.
	// Returns ErrAttachmentUnavailable when the part cannot be fetched.
	GetAttachmentBytes(ctx context.Context, messageID, partID string) ([]byte, error)
}
