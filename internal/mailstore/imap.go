package mailstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/mfekete/exfil/backend/internal/logger"
	"github.com/mfekete/exfil/backend/internal/models"
)

// IMAPStore is a Store backed by a single IMAP session on one folder.
// One store instance serves one export batch; processing is sequential, so
// a single connection is enough.
type IMAPStore struct {
	client *client.Client
	folder string
	log    *logger.Logger
}

var _ Store = (*IMAPStore)(nil)

// Connect dials the IMAP server over TLS, logs in and selects the folder.
func Connect(host, username, password, folder string, log *logger.Logger) (*IMAPStore, error) {
	c, err := client.DialTLS(host, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial IMAP server %q: %w", host, err)
	}

	if err := c.Login(username, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to log in as %q: %w", username, err)
	}

	if _, err := c.Select(folder, true); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to select folder %q: %w", folder, err)
	}

	log.Infof("mailstore", "connected to %s, folder %s", host, folder)
	return &IMAPStore{client: c, folder: folder, log: log}, nil
}

// Close logs out of the session.
func (s *IMAPStore) Close() {
	if s.client != nil {
		_ = s.client.Logout()
	}
}

// ListHeaders lists the folder's message headers. The tab ID only scopes the
// request in the envelope protocol; one store instance is already bound to
// one folder, so it is not used here. selectedOnly maps to flagged messages.
func (s *IMAPStore) ListHeaders(ctx context.Context, tabID int, selectedOnly bool) ([]models.MessageHeader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uids, err := s.searchUIDs(selectedOnly)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return []models.MessageHeader{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchRFC822Size,
		imap.FetchUid,
	}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var headers []models.MessageHeader
	for msg := range messages {
		headers = append(headers, headerFromMessage(msg))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch headers: %w", err)
	}

	return headers, nil
}

func (s *IMAPStore) searchUIDs(selectedOnly bool) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	if selectedOnly {
		criteria.WithFlags = []string{imap.FlaggedFlag}
	}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search folder: %w", err)
	}
	return uids, nil
}

// GetRawBytes fetches the full RFC 822 body of one message.
func (s *IMAPStore) GetRawBytes(ctx context.Context, messageID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uid, err := parseMessageID(messageID)
	if err != nil {
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	msg := <-messages
	var raw []byte
	if msg != nil {
		if body := msg.GetBody(section); body != nil {
			raw, err = io.ReadAll(body)
			if err != nil {
				<-done
				return nil, fmt.Errorf("failed to read message body: %w", err)
			}
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", messageID, err)
	}

	if len(raw) == 0 {
		return nil, ErrDataUnavailable
	}

	return raw, nil
}

// ListAttachments parses the message and enumerates its attachment parts.
func (s *IMAPStore) ListAttachments(ctx context.Context, messageID string) ([]models.AttachmentMeta, error) {
	env, err := s.parseMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	var metas []models.AttachmentMeta
	for _, part := range env.Attachments {
		metas = append(metas, models.AttachmentMeta{
			MessageID:   messageID,
			PartID:      part.PartID,
			Name:        part.FileName,
			ContentType: part.ContentType,
			SizeBytes:   int64(len(part.Content)),
		})
	}

	return metas, nil
}

// GetAttachmentBytes returns the decoded content of one attachment part.
func (s *IMAPStore) GetAttachmentBytes(ctx context.Context, messageID, partID string) ([]byte, error) {
	env, err := s.parseMessage(ctx, messageID)
	if err != nil {
		return nil, ErrAttachmentUnavailable
	}

	for _, part := range env.Attachments {
		if part.PartID == partID {
			return part.Content, nil
		}
	}

	return nil, ErrAttachmentUnavailable
}

func (s *IMAPStore) parseMessage(ctx context.Context, messageID string) (*enmime.Envelope, error) {
	raw, err := s.GetRawBytes(ctx, messageID)
	if err != nil {
		return nil, err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %s: %w", messageID, err)
	}
	return env, nil
}

func parseMessageID(messageID string) (uint32, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", messageID, err)
	}
	return uint32(uid), nil
}

func headerFromMessage(msg *imap.Message) models.MessageHeader {
	header := models.MessageHeader{
		ID:        strconv.FormatUint(uint64(msg.Uid), 10),
		SizeBytes: int64(msg.Size),
	}

	if msg.Envelope != nil {
		header.Subject = msg.Envelope.Subject
		header.Date = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			header.Author = formatAddressList(msg.Envelope.From)
		}
		header.Recipients = splitAddressList(msg.Envelope.To)
		header.CCList = splitAddressList(msg.Envelope.Cc)
		header.BCCList = splitAddressList(msg.Envelope.Bcc)
	}

	return header
}

func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}

	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}

	if address.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", address.PersonalName, address.MailboxName, address.HostName)
	}

	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

func formatAddressList(addresses []*imap.Address) string {
	return strings.Join(splitAddressList(addresses), ", ")
}

func splitAddressList(addresses []*imap.Address) []string {
	var result []string
	for _, address := range addresses {
		if formatted := formatAddress(address); formatted != "" {
			result = append(result, formatted)
		}
	}
	return result
}
