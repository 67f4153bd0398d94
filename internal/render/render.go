package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/mfekete/exfil/backend/internal/models"
)

// Renderer turns a raw message into a Document and serializes that Document
// into the requested output formats. A Document is rendered once per message
// even when both PDF and HTML are requested.
type Renderer interface {
	RenderMessageDocument(header models.MessageHeader, raw []byte) (*models.Document, error)
	SerializeAsHTML(doc *models.Document) ([]byte, error)
	SerializeAsPDF(doc *models.Document) ([]byte, error)
}

// MessageRenderer parses MIME messages with enmime.
type MessageRenderer struct{}

var _ Renderer = (*MessageRenderer)(nil)

func NewMessageRenderer() *MessageRenderer {
	return &MessageRenderer{}
}

// RenderMessageDocument parses the raw message body. Messages without an
// HTML part fall back to the text part with line breaks preserved.
func (r *MessageRenderer) RenderMessageDocument(header models.MessageHeader, raw []byte) (*models.Document, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message body: %w", err)
	}

	bodyHTML := env.HTML
	if bodyHTML == "" {
		bodyHTML = strings.ReplaceAll(html.EscapeString(env.Text), "\n", "<br>")
	}

	return &models.Document{
		Header:   header,
		BodyHTML: bodyHTML,
		BodyText: env.Text,
	}, nil
}

// SerializeAsHTML produces a standalone HTML snapshot: a header table
// followed by the rendered body.
func (r *MessageRenderer) SerializeAsHTML(doc *models.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	h := doc.Header
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n</head>\n<body>\n", html.EscapeString(h.Subject))
	b.WriteString("<table>\n")
	writeHeaderRow(&b, "From", h.Author)
	writeHeaderRow(&b, "To", strings.Join(h.Recipients, ", "))
	writeHeaderRow(&b, "Cc", strings.Join(h.CCList, ", "))
	writeHeaderRow(&b, "Subject", h.Subject)
	if !h.Date.IsZero() {
		writeHeaderRow(&b, "Date", h.Date.Format("2006-01-02 15:04:05"))
	}
	b.WriteString("</table>\n<hr>\n")
	b.WriteString(doc.BodyHTML)
	b.WriteString("\n</body>\n</html>\n")

	return []byte(b.String()), nil
}

func writeHeaderRow(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<tr><th>%s</th><td>%s</td></tr>\n", label, html.EscapeString(value))
}

// SerializeAsPDF produces a plain-text rendition of the document as a
// minimal single-font PDF. Full rasterization of the HTML body is the
// concern of a richer rendering backend behind the same interface.
func (r *MessageRenderer) SerializeAsPDF(doc *models.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	h := doc.Header
	lines := []string{
		"From: " + h.Author,
		"To: " + strings.Join(h.Recipients, ", "),
		"Subject: " + h.Subject,
	}
	if !h.Date.IsZero() {
		lines = append(lines, "Date: "+h.Date.Format("2006-01-02 15:04:05"))
	}
	lines = append(lines, "")
	lines = append(lines, strings.Split(doc.BodyText, "\n")...)

	return writeTextPDF(lines), nil
}
