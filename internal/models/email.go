package models

import "time"

// MessageHeader is the read-only view of a message as the Mail Store exposes it.
// The export flow never mutates headers; subject/sender overrides live on the
// export job, keyed by message ID.
type MessageHeader struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Author     string    `json:"author"`
	Recipients []string  `json:"recipients"`
	CCList     []string  `json:"cc_list"`
	BCCList    []string  `json:"bcc_list"`
	Date       time.Time `json:"date"`
	SizeBytes  int64     `json:"size_bytes"`
}

type AttachmentMeta struct {
	MessageID   string `json:"message_id"`
	PartID      string `json:"part_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Document is a rendered message, ready for HTML or PDF serialization.
type Document struct {
	Header   MessageHeader `json:"header"`
	BodyHTML string        `json:"body_html"`
	BodyText string        `json:"body_text"`
}

// SaveFlags selects which output formats an export produces.
type SaveFlags struct {
	EML         bool `json:"eml"`
	PDF         bool `json:"pdf"`
	HTML        bool `json:"html"`
	Attachments bool `json:"attachments"`
}

// Any reports whether at least one format is selected.
func (f SaveFlags) Any() bool {
	return f.EML || f.PDF || f.HTML || f.Attachments
}
