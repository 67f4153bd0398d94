package export

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/mfekete/exfil/backend/internal/cleaner"
	"github.com/mfekete/exfil/backend/internal/filesink"
	"github.com/mfekete/exfil/backend/internal/logger"
	"github.com/mfekete/exfil/backend/internal/mailstore"
	"github.com/mfekete/exfil/backend/internal/models"
	"github.com/mfekete/exfil/backend/internal/names"
	"github.com/mfekete/exfil/backend/internal/template"
)

// MailStore is the slice of the mail store the pipeline reads from.
type MailStore interface {
	GetRawBytes(ctx context.Context, messageID string) ([]byte, error)
	ListAttachments(ctx context.Context, messageID string) ([]models.AttachmentMeta, error)
	GetAttachmentBytes(ctx context.Context, messageID, partID string) ([]byte, error)
}

// FileSink writes one file per call and reports user cancellation.
type FileSink interface {
	Save(data []byte, suggestedName, knownDirectory, extensionOverride string) (resolvedPath string, userCancelled bool, err error)
}

// Renderer renders a message once and serializes it per format.
type Renderer interface {
	RenderMessageDocument(header models.MessageHeader, raw []byte) (*models.Document, error)
	SerializeAsHTML(doc *models.Document) ([]byte, error)
	SerializeAsPDF(doc *models.Document) ([]byte, error)
}

// Status is the lifecycle of one export batch.
type Status int

const (
	StatusPending Status = iota
	StatusExporting
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExporting:
		return "exporting"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Attachments of this content type are placeholders left behind by the mail
// client after detaching; they carry no content worth writing.
const deletedContentType = "text/x-moz-deleted"

// Job is the per-batch state. TargetDirectory starts out as the caller's
// preset (possibly empty) and is filled in by the first interactive save;
// every later save of the batch reuses it silently.
type Job struct {
	Headers          []models.MessageHeader
	SubjectOverrides map[string]string
	SenderOverrides  map[string]string
	TargetDirectory  string
	Flags            models.SaveFlags
	FilenameTemplate string

	Status  Status
	Saved   int
	Skipped int

	filenames map[string]string
}

// NewJob creates a pending job over the given batch.
func NewJob(headers []models.MessageHeader, flags models.SaveFlags) *Job {
	return &Job{
		Headers:          headers,
		SubjectOverrides: make(map[string]string),
		SenderOverrides:  make(map[string]string),
		Flags:            flags,
		FilenameTemplate: template.DefaultFilenameTemplate,
		Status:           StatusPending,
	}
}

// Filename returns the collision-free base name assigned to a message, once
// ExfiltrateEmails has run its naming pass.
func (j *Job) Filename(messageID string) string {
	return j.filenames[messageID]
}

// Pipeline runs export jobs against injected collaborators.
type Pipeline struct {
	store    MailStore
	sink     FileSink
	renderer Renderer
	log      *logger.Logger
	loc      *time.Location
}

func NewPipeline(store MailStore, sink FileSink, renderer Renderer, log *logger.Logger) *Pipeline {
	return &Pipeline{store: store, sink: sink, renderer: renderer, log: log}
}

// SetLocation makes filename date fields render in the given timezone
// instead of each message's own. A nil location keeps message time.
func (p *Pipeline) SetLocation(loc *time.Location) {
	p.loc = loc
}

// ExfiltrateEmails processes the batch strictly sequentially. It never
// returns an error and never panics: failures degrade to skipped units plus
// a log entry, and a user cancellation ends the batch as a normal outcome.
func (p *Pipeline) ExfiltrateEmails(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("pipeline", "unexpected failure mid-batch: %v", r)
			job.Status = StatusFailed
		}
	}()

	job.Status = StatusExporting
	p.assignFilenames(job)

	for _, header := range job.Headers {
		if cancelled := p.exfiltrateEmail(ctx, job, header); cancelled {
			job.Status = StatusCancelled
			p.log.Infof("pipeline", "batch cancelled by user after %d file(s)", job.Saved)
			return
		}
	}

	job.Status = StatusCompleted
	p.log.Infof("pipeline", "batch completed: %d file(s) saved, %d unit(s) skipped", job.Saved, job.Skipped)
}

// assignFilenames runs the batch-wide naming pass before any I/O, so every
// file of the batch gets a collision-free name even though writes happen one
// by one afterwards. The header order decides which collision is first and
// thus keeps the unsuffixed name.
func (p *Pipeline) assignFilenames(job *Job) {
	registry := names.NewRegistry()
	job.filenames = make(map[string]string, len(job.Headers))

	for _, header := range job.Headers {
		candidate := p.baseFilename(job, header)
		unique := names.MakeUnique(candidate, registry, names.DefaultOptions())
		if unique == "" {
			// Allocator cap exhausted; the message ID is distinct by definition.
			unique = filesink.SanitizeFilename(header.ID)
			p.log.Warnf("pipeline", "name allocation exhausted for %q, falling back to message id", candidate)
		}
		job.filenames[header.ID] = unique
	}
}

func (p *Pipeline) baseFilename(job *Job, header models.MessageHeader) string {
	subject, ok := job.SubjectOverrides[header.ID]
	if !ok {
		subject = cleaner.CleanWithRules(header.Subject, cleaner.DefaultSubjectRules())
	}

	from, ok := job.SenderOverrides[header.ID]
	if !ok {
		persons := cleaner.SplitPersonList(header.Author)
		if len(persons) > 0 {
			from = cleaner.CleanWithRules(persons[0], cleaner.DefaultSenderRules())
		}
	}

	tmpl := job.FilenameTemplate
	if tmpl == "" {
		tmpl = template.DefaultFilenameTemplate
	}

	date := header.Date
	if p.loc != nil {
		date = date.In(p.loc)
	}
	fields := template.DateFields(date)
	fields["subject"] = subject
	fields["from"] = from

	expanded := template.ExpandFields(tmpl, fields, template.DefaultOptions())
	return filesink.SanitizeFilename(expanded)
}

// exfiltrateEmail exports one message in every requested format. It reports
// whether the user cancelled, which stops the remaining formats of this
// message and the rest of the batch.
func (p *Pipeline) exfiltrateEmail(ctx context.Context, job *Job, header models.MessageHeader) bool {
	name := job.filenames[header.ID]

	raw, err := p.store.GetRawBytes(ctx, header.ID)
	if err != nil {
		if errors.Is(err, mailstore.ErrDataUnavailable) {
			p.log.Warnf("pipeline", "no content for message %s, skipping", header.ID)
		} else {
			p.log.Warnf("pipeline", "failed to fetch message %s: %v", header.ID, err)
		}
		job.Skipped++
		return false
	}

	if job.Flags.EML {
		if cancelled := p.save(job, raw, name, ".eml"); cancelled {
			return true
		}
	}

	if job.Flags.PDF || job.Flags.HTML {
		if cancelled := p.saveRendered(job, header, raw, name); cancelled {
			return true
		}
	}

	if job.Flags.Attachments {
		if cancelled := p.saveAttachments(ctx, job, header, name); cancelled {
			return true
		}
	}

	return false
}

// saveRendered renders the message once and saves the PDF and/or HTML
// serialization of that same document.
func (p *Pipeline) saveRendered(job *Job, header models.MessageHeader, raw []byte, name string) bool {
	doc, err := p.renderer.RenderMessageDocument(header, raw)
	if err != nil {
		p.log.Warnf("pipeline", "failed to render message %s: %v", header.ID, err)
		job.Skipped++
		return false
	}

	if job.Flags.PDF {
		data, err := p.renderer.SerializeAsPDF(doc)
		if err != nil {
			p.log.Warnf("pipeline", "failed to serialize message %s as PDF: %v", header.ID, err)
			job.Skipped++
		} else if cancelled := p.save(job, data, name, ".pdf"); cancelled {
			return true
		}
	}

	if job.Flags.HTML {
		data, err := p.renderer.SerializeAsHTML(doc)
		if err != nil {
			p.log.Warnf("pipeline", "failed to serialize message %s as HTML: %v", header.ID, err)
			job.Skipped++
		} else if cancelled := p.save(job, data, name, ".html"); cancelled {
			return true
		}
	}

	return false
}

// saveAttachments writes each non-placeholder attachment under a name
// prefixed with the message filename, de-duplicated within this message's
// attachment set. Attachments are independent units of failure.
func (p *Pipeline) saveAttachments(ctx context.Context, job *Job, header models.MessageHeader, name string) bool {
	metas, err := p.store.ListAttachments(ctx, header.ID)
	if err != nil {
		p.log.Warnf("pipeline", "failed to list attachments of message %s: %v", header.ID, err)
		job.Skipped++
		return false
	}

	registry := names.NewRegistry()
	for _, meta := range metas {
		if meta.ContentType == deletedContentType {
			continue
		}

		content, err := p.store.GetAttachmentBytes(ctx, meta.MessageID, meta.PartID)
		if err != nil {
			p.log.Warnf("pipeline", "failed to fetch attachment %s of message %s: %v", meta.PartID, header.ID, err)
			job.Skipped++
			continue
		}

		candidate := name + "__" + filesink.SanitizeFilename(meta.Name)
		unique := names.MakeUnique(candidate, registry, names.DefaultOptions())
		if unique == "" {
			p.log.Warnf("pipeline", "name allocation exhausted for attachment %q, skipping", candidate)
			job.Skipped++
			continue
		}

		if cancelled := p.save(job, content, unique, ""); cancelled {
			return true
		}
	}

	return false
}

// save writes one file through the sink. The first save that had to prompt
// for a directory captures it on the job, so every later save of the batch
// goes there without prompting again.
func (p *Pipeline) save(job *Job, data []byte, name, ext string) bool {
	path, cancelled, err := p.sink.Save(data, name, job.TargetDirectory, ext)
	if err != nil {
		p.log.Warnf("pipeline", "failed to save %q: %v", name, err)
		job.Skipped++
		return false
	}
	if cancelled {
		return true
	}

	if job.TargetDirectory == "" {
		job.TargetDirectory = filepath.Dir(path)
	}
	job.Saved++
	return false
}
