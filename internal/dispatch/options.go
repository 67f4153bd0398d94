package dispatch

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mfekete/exfil/backend/internal/cleaner"
	"github.com/mfekete/exfil/backend/internal/kvstore"
	"github.com/mfekete/exfil/backend/internal/logger"
	"github.com/mfekete/exfil/backend/internal/models"
	"github.com/mfekete/exfil/backend/internal/template"
)

const optionsKey = "export_options"

// RulePattern is the storable form of one cleaning rule. Pattern takes
// precedence over Match when both are set.
type RulePattern struct {
	Pattern     string `json:"pattern,omitempty"`
	Match       string `json:"match,omitempty"`
	Replacement string `json:"replacement"`
}

// Options is the configuration surface persisted in the Key-Value Store:
// the filename template, the default format flags and the cleaning rules.
type Options struct {
	FilenameTemplate string           `json:"filename_template"`
	Flags            models.SaveFlags `json:"flags"`
	SubjectRules     []RulePattern    `json:"subject_rules,omitempty"`
	SenderRules      []RulePattern    `json:"sender_rules,omitempty"`
}

// DefaultOptions exports every document format but no attachments, using
// the built-in template and rulesets.
func DefaultOptions() Options {
	return Options{
		FilenameTemplate: template.DefaultFilenameTemplate,
		Flags:            models.SaveFlags{EML: true, PDF: true, HTML: true},
	}
}

// LoadOptions reads the persisted options from the synced scope, falling
// back to the defaults when nothing is stored or the stored value does not
// decode.
func LoadOptions(ctx context.Context, store kvstore.Store, log *logger.Logger) Options {
	var opts Options
	err := kvstore.GetJSON(ctx, store, kvstore.ScopeSynced, optionsKey, &opts)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Warnf("dispatch", "failed to load options, using defaults: %v", err)
		}
		return DefaultOptions()
	}

	if opts.FilenameTemplate == "" {
		opts.FilenameTemplate = template.DefaultFilenameTemplate
	}
	return opts
}

// SaveOptions persists the options in the synced scope.
func SaveOptions(ctx context.Context, store kvstore.Store, opts Options) error {
	return kvstore.SetJSON(ctx, store, kvstore.ScopeSynced, optionsKey, opts)
}

// SeedOptions persists the defaults with the configured filename template
// on first run. Options already stored, including a template the user has
// since changed, win over the configured one.
func SeedOptions(ctx context.Context, store kvstore.Store, filenameTemplate string) error {
	var existing Options
	err := kvstore.GetJSON(ctx, store, kvstore.ScopeSynced, optionsKey, &existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("failed to read stored options: %w", err)
	}

	opts := DefaultOptions()
	if filenameTemplate != "" {
		opts.FilenameTemplate = filenameTemplate
	}
	return SaveOptions(ctx, store, opts)
}

// SubjectRuleset compiles the configured subject rules, defaulting to the
// built-in ruleset when none are configured.
func (o Options) SubjectRuleset(log *logger.Logger) cleaner.Ruleset {
	if len(o.SubjectRules) == 0 {
		return cleaner.DefaultSubjectRules()
	}
	return compileRules(o.SubjectRules, log)
}

// SenderRuleset compiles the configured sender rules, defaulting to the
// built-in ruleset when none are configured.
func (o Options) SenderRuleset(log *logger.Logger) cleaner.Ruleset {
	if len(o.SenderRules) == 0 {
		return cleaner.DefaultSenderRules()
	}
	return compileRules(o.SenderRules, log)
}

// compileRules drops malformed patterns instead of failing: a bad rule
// degrades to "no change" for the texts it would have cleaned.
func compileRules(patterns []RulePattern, log *logger.Logger) cleaner.Ruleset {
	var rules cleaner.Ruleset
	for _, p := range patterns {
		if p.Pattern != "" {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				log.Warnf("dispatch", "ignoring malformed rule pattern %q: %v", p.Pattern, err)
				continue
			}
			rules = append(rules, cleaner.Rule{Pattern: re, Replacement: p.Replacement})
			continue
		}
		rules = append(rules, cleaner.Rule{Match: p.Match, Replacement: p.Replacement})
	}
	return rules
}
