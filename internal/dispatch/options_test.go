package dispatch

import (
	"context"
	"testing"

	"github.com/mfekete/exfil/backend/internal/cleaner"
	"github.com/mfekete/exfil/backend/internal/kvstore"
	"github.com/mfekete/exfil/backend/internal/models"
	"github.com/mfekete/exfil/backend/internal/template"
	"github.com/stretchr/testify/assert"
)

func TestLoadOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to defaults when nothing is stored", func(t *testing.T) {
		opts := LoadOptions(ctx, kvstore.NewMemoryStore(), testLogger())
		assert.Equal(t, template.DefaultFilenameTemplate, opts.FilenameTemplate)
		assert.True(t, opts.Flags.EML)
		assert.False(t, opts.Flags.Attachments)
	})

	t.Run("round-trips persisted options", func(t *testing.T) {
		store := kvstore.NewMemoryStore()
		saved := Options{
			FilenameTemplate: "${yyyy}__${subject}",
			Flags:            models.SaveFlags{PDF: true},
			SubjectRules:     []RulePattern{{Pattern: `^internal:\s*`, Replacement: ""}},
		}
		if err := SaveOptions(ctx, store, saved); err != nil {
			t.Fatalf("SaveOptions failed: %v", err)
		}

		loaded := LoadOptions(ctx, store, testLogger())
		assert.Equal(t, saved, loaded)
	})

	t.Run("restores the default template when the stored one is empty", func(t *testing.T) {
		store := kvstore.NewMemoryStore()
		if err := SaveOptions(ctx, store, Options{Flags: models.SaveFlags{EML: true}}); err != nil {
			t.Fatalf("SaveOptions failed: %v", err)
		}

		loaded := LoadOptions(ctx, store, testLogger())
		assert.Equal(t, template.DefaultFilenameTemplate, loaded.FilenameTemplate)
	})
}

func TestSeedOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("first run persists defaults with the configured template", func(t *testing.T) {
		store := kvstore.NewMemoryStore()
		if err := SeedOptions(ctx, store, "${yyyy}__${subject}"); err != nil {
			t.Fatalf("SeedOptions failed: %v", err)
		}

		loaded := LoadOptions(ctx, store, testLogger())
		assert.Equal(t, "${yyyy}__${subject}", loaded.FilenameTemplate)
		assert.True(t, loaded.Flags.EML)
	})

	t.Run("stored options win over the configured template", func(t *testing.T) {
		store := kvstore.NewMemoryStore()
		stored := Options{FilenameTemplate: "${subject}", Flags: models.SaveFlags{PDF: true}}
		if err := SaveOptions(ctx, store, stored); err != nil {
			t.Fatalf("SaveOptions failed: %v", err)
		}

		if err := SeedOptions(ctx, store, "${yyyy}__${subject}"); err != nil {
			t.Fatalf("SeedOptions failed: %v", err)
		}

		loaded := LoadOptions(ctx, store, testLogger())
		assert.Equal(t, stored, loaded)
	})

	t.Run("an empty configured template seeds the built-in one", func(t *testing.T) {
		store := kvstore.NewMemoryStore()
		if err := SeedOptions(ctx, store, ""); err != nil {
			t.Fatalf("SeedOptions failed: %v", err)
		}

		loaded := LoadOptions(ctx, store, testLogger())
		assert.Equal(t, template.DefaultFilenameTemplate, loaded.FilenameTemplate)
	})
}

func TestOptionsRulesets(t *testing.T) {
	t.Run("empty configuration yields the built-in rules", func(t *testing.T) {
		opts := Options{}
		subject := cleaner.CleanWithRules("Re: Fwd: Budget", opts.SubjectRuleset(testLogger()))
		assert.Equal(t, "Budget", subject)

		sender := cleaner.CleanWithRules("John Doe <john@example.com>", opts.SenderRuleset(testLogger()))
		assert.Equal(t, "John Doe", sender)
	})

	t.Run("configured rules replace the built-ins", func(t *testing.T) {
		opts := Options{
			SubjectRules: []RulePattern{{Pattern: `^ticket-\d+:\s*`, Replacement: ""}},
		}
		rules := opts.SubjectRuleset(testLogger())
		assert.Equal(t, "Printer broken", cleaner.CleanWithRules("ticket-42: Printer broken", rules))
		// The built-in Re: stripping no longer applies.
		assert.Equal(t, "Re: Budget", cleaner.CleanWithRules("Re: Budget", rules))
	})

	t.Run("malformed patterns are dropped, not fatal", func(t *testing.T) {
		opts := Options{
			SubjectRules: []RulePattern{
				{Pattern: `[unclosed`, Replacement: ""},
				{Match: "SPAM: ", Replacement: ""},
			},
		}
		rules := opts.SubjectRuleset(testLogger())
		assert.Len(t, rules, 1)
		assert.Equal(t, "Budget", cleaner.CleanWithRules("SPAM: Budget", rules))
	})
}
