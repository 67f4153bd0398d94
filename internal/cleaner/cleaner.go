package cleaner

import (
	"regexp"
	"strings"

	"github.com/mfekete/exfil/backend/internal/models"
)

// Rule is one substitution step. When Pattern is set it matches as a regular
// expression and Replacement may use positional backreferences ($1, $2, ...);
// otherwise Match is replaced as a literal substring.
type Rule struct {
	Pattern     *regexp.Regexp
	Match       string
	Replacement string
}

func (r Rule) apply(text string) string {
	if r.Pattern != nil {
		return r.Pattern.ReplaceAllString(text, r.Replacement)
	}
	if r.Match == "" {
		return text
	}
	return strings.ReplaceAll(text, r.Match, r.Replacement)
}

// Ruleset is an ordered cascade: each rule runs on the output of the
// previous one, not on the original input.
type Ruleset []Rule

// DefaultSubjectRules strips a leading run of reply/forward/external/urgency/
// spam markers, case-insensitively, however often they repeat.
func DefaultSubjectRules() Ruleset {
	return Ruleset{
		{Pattern: regexp.MustCompile(`(?i)^(\s*((re|fwd?|aw|wg)\s*:|\[(ext|external)\]|(urgent|spam)\s*:|\*+\s*spam\s*\*+))+\s*`), Replacement: ""},
	}
}

// DefaultSenderRules strips a trailing <email@...> and one layer of
// surrounding double quotes, leaving the display name.
func DefaultSenderRules() Ruleset {
	return Ruleset{
		{Pattern: regexp.MustCompile(`\s*<[^<>]*@[^<>]*>\s*$`), Replacement: ""},
		{Pattern: regexp.MustCompile(`^"(.*)"$`), Replacement: "$1"},
	}
}

// CleanWithRules applies every rule of the cascade in order, trimming
// surrounding whitespace after each substitution. An empty ruleset returns
// the trimmed input unchanged.
func CleanWithRules(text string, rules Ruleset) string {
	cleaned := strings.TrimSpace(text)
	for _, rule := range rules {
		cleaned = strings.TrimSpace(rule.apply(cleaned))
	}
	return cleaned
}

// FieldSelector extracts the cleanable values of one header: a single-element
// slice for subjects, one element per person for sender-like fields.
type FieldSelector func(header models.MessageHeader) []string

// SubjectField selects the subject.
func SubjectField(header models.MessageHeader) []string {
	return []string{header.Subject}
}

// SenderField selects each person of the author list separately.
func SenderField(header models.MessageHeader) []string {
	return SplitPersonList(header.Author)
}

// SplitPersonList splits a comma-separated person list, keeping commas inside
// double quotes (as in `"Doe, John" <jd@example.com>`) attached to their person.
func SplitPersonList(list string) []string {
	var persons []string
	var current strings.Builder
	inQuotes := false

	for _, r := range list {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ',' && !inQuotes:
			if person := strings.TrimSpace(current.String()); person != "" {
				persons = append(persons, person)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}

	if person := strings.TrimSpace(current.String()); person != "" {
		persons = append(persons, person)
	}

	return persons
}

// BuildReplacementMap cleans the selected field of every header and returns
// original -> cleaned for the values the cascade actually changed. The first
// occurrence of an original value wins; later duplicates are not reprocessed.
func BuildReplacementMap(headers []models.MessageHeader, field FieldSelector, rules Ruleset) map[string]string {
	replacements := make(map[string]string)
	seen := make(map[string]bool)

	for _, header := range headers {
		for _, original := range field(header) {
			if seen[original] {
				continue
			}
			seen[original] = true
			cleaned := CleanWithRules(original, rules)
			if cleaned != original {
				replacements[original] = cleaned
			}
		}
	}

	return replacements
}
