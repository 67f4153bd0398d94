package template

import (
	"fmt"
	"strings"
	"time"
)

// Options configures the placeholder delimiters.
type Options struct {
	OpenTag  string
	CloseTag string
}

// DefaultOptions uses the ${key} placeholder syntax.
func DefaultOptions() Options {
	return Options{OpenTag: "${", CloseTag: "}"}
}

// DefaultFilenameTemplate names exported files by message date, sender and
// subject.
const DefaultFilenameTemplate = "${yyyy-mm-dd} ${HHMM}__${from}__${subject}"

// ExpandFields replaces every ${key} whose key is present in fields with its
// value. The scan is a single pass over the template: inserted values are
// never re-expanded, and unknown keys stay in the output as literal
// placeholders.
func ExpandFields(tmpl string, fields map[string]string, opts Options) string {
	if opts.OpenTag == "" {
		opts.OpenTag = "${"
	}
	if opts.CloseTag == "" {
		opts.CloseTag = "}"
	}

	var out strings.Builder
	rest := tmpl

	for {
		open := strings.Index(rest, opts.OpenTag)
		if open < 0 {
			out.WriteString(rest)
			return out.String()
		}

		out.WriteString(rest[:open])
		afterOpen := rest[open+len(opts.OpenTag):]

		closeIdx := strings.Index(afterOpen, opts.CloseTag)
		if closeIdx < 0 {
			// Unterminated placeholder: keep the tail verbatim.
			out.WriteString(rest[open:])
			return out.String()
		}

		key := afterOpen[:closeIdx]
		if value, ok := fields[key]; ok {
			out.WriteString(value)
		} else {
			out.WriteString(opts.OpenTag + key + opts.CloseTag)
		}

		rest = afterOpen[closeIdx+len(opts.CloseTag):]
	}
}

// DateFields derives the full documented field set from one instant. The
// composed aliases are assembled from the already-computed narrower fields so
// every field of the map agrees on the same moment.
func DateFields(t time.Time) map[string]string {
	fields := map[string]string{
		"d":    fmt.Sprintf("%d", t.Day()),
		"dd":   fmt.Sprintf("%02d", t.Day()),
		"m":    fmt.Sprintf("%d", int(t.Month())),
		"mm":   fmt.Sprintf("%02d", int(t.Month())),
		"yy":   fmt.Sprintf("%02d", t.Year()%100),
		"yyyy": fmt.Sprintf("%04d", t.Year()),
		"H":    fmt.Sprintf("%d", t.Hour()),
		"HH":   fmt.Sprintf("%02d", t.Hour()),
		"M":    fmt.Sprintf("%d", t.Minute()),
		"MM":   fmt.Sprintf("%02d", t.Minute()),
		"S":    fmt.Sprintf("%d", t.Second()),
		"SS":   fmt.Sprintf("%02d", t.Second()),
		"ms":   fmt.Sprintf("%03d", t.Nanosecond()/1e6),
	}

	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	fields["h"] = fmt.Sprintf("%d", hour12)
	fields["hh"] = fmt.Sprintf("%02d", hour12)
	if t.Hour() < 12 {
		fields["ampm"] = "am"
	} else {
		fields["ampm"] = "pm"
	}

	fields["yyyy-mm-dd"] = fields["yyyy"] + "-" + fields["mm"] + "-" + fields["dd"]
	fields["HHMM"] = fields["HH"] + fields["MM"]
	fields["HHMMSS"] = fields["HH"] + fields["MM"] + fields["SS"]
	fields["isodate"] = fields["yyyy-mm-dd"] + "T" + fields["HH"] + ":" + fields["MM"] + ":" + fields["SS"]

	return fields
}
