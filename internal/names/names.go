package names

import (
	"fmt"
	"strings"
)

// Registry holds the names already issued within one batch or list build,
// keyed by their normalized form. Values are the names as actually assigned.
// Once issued, a name stays reserved for the registry's lifetime.
type Registry map[string]string

// NewRegistry returns an empty registry.
func NewRegistry() Registry {
	return make(Registry)
}

// Options tunes the collision suffix. CounterLen is the zero-padding width;
// MaxCount caps the suffix search independently of the padding.
type Options struct {
	Separator  string
	CounterLen int
	UpCased    bool
	MaxCount   int
}

// DefaultOptions matches the export pipeline's filename behavior:
// "Report", "Report-001", "Report-002", ... with a case-insensitive registry.
func DefaultOptions() Options {
	return Options{
		Separator:  "-",
		CounterLen: 3,
		UpCased:    true,
		MaxCount:   999,
	}
}

func (o Options) normalize(name string) string {
	if o.UpCased {
		return strings.ToUpper(name)
	}
	return name
}

// MakeUnique reserves candidate in the registry, appending a padded numeric
// suffix when the candidate is already taken. The search starts at 1 and
// stops at the first free slot. It returns the empty string only when
// MaxCount attempts are exhausted, which is a defensive cap rather than an
// expected outcome.
func MakeUnique(candidate string, registry Registry, opts Options) string {
	if registry == nil {
		return ""
	}

	if opts.Separator == "" {
		opts.Separator = "-"
	}
	if opts.CounterLen <= 0 {
		opts.CounterLen = 3
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = 999
	}

	key := opts.normalize(candidate)
	if _, taken := registry[key]; !taken {
		registry[key] = candidate
		return candidate
	}

	for counter := 1; counter <= opts.MaxCount; counter++ {
		suffixed := fmt.Sprintf("%s%s%0*d", candidate, opts.Separator, opts.CounterLen, counter)
		key = opts.normalize(suffixed)
		if _, taken := registry[key]; !taken {
			registry[key] = suffixed
			return suffixed
		}
	}

	return ""
}
