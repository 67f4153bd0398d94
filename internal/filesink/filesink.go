package filesink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mfekete/exfil/backend/internal/logger"
)

// DirectoryPrompter asks the user for a destination directory. Returning
// ok=false means the user dismissed the chooser, which is not an error.
type DirectoryPrompter interface {
	ChooseDirectory(suggestedName string) (dir string, ok bool, err error)
}

// FixedDirectoryPrompter always answers with one preconfigured directory,
// for non-interactive deployments.
type FixedDirectoryPrompter struct {
	Dir string
}

func (p FixedDirectoryPrompter) ChooseDirectory(string) (string, bool, error) {
	if p.Dir == "" {
		return "", false, nil
	}
	return p.Dir, true, nil
}

// Sink writes one file per call. When knownDirectory is empty it consults
// the prompter; when non-empty it saves there silently. The resolved path
// carries the directory the caller should reuse for the rest of its batch.
type Sink struct {
	prompter DirectoryPrompter
	log      *logger.Logger
}

func NewSink(prompter DirectoryPrompter, log *logger.Logger) *Sink {
	return &Sink{prompter: prompter, log: log}
}

// Save writes data under suggestedName. extensionOverride, when non-empty,
// is appended to the name; the name itself is never shortened, dots in a
// subject are content, not an extension. Returns the resolved path and
// whether the user cancelled the directory prompt.
func (s *Sink) Save(data []byte, suggestedName, knownDirectory, extensionOverride string) (string, bool, error) {
	name := SanitizeFilename(suggestedName)
	if name == "" {
		name = "untitled"
	}
	if extensionOverride != "" && !strings.HasSuffix(name, extensionOverride) {
		name += extensionOverride
	}

	dir := knownDirectory
	if dir == "" {
		if s.prompter == nil {
			return "", true, nil
		}
		chosen, ok, err := s.prompter.ChooseDirectory(name)
		if err != nil {
			return "", false, fmt.Errorf("failed to choose directory: %w", err)
		}
		if !ok {
			s.log.Debugf("filesink", "directory prompt cancelled for %q", name)
			return "", true, nil
		}
		dir = chosen
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write %q: %w", path, err)
	}

	s.log.Debugf("filesink", "wrote %d bytes to %s", len(data), path)
	return path, false, nil
}

// SanitizeFilename replaces path separators and characters that are illegal
// on common filesystems, so cleaned subjects and sender names are safe to
// use as file names.
func SanitizeFilename(name string) string {
	var out strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r < 0x20:
			out.WriteRune('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out.WriteRune('_')
		default:
			out.WriteRune(r)
		}
	}
	return strings.TrimSpace(out.String())
}
