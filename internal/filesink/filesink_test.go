package filesink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mfekete/exfil/backend/internal/logger"
)

type promptRecorder struct {
	dir    string
	ok     bool
	called int
}

func (p *promptRecorder) ChooseDirectory(string) (string, bool, error) {
	p.called++
	return p.dir, p.ok, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.LevelError, 0)
}

func TestSave(t *testing.T) {
	t.Run("saves silently into a known directory", func(t *testing.T) {
		dir := t.TempDir()
		prompter := &promptRecorder{dir: "unused", ok: true}
		sink := NewSink(prompter, testLogger())

		path, cancelled, err := sink.Save([]byte("raw"), "mail", dir, ".eml")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if cancelled {
			t.Fatal("unexpected cancellation")
		}
		if prompter.called != 0 {
			t.Error("prompter must not be consulted when the directory is known")
		}
		if path != filepath.Join(dir, "mail.eml") {
			t.Errorf("unexpected path %q", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading saved file failed: %v", err)
		}
		if string(data) != "raw" {
			t.Errorf("unexpected file content %q", data)
		}
	})

	t.Run("prompts when no directory is known", func(t *testing.T) {
		dir := t.TempDir()
		prompter := &promptRecorder{dir: dir, ok: true}
		sink := NewSink(prompter, testLogger())

		path, cancelled, err := sink.Save([]byte("x"), "mail.eml", "", "")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if cancelled {
			t.Fatal("unexpected cancellation")
		}
		if prompter.called != 1 {
			t.Errorf("expected 1 prompt, got %d", prompter.called)
		}
		if filepath.Dir(path) != dir {
			t.Errorf("expected file under %q, got %q", dir, path)
		}
	})

	t.Run("reports cancellation without writing", func(t *testing.T) {
		prompter := &promptRecorder{ok: false}
		sink := NewSink(prompter, testLogger())

		path, cancelled, err := sink.Save([]byte("x"), "mail", "", ".eml")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if !cancelled {
			t.Error("expected cancellation")
		}
		if path != "" {
			t.Errorf("expected empty path on cancellation, got %q", path)
		}
	})

	t.Run("appends the extension without eating dots in the name", func(t *testing.T) {
		dir := t.TempDir()
		sink := NewSink(nil, testLogger())

		path, _, err := sink.Save([]byte("x"), "Budget 2.0", dir, ".eml")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if filepath.Base(path) != "Budget 2.0.eml" {
			t.Errorf("expected 'Budget 2.0.eml', got %q", filepath.Base(path))
		}
	})

	t.Run("does not double an already-present extension", func(t *testing.T) {
		dir := t.TempDir()
		sink := NewSink(nil, testLogger())

		path, _, err := sink.Save([]byte("x"), "mail.eml", dir, ".eml")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if filepath.Base(path) != "mail.eml" {
			t.Errorf("expected 'mail.eml', got %q", filepath.Base(path))
		}
	})

	t.Run("dotted names stay distinct on disk", func(t *testing.T) {
		dir := t.TempDir()
		sink := NewSink(nil, testLogger())

		first, _, err := sink.Save([]byte("one"), "Budget 2.0", dir, ".eml")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		second, _, err := sink.Save([]byte("two"), "Budget 2.1", dir, ".eml")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if first == second {
			t.Fatalf("two distinct names resolved to the same path %q", first)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("reading directory failed: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected 2 files on disk, got %d", len(entries))
		}
		data, err := os.ReadFile(first)
		if err != nil {
			t.Fatalf("reading first file failed: %v", err)
		}
		if string(data) != "one" {
			t.Errorf("first file was overwritten, content %q", data)
		}
	})
}

func TestFixedDirectoryPrompter(t *testing.T) {
	t.Run("answers with the configured directory", func(t *testing.T) {
		dir, ok, err := FixedDirectoryPrompter{Dir: "/exports"}.ChooseDirectory("x")
		if err != nil || !ok || dir != "/exports" {
			t.Errorf("unexpected answer (%q, %v, %v)", dir, ok, err)
		}
	})

	t.Run("cancels when unconfigured", func(t *testing.T) {
		_, ok, err := FixedDirectoryPrompter{}.ChooseDirectory("x")
		if err != nil || ok {
			t.Errorf("expected cancellation, got (%v, %v)", ok, err)
		}
	})
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Budget 2024", "Budget 2024"},
		{"a/b\\c", "a_b_c"},
		{`re: "quoted"?`, "re_ _quoted__"},
		{"trailing space ", "trailing space"},
		{"tab\tname", "tab_name"},
	}

	for _, tc := range tests {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
