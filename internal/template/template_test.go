package template

import (
	"testing"
	"time"
)

func TestExpandFields(t *testing.T) {
	t.Run("expands the default filename template", func(t *testing.T) {
		date := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
		fields := DateFields(date)
		fields["subject"] = "Budget"

		got := ExpandFields("${yyyy-mm-dd} ${HHMM}__${subject}", fields, DefaultOptions())
		if got != "2024-03-05 1407__Budget" {
			t.Errorf("expected '2024-03-05 1407__Budget', got %q", got)
		}
	})

	t.Run("leaves unknown keys as literal placeholders", func(t *testing.T) {
		got := ExpandFields("${known} and ${unknown}", map[string]string{"known": "x"}, DefaultOptions())
		if got != "x and ${unknown}" {
			t.Errorf("expected 'x and ${unknown}', got %q", got)
		}
	})

	t.Run("does not re-expand inserted values", func(t *testing.T) {
		fields := map[string]string{
			"a": "${b}",
			"b": "boom",
		}
		got := ExpandFields("${a}", fields, DefaultOptions())
		if got != "${b}" {
			t.Errorf("expected literal '${b}', got %q", got)
		}
	})

	t.Run("is idempotent when values contain no placeholder syntax", func(t *testing.T) {
		fields := map[string]string{"subject": "Budget", "from": "Jane"}
		tmpl := "${from}__${subject}__${missing}"

		once := ExpandFields(tmpl, fields, DefaultOptions())
		twice := ExpandFields(once, fields, DefaultOptions())
		if once != twice {
			t.Errorf("expected idempotence, got %q then %q", once, twice)
		}
	})

	t.Run("keeps an unterminated placeholder verbatim", func(t *testing.T) {
		got := ExpandFields("prefix ${open", map[string]string{"open": "x"}, DefaultOptions())
		if got != "prefix ${open" {
			t.Errorf("expected verbatim tail, got %q", got)
		}
	})

	t.Run("supports custom delimiters", func(t *testing.T) {
		got := ExpandFields("a %key% b", map[string]string{"key": "X"}, Options{OpenTag: "%", CloseTag: "%"})
		if got != "a X b" {
			t.Errorf("expected 'a X b', got %q", got)
		}
	})

	t.Run("defaults empty delimiters", func(t *testing.T) {
		got := ExpandFields("${key}", map[string]string{"key": "X"}, Options{})
		if got != "X" {
			t.Errorf("expected 'X', got %q", got)
		}
	})
}

func TestDateFields(t *testing.T) {
	date := time.Date(2024, 3, 5, 14, 7, 9, 42e6, time.UTC)
	fields := DateFields(date)

	tests := []struct {
		key  string
		want string
	}{
		{"d", "5"},
		{"dd", "05"},
		{"m", "3"},
		{"mm", "03"},
		{"yy", "24"},
		{"yyyy", "2024"},
		{"H", "14"},
		{"HH", "14"},
		{"h", "2"},
		{"hh", "02"},
		{"ampm", "pm"},
		{"M", "7"},
		{"MM", "07"},
		{"S", "9"},
		{"SS", "09"},
		{"ms", "042"},
		{"yyyy-mm-dd", "2024-03-05"},
		{"HHMM", "1407"},
		{"HHMMSS", "140709"},
		{"isodate", "2024-03-05T14:07:09"},
	}

	for _, tc := range tests {
		if got := fields[tc.key]; got != tc.want {
			t.Errorf("field %q = %q; want %q", tc.key, got, tc.want)
		}
	}

	t.Run("midnight maps to 12am", func(t *testing.T) {
		midnight := DateFields(time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC))
		if midnight["h"] != "12" || midnight["ampm"] != "am" {
			t.Errorf("expected 12am, got %s%s", midnight["h"], midnight["ampm"])
		}
	})
}
