package tickets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
)

var testDate = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func TestSlugWordCount(t *testing.T) {
	tests := []struct {
		slug  string
		words int
		valid bool
	}{
		{"add cache", 2, false},
		{"add response caching layer", 4, true},
		{"Add  API-level caching", 4, true},
		{"café menü über alles", 4, true},
		{"one two three four five six", 6, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			if got := CountSlugWords(tt.slug); got != tt.words {
				t.Errorf("CountSlugWords(%q) = %d, want %d", tt.slug, got, tt.words)
			}
			if got := ValidSlugWordCount(tt.slug); got != tt.valid {
				t.Errorf("ValidSlugWordCount(%q) = %v, want %v", tt.slug, got, tt.valid)
			}
		})
	}
}

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Add Response Caching", "add-response-caching"},
		{"  fix: the--login bug!  ", "fix-the-login-bug"},
		{"café menü über", "caf-men-ber"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeSlug(tt.in); got != tt.want {
				t.Errorf("NormalizeSlug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsIDSafe(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"2026-02-01-add-caching", true},
		{"", false},
		{"a/b", false},
		{`a\b`, false},
		{"..", false},
		{"2026-02-01-x.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := IsIDSafe(tt.id); got != tt.want {
				t.Errorf("IsIDSafe(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}

	if _, err := FilePath(t.TempDir(), "../x"); !errors.Is(err, errors.ErrInvalidTicketID) {
		t.Errorf("FilePath() error = %v, want ErrInvalidTicketID", err)
	}
}

func TestExtractTags(t *testing.T) {
	out := "noise\n<SLUG>\n  add response caching \n</SLUG>\n<CONTENT>\n# Title\n\nBody\n</CONTENT>"
	if got := ExtractSlug(out); got != "add response caching" {
		t.Errorf("ExtractSlug() = %q", got)
	}
	if got := ExtractContent(out); got != "# Title\n\nBody" {
		t.Errorf("ExtractContent() = %q", got)
	}
	if got := ExtractSlug("<SLUG>unterminated"); got != "" {
		t.Errorf("ExtractSlug(unterminated) = %q, want empty", got)
	}
}

func TestCreateFromOutput(t *testing.T) {
	t.Run("writes ticket", func(t *testing.T) {
		root := t.TempDir()
		res, err := CreateFromOutput(root, "<SLUG>Add Response Caching</SLUG><CONTENT>\n# Caching\n</CONTENT>", testDate)
		if err != nil {
			t.Fatalf("CreateFromOutput() error = %v", err)
		}
		if res.TicketID != "2026-02-01-add-response-caching" {
			t.Errorf("TicketID = %q", res.TicketID)
		}
		data, err := os.ReadFile(res.FilePath)
		if err != nil {
			t.Fatalf("read ticket: %v", err)
		}
		if string(data) != "# Caching\n" {
			t.Errorf("ticket content = %q", data)
		}
		if res.FilePath != filepath.Join(root, "tickets", res.TicketID+".md") {
			t.Errorf("FilePath = %q", res.FilePath)
		}
	})

	t.Run("rejects existing ticket", func(t *testing.T) {
		root := t.TempDir()
		out := "<SLUG>add response caching</SLUG><CONTENT>x</CONTENT>"
		if _, err := CreateFromOutput(root, out, testDate); err != nil {
			t.Fatalf("first create: %v", err)
		}
		_, err := CreateFromOutput(root, out, testDate)
		if err == nil || !strings.HasPrefix(err.Error(), "Ticket already exists at ") {
			t.Fatalf("second create error = %v", err)
		}
		var outErr *OutputError
		if errors.As(err, &outErr) {
			t.Error("existing ticket must not be reported as an output error")
		}
	})

	errorCases := []struct {
		name   string
		output string
		want   string
	}{
		{"missing slug", "<CONTENT>x</CONTENT>", "Ticket creation missing <SLUG> tag."},
		{"missing content", "<SLUG>add response caching</SLUG>", "Ticket creation missing <CONTENT> tag."},
		{"short slug", "<SLUG>caching</SLUG><CONTENT>x</CONTENT>", "Ticket slug must be 3-5 words."},
		{"unnormalizable slug", "<SLUG>日本 語 版</SLUG><CONTENT>x</CONTENT>", "Ticket slug could not be normalized."},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateFromOutput(t.TempDir(), tc.output, testDate)
			if err == nil || err.Error() != tc.want {
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
			var outErr *OutputError
			if !errors.As(err, &outErr) {
				t.Errorf("expected OutputError, got %T", err)
			}
		})
	}
}

func TestIngestFromOutput(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(src, []byte("# Notes\n\n  raw content  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := IngestFromOutput(root, src, "<SLUG>import legacy notes</SLUG>", testDate)
	if err != nil {
		t.Fatalf("IngestFromOutput() error = %v", err)
	}
	data, _ := os.ReadFile(res.FilePath)
	if string(data) != "# Notes\n\n  raw content  \n" {
		t.Errorf("ingested content changed: %q", data)
	}

	if _, err := IngestFromOutput(root, src, "no tags", testDate); err == nil || err.Error() != "Ticket ingest missing <SLUG> tag." {
		t.Errorf("missing slug error = %v", err)
	}
}

func TestAmendFromOutput(t *testing.T) {
	root := t.TempDir()
	created, err := CreateFromOutput(root, "<SLUG>add response caching</SLUG><CONTENT>v1</CONTENT>", testDate)
	if err != nil {
		t.Fatal(err)
	}

	res, err := AmendFromOutput(root, created.TicketID, "<CONTENT>\nv2\n</CONTENT>")
	if err != nil {
		t.Fatalf("AmendFromOutput() error = %v", err)
	}
	if res.Slug != "add-response-caching" {
		t.Errorf("Slug = %q", res.Slug)
	}
	if got, _ := Read(root, created.TicketID); got != "v2\n" {
		t.Errorf("amended content = %q", got)
	}

	if _, err := AmendFromOutput(root, "2026-02-01-missing-ticket-id", "<CONTENT>x</CONTENT>"); !errors.Is(err, errors.ErrTicketNotFound) {
		t.Errorf("missing ticket error = %v", err)
	}
	if _, err := AmendFromOutput(root, created.TicketID, "nothing"); err == nil || err.Error() != "Ticket amend missing <CONTENT> tag." {
		t.Errorf("missing content error = %v", err)
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	ids, err := List(root)
	if err != nil || len(ids) != 0 {
		t.Fatalf("List(empty) = %v, %v", ids, err)
	}

	dir := Dir(root)
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"2026-02-02-b.md", "2026-02-01-a.md", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ids, err = List(root)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if strings.Join(ids, ",") != "2026-02-01-a,2026-02-02-b" {
		t.Errorf("List() = %v", ids)
	}
}
