package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/shared"
	th "github.com/desertthunder/gmsync/internal/testing"
)

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newExport() *MappingExport {
	return &MappingExport{
		Integration: "library",
		GeneratedAt: created,
		Entries: []*models.MappingEntry{
			{Player: "library", LocalID: "1", ItemType: models.ItemSong, RemoteID: "gm-1", CreatedAt: created},
			{Player: "library", LocalID: "2", ItemType: models.ItemSong, RemoteID: "gm-2", CreatedAt: created},
			{Player: "library", LocalID: "10", ItemType: models.ItemPlaylist, RemoteID: "gm-3", CreatedAt: created},
		},
		Failures: []*models.Failure{
			{ID: "f1", Player: "library", Seq: 7, Trigger: "song_changed", LocalID: "4", Attempts: 3, Error: "unmapped id", CreatedAt: created},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tc := []struct {
		in   string
		want Format
		err  bool
	}{
		{in: "", want: FormatText},
		{in: "txt", want: FormatText},
		{in: "csv", want: FormatCSV},
		{in: "md", want: FormatMarkdown},
		{in: "markdown", want: FormatMarkdown},
		{in: "json", want: FormatJSON},
		{in: "yaml", err: true},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(newExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
		}
		if lines[0] != "Integration,Local ID,Type,Remote ID,Created" {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if lines[3] != "library,10,playlist,gm-3,2026-03-01T12:00:00Z" {
			t.Errorf("unexpected playlist row: %s", lines[3])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(newExport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# library",
			"**Songs**: 2",
			"**Playlists**: 1",
			"**Failures**: 1",
			"| 10 | playlist | gm-3 | 2026-03-01T12:00:00Z |",
			"## Failures",
			"1. `#7 song_changed(4)` after 3 attempt(s): unmapped id",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}

		t.Run("without entries", func(t *testing.T) {
			data, _ := ExportToMarkdown(&MappingExport{Integration: "empty"})
			output := string(data)
			if !strings.Contains(output, "_No mappings._") {
				t.Errorf("expected empty marker, got: %s", output)
			}
			if strings.Contains(output, "## Failures") || strings.Contains(output, "**Generated**") {
				t.Errorf("unexpected sections, got: %s", output)
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(newExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Integration: library", "Mappings: 3", "song 1 -> gm-1", "Failures: 1", "#7 song_changed(4): unmapped id"} {
			if !strings.Contains(output, want) {
				t.Errorf("Text missing %q", want)
			}
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(newExport())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded struct {
			Integration string            `json:"integration"`
			Entries     []json.RawMessage `json:"entries"`
			Failures    []json.RawMessage `json:"failures"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Integration != "library" || len(decoded.Entries) != 3 || len(decoded.Failures) != 1 {
			t.Errorf("unexpected JSON: %s", data)
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("Write", func(t *testing.T) {
		var buf strings.Builder
		if err := Write(&buf, newExport(), FormatCSV); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if !strings.HasPrefix(buf.String(), "Integration,") {
			t.Errorf("unexpected output: %s", buf.String())
		}

		if err := Write(&th.FWriter{}, newExport(), FormatText); err == nil {
			t.Error("expected write error")
		}
		if err := Write(&buf, newExport(), Format("yaml")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("WriteExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			wd, _ := os.Getwd()
			t.Cleanup(func() { os.Chdir(wd) })
			if err := os.Chdir(t.TempDir()); err != nil {
				t.Fatalf("chdir: %v", err)
			}

			path, err := WriteExport(newExport(), FormatMarkdown, "")
			if err != nil {
				t.Fatalf("WriteExport failed: %v", err)
			}
			if path != "library_mappings.md" {
				t.Errorf("unexpected default path %q", path)
			}
			th.AssertFileExists(t, path)
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.txt")
			got, err := WriteExport(newExport(), FormatText, path)
			if err != nil {
				t.Fatalf("WriteExport failed: %v", err)
			}
			if got != path {
				t.Errorf("expected %q, got %q", path, got)
			}
			if content := th.MustReadFile(t, path); !strings.Contains(content, "playlist 10 -> gm-3") {
				t.Errorf("unexpected file content: %s", content)
			}
		})
	})
}

func TestCount(t *testing.T) {
	if got := Count(1, "mapping"); got != "1 mapping" {
		t.Errorf("got %q", got)
	}
	if got := Count(0, "failure"); got != "0 failures" {
		t.Errorf("got %q", got)
	}
}
