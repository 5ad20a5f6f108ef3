// package formatter renders identifier mappings and sync failures for export (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/shared"
)

const timeLayout = time.RFC3339

// Format is an export file format.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or its usual file extension.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q (expected text, csv, markdown or json)", shared.ErrInvalidInput, s)
	}
}

// Extension returns the file extension used for f.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

// MappingExport is the mapping store content of one integration.
type MappingExport struct {
	Integration string                 `json:"integration"`
	GeneratedAt time.Time              `json:"generated_at"`
	Entries     []*models.MappingEntry `json:"entries"`
	Failures    []*models.Failure      `json:"failures,omitempty"`
}

func (e *MappingExport) count(t models.ItemType) int {
	n := 0
	for _, entry := range e.Entries {
		if entry.ItemType == t {
			n++
		}
	}
	return n
}

// ExportToCSV renders the mapping entries with columns: Integration, Local ID, Type, Remote ID, Created.
// Failures are not part of the CSV output.
func ExportToCSV(export *MappingExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Integration", "Local ID", "Type", "Remote ID", "Created"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range export.Entries {
		record := []string{
			entry.Player,
			entry.LocalID,
			string(entry.ItemType),
			entry.RemoteID,
			entry.CreatedAt.UTC().Format(timeLayout),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the export as a Markdown document with a mapping table and a failure list.
func ExportToMarkdown(export *MappingExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Integration)
	if !export.GeneratedAt.IsZero() {
		fmt.Fprintf(&buf, "**Generated**: %s\n", export.GeneratedAt.UTC().Format(timeLayout))
	}
	fmt.Fprintf(&buf, "**Songs**: %d\n", export.count(models.ItemSong))
	fmt.Fprintf(&buf, "**Playlists**: %d\n", export.count(models.ItemPlaylist))
	fmt.Fprintf(&buf, "**Failures**: %d\n\n", len(export.Failures))

	buf.WriteString("## Mappings\n\n")
	if len(export.Entries) == 0 {
		buf.WriteString("_No mappings._\n")
	} else {
		buf.WriteString("| Local ID | Type | Remote ID | Created |\n")
		buf.WriteString("| --- | --- | --- | --- |\n")
		for _, entry := range export.Entries {
			fmt.Fprintf(&buf, "| %s | %s | %s | %s |\n",
				entry.LocalID, entry.ItemType, entry.RemoteID, entry.CreatedAt.UTC().Format(timeLayout))
		}
	}

	if len(export.Failures) > 0 {
		buf.WriteString("\n## Failures\n\n")
		for i, f := range export.Failures {
			fmt.Fprintf(&buf, "%d. `#%d %s(%s)` after %d attempt(s): %s\n", i+1, f.Seq, f.Trigger, f.LocalID, f.Attempts, f.Error)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText renders the export as plain text, one mapping per line.
func ExportToText(export *MappingExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Integration: %s\n", export.Integration)
	fmt.Fprintf(&buf, "Mappings: %d\n\n", len(export.Entries))

	for _, entry := range export.Entries {
		fmt.Fprintf(&buf, "%s %s -> %s\n", entry.ItemType, entry.LocalID, entry.RemoteID)
	}

	if len(export.Failures) > 0 {
		fmt.Fprintf(&buf, "\nFailures: %d\n", len(export.Failures))
		for _, f := range export.Failures {
			fmt.Fprintf(&buf, "#%d %s(%s): %s\n", f.Seq, f.Trigger, f.LocalID, f.Error)
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the full export as indented JSON.
func ExportToJSON(export *MappingExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders export in format.
func Export(export *MappingExport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatJSON:
		return ExportToJSON(export)
	case FormatText:
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidInput, format)
	}
}

// Write renders export in format to w.
func Write(w io.Writer, export *MappingExport, format Format) error {
	data, err := Export(export, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// WriteExport writes export to a file and returns its path.
//
// Defaults to {integration}_mappings.{ext} as the filename.
func WriteExport(export *MappingExport, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_mappings.%s", export.Integration, format.Extension())
	}

	data, err := Export(export, format)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

// Count renders n followed by a singular or plural noun.
func Count(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
