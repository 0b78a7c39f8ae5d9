// Package export writes date ranges of the message log to spreadsheet and
// database files.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robalyx/wordwatch/internal/export/csv"
	"github.com/robalyx/wordwatch/internal/export/sqlite"
	"github.com/robalyx/wordwatch/internal/export/types"
	"github.com/robalyx/wordwatch/internal/export/xlsx"
	"github.com/robalyx/wordwatch/internal/watch"
)

var (
	// ErrUnknownFormat is returned for a format name with no exporter.
	ErrUnknownFormat = errors.New("unsupported export format")
	// ErrInvalidDate is returned when a date argument does not match ArgDateLayout.
	ErrInvalidDate = errors.New("dates must be in YYYYMMDD format")
)

// ArgDateLayout is the date layout accepted by export and history commands.
const ArgDateLayout = "20060102"

// FilePrefix starts the name of every exported file.
const FilePrefix = "message_logs_"

// Format represents a supported export format.
type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// Formats lists the supported formats, default first.
var Formats = []Format{FormatXLSX, FormatCSV, FormatSQLite}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Extension returns the file extension written for the format.
func (f Format) Extension() string {
	if f == FormatSQLite {
		return "db"
	}
	return string(f)
}

// ParseDate parses a YYYYMMDD argument as a UTC day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(ArgDateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FileName returns the export file name for a day range.
func FileName(from, to time.Time, format Format) string {
	return fmt.Sprintf("%s%s_%s.%s", FilePrefix, from.Format(ArgDateLayout), to.Format(ArgDateLayout), format.Extension())
}

type writer interface {
	Export(filename string, records []*types.Record) error
}

// Exporter writes exports into a directory.
type Exporter struct {
	outDir  string
	writers map[Format]writer
}

// New creates a new exporter instance writing into outDir.
func New(outDir string) *Exporter {
	return &Exporter{
		outDir: outDir,
		writers: map[Format]writer{
			FormatXLSX:   xlsx.New(outDir),
			FormatCSV:    csv.New(outDir),
			FormatSQLite: sqlite.New(outDir),
		},
	}
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.outDir
}

// Export writes rows already filtered to [from, to] and returns the file path.
func (e *Exporter) Export(rows []watch.LogRow, from, to time.Time, format Format) (string, error) {
	w, ok := e.writers[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	records := make([]*types.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, &types.Record{
			Date:      r.Date,
			Channel:   r.ChannelID.String(),
			Author:    r.Author,
			Content:   r.Content,
			Timestamp: r.Timestamp,
		})
	}

	name := FileName(from, to, format)
	if err := w.Export(name, records); err != nil {
		return "", fmt.Errorf("failed to export %s: %w", format, err)
	}
	return filepath.Join(e.outDir, name), nil
}

// Clear deletes every exported file and returns how many were removed.
func (e *Exporter) Clear() (int, error) {
	entries, err := os.ReadDir(e.outDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list export directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isExport(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(e.outDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func isExport(name string) bool {
	if !strings.HasPrefix(name, FilePrefix) {
		return false
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	for _, f := range Formats {
		if ext == f.Extension() {
			return true
		}
	}
	return false
}
