package export_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalyx/wordwatch/internal/export"
	"github.com/robalyx/wordwatch/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "20240701", want: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{input: "2024-07-01", wantErr: true},
		{input: "20241301", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := export.ParseDate(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, export.ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := export.ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, export.FormatCSV, f)

	_, err = export.ParseFormat("pdf")
	require.ErrorIs(t, err, export.ErrUnknownFormat)
}

func TestFileName(t *testing.T) {
	t.Parallel()

	from, _ := export.ParseDate("20240701")
	to, _ := export.ParseDate("20240731")
	assert.Equal(t, "message_logs_20240701_20240731.xlsx", export.FileName(from, to, export.FormatXLSX))
	assert.Equal(t, "message_logs_20240701_20240731.db", export.FileName(from, to, export.FormatSQLite))
}

func TestExportAndClear(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "exports")
	e := export.New(dir)

	at := time.Date(2024, time.July, 1, 8, 0, 0, 0, time.UTC)
	log := watch.NewMessageLog()
	log.Append(at, 5, watch.NewLogEntry("alice", "deploy", at))
	rows, err := log.Range(at, at)
	require.NoError(t, err)

	for _, f := range export.Formats {
		path, err := e.Export(rows, at, at, f)
		require.NoError(t, err)
		assert.FileExists(t, path)
	}

	_, err = e.Export(rows, at, at, export.Format("pdf"))
	require.ErrorIs(t, err, export.ErrUnknownFormat)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o600))

	removed, err := e.Clear()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.FileExists(t, filepath.Join(dir, "keep.txt"))
}

func TestClearMissingDirectory(t *testing.T) {
	t.Parallel()

	removed, err := export.New(filepath.Join(t.TempDir(), "none")).Clear()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
