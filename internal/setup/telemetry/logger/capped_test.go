package logger_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robalyx/wordwatch/internal/setup/telemetry/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestCappedFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		maxLines int
		writes   int
		want     []string
	}{
		{
			name:     "below cap keeps everything",
			maxLines: 3,
			writes:   4,
			want:     []string{"line 0", "line 1", "line 2", "line 3"},
		},
		{
			name:     "compacts at twice the cap",
			maxLines: 3,
			writes:   6,
			want:     []string{"line 3", "line 4", "line 5"},
		},
		{
			name:     "appends after compaction",
			maxLines: 3,
			writes:   7,
			want:     []string{"line 3", "line 4", "line 5", "line 6"},
		},
		{
			name:     "cap disabled",
			maxLines: 0,
			writes:   5,
			want:     []string{"line 0", "line 1", "line 2", "line 3", "line 4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "main.log")
			f, err := logger.OpenCapped(path, tt.maxLines)
			require.NoError(t, err)

			for i := range tt.writes {
				_, err := fmt.Fprintf(f, "line %d\n", i)
				require.NoError(t, err)
			}
			require.NoError(t, f.Close())

			assert.Equal(t, tt.want, readLines(t, path))
		})
	}
}

func TestCappedFileMultilineWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")
	f, err := logger.OpenCapped(path, 2)
	require.NoError(t, err)

	_, err = f.Write([]byte("a\nb\nc\nd\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, []string{"c", "d"}, readLines(t, path))
}
