package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robalyx/wordwatch/internal/storage"
	"github.com/robalyx/wordwatch/internal/storage/file"
	"github.com/robalyx/wordwatch/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend(t *testing.T) {
	t.Parallel()

	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b, err := file.New(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })
		return b
	})
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	b, err := file.New(dir)
	require.NoError(t, err)

	require.NoError(t, b.Write(t.Context(), "message_log.json", []byte("{}")))
	require.NoError(t, b.Write(t.Context(), "message_log.json", []byte("{\"x\": 1}")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "message_log.json", entries[0].Name())
}
