// Package storagetest holds the behavior every storage backend must satisfy.
package storagetest

import (
	"testing"

	"github.com/robalyx/wordwatch/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a fresh backend returned by open.
func Run(t *testing.T, open func(t *testing.T) storage.Backend) {
	t.Helper()

	t.Run("missing document", func(t *testing.T) {
		b := open(t)
		_, err := b.Read(t.Context(), "userwords.json")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("write then read", func(t *testing.T) {
		b := open(t)
		body := []byte("{\n    \"a\": \"ünïcode\"\n}")
		require.NoError(t, b.Write(t.Context(), "userwords.json", body))

		got, err := b.Read(t.Context(), "userwords.json")
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("overwrite", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Write(t.Context(), "usercds.json", []byte("first, and longer")))
		require.NoError(t, b.Write(t.Context(), "usercds.json", []byte("second")))

		got, err := b.Read(t.Context(), "usercds.json")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("documents are independent", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Write(t.Context(), "a", []byte("1")))
		require.NoError(t, b.Write(t.Context(), "b", []byte("2")))

		got, err := b.Read(t.Context(), "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), got)

		_, err = b.Read(t.Context(), "c")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
