package help_test

import (
	"fmt"
	"testing"

	"github.com/robalyx/wordwatch/internal/bot/builder/help"
	"github.com/robalyx/wordwatch/internal/bot/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page      int
		wantErr   bool
		wantFirst string
	}{
		{page: 1, wantFirst: "..watched"},
		{page: 2, wantFirst: "..admindashboard"},
		{page: 0, wantErr: true},
		{page: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			t.Parallel()

			embed, err := help.Build(tt.page, "..")
			if tt.wantErr {
				require.ErrorIs(t, err, help.ErrInvalidPage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, constants.HelpColor, embed.Color)
			require.NotEmpty(t, embed.Fields)
			assert.Equal(t, tt.wantFirst, embed.Fields[0].Name)
			assert.Contains(t, embed.Description, "prefixed with '..'")
			require.NotNil(t, embed.Footer)
		})
	}
}

func TestEveryCommandDocumented(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for page := 1; page <= help.Pages; page++ {
		embed, err := help.Build(page, "")
		require.NoError(t, err)
		for _, f := range embed.Fields {
			assert.False(t, seen[f.Name], "duplicate %s", f.Name)
			seen[f.Name] = true
		}
	}
	assert.Len(t, seen, 26)
}
