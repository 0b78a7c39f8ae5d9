package watch_test

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	user    snowflake.ID = 100
	guild   snowflake.ID = 200
	channel snowflake.ID = 300
)

func TestStoreAddKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing []string
		keyword  string
		want     string
		wantErr  error
	}{
		{name: "new keyword is lowercased", keyword: "Deploy", want: "deploy"},
		{name: "existing keyword is rejected", existing: []string{"deploy"}, keyword: "DEPLOY", want: "deploy", wantErr: watch.ErrAlreadyWatching},
		{name: "blank keyword", keyword: "   ", wantErr: watch.ErrEmptyKeyword},
		{name: "surrounding space is trimmed", keyword: "  release ", want: "release"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := watch.NewStore()
			for _, k := range tt.existing {
				_, err := s.AddKeyword(user, guild, k, channel)
				require.NoError(t, err)
			}

			got, err := s.AddKeyword(user, guild, tt.keyword)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStoreAddKeywordDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	s := watch.NewStore()
	_, err := s.AddKeyword(user, guild, "deploy", channel)
	require.NoError(t, err)
	_, err = s.AddSubscribers(user, guild, "deploy", 7)
	require.NoError(t, err)

	_, err = s.AddKeyword(user, guild, "deploy")
	require.ErrorIs(t, err, watch.ErrAlreadyWatching)

	e, err := s.Entry(user, guild, "deploy")
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{channel}, e.ChannelIDs())
	assert.Equal(t, []snowflake.ID{7}, e.NotifyUsers)
}

func TestStoreRemoveKeyword(t *testing.T) {
	t.Parallel()

	s := watch.NewStore()
	require.ErrorIs(t, s.RemoveKeyword(user, guild, "deploy"), watch.ErrKeywordNotFound)

	_, err := s.AddKeyword(user, guild, "deploy")
	require.NoError(t, err)
	require.ErrorIs(t, s.RemoveKeyword(user, guild, "other"), watch.ErrKeywordNotFound)
	assert.Equal(t, []string{"deploy"}, s.Keywords(user, guild))

	require.NoError(t, s.RemoveKeyword(user, guild, "DEPLOY"))
	assert.Empty(t, s.Keywords(user, guild))
}

func TestStoreClearAll(t *testing.T) {
	t.Parallel()

	s := watch.NewStore()
	require.ErrorIs(t, s.ClearAll(user, guild), watch.ErrNoWatchList)

	_, err := s.AddKeyword(user, guild, "a")
	require.NoError(t, err)
	_, err = s.AddKeyword(user, guild, "b")
	require.NoError(t, err)
	require.ErrorIs(t, s.ClearAll(user, guild+1), watch.ErrNoWatchList)

	require.NoError(t, s.ClearAll(user, guild))
	assert.Empty(t, s.Keywords(user, guild))

	list, ok := s.GuildList(user, guild)
	assert.True(t, ok, "cleared guild list is kept")
	assert.Empty(t, list)
}

func TestStoreChannelFilters(t *testing.T) {
	t.Parallel()

	s := watch.NewStore()
	require.ErrorIs(t, s.AddChannelFilter(user, guild, "deploy", channel), watch.ErrKeywordNotFound)

	_, err := s.AddKeyword(user, guild, "deploy")
	require.NoError(t, err)

	e, _ := s.Entry(user, guild, "deploy")
	assert.True(t, e.WatchesChannel(channel), "empty filter watches all channels")

	require.NoError(t, s.AddChannelFilter(user, guild, "deploy", channel, channel+1))
	e, _ = s.Entry(user, guild, "deploy")
	assert.Equal(t, []snowflake.ID{channel, channel + 1}, e.ChannelIDs())
	assert.False(t, e.WatchesChannel(channel+2))

	require.NoError(t, s.RemoveChannelFilter(user, guild, "deploy", channel))
	e, _ = s.Entry(user, guild, "deploy")
	assert.Equal(t, []snowflake.ID{channel + 1}, e.ChannelIDs())

	require.NoError(t, s.ClearChannelFilters(user, guild, "deploy"))
	e, _ = s.Entry(user, guild, "deploy")
	assert.Empty(t, e.ChannelIDs())
	assert.True(t, e.WatchesChannel(channel+2))
}

func TestStoreSubscribers(t *testing.T) {
	t.Parallel()

	s := watch.NewStore()
	_, err := s.AddSubscribers(user, guild, "deploy", 1)
	require.ErrorIs(t, err, watch.ErrKeywordNotFound)

	_, err = s.AddKeyword(user, guild, "deploy")
	require.NoError(t, err)

	added, err := s.AddSubscribers(user, guild, "deploy", 1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 2}, added)

	added, err = s.AddSubscribers(user, guild, "deploy", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{3}, added)

	removed, err := s.RemoveSubscribers(user, guild, "deploy", 2, 9)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{2}, removed)

	e, err := s.Entry(user, guild, "deploy")
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 3}, e.NotifyUsers)
}

func TestStoreEntryIsACopy(t *testing.T) {
	t.Parallel()

	s := watch.NewStore()
	_, err := s.AddKeyword(user, guild, "deploy")
	require.NoError(t, err)

	e, err := s.Entry(user, guild, "deploy")
	require.NoError(t, err)
	e.Channels[channel] = struct{}{}
	e.NotifyUsers = append(e.NotifyUsers, 5)

	again, err := s.Entry(user, guild, "deploy")
	require.NoError(t, err)
	assert.Empty(t, again.Channels)
	assert.Empty(t, again.NotifyUsers)
}

func TestStoreSummaryAndWatchers(t *testing.T) {
	t.Parallel()

	s := watch.NewStore()
	_, _ = s.AddKeyword(2, guild, "zeta")
	_, _ = s.AddKeyword(2, guild, "alpha")
	_, _ = s.AddKeyword(1, guild+1, "beta")
	_, _ = s.AddKeyword(1, guild, "gamma")

	assert.Equal(t, []snowflake.ID{1, 2}, s.Users())
	assert.Equal(t, []snowflake.ID{1, 2}, s.WatchersIn(guild))
	assert.Equal(t, []snowflake.ID{1}, s.WatchersIn(guild+1))

	assert.Equal(t, []watch.Summary{
		{UserID: 1, GuildID: guild, Keywords: []string{"gamma"}},
		{UserID: 1, GuildID: guild + 1, Keywords: []string{"beta"}},
		{UserID: 2, GuildID: guild, Keywords: []string{"alpha", "zeta"}},
	}, s.Summary())
}

func TestStoreSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	s := watch.NewStore()
	_, _ = s.AddKeyword(user, guild, "deploy", channel)
	_, _ = s.AddSubscribers(user, guild, "deploy", 9)
	_, _ = s.AddKeyword(user, guild+1, "x")
	require.NoError(t, s.ClearAll(user, guild+1))

	restored := watch.StoreFrom(s.Snapshot())
	assert.Equal(t, s.Snapshot(), restored.Snapshot())

	_, ok := restored.GuildList(user, guild+1)
	assert.True(t, ok, "empty guild list survives")
}

func TestCooldowns(t *testing.T) {
	t.Parallel()

	c := watch.NewCooldowns()
	assert.Equal(t, watch.DefaultCooldownSeconds, c.Get(user))
	assert.Equal(t, int64(600), c.Set(user, 10))
	assert.Equal(t, int64(600), c.Get(user))
	assert.Equal(t, int64(900), c.Get(user+1))

	restored := watch.CooldownsFrom(c.Snapshot())
	assert.Equal(t, int64(600), restored.Get(user))
}
