package commands_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/bot/commands"
	"github.com/robalyx/wordwatch/internal/discord/rate"
	"github.com/robalyx/wordwatch/internal/export"
	"github.com/robalyx/wordwatch/internal/matcher"
	"github.com/robalyx/wordwatch/internal/notifier"
	"github.com/robalyx/wordwatch/internal/permissions"
	"github.com/robalyx/wordwatch/internal/persistence"
	"github.com/robalyx/wordwatch/internal/scanner"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/robalyx/wordwatch/internal/storage/file"
	"github.com/robalyx/wordwatch/internal/watch"
	"github.com/robalyx/wordwatch/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID   snowflake.ID = 20
	otherID   snowflake.ID = 21
	channelID snowflake.ID = 30
	authorID  snowflake.ID = 10
	friendID  snowflake.ID = 50
	roleID    snowflake.ID = 70
)

type fakeResponder struct {
	mu      sync.Mutex
	replies []string
	embeds  []discord.Embed
	files   []string
	direct  []discord.Embed

	confirmed  bool
	confirmErr error
}

func (r *fakeResponder) Reply(_ context.Context, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, content)
	return nil
}

func (r *fakeResponder) ReplyEmbed(_ context.Context, embed discord.Embed, files ...*discord.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeds = append(r.embeds, embed)
	for _, f := range files {
		r.files = append(r.files, f.Name)
	}
	return nil
}

func (r *fakeResponder) ReplyFile(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, path)
	return nil
}

func (r *fakeResponder) DirectEmbed(_ context.Context, embed discord.Embed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct = append(r.direct, embed)
	return nil
}

func (r *fakeResponder) Confirm(_ context.Context, prompt discord.Embed, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeds = append(r.embeds, prompt)
	return r.confirmed, r.confirmErr
}

func (r *fakeResponder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return ""
	}
	return r.replies[len(r.replies)-1]
}

type fakePlatform struct {
	channels []snowflake.ID
	names    map[snowflake.ID]string
	cleared  int
}

func (p *fakePlatform) TextChannels(context.Context, snowflake.ID) ([]snowflake.ID, error) {
	return p.channels, nil
}

func (p *fakePlatform) UserName(_ context.Context, userID snowflake.ID) (string, error) {
	return p.names[userID], nil
}

func (p *fakePlatform) MemberName(_ context.Context, _, userID snowflake.ID) (string, error) {
	return p.names[userID], nil
}

func (p *fakePlatform) RoleName(_ context.Context, _, roleID snowflake.ID) (string, error) {
	return p.names[roleID], nil
}

func (p *fakePlatform) ClearOwnMessages(context.Context, snowflake.ID, int) (int, error) {
	p.cleared++
	return 3, nil
}

type fakeLevels struct {
	level string
}

func (l *fakeLevels) SetLevel(name string) error {
	l.level = name
	return nil
}

type nopMessenger struct{}

func (nopMessenger) SendDirect(context.Context, snowflake.ID, string) (notifier.Handle, error) {
	return notifier.Handle{}, nil
}

func (nopMessenger) EditDirect(context.Context, notifier.Handle, string) error {
	return nil
}

// fakeHistory returns one page per channel.
type fakeHistory struct {
	messages []*matcher.Message
}

func (f *fakeHistory) HistoryPage(_ context.Context, _, _, before snowflake.ID, _ int) ([]*matcher.Message, error) {
	var page []*matcher.Message
	for _, m := range f.messages {
		if m.ID < before {
			cp := *m
			page = append(page, &cp)
		}
	}
	return page, nil
}

type fixture struct {
	router   *commands.Router
	state    *state.Manager
	scanner  *scanner.Scanner
	perms    *permissions.File
	platform *fakePlatform
	levels   *fakeLevels
	history  *fakeHistory
	dataDir  string
	stopped  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	dir := t.TempDir()

	st := state.NewManager(nil, logger)
	go st.Run(t.Context())

	backend, err := file.New(filepath.Join(dir, "data"))
	require.NoError(t, err)

	retry := utils.RetryOptions{MaxElapsedTime: time.Second, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	sc := scanner.New(
		st,
		matcher.New(matcher.Options{BotID: 1, Prefix: ".."}, logger),
		notifier.NewWithRetry(nopMessenger{}, retry, logger),
		rate.New(0, 0),
		scanner.Options{HistoryRetry: &retry},
		logger,
	)

	f := &fixture{
		state:    st,
		scanner:  sc,
		perms:    permissions.New(filepath.Join(dir, "permissions.json")),
		platform: &fakePlatform{channels: []snowflake.ID{channelID}, names: map[snowflake.ID]string{friendID: "carol", roleID: "mods"}},
		levels:   &fakeLevels{},
		history:  &fakeHistory{},
		dataDir:  filepath.Join(dir, "data"),
	}
	f.router = commands.New("..", commands.Deps{
		State:         st,
		Scanner:       sc,
		History:       f.history,
		Persistence:   persistence.NewManager(backend, st, persistence.DefaultNames(), 0, logger),
		Permissions:   f.perms,
		Exporter:      export.New(filepath.Join(dir, "exports")),
		Levels:        f.levels,
		Platform:      f.platform,
		DefaultFormat: export.FormatXLSX,
		Backend:       "file",
		InstanceID:    "test-instance",
		Stop:          func() { f.stopped = true },
		Now:           func() time.Time { return time.Date(2024, time.January, 14, 12, 0, 0, 0, time.UTC) },
	}, logger)
	return f
}

// run dispatches content as the author in the guild.
func (f *fixture) run(t *testing.T, content string, opts ...func(*commands.Context)) *fakeResponder {
	t.Helper()
	resp := &fakeResponder{}
	f.runWith(t, resp, content, opts...)
	return resp
}

func (f *fixture) runWith(t *testing.T, resp *fakeResponder, content string, opts ...func(*commands.Context)) {
	t.Helper()
	c := &commands.Context{
		Responder:   resp,
		GuildID:     guildID,
		ChannelID:   channelID,
		AuthorID:    authorID,
		DisplayName: "alice",
	}
	for _, opt := range opts {
		opt(c)
	}
	require.True(t, f.router.Dispatch(t.Context(), content, c), "not dispatched: %s", content)
}

func (f *fixture) logLen(t *testing.T) int {
	t.Helper()
	n, err := state.Query(t.Context(), f.state, func(d *state.Data) (int, error) {
		return d.Log.Len(), nil
	})
	require.NoError(t, err)
	return n
}

func (f *fixture) seedLog(t *testing.T, contents ...string) {
	t.Helper()
	at := time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.state.Do(t.Context(), func(d *state.Data) error {
		for _, content := range contents {
			d.Log.Append(at, channelID, watch.NewLogEntry("bob", content, at))
		}
		return nil
	}))
}

func inDM(c *commands.Context) {
	c.GuildID = 0
}

func asAdmin(c *commands.Context) {
	c.Admin = true
}

func withRole(c *commands.Context) {
	c.Roles = []snowflake.ID{roleID}
}

func TestDispatchIgnoresNonCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, content := range []string{"hello there", "....", ".. watched", "..1"} {
		c := &commands.Context{Responder: &fakeResponder{}, GuildID: guildID, AuthorID: authorID}
		assert.False(t, f.router.Dispatch(t.Context(), content, c), content)
	}
}

func TestDispatchRefusals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		opts    []func(*commands.Context)
		want    string
	}{
		{name: "unknown command", content: "..nope", want: commands.NotFoundReply},
		{name: "guild command in dm", content: "..watched", opts: []func(*commands.Context){inDM}, want: commands.GuildOnlyReply},
		{name: "dm command in guild", content: "..cleardm", want: commands.DMOnlyReply},
		{name: "admin command", content: "..forcesave", want: commands.PermissionReply},
		{name: "missing arguments", content: "..watchword", want: "Missing arguments. Usage: `..watchword <word> [#channel...]`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			assert.Equal(t, tt.want, f.run(t, tt.content, tt.opts...).last())
		})
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.router.Register(&commands.Command{Name: "boom", Scope: commands.ScopeAny, Run: func(context.Context, *commands.Context) error {
		panic("boom")
	}})
	assert.Equal(t, commands.GenericReply, f.run(t, "..boom").last())

	// Later commands still work.
	assert.Equal(t, "Test command executed successfully!", f.run(t, "..test").last())
}

func TestGeneralCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp := f.run(t, "..help")
	require.Len(t, resp.direct, 1)
	assert.Contains(t, resp.direct[0].Title, "Page 1")
	assert.Equal(t, "Invalid help page number.", f.run(t, "..help 9").last())

	assert.Equal(t, "Display Name: alice, Nickname: No Nickname", f.run(t, "..checkname").last())

	assert.Equal(t, "Cleared my messages from this DM.", f.run(t, "..cleardm", inDM).last())
	assert.Equal(t, 1, f.platform.cleared)

	assert.Equal(t,
		"Invalid verbosity level. Choose from 'debug', 'info', 'warning', 'error'.",
		f.run(t, "..setverbosity loud").last())
	assert.Equal(t, "Verbosity level set to warning.", f.run(t, "..setverbosity WARNING").last())
	assert.Equal(t, "warning", f.levels.level)
}

func TestWatchLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Equal(t, "You have no watched words.", f.run(t, "..watched").last())
	assert.Equal(t, "You have no watched words to clear.", f.run(t, "..watchclear").last())
	assert.Equal(t, "Word 'hello' has been added to your watch list in all channels.", f.run(t, "..watchword hello").last())
	assert.Equal(t, "Word 'hello' is already in your watch list.", f.run(t, "..watchword hello").last())
	assert.Equal(t,
		"Word 'deploy' has been added to your watch list in the specified channels.",
		f.run(t, "..watchword deploy <#30>").last())
	assert.Equal(t, "Your watched words: deploy, hello", f.run(t, "..watched").last())

	f.seedLog(t, "Hello there", "nothing to see")
	assert.Equal(t,
		"Word 'hello' has been removed from your watch list and its logs have been cleared.",
		f.run(t, "..deleteword hello").last())
	assert.Equal(t, 1, f.logLen(t))
	assert.Equal(t, "Word 'hello' is not in your watch list.", f.run(t, "..deleteword hello").last())

	assert.Equal(t, "Your watch list has been cleared.", f.run(t, "..watchclear").last())
	assert.Equal(t, "You have no watched words.", f.run(t, "..watched").last())
}

func TestFilters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.run(t, "..watchword deploy")
	assert.Equal(t,
		"Filters have been added to the word 'deploy' for the specified channels.",
		f.run(t, "..addfilter deploy <#30> <#31>").last())
	assert.Contains(t, f.run(t, "..worddetail deploy").last(), "<#30>, <#31>")

	f.run(t, "..deletefilter deploy <#31>")
	detail := f.run(t, "..worddetail deploy").last()
	assert.Contains(t, detail, "<#30>")
	assert.NotContains(t, detail, "<#31>")

	f.run(t, "..clearfilter deploy")
	assert.Contains(t, f.run(t, "..worddetail deploy").last(), "all channels")

	assert.Contains(t, f.run(t, "..addfilter deploy general").last(), "Please mention channels")
	assert.Equal(t, "Word 'other' is not in your watch list.", f.run(t, "..addfilter other <#30>").last())
}

func TestCooldown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		content string
		want    string
		seconds int64
	}{
		{content: "..cd", want: "Notification cooldown set to 15 minutes.", seconds: 900},
		{content: "..cd 5", want: "Notification cooldown set to 5 minutes.", seconds: 300},
		{content: "..cd 0", want: "Notification cooldown set to 0 minutes.", seconds: 0},
		{content: "..cd -1", want: "Cooldown cannot be negative.", seconds: 900},
		{content: "..cd soon", want: "Cooldown must be a whole number of minutes.", seconds: 900},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			assert.Equal(t, tt.want, f.run(t, tt.content).last())

			seconds, err := state.Query(t.Context(), f.state, func(d *state.Data) (int64, error) {
				return d.Cooldowns.Get(authorID), nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.seconds, seconds)
		})
	}
}

func TestNotifySubscribers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Equal(t, "'deploy' is not being watched.", f.run(t, "..addnotify deploy <@50>").last())

	f.run(t, "..watchword Deploy")
	assert.Equal(t, "Added carol to notifications for 'deploy'.", f.run(t, "..addnotify deploy <@50>").last())
	assert.Equal(t, "No new members were added.", f.run(t, "..addnotify deploy <@!50>").last())
	assert.Contains(t, f.run(t, "..worddetail deploy").last(), "Notifying: carol")

	assert.Equal(t, "Removed carol from notifications for 'deploy'.", f.run(t, "..removenotify deploy <@50>").last())
	assert.Equal(t, "No members were removed.", f.run(t, "..removenotify deploy <@50>").last())
}

func TestFetchHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	at := time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)
	f.history.messages = []*matcher.Message{
		{ID: snowflake.New(at.Add(time.Hour)), AuthorID: 99, AuthorName: "bob", Content: "ship the deploy", CreatedAt: at.Add(time.Hour)},
		{ID: snowflake.New(at), AuthorID: 99, AuthorName: "bob", Content: "good morning", CreatedAt: at},
	}
	f.run(t, "..watchword deploy")

	assert.Equal(t, "Dates must be in YYYYMMDD format.", f.run(t, "..fetchhistory 2024-01-01 20240131").last())
	assert.Equal(t, "The start date must not be after the end date.", f.run(t, "..fetchhistory 20240201 20240101").last())

	assert.Equal(t,
		"Fetched and processed 2 historical messages across the specified channels. 1 keyword matches were logged.",
		f.run(t, "..fetchhistory 20240101 20240131").last())
	assert.Equal(t, 1, f.logLen(t))

	f.platform.channels = nil
	assert.Equal(t, "There are no text channels to fetch.", f.run(t, "..fetchhistory 20240101 20240131").last())
}

func TestExportLogs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedLog(t, "deploy now")

	resp := f.run(t, "..exportlogs 20240101 20240131 csv")
	require.Len(t, resp.files, 1)
	assert.Equal(t, ".csv", filepath.Ext(resp.files[0]))
	assert.FileExists(t, resp.files[0])

	resp = f.run(t, "..exportlogs 20240101 20240131")
	require.Len(t, resp.files, 1)
	assert.Equal(t, ".xlsx", filepath.Ext(resp.files[0]))

	assert.Equal(t,
		"Unsupported export format. Choose from xlsx, csv, sqlite.",
		f.run(t, "..exportlogs 20240101 20240131 pdf").last())
}

func TestClearLogs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		confirmed bool
		err       error
		want      string
		remaining int
	}{
		{name: "timeout", err: commands.ErrConfirmTimeout, want: "Confirmation timed out. Message logs and files were not cleared.", remaining: 1},
		{name: "cancelled", want: "Message log and file clearance cancelled.", remaining: 1},
		{name: "confirmed", confirmed: true, want: "All message logs and exported files have been cleared.", remaining: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.seedLog(t, "deploy now")

			resp := &fakeResponder{confirmed: tt.confirmed, confirmErr: tt.err}
			f.runWith(t, resp, "..clearlogs", asAdmin)

			require.Len(t, resp.embeds, 1)
			assert.Equal(t, "Clear All Message Logs and Exported Files", resp.embeds[0].Title)
			assert.Equal(t, tt.want, resp.last())
			assert.Equal(t, tt.remaining, f.logLen(t))
		})
	}
}

func TestAdminIntervals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Equal(t, "Scan frequency must be at least 1 second.", f.run(t, "..setscan 0", asAdmin).last())
	assert.Equal(t, "Scan frequency set to 10 seconds.", f.run(t, "..setscan 10", asAdmin).last())
	assert.Equal(t, 10*time.Second, f.scanner.Interval())

	assert.Equal(t, "Save frequency must be at least 1 minute.", f.run(t, "..setsave nope", asAdmin).last())
	assert.Equal(t, "Save frequency set to 3 minutes.", f.run(t, "..setsave 3", asAdmin).last())
}

func TestRolePermissions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Equal(t, commands.PermissionReply, f.run(t, "..setscan 10", withRole).last())

	assert.Equal(t, "Unknown command: nope.", f.run(t, "..addrole nope <@&70>", asAdmin).last())
	assert.Equal(t, "Role mods added to setscan.", f.run(t, "..addrole setscan <@&70>", asAdmin).last())
	assert.Equal(t, "Role already has permission for this command.", f.run(t, "..addrole setscan <@&70>", asAdmin).last())

	assert.Equal(t, "Scan frequency set to 10 seconds.", f.run(t, "..setscan 10", withRole).last())

	assert.Equal(t, "Role mods removed from setscan.", f.run(t, "..removerole setscan <@&70>", asAdmin).last())
	assert.Equal(t,
		"Role was not set for this command or command does not exist.",
		f.run(t, "..removerole setscan <@&70>", asAdmin).last())
	assert.Equal(t, commands.PermissionReply, f.run(t, "..setscan 10", withRole).last())
}

func TestSaveCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.run(t, "..watchword deploy")

	assert.Equal(t, "All data has been force-saved.", f.run(t, "..forcesave", asAdmin).last())
	entries, err := os.ReadDir(f.dataDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	report := f.run(t, "..test_save").last()
	assert.Contains(t, report, "Test save executed.")
	assert.Contains(t, report, "bytes")
	assert.NotContains(t, report, "missing")
}

func TestBotStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Equal(t, "Saving data and logging out...", f.run(t, "..botstop", asAdmin).last())
	assert.True(t, f.stopped)
}

func TestAdminDashboard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.run(t, "..watchword deploy")
	f.seedLog(t, "deploy now")

	resp := f.run(t, "..admindashboard", asAdmin)
	require.Len(t, resp.embeds, 1)
	assert.Equal(t, "WordWatch Bot Admin Dashboard", resp.embeds[0].Title)
	assert.True(t, slices.Contains(resp.files, "activity.png"))
}

func TestListWatched(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp := f.run(t, "..listwatched", asAdmin)
	require.Len(t, resp.embeds, 1)
	assert.Equal(t, "No words are being watched currently.", resp.embeds[0].Description)

	require.NoError(t, f.state.Do(t.Context(), func(d *state.Data) error {
		_, err := d.Watches.AddKeyword(friendID, guildID, "deploy")
		_, err2 := d.Watches.AddKeyword(friendID, otherID, "secret")
		return errors.Join(err, err2)
	}))

	resp = f.run(t, "..listwatched", asAdmin)
	require.Len(t, resp.embeds, 1)
	assert.Equal(t, "Watched Words Summary", resp.embeds[0].Title)
	assert.Equal(t, "**carol** (1 words): deploy", resp.embeds[0].Description)
}
