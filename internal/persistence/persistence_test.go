package persistence_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/persistence"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/robalyx/wordwatch/internal/storage"
	"github.com/robalyx/wordwatch/internal/storage/file"
	"github.com/robalyx/wordwatch/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	user    snowflake.ID = 123456789012345678
	guild   snowflake.ID = 223456789012345678
	channel snowflake.ID = 323456789012345678
)

var errDisk = errors.New("disk full")

// failingBackend fails writes of one document.
type failingBackend struct {
	storage.Backend
	failName string
}

func (f *failingBackend) Write(ctx context.Context, name string, data []byte) error {
	if name == f.failName {
		return errDisk
	}
	return f.Backend.Write(ctx, name, data)
}

func newBackend(t *testing.T) storage.Backend {
	t.Helper()
	b, err := file.New(t.TempDir())
	require.NoError(t, err)
	return b
}

func startState(t *testing.T) *state.Manager {
	t.Helper()
	st := state.NewManager(nil, zap.NewNop())
	go st.Run(t.Context())
	return st
}

func populate(t *testing.T, st *state.Manager) {
	t.Helper()

	at := time.Date(2024, time.July, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, st.Do(t.Context(), func(d *state.Data) error {
		if _, err := d.Watches.AddKeyword(user, guild, "Deploy", channel); err != nil {
			return err
		}
		if _, err := d.Watches.AddSubscribers(user, guild, "deploy", 42, 43); err != nil {
			return err
		}
		if _, err := d.Watches.AddKeyword(user, guild+1, "x"); err != nil {
			return err
		}
		if err := d.Watches.ClearAll(user, guild+1); err != nil {
			return err
		}
		d.Cooldowns.Set(user, 10)
		d.Log.Append(at, channel, watch.NewLogEntry("Zoë", "deploy <b>now</b>", at))
		return nil
	}))
}

func snapshot(t *testing.T, st *state.Manager) persistence.Snapshot {
	t.Helper()
	snap, err := state.Query(t.Context(), st, func(d *state.Data) (persistence.Snapshot, error) {
		return persistence.TakeSnapshot(d), nil
	})
	require.NoError(t, err)
	return snap
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	backend := newBackend(t)
	st := startState(t)
	populate(t, st)

	m := persistence.NewManager(backend, st, persistence.DefaultNames(), 0, zap.NewNop())
	require.NoError(t, m.Save(t.Context()))
	assert.False(t, m.LastSaved().IsZero())

	restored := startState(t)
	other := persistence.NewManager(backend, restored, persistence.DefaultNames(), 0, zap.NewNop())
	require.NoError(t, other.Restore(t.Context()))

	assert.Equal(t, snapshot(t, st), snapshot(t, restored))
}

func TestSaveFormat(t *testing.T) {
	t.Parallel()

	backend := newBackend(t)
	st := startState(t)
	populate(t, st)

	m := persistence.NewManager(backend, st, persistence.DefaultNames(), 0, zap.NewNop())
	require.NoError(t, m.Save(t.Context()))

	words, err := backend.Read(t.Context(), "userwords.json")
	require.NoError(t, err)
	text := string(words)
	assert.Contains(t, text, "\n    \"123456789012345678\": {")
	assert.Contains(t, text, `"323456789012345678"`)
	assert.Contains(t, text, `"notify_users": [`)
	assert.Less(t, strings.Index(text, `"223456789012345678"`), strings.Index(text, `"223456789012345679"`),
		"keys are sorted")

	logDoc, err := backend.Read(t.Context(), "message_log.json")
	require.NoError(t, err)
	assert.Contains(t, string(logDoc), "Zoë")
	assert.Contains(t, string(logDoc), "<b>now</b>", "html is not escaped")

	cds, err := backend.Read(t.Context(), "usercds.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"123456789012345678": 600}`, string(cds))

	// Saving the same state twice is byte-identical.
	require.NoError(t, m.Save(t.Context()))
	again, err := backend.Read(t.Context(), "userwords.json")
	require.NoError(t, err)
	assert.Equal(t, words, again)
}

func TestLoadMissingDocumentStartsEmpty(t *testing.T) {
	t.Parallel()

	backend := newBackend(t)
	require.NoError(t, backend.Write(t.Context(), "userwords.json", []byte(`{"1": {"2": {"a": {"channels": [], "last_alerted": 0, "notify_users": []}}}}`)))
	require.NoError(t, backend.Write(t.Context(), "usercds.json", []byte(`{"1": 600}`)))

	m := persistence.NewManager(backend, nil, persistence.DefaultNames(), 0, zap.NewNop())
	data, err := m.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, data.Watches.Users())
	assert.Equal(t, watch.DefaultCooldownSeconds, data.Cooldowns.Get(1))
	assert.Zero(t, data.Log.Len())
}

func TestLoadMalformedStartsEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		words string
	}{
		{name: "invalid json", words: `{"1": `},
		{name: "invalid user id", words: `{"bob": {}}`},
		{name: "invalid channel id", words: `{"1": {"2": {"a": {"channels": ["x"], "last_alerted": 0, "notify_users": []}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := newBackend(t)
			require.NoError(t, backend.Write(t.Context(), "userwords.json", []byte(tt.words)))
			require.NoError(t, backend.Write(t.Context(), "usercds.json", []byte(`{"1": 600}`)))
			require.NoError(t, backend.Write(t.Context(), "message_log.json", []byte(`{}`)))

			m := persistence.NewManager(backend, nil, persistence.DefaultNames(), 0, zap.NewNop())
			data, err := m.Load(t.Context())
			require.NoError(t, err)
			assert.Empty(t, data.Watches.Users())
			assert.Equal(t, watch.DefaultCooldownSeconds, data.Cooldowns.Get(1), "no partial restore")
		})
	}
}

func TestLoadLegacyDocuments(t *testing.T) {
	t.Parallel()

	backend := newBackend(t)
	require.NoError(t, backend.Write(t.Context(), "userwords.json", []byte(`{
    "123456789012345678": {
        "223456789012345678": {
            "deploy": {"channels": {"323456789012345678": -1}, "last_alerted": 0, "notify_users": [42, 423456789012345678]},
            "release": {"channels": {}, "last_alerted": 5, "notify_users": []}
        }
    }
}`)))
	require.NoError(t, backend.Write(t.Context(), "usercds.json", []byte(`{"123456789012345678": 300}`)))
	require.NoError(t, backend.Write(t.Context(), "message_log.json", []byte(`{
    "2024-07-01": {"323456789012345678": [{"author": "a", "content": "deploy", "timestamp": "2024-07-01T00:00:00+00:00"}]}
}`)))

	m := persistence.NewManager(backend, nil, persistence.DefaultNames(), 0, zap.NewNop())
	data, err := m.Load(t.Context())
	require.NoError(t, err)

	e, err := data.Watches.Entry(user, guild, "deploy")
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{channel}, e.ChannelIDs())
	assert.Equal(t, []snowflake.ID{42, 423456789012345678}, e.NotifyUsers)

	e, err = data.Watches.Entry(user, guild, "release")
	require.NoError(t, err)
	assert.Empty(t, e.ChannelIDs())
	assert.Equal(t, int64(5), e.LastAlerted)

	assert.Equal(t, int64(300), data.Cooldowns.Get(user))
	assert.Equal(t, 1, data.Log.Len())
}

func TestSaveContinuesPastFailedDocument(t *testing.T) {
	t.Parallel()

	inner := newBackend(t)
	backend := &failingBackend{Backend: inner, failName: "usercds.json"}
	st := startState(t)
	populate(t, st)

	m := persistence.NewManager(backend, st, persistence.DefaultNames(), 0, zap.NewNop())
	require.ErrorIs(t, m.Save(t.Context()), errDisk)
	assert.True(t, m.LastSaved().IsZero())

	_, err := inner.Read(t.Context(), "message_log.json")
	require.NoError(t, err, "later documents are still written")
}

func TestScheduledSave(t *testing.T) {
	t.Parallel()

	t.Run("failure is logged", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zapcore.WarnLevel)
		backend := &failingBackend{Backend: newBackend(t), failName: "userwords.json"}
		st := startState(t)
		populate(t, st)

		m := persistence.NewManager(backend, st, persistence.DefaultNames(), 0, zap.New(core))
		m.ScheduledSave(t.Context())

		assert.True(t, m.LastSaved().IsZero())
		require.Equal(t, 1, logs.FilterMessage("Scheduled save failed, retrying next interval").Len())
	})

	t.Run("cancelled context is quiet", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zapcore.WarnLevel)
		st := startState(t)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		backend := &failingBackend{Backend: newBackend(t), failName: "userwords.json"}
		m := persistence.NewManager(backend, st, persistence.DefaultNames(), 0, zap.New(core))
		m.ScheduledSave(ctx)

		assert.True(t, m.LastSaved().IsZero())
		assert.Zero(t, logs.FilterMessage("Scheduled save failed, retrying next interval").Len())
	})

	t.Run("success records the save", func(t *testing.T) {
		t.Parallel()

		st := startState(t)
		populate(t, st)

		m := persistence.NewManager(newBackend(t), st, persistence.DefaultNames(), 0, zap.NewNop())
		m.ScheduledSave(t.Context())
		assert.False(t, m.LastSaved().IsZero())
	})
}

func TestSetInterval(t *testing.T) {
	t.Parallel()

	m := persistence.NewManager(newBackend(t), nil, persistence.DefaultNames(), 0, zap.NewNop())
	assert.Equal(t, persistence.DefaultInterval, m.Interval())
	require.ErrorIs(t, m.SetInterval(30*time.Second), persistence.ErrIntervalTooShort)
	require.NoError(t, m.SetInterval(5*time.Minute))
	assert.Equal(t, 5*time.Minute, m.Interval())
}

func TestCheck(t *testing.T) {
	t.Parallel()

	backend := newBackend(t)
	require.NoError(t, backend.Write(t.Context(), "userwords.json", []byte(`{}`)))
	require.NoError(t, backend.Write(t.Context(), "usercds.json", []byte(`[`)))

	m := persistence.NewManager(backend, nil, persistence.DefaultNames(), 0, zap.NewNop())
	statuses := m.Check(t.Context())
	require.Len(t, statuses, 3)

	assert.True(t, statuses[0].Present)
	require.NoError(t, statuses[0].Err)
	assert.True(t, statuses[1].Present)
	require.Error(t, statuses[1].Err)
	assert.False(t, statuses[2].Present)
}
