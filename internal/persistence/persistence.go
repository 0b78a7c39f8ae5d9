// Package persistence loads and saves the watch lists, cooldowns and match log
// as three independent JSON documents.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/robalyx/wordwatch/internal/storage"
	"github.com/robalyx/wordwatch/internal/watch"
	"go.uber.org/zap"
)

const (
	// MinInterval is the shortest allowed automatic save interval.
	MinInterval = time.Minute
	// DefaultInterval is used when no save interval is configured.
	DefaultInterval = 900 * time.Second
)

var (
	// ErrMalformed indicates a stored document could not be interpreted.
	ErrMalformed = errors.New("malformed document")
	// ErrIntervalTooShort is returned when setting an interval below MinInterval.
	ErrIntervalTooShort = errors.New("save interval must be at least 1 minute")
)

// Names are the document names of the three stores.
type Names struct {
	Watches   string
	Cooldowns string
	Log       string
}

// DefaultNames are the document names used by earlier releases.
func DefaultNames() Names {
	return Names{Watches: "userwords.json", Cooldowns: "usercds.json", Log: "message_log.json"}
}

func (n Names) all() []string {
	return []string{n.Watches, n.Cooldowns, n.Log}
}

// Snapshot is a point-in-time copy of the stores.
type Snapshot struct {
	Watches   map[snowflake.ID]watch.UserWatchList
	Cooldowns map[snowflake.ID]int64
	Log       map[string]map[snowflake.ID][]watch.LogEntry
}

// TakeSnapshot copies the stores. It must run on the state owner.
func TakeSnapshot(d *state.Data) Snapshot {
	return Snapshot{
		Watches:   d.Watches.Snapshot(),
		Cooldowns: d.Cooldowns.Snapshot(),
		Log:       d.Log.Snapshot(),
	}
}

// Data builds stores that take ownership of the snapshot.
func (s Snapshot) Data() *state.Data {
	return &state.Data{
		Watches:   watch.StoreFrom(s.Watches),
		Cooldowns: watch.CooldownsFrom(s.Cooldowns),
		Log:       watch.MessageLogFrom(s.Log),
	}
}

// DocumentStatus describes one stored document.
type DocumentStatus struct {
	Name    string
	Present bool
	Size    int
	Err     error
}

// Manager moves state between the state owner and a storage backend.
type Manager struct {
	backend storage.Backend
	state   *state.Manager
	names   Names
	logger  *zap.Logger

	saveMu    sync.Mutex
	lastSaved atomic.Int64
	interval  atomic.Int64
	reset     chan struct{}
}

// NewManager creates a Manager. The state manager may be nil for offline use,
// in which case only Load and Check are available.
func NewManager(
	backend storage.Backend, st *state.Manager, names Names, interval time.Duration, logger *zap.Logger,
) *Manager {
	if interval < MinInterval {
		interval = DefaultInterval
	}

	m := &Manager{
		backend: backend,
		state:   st,
		names:   names,
		logger:  logger.Named("persistence"),
		reset:   make(chan struct{}, 1),
	}
	m.interval.Store(int64(interval))
	return m
}

// Load reads all three documents. If any is missing, or any cannot be decoded,
// every store starts empty so the stores are never partially restored.
func (m *Manager) Load(ctx context.Context) (*state.Data, error) {
	raw := make(map[string][]byte, 3)
	for _, name := range m.names.all() {
		data, err := m.backend.Read(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("No data files provided or one was missing. No user data loaded.",
				zap.String("missing", name))
			return state.NewData(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		raw[name] = data
	}

	snap, err := m.decode(raw)
	if err != nil {
		m.logger.Error("Stored data is malformed. No user data loaded.", zap.Error(err))
		return state.NewData(), nil
	}

	data := snap.Data()
	m.logger.Info("Data loaded successfully",
		zap.Int("users", len(snap.Watches)),
		zap.Int("cooldowns", len(snap.Cooldowns)),
		zap.Int("logEntries", data.Log.Len()))
	return data, nil
}

func (m *Manager) decode(raw map[string][]byte) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)

	if snap.Watches, err = decodeWatches(raw[m.names.Watches]); err != nil {
		return snap, fmt.Errorf("%s: %w", m.names.Watches, err)
	}
	if snap.Cooldowns, err = decodeCooldowns(raw[m.names.Cooldowns]); err != nil {
		return snap, fmt.Errorf("%s: %w", m.names.Cooldowns, err)
	}
	if snap.Log, err = decodeLog(raw[m.names.Log]); err != nil {
		return snap, fmt.Errorf("%s: %w", m.names.Log, err)
	}
	return snap, nil
}

// Restore loads the documents and hands them to the state owner.
func (m *Manager) Restore(ctx context.Context) error {
	data, err := m.Load(ctx)
	if err != nil {
		return err
	}
	return m.state.Replace(ctx, data)
}

// Save writes all three documents from a consistent snapshot. A failed document
// does not stop the others from being written; memory stays authoritative.
func (m *Manager) Save(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	snap, err := state.Query(ctx, m.state, func(d *state.Data) (Snapshot, error) {
		return TakeSnapshot(d), nil
	})
	if err != nil {
		return fmt.Errorf("failed to snapshot state: %w", err)
	}

	m.logger.Info("Saving user data...")

	var errs []error
	for _, doc := range []struct {
		name   string
		encode func() ([]byte, error)
	}{
		{m.names.Watches, func() ([]byte, error) { return encodeWatches(snap.Watches) }},
		{m.names.Cooldowns, func() ([]byte, error) { return encodeCooldowns(snap.Cooldowns) }},
		{m.names.Log, func() ([]byte, error) { return encodeLog(snap.Log) }},
	} {
		data, err := doc.encode()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to encode %s: %w", doc.name, err))
			continue
		}
		if err := m.backend.Write(ctx, doc.name, data); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		m.logger.Error("Error writing user data", zap.Error(err))
		return err
	}

	now := time.Now()
	m.lastSaved.Store(now.UnixNano())
	m.logger.Info("User data saved", zap.Time("at", now))
	return nil
}

// LastSaved returns the time of the last successful save, or zero.
func (m *Manager) LastSaved() time.Time {
	n := m.lastSaved.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Interval returns the automatic save interval.
func (m *Manager) Interval() time.Duration {
	return time.Duration(m.interval.Load())
}

// SetInterval changes the automatic save interval, restarting the timer.
func (m *Manager) SetInterval(d time.Duration) error {
	if d < MinInterval {
		return ErrIntervalTooShort
	}
	m.interval.Store(int64(d))

	select {
	case m.reset <- struct{}{}:
	default:
	}
	return nil
}

// Run saves on every interval until the context is cancelled. Failed saves are
// logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.reset:
			ticker.Reset(m.Interval())
			m.logger.Info("Save interval changed", zap.Duration("interval", m.Interval()))
		case <-ticker.C:
			m.scheduledSave(ctx)
		}
	}
}

func (m *Manager) scheduledSave(ctx context.Context) {
	if err := m.Save(ctx); err != nil && ctx.Err() == nil {
		m.logger.Warn("Scheduled save failed, retrying next interval",
			zap.Duration("interval", m.Interval()),
			zap.Error(err))
	}
}

// Check reports whether each document exists and decodes.
func (m *Manager) Check(ctx context.Context) []DocumentStatus {
	decoders := map[string]func([]byte) error{
		m.names.Watches:   func(b []byte) error { _, err := decodeWatches(b); return err },
		m.names.Cooldowns: func(b []byte) error { _, err := decodeCooldowns(b); return err },
		m.names.Log:       func(b []byte) error { _, err := decodeLog(b); return err },
	}

	out := make([]DocumentStatus, 0, 3)
	for _, name := range m.names.all() {
		status := DocumentStatus{Name: name}
		data, err := m.backend.Read(ctx, name)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			status.Err = err
		default:
			status.Present = true
			status.Size = len(data)
			status.Err = decoders[name](data)
		}
		out = append(out, status)
	}
	return out
}
