// Package state serializes every access to the watch lists, cooldowns and match log
// through a single owner goroutine.
package state

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/robalyx/wordwatch/internal/watch"
	"go.uber.org/zap"
)

// ErrStopped is returned when an operation is submitted after the owner exited.
var ErrStopped = errors.New("state manager stopped")

// Data is the set of stores owned by the manager.
type Data struct {
	Watches   *watch.Store
	Cooldowns *watch.Cooldowns
	Log       *watch.MessageLog
}

// NewData creates empty stores.
func NewData() *Data {
	return &Data{
		Watches:   watch.NewStore(),
		Cooldowns: watch.NewCooldowns(),
		Log:       watch.NewMessageLog(),
	}
}

type operation struct {
	fn   func(*Data) error
	done chan error
}

// Manager owns Data and runs submitted operations one at a time.
type Manager struct {
	data    *Data
	ops     chan operation
	stopped chan struct{}
	logger  *zap.Logger
}

// NewManager creates a manager owning data. Run must be started before Do is used.
func NewManager(data *Data, logger *zap.Logger) *Manager {
	if data == nil {
		data = NewData()
	}
	return &Manager{
		data:    data,
		ops:     make(chan operation),
		stopped: make(chan struct{}),
		logger:  logger.Named("state"),
	}
}

// Run executes operations until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-m.ops:
			op.done <- m.execute(op.fn)
		}
	}
}

// execute runs fn, turning a panic into an error so the owner keeps running.
func (m *Manager) execute(fn func(*Data) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Recovered from panic in state operation",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("state operation panicked: %v", r)
		}
	}()
	return fn(m.data)
}

// Do runs fn on the owner goroutine and waits for it to finish.
func (m *Manager) Do(ctx context.Context, fn func(*Data) error) error {
	op := operation{fn: fn, done: make(chan error, 1)}

	select {
	case m.ops <- op:
	case <-m.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted the operation always completes, so wait for it.
	return <-op.done
}

// Replace swaps the owned stores, used after loading persisted state.
func (m *Manager) Replace(ctx context.Context, data *Data) error {
	return m.Do(ctx, func(d *Data) error {
		*d = *data
		return nil
	})
}

// Query runs fn on the owner goroutine and returns its result.
func Query[T any](ctx context.Context, m *Manager, fn func(*Data) (T, error)) (T, error) {
	var result T
	err := m.Do(ctx, func(d *Data) error {
		var err error
		result, err = fn(d)
		return err
	})
	return result, err
}
