package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// ErrLeaseHeld is returned when another instance holds the lease.
var ErrLeaseHeld = errors.New("lease is held by another instance")

// Compare-and-act scripts so only the holder can renew or release.
var (
	renewScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Lease keeps a single bot instance writing to a shared document store.
type Lease struct {
	client rueidis.Client
	key    string
	holder string
	ttl    time.Duration
	logger *zap.Logger
}

// NewLease creates a lease on key for holder.
func NewLease(client rueidis.Client, key, holder string, ttl time.Duration, logger *zap.Logger) *Lease {
	return &Lease{
		client: client,
		key:    key,
		holder: holder,
		ttl:    ttl,
		logger: logger.Named("lease"),
	}
}

// Acquire takes the lease or returns ErrLeaseHeld.
func (l *Lease) Acquire(ctx context.Context) error {
	cmd := l.client.B().Set().Key(l.key).Value(l.holder).Nx().PxMilliseconds(l.ttl.Milliseconds()).Build()
	err := l.client.Do(ctx, cmd).Error()
	if rueidis.IsRedisNil(err) {
		current, _ := l.client.Do(ctx, l.client.B().Get().Key(l.key).Build()).ToString()
		return fmt.Errorf("%w: %s", ErrLeaseHeld, current)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %w", err)
	}

	l.logger.Info("Acquired instance lease", zap.String("holder", l.holder))
	return nil
}

// Renew extends the lease. It returns ErrLeaseHeld when the lease was lost.
func (l *Lease) Renew(ctx context.Context) error {
	n, err := renewScript.Exec(ctx, l.client, []string{l.key},
		[]string{l.holder, fmt.Sprint(l.ttl.Milliseconds())}).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	if n == 0 {
		return ErrLeaseHeld
	}
	return nil
}

// Keep renews the lease at a third of its TTL until the context is cancelled.
func (l *Lease) Keep(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Renew(ctx); err != nil && ctx.Err() == nil {
				l.logger.Error("Failed to renew instance lease", zap.Error(err))
			}
		}
	}
}

// Release gives up the lease if still held.
func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Exec(ctx, l.client, []string{l.key}, []string{l.holder}).Error(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	l.logger.Info("Released instance lease", zap.String("holder", l.holder))
	return nil
}
