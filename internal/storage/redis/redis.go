// Package redis stores documents as Redis string keys.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"
	"github.com/robalyx/wordwatch/internal/storage"
)

// Backend keeps every document under prefix+name.
type Backend struct {
	client rueidis.Client
	prefix string
}

// New wraps a client. The client is owned by its manager and is not closed here.
func New(client rueidis.Client, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

// Read implements storage.Backend.
func (b *Backend) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := b.client.Do(ctx, b.client.B().Get().Key(b.prefix+name).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Write implements storage.Backend.
func (b *Backend) Write(ctx context.Context, name string, data []byte) error {
	cmd := b.client.B().Set().Key(b.prefix + name).Value(rueidis.BinaryString(data)).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	return nil
}
