// Package notifier sends keyword match DMs, coalescing repeats within a batch.
package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/pkg/utils"
	"go.uber.org/zap"
)

// Handle identifies a sent DM so it can be edited later.
type Handle struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// Messenger delivers direct messages.
type Messenger interface {
	SendDirect(ctx context.Context, userID snowflake.ID, content string) (Handle, error)
	EditDirect(ctx context.Context, handle Handle, content string) error
}

// FirstMessage is the DM sent for the first match of a keyword in a batch.
func FirstMessage(keyword string, channelID snowflake.ID) string {
	return fmt.Sprintf("Keyword '%s' mentioned in <#%s>.", keyword, channelID)
}

// CountMessage is the DM text once a keyword matched count times in a batch.
func CountMessage(keyword string, count int) string {
	return fmt.Sprintf("Keyword '%s' was mentioned %d times.", keyword, count)
}

// Notifier creates notification batches.
type Notifier struct {
	messenger Messenger
	retry     utils.RetryOptions
	logger    *zap.Logger
}

// New creates a Notifier that retries DMs with the default DM retry options.
func New(messenger Messenger, logger *zap.Logger) *Notifier {
	return NewWithRetry(messenger, utils.GetDirectMessageRetryOptions(), logger)
}

// NewWithRetry creates a Notifier with custom retry options.
func NewWithRetry(messenger Messenger, retry utils.RetryOptions, logger *zap.Logger) *Notifier {
	return &Notifier{
		messenger: messenger,
		retry:     retry,
		logger:    logger.Named("notifier"),
	}
}

type tallyKey struct {
	subscriber snowflake.ID
	keyword    string
}

type tally struct {
	handle Handle
	count  int
}

// Batch tracks the DMs sent during one scan pass or history fetch.
// It is safe for concurrent use and is discarded when the pass ends.
type Batch struct {
	n       *Notifier
	mu      sync.Mutex
	tallies map[tallyKey]*tally
	sent    int
}

// NewBatch starts an empty batch.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{n: n, tallies: make(map[tallyKey]*tally)}
}

// Notify records a match for subscriber. The first match sends a DM naming the
// channel; later ones edit it to show the running count.
func (b *Batch) Notify(ctx context.Context, subscriber snowflake.ID, keyword string, channelID snowflake.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := tallyKey{subscriber: subscriber, keyword: keyword}
	t, ok := b.tallies[key]
	if !ok {
		handle, err := utils.WithRetry(ctx, func() (Handle, error) {
			return b.n.messenger.SendDirect(ctx, subscriber, FirstMessage(keyword, channelID))
		}, b.n.retry)
		if err != nil {
			return fmt.Errorf("failed to send notification to %s: %w", subscriber, err)
		}

		b.tallies[key] = &tally{handle: handle, count: 1}
		b.sent++
		return nil
	}

	t.count++
	err := utils.WithRetryNoResult(ctx, func() error {
		return b.n.messenger.EditDirect(ctx, t.handle, CountMessage(keyword, t.count))
	}, b.n.retry)
	if err != nil {
		return fmt.Errorf("failed to update notification for %s: %w", subscriber, err)
	}
	return nil
}

// NotifyAll notifies every subscriber, logging and skipping those that fail.
// It returns how many subscribers were reached.
func (b *Batch) NotifyAll(ctx context.Context, subscribers []snowflake.ID, keyword string, channelID snowflake.ID) int {
	reached := 0
	for _, id := range subscribers {
		if err := b.Notify(ctx, id, keyword, channelID); err != nil {
			b.n.logger.Warn("Failed to notify subscriber",
				zap.Uint64("subscriberID", uint64(id)),
				zap.String("keyword", keyword),
				zap.Error(err))
			continue
		}
		reached++
	}
	return reached
}

// Count returns how many matches were recorded for a subscriber and keyword.
func (b *Batch) Count(subscriber snowflake.ID, keyword string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.tallies[tallyKey{subscriber: subscriber, keyword: keyword}]; ok {
		return t.count
	}
	return 0
}

// Sent returns how many distinct DMs the batch sent.
func (b *Batch) Sent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}
