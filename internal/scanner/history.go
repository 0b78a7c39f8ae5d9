package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/matcher"
	"github.com/robalyx/wordwatch/internal/notifier"
	"github.com/robalyx/wordwatch/internal/watch"
	"github.com/robalyx/wordwatch/pkg/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ErrNoChannels is returned when a history fetch has nothing to read.
var ErrNoChannels = errors.New("no channels to fetch")

// HistorySource reads channel history.
type HistorySource interface {
	// HistoryPage returns up to limit messages older than before, newest first.
	// Authors are named as they appear in the guild.
	HistoryPage(ctx context.Context, guildID, channelID, before snowflake.ID, limit int) ([]*matcher.Message, error)
}

// HistoryRequest describes a historical fetch for one watcher.
type HistoryRequest struct {
	GuildID   snowflake.ID
	WatcherID snowflake.ID
	Channels  []snowflake.ID
	// From and To are inclusive UTC days.
	From time.Time
	To   time.Time
}

func dayOf(t time.Time) string {
	return t.UTC().Format(watch.DateLayout)
}

// FetchHistory reads the requested channels concurrently, matching every message
// within the day range against the watcher's keywords. All notifications of the
// fetch share one batch. Channels that fail are logged and reported in the
// returned error while the rest continue.
func (s *Scanner) FetchHistory(ctx context.Context, src HistorySource, req HistoryRequest) (Result, error) {
	if len(req.Channels) == 0 {
		return Result{}, ErrNoChannels
	}
	from, to := dayOf(req.From), dayOf(req.To)
	if from > to {
		return Result{}, watch.ErrInvalidRange
	}

	if err := s.historyRuns.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("failed to acquire history slot: %w", err)
	}
	defer s.historyRuns.Release(1)

	var (
		batch = s.notifier.NewBatch()
		scope = matcher.Scope{Watchers: []snowflake.ID{req.WatcherID}}
		p     = pool.New().WithMaxGoroutines(s.historyChannels).WithContext(ctx)
		mu    sync.Mutex
		total Result
	)

	for _, channelID := range req.Channels {
		p.Go(func(ctx context.Context) error {
			res, err := s.fetchChannel(ctx, src, batch, scope, req.GuildID, channelID, from, to)

			mu.Lock()
			total.add(res)
			mu.Unlock()

			if err != nil {
				s.logger.Warn("Failed to fetch channel history",
					zap.Uint64("channelID", uint64(channelID)),
					zap.Error(err))
				return fmt.Errorf("channel %s: %w", channelID, err)
			}
			return nil
		})
	}

	err := p.Wait()

	s.logger.Info("Fetched channel history",
		zap.Uint64("watcherID", uint64(req.WatcherID)),
		zap.Int("channels", len(req.Channels)),
		zap.Int("scanned", total.Scanned),
		zap.Int("matches", total.Matches),
		zap.Int("notified", total.Notified))
	return total, err
}

func (s *Scanner) fetchChannel(
	ctx context.Context, src HistorySource, batch *notifier.Batch, scope matcher.Scope,
	guildID, channelID snowflake.ID, from, to string,
) (Result, error) {
	var total Result

	// Start paging just after the last requested day.
	end, _ := time.Parse(watch.DateLayout, to)
	before := snowflake.New(end.AddDate(0, 0, 1))

	for {
		if err := s.pacer.WaitForNextSlot(ctx); err != nil {
			return total, err
		}

		page, err := utils.WithRetry(ctx, func() ([]*matcher.Message, error) {
			return src.HistoryPage(ctx, guildID, channelID, before, s.pageSize)
		}, s.historyRetry)
		if err != nil {
			return total, fmt.Errorf("failed to fetch history page: %w", err)
		}
		if len(page) == 0 {
			return total, nil
		}

		inRange := make([]*matcher.Message, 0, len(page))
		for _, msg := range page {
			day := dayOf(msg.CreatedAt)
			if day < from || day > to {
				continue
			}
			msg.GuildID = guildID
			msg.ChannelID = channelID
			inRange = append(inRange, msg)
		}

		if len(inRange) > 0 {
			res, err := s.Process(ctx, batch, inRange, scope)
			total.add(res)
			if err != nil {
				return total, err
			}
		}

		oldest := page[len(page)-1]
		if dayOf(oldest.CreatedAt) < from || len(page) < s.pageSize {
			return total, nil
		}
		before = oldest.ID
	}
}
