// Package scanner runs keyword matching over live messages and channel history.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robalyx/wordwatch/internal/matcher"
	"github.com/robalyx/wordwatch/internal/notifier"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/robalyx/wordwatch/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	// MinInterval is the shortest allowed live scan interval.
	MinInterval = time.Second
	// DefaultInterval is the live scan interval used when none is configured.
	DefaultInterval = 5 * time.Second
	// DefaultPageSize is the number of history messages requested per call.
	DefaultPageSize = 100
)

// ErrIntervalTooShort is returned when setting an interval below MinInterval.
var ErrIntervalTooShort = errors.New("scan interval must be at least 1 second")

// Pacer spaces out history requests.
type Pacer interface {
	WaitForNextSlot(ctx context.Context) error
}

// Options configures a Scanner.
type Options struct {
	Interval time.Duration
	// HistoryChannels bounds how many channels one history fetch reads at once.
	HistoryChannels int
	// HistoryRuns bounds how many history fetches run at once across all users.
	HistoryRuns int
	PageSize    int
	// HistoryRetry controls retries of failed history page requests.
	HistoryRetry *utils.RetryOptions
}

// Result summarizes a processed batch.
type Result struct {
	// Scanned is the number of messages handed to the matcher.
	Scanned int
	// Matches is the number of keyword matches logged.
	Matches int
	// Notified is the number of successful subscriber notifications.
	Notified int
}

func (r *Result) add(o Result) {
	r.Scanned += o.Scanned
	r.Matches += o.Matches
	r.Notified += o.Notified
}

// Scanner queues live messages and matches them on a fixed interval.
type Scanner struct {
	state    *state.Manager
	matcher  *matcher.Matcher
	notifier *notifier.Notifier
	pacer    Pacer
	logger   *zap.Logger

	mu    sync.Mutex
	queue []*matcher.Message

	interval atomic.Int64
	reset    chan struct{}

	historyRuns     *semaphore.Weighted
	historyChannels int
	pageSize        int
	historyRetry    utils.RetryOptions
}

// New creates a Scanner.
func New(
	st *state.Manager, m *matcher.Matcher, n *notifier.Notifier, pacer Pacer, opts Options, logger *zap.Logger,
) *Scanner {
	if opts.Interval < MinInterval {
		opts.Interval = DefaultInterval
	}
	if opts.HistoryChannels <= 0 {
		opts.HistoryChannels = 4
	}
	if opts.HistoryRuns <= 0 {
		opts.HistoryRuns = 2
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	retry := utils.GetHistoryRetryOptions()
	if opts.HistoryRetry != nil {
		retry = *opts.HistoryRetry
	}

	s := &Scanner{
		state:           st,
		matcher:         m,
		notifier:        n,
		pacer:           pacer,
		logger:          logger.Named("scanner"),
		reset:           make(chan struct{}, 1),
		historyRuns:     semaphore.NewWeighted(int64(opts.HistoryRuns)),
		historyChannels: opts.HistoryChannels,
		pageSize:        opts.PageSize,
		historyRetry:    retry,
	}
	s.interval.Store(int64(opts.Interval))
	return s
}

// Enqueue adds a live message to the next scan batch.
func (s *Scanner) Enqueue(msg *matcher.Message) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
}

// Pending returns the number of queued messages.
func (s *Scanner) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Interval returns the live scan interval.
func (s *Scanner) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the live scan interval, taking effect on the next tick.
func (s *Scanner) SetInterval(d time.Duration) error {
	if d < MinInterval {
		return ErrIntervalTooShort
	}
	s.interval.Store(int64(d))

	select {
	case s.reset <- struct{}{}:
	default:
	}
	return nil
}

// Run scans queued messages every interval until the context is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	s.logger.Info("Scan loop started", zap.Duration("interval", s.Interval()))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scan loop stopped")
			return
		case <-s.reset:
			ticker.Reset(s.Interval())
			s.logger.Info("Scan interval changed", zap.Duration("interval", s.Interval()))
		case <-ticker.C:
			if _, err := s.Flush(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Failed to scan queued messages", zap.Error(err))
			}
		}
	}
}

// Flush matches every queued message as one live batch.
func (s *Scanner) Flush(ctx context.Context) (Result, error) {
	s.mu.Lock()
	msgs := s.queue
	s.queue = nil
	s.mu.Unlock()

	if len(msgs) == 0 {
		return Result{}, nil
	}

	res, err := s.Process(ctx, s.notifier.NewBatch(), msgs, matcher.Scope{Live: true})
	if err != nil {
		return res, err
	}

	s.logger.Debug("Scanned queued messages",
		zap.Int("scanned", res.Scanned),
		zap.Int("matches", res.Matches),
		zap.Int("notified", res.Notified))
	return res, nil
}

// Process matches msgs on the state owner and then sends notifications for the
// hits through batch.
func (s *Scanner) Process(
	ctx context.Context, batch *notifier.Batch, msgs []*matcher.Message, scope matcher.Scope,
) (Result, error) {
	var hits []matcher.Hit
	err := s.state.Do(ctx, func(d *state.Data) error {
		hits = s.matcher.ApplyAll(d, msgs, scope)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to match messages: %w", err)
	}

	res := Result{Scanned: len(msgs), Matches: len(hits)}
	for _, hit := range hits {
		if !hit.Notify || len(hit.Subscribers) == 0 {
			continue
		}
		res.Notified += batch.NotifyAll(ctx, hit.Subscribers, hit.Keyword, hit.ChannelID)
	}
	return res, nil
}
