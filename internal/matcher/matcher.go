// Package matcher decides which watched keywords a message triggers.
package matcher

import (
	"regexp"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/robalyx/wordwatch/internal/watch"
	"go.uber.org/zap"
)

// allowedStickers are the sticker formats that do not cause a message to be skipped.
var allowedStickers = []discord.StickerFormatType{
	discord.StickerFormatTypePNG,
	discord.StickerFormatTypeAPNG,
	discord.StickerFormatTypeLottie,
}

// Message is the subset of a chat message the matcher needs.
type Message struct {
	ID         snowflake.ID
	GuildID    snowflake.ID
	ChannelID  snowflake.ID
	AuthorID   snowflake.ID
	AuthorName string
	Content    string
	CreatedAt  time.Time
	Stickers   []discord.StickerFormatType
}

// Scope narrows a matching pass.
type Scope struct {
	// Watchers limits matching to these users. Empty means every watcher in the guild.
	Watchers []snowflake.ID
	// Live marks messages from the live feed. Only live matches are cooldown gated.
	Live bool
}

// Hit is a keyword that matched a message.
type Hit struct {
	WatcherID   snowflake.ID
	Keyword     string
	ChannelID   snowflake.ID
	Subscribers []snowflake.ID
	// Notify is false when the watcher's cooldown suppressed the notification.
	Notify bool
}

// Options configures a Matcher.
type Options struct {
	BotID           snowflake.ID
	Prefix          string
	EnforceCooldown bool
}

// Matcher matches messages against watch lists.
// Patterns are cached per keyword until a batch no longer checks them, and
// the cache is safe for concurrent use.
type Matcher struct {
	opts     Options
	logger   *zap.Logger
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// New creates a Matcher.
func New(opts Options, logger *zap.Logger) *Matcher {
	return &Matcher{
		opts:     opts,
		logger:   logger.Named("matcher"),
		patterns: make(map[string]*regexp.Regexp),
	}
}

// SetBotID sets the author whose messages are always skipped.
func (m *Matcher) SetBotID(id snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.BotID = id
}

// Skip reports whether a message is excluded from matching altogether.
func (m *Matcher) Skip(msg *Message) bool {
	m.mu.Lock()
	botID := m.opts.BotID
	m.mu.Unlock()

	if botID != 0 && msg.AuthorID == botID {
		return true
	}
	if m.opts.Prefix != "" && strings.HasPrefix(msg.Content, m.opts.Prefix) {
		return true
	}
	for _, format := range msg.Stickers {
		if !slices.Contains(allowedStickers, format) {
			return true
		}
	}
	return false
}

// retain drops cached patterns for keywords no longer checked by any watch list.
func (m *Matcher) retain(keywords map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.patterns {
		if _, ok := keywords[k]; !ok {
			delete(m.patterns, k)
		}
	}
}

func (m *Matcher) pattern(keyword string) *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()

	re, ok := m.patterns[keyword]
	if !ok {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(keyword))
		m.patterns[keyword] = re
	}
	return re
}

// Contains reports whether keyword occurs in content as a whole word, ignoring case.
// Word boundaries follow \b semantics over Unicode letters, digits and underscore.
func (m *Matcher) Contains(content, keyword string) bool {
	if keyword == "" {
		return false
	}
	re := m.pattern(keyword)

	for offset := 0; offset <= len(content); {
		loc := re.FindStringIndex(content[offset:])
		if loc == nil {
			return false
		}
		start, end := offset+loc[0], offset+loc[1]
		if atBoundary(content, start) && atBoundary(content, end) {
			return true
		}

		// Retry one rune past this candidate to catch overlapping occurrences.
		_, size := utf8.DecodeRuneInString(content[start:])
		offset = start + max(size, 1)
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// atBoundary reports whether a \b boundary sits at byte offset i.
func atBoundary(s string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		before = isWordRune(r)
	}
	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		after = isWordRune(r)
	}
	return before != after
}

// Apply matches msg against the watch lists, appending a log entry per matching
// keyword and advancing last-alerted times. It must run on the state owner.
func (m *Matcher) Apply(d *state.Data, msg *Message, scope Scope) []Hit {
	return m.apply(d, msg, scope, newBatch())
}

// ApplyAll runs Apply over every message as one batch. A keyword whose cooldown
// gate opens stays open for the rest of the batch, and a live batch drops cached
// patterns it did not check. A panic while matching one message is logged and
// the remaining messages are still processed.
func (m *Matcher) ApplyAll(d *state.Data, msgs []*Message, scope Scope) []Hit {
	b := newBatch()
	var hits []Hit
	for _, msg := range msgs {
		hits = append(hits, m.applySafe(d, msg, scope, b)...)
	}
	if scope.Live {
		m.retain(b.keywords)
	}
	return hits
}

type gateKey struct {
	watcherID snowflake.ID
	keyword   string
}

// batch tracks cooldown gates opened and keywords checked during one matching pass.
type batch struct {
	opened   map[gateKey]struct{}
	keywords map[string]struct{}
}

func newBatch() *batch {
	return &batch{
		opened:   make(map[gateKey]struct{}),
		keywords: make(map[string]struct{}),
	}
}

func (m *Matcher) apply(d *state.Data, msg *Message, scope Scope, b *batch) []Hit {
	if m.Skip(msg) {
		return nil
	}

	watchers := scope.Watchers
	if len(watchers) == 0 {
		watchers = d.Watches.WatchersIn(msg.GuildID)
	}

	ts := msg.CreatedAt.Unix()
	var hits []Hit
	for _, watcherID := range watchers {
		list, ok := d.Watches.GuildList(watcherID, msg.GuildID)
		if !ok {
			continue
		}

		keywords := make([]string, 0, len(list))
		for k := range list {
			keywords = append(keywords, k)
		}
		slices.Sort(keywords)

		for _, keyword := range keywords {
			b.keywords[keyword] = struct{}{}
			entry := list[keyword]
			if !entry.WatchesChannel(msg.ChannelID) || !m.Contains(msg.Content, keyword) {
				continue
			}

			d.Log.Append(msg.CreatedAt, msg.ChannelID, watch.NewLogEntry(msg.AuthorName, msg.Content, msg.CreatedAt))

			notify := true
			if scope.Live && m.opts.EnforceCooldown {
				notify = b.gate(watcherID, keyword, entry, ts, d.Cooldowns.Get(watcherID))
			} else if ts > entry.LastAlerted {
				entry.LastAlerted = ts
			}

			hits = append(hits, Hit{
				WatcherID:   watcherID,
				Keyword:     keyword,
				ChannelID:   msg.ChannelID,
				Subscribers: slices.Clone(entry.NotifyUsers),
				Notify:      notify,
			})
		}
	}
	return hits
}

// gate reports whether a live match at ts may notify. LastAlerted only advances
// when the gate opens, so suppressed matches never extend the cooldown.
func (b *batch) gate(watcherID snowflake.ID, keyword string, entry *watch.Entry, ts, cooldown int64) bool {
	key := gateKey{watcherID: watcherID, keyword: keyword}
	if _, ok := b.opened[key]; ok {
		return true
	}
	if ts-entry.LastAlerted < cooldown {
		return false
	}
	b.opened[key] = struct{}{}
	entry.LastAlerted = max(entry.LastAlerted, ts)
	return true
}

func (m *Matcher) applySafe(d *state.Data, msg *Message, scope Scope, b *batch) (hits []Hit) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Recovered from panic while matching message",
				zap.Uint64("messageID", uint64(msg.ID)),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			hits = nil
		}
	}()
	return m.apply(d, msg, scope, b)
}
