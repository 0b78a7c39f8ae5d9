package watch

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const (
	// DateLayout is the layout of message log day keys.
	DateLayout = "2006-01-02"
	// TimestampLayout is the layout of logged message timestamps.
	TimestampLayout = "2006-01-02T15:04:05.000000-07:00"
)

// ErrInvalidRange indicates the start date is after the end date.
var ErrInvalidRange = errors.New("start date is after end date")

// LogEntry is a logged message that matched a keyword.
type LogEntry struct {
	Author    string
	Content   string
	Timestamp string
}

// NewLogEntry creates an entry for a message sent at the given time.
func NewLogEntry(author, content string, sentAt time.Time) LogEntry {
	return LogEntry{
		Author:    author,
		Content:   content,
		Timestamp: sentAt.UTC().Format(TimestampLayout),
	}
}

// LogRow is a log entry with its day and channel.
type LogRow struct {
	Date      string
	ChannelID snowflake.ID
	LogEntry
}

// MessageLog stores matched messages by day then channel, in insertion order.
type MessageLog struct {
	days map[string]map[snowflake.ID][]LogEntry
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{days: make(map[string]map[snowflake.ID][]LogEntry)}
}

// MessageLogFrom builds a log that takes ownership of the given days.
func MessageLogFrom(days map[string]map[snowflake.ID][]LogEntry) *MessageLog {
	l := NewMessageLog()
	for date, channels := range days {
		if channels == nil {
			channels = make(map[snowflake.ID][]LogEntry)
		}
		l.days[date] = channels
	}
	return l
}

// Append logs an entry under the UTC day of sentAt. Duplicates are kept.
func (l *MessageLog) Append(sentAt time.Time, channelID snowflake.ID, entry LogEntry) {
	date := sentAt.UTC().Format(DateLayout)
	channels, ok := l.days[date]
	if !ok {
		channels = make(map[snowflake.ID][]LogEntry)
		l.days[date] = channels
	}
	channels[channelID] = append(channels[channelID], entry)
}

// PurgeKeyword removes every entry whose content contains the keyword, ignoring case.
// It returns the number of removed entries.
func (l *MessageLog) PurgeKeyword(keyword string) int {
	needle := NormalizeKeyword(keyword)
	if needle == "" {
		return 0
	}

	removed := 0
	for _, channels := range l.days {
		for channelID, entries := range channels {
			kept := entries[:0]
			for _, e := range entries {
				if strings.Contains(NormalizeKeyword(e.Content), needle) {
					removed++
					continue
				}
				kept = append(kept, e)
			}
			channels[channelID] = kept
		}
	}
	return removed
}

// Clear drops every entry.
func (l *MessageLog) Clear() {
	clear(l.days)
}

// Len returns the total number of entries.
func (l *MessageLog) Len() int {
	n := 0
	for _, channels := range l.days {
		for _, entries := range channels {
			n += len(entries)
		}
	}
	return n
}

// Dates returns every day key, sorted.
func (l *MessageLog) Dates() []string {
	dates := make([]string, 0, len(l.days))
	for d := range l.days {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates
}

// CountByDate returns the number of entries per day.
func (l *MessageLog) CountByDate() map[string]int {
	out := make(map[string]int, len(l.days))
	for date, channels := range l.days {
		for _, entries := range channels {
			out[date] += len(entries)
		}
	}
	return out
}

// Range returns the rows between two days, both inclusive, ordered by day then
// channel then insertion.
func (l *MessageLog) Range(from, to time.Time) ([]LogRow, error) {
	start := from.UTC().Format(DateLayout)
	end := to.UTC().Format(DateLayout)
	if start > end {
		return nil, ErrInvalidRange
	}

	var rows []LogRow
	for _, date := range l.Dates() {
		if date < start || date > end {
			continue
		}

		channels := l.days[date]
		ids := make([]snowflake.ID, 0, len(channels))
		for id := range channels {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for _, id := range ids {
			for _, e := range channels[id] {
				rows = append(rows, LogRow{Date: date, ChannelID: id, LogEntry: e})
			}
		}
	}
	return rows, nil
}

// Snapshot returns a deep copy of the log.
func (l *MessageLog) Snapshot() map[string]map[snowflake.ID][]LogEntry {
	out := make(map[string]map[snowflake.ID][]LogEntry, len(l.days))
	for date, channels := range l.days {
		c := make(map[snowflake.ID][]LogEntry, len(channels))
		for id, entries := range channels {
			c[id] = slices.Clone(entries)
		}
		out[date] = c
	}
	return out
}
