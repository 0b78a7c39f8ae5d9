// Package watch holds the keyword watch lists, per-user cooldowns and the match log.
// None of the types here are safe for concurrent use; they are owned by the state manager.
package watch

import (
	"errors"
	"slices"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrAlreadyWatching indicates the keyword is already registered for the guild.
	ErrAlreadyWatching = errors.New("keyword is already being watched")
	// ErrKeywordNotFound indicates the keyword is not registered for the guild.
	ErrKeywordNotFound = errors.New("keyword is not being watched")
	// ErrNoWatchList indicates the user has no watch list in the guild.
	ErrNoWatchList = errors.New("no watch list for this guild")
	// ErrEmptyKeyword indicates the keyword is blank after normalization.
	ErrEmptyKeyword = errors.New("keyword is empty")
)

// NormalizeKeyword returns the canonical lowercase form of a keyword.
func NormalizeKeyword(keyword string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(keyword))
}

// Entry is the watch configuration of a single keyword.
type Entry struct {
	// Channels restricts matching to these channels. Empty means every channel.
	Channels map[snowflake.ID]struct{}
	// LastAlerted is the unix time the cooldown gate last opened. Unenforced
	// and history matches move it to the newest matched message.
	LastAlerted int64
	// NotifyUsers are the subscribers that get a DM on a match.
	NotifyUsers []snowflake.ID
}

// NewEntry creates an entry filtered to the given channels.
func NewEntry(channels ...snowflake.ID) *Entry {
	e := &Entry{Channels: make(map[snowflake.ID]struct{}, len(channels))}
	for _, id := range channels {
		e.Channels[id] = struct{}{}
	}
	return e
}

// WatchesChannel reports whether matches in the channel count for this entry.
func (e *Entry) WatchesChannel(channelID snowflake.ID) bool {
	if len(e.Channels) == 0 {
		return true
	}
	_, ok := e.Channels[channelID]
	return ok
}

// ChannelIDs returns the channel filter sorted ascending.
func (e *Entry) ChannelIDs() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(e.Channels))
	for id := range e.Channels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := NewEntry(e.ChannelIDs()...)
	c.LastAlerted = e.LastAlerted
	c.NotifyUsers = slices.Clone(e.NotifyUsers)
	return c
}

// GuildWatchList maps a lowercase keyword to its entry.
type GuildWatchList map[string]*Entry

// UserWatchList maps a guild to the keywords a user watches there.
type UserWatchList map[snowflake.ID]GuildWatchList

// Summary describes one user's keywords in one guild.
type Summary struct {
	UserID   snowflake.ID
	GuildID  snowflake.ID
	Keywords []string
}
