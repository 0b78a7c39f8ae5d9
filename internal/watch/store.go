package watch

import (
	"slices"

	"github.com/disgoorg/snowflake/v2"
)

// Store is the user -> guild -> keyword watch registry.
type Store struct {
	users map[snowflake.ID]UserWatchList
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{users: make(map[snowflake.ID]UserWatchList)}
}

// guild returns the guild list of a user, creating both levels when create is set.
func (s *Store) guild(userID, guildID snowflake.ID, create bool) (GuildWatchList, bool) {
	user, ok := s.users[userID]
	if !ok {
		if !create {
			return nil, false
		}
		user = make(UserWatchList)
		s.users[userID] = user
	}

	list, ok := user[guildID]
	if !ok {
		if !create {
			return nil, false
		}
		list = make(GuildWatchList)
		user[guildID] = list
	}
	return list, true
}

func (s *Store) entry(userID, guildID snowflake.ID, keyword string) (*Entry, error) {
	list, ok := s.guild(userID, guildID, false)
	if !ok {
		return nil, ErrKeywordNotFound
	}
	e, ok := list[NormalizeKeyword(keyword)]
	if !ok {
		return nil, ErrKeywordNotFound
	}
	return e, nil
}

// AddKeyword registers a keyword, optionally restricted to channels.
// It returns the normalized keyword and never overwrites an existing entry.
func (s *Store) AddKeyword(userID, guildID snowflake.ID, keyword string, channels ...snowflake.ID) (string, error) {
	key := NormalizeKeyword(keyword)
	if key == "" {
		return "", ErrEmptyKeyword
	}

	list, _ := s.guild(userID, guildID, true)
	if _, exists := list[key]; exists {
		return key, ErrAlreadyWatching
	}

	list[key] = NewEntry(channels...)
	return key, nil
}

// RemoveKeyword deletes a keyword entry.
func (s *Store) RemoveKeyword(userID, guildID snowflake.ID, keyword string) error {
	list, ok := s.guild(userID, guildID, false)
	key := NormalizeKeyword(keyword)
	if !ok {
		return ErrKeywordNotFound
	}
	if _, exists := list[key]; !exists {
		return ErrKeywordNotFound
	}
	delete(list, key)
	return nil
}

// ClearAll empties the user's watch list in the guild.
func (s *Store) ClearAll(userID, guildID snowflake.ID) error {
	user, ok := s.users[userID]
	if !ok {
		return ErrNoWatchList
	}
	if _, ok := user[guildID]; !ok {
		return ErrNoWatchList
	}
	user[guildID] = make(GuildWatchList)
	return nil
}

// AddChannelFilter adds channels to a keyword's filter.
func (s *Store) AddChannelFilter(userID, guildID snowflake.ID, keyword string, channels ...snowflake.ID) error {
	e, err := s.entry(userID, guildID, keyword)
	if err != nil {
		return err
	}
	for _, id := range channels {
		e.Channels[id] = struct{}{}
	}
	return nil
}

// RemoveChannelFilter removes channels from a keyword's filter.
// Removing the last channel makes the keyword match everywhere again.
func (s *Store) RemoveChannelFilter(userID, guildID snowflake.ID, keyword string, channels ...snowflake.ID) error {
	e, err := s.entry(userID, guildID, keyword)
	if err != nil {
		return err
	}
	for _, id := range channels {
		delete(e.Channels, id)
	}
	return nil
}

// ClearChannelFilters removes every channel from a keyword's filter.
func (s *Store) ClearChannelFilters(userID, guildID snowflake.ID, keyword string) error {
	e, err := s.entry(userID, guildID, keyword)
	if err != nil {
		return err
	}
	clear(e.Channels)
	return nil
}

// AddSubscribers appends subscribers to a keyword and returns those that were new.
func (s *Store) AddSubscribers(userID, guildID snowflake.ID, keyword string, subscribers ...snowflake.ID) ([]snowflake.ID, error) {
	e, err := s.entry(userID, guildID, keyword)
	if err != nil {
		return nil, err
	}

	var added []snowflake.ID
	for _, id := range subscribers {
		if slices.Contains(e.NotifyUsers, id) {
			continue
		}
		e.NotifyUsers = append(e.NotifyUsers, id)
		added = append(added, id)
	}
	return added, nil
}

// RemoveSubscribers removes subscribers from a keyword and returns those that were present.
func (s *Store) RemoveSubscribers(userID, guildID snowflake.ID, keyword string, subscribers ...snowflake.ID) ([]snowflake.ID, error) {
	e, err := s.entry(userID, guildID, keyword)
	if err != nil {
		return nil, err
	}

	var removed []snowflake.ID
	for _, id := range subscribers {
		idx := slices.Index(e.NotifyUsers, id)
		if idx < 0 {
			continue
		}
		e.NotifyUsers = slices.Delete(e.NotifyUsers, idx, idx+1)
		removed = append(removed, id)
	}
	return removed, nil
}

// Entry returns a copy of a keyword entry.
func (s *Store) Entry(userID, guildID snowflake.ID, keyword string) (*Entry, error) {
	e, err := s.entry(userID, guildID, keyword)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// Keywords returns the user's keywords in a guild, sorted.
func (s *Store) Keywords(userID, guildID snowflake.ID) []string {
	list, ok := s.guild(userID, guildID, false)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(list))
	for k := range list {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GuildList returns the live keyword map of a user in a guild.
// Callers may update entries but must not retain the map.
func (s *Store) GuildList(userID, guildID snowflake.ID) (GuildWatchList, bool) {
	return s.guild(userID, guildID, false)
}

// Users returns every user with a watch list, sorted.
func (s *Store) Users() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// WatchersIn returns the users that have a watch list in the guild, sorted.
func (s *Store) WatchersIn(guildID snowflake.ID) []snowflake.ID {
	var ids []snowflake.ID
	for userID, user := range s.users {
		if _, ok := user[guildID]; ok {
			ids = append(ids, userID)
		}
	}
	slices.Sort(ids)
	return ids
}

// Summary lists every user's keywords per guild, ordered by user then guild.
func (s *Store) Summary() []Summary {
	var out []Summary
	for _, userID := range s.Users() {
		user := s.users[userID]
		guilds := make([]snowflake.ID, 0, len(user))
		for guildID := range user {
			guilds = append(guilds, guildID)
		}
		slices.Sort(guilds)

		for _, guildID := range guilds {
			out = append(out, Summary{
				UserID:   userID,
				GuildID:  guildID,
				Keywords: s.Keywords(userID, guildID),
			})
		}
	}
	return out
}

// Snapshot returns a deep copy of every watch list.
func (s *Store) Snapshot() map[snowflake.ID]UserWatchList {
	out := make(map[snowflake.ID]UserWatchList, len(s.users))
	for userID, user := range s.users {
		u := make(UserWatchList, len(user))
		for guildID, list := range user {
			g := make(GuildWatchList, len(list))
			for k, e := range list {
				g[k] = e.Clone()
			}
			u[guildID] = g
		}
		out[userID] = u
	}
	return out
}

// StoreFrom builds a store that takes ownership of the given watch lists.
// Keys are normalized; empty user and guild maps are kept.
func StoreFrom(users map[snowflake.ID]UserWatchList) *Store {
	s := NewStore()
	for userID, user := range users {
		u := make(UserWatchList, len(user))
		for guildID, list := range user {
			g := make(GuildWatchList, len(list))
			for k, e := range list {
				if e.Channels == nil {
					e.Channels = make(map[snowflake.ID]struct{})
				}
				g[NormalizeKeyword(k)] = e
			}
			u[guildID] = g
		}
		s.users[userID] = u
	}
	return s
}
