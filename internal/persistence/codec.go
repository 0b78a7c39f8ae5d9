package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/watch"
)

// codec writes UTF-8 JSON with sorted keys and without HTML escaping, and keeps
// numbers exact when reading legacy documents.
var codec = sonic.Config{
	SortMapKeys:    true,
	EscapeHTML:     false,
	UseNumber:      true,
	CopyString:     true,
	ValidateString: true,
}.Froze()

const indent = "    "

// idList is a list of snowflakes written as decimal strings. Reading also accepts
// plain numbers and the legacy {"<id>": -1} object form.
type idList []string

func (l *idList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = idList{}
		return nil
	case len(data) > 0 && data[0] == '{':
		var legacy map[string]any
		if err := codec.Unmarshal(data, &legacy); err != nil {
			return err
		}
		out := make(idList, 0, len(legacy))
		for k := range legacy {
			out = append(out, k)
		}
		slices.Sort(out)
		*l = out
		return nil
	}

	var raw []any
	if err := codec.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(idList, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case string:
			out = append(out, id)
		case json.Number:
			out = append(out, id.String())
		default:
			return fmt.Errorf("%w: unexpected id %v", ErrMalformed, v)
		}
	}
	*l = out
	return nil
}

func parseIDs(l idList) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(l))
	for _, s := range l {
		id, err := snowflake.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid id %q", ErrMalformed, s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatIDs(ids []snowflake.ID) idList {
	out := make(idList, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

type entryDocument struct {
	Channels    idList `json:"channels"`
	LastAlerted int64  `json:"last_alerted"`
	NotifyUsers idList `json:"notify_users"`
}

type logEntryDocument struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// user -> guild -> keyword -> entry
type watchesDocument map[string]map[string]map[string]entryDocument

// user -> seconds
type cooldownsDocument map[string]int64

// day -> channel -> entries
type logDocument map[string]map[string][]logEntryDocument

func encode(v any) ([]byte, error) {
	return codec.MarshalIndent(v, "", indent)
}

func encodeWatches(users map[snowflake.ID]watch.UserWatchList) ([]byte, error) {
	doc := make(watchesDocument, len(users))
	for userID, guilds := range users {
		g := make(map[string]map[string]entryDocument, len(guilds))
		for guildID, list := range guilds {
			k := make(map[string]entryDocument, len(list))
			for keyword, e := range list {
				k[keyword] = entryDocument{
					Channels:    formatIDs(e.ChannelIDs()),
					LastAlerted: e.LastAlerted,
					NotifyUsers: formatIDs(e.NotifyUsers),
				}
			}
			g[guildID.String()] = k
		}
		doc[userID.String()] = g
	}
	return encode(doc)
}

func decodeWatches(data []byte) (map[snowflake.ID]watch.UserWatchList, error) {
	var doc watchesDocument
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	users := make(map[snowflake.ID]watch.UserWatchList, len(doc))
	for userKey, guilds := range doc {
		userID, err := snowflake.Parse(userKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid user id %q", ErrMalformed, userKey)
		}

		u := make(watch.UserWatchList, len(guilds))
		for guildKey, keywords := range guilds {
			guildID, err := snowflake.Parse(guildKey)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid guild id %q", ErrMalformed, guildKey)
			}

			list := make(watch.GuildWatchList, len(keywords))
			for keyword, e := range keywords {
				channels, err := parseIDs(e.Channels)
				if err != nil {
					return nil, err
				}
				subscribers, err := parseIDs(e.NotifyUsers)
				if err != nil {
					return nil, err
				}

				entry := watch.NewEntry(channels...)
				entry.LastAlerted = e.LastAlerted
				for _, id := range subscribers {
					if !slices.Contains(entry.NotifyUsers, id) {
						entry.NotifyUsers = append(entry.NotifyUsers, id)
					}
				}
				list[keyword] = entry
			}
			u[guildID] = list
		}
		users[userID] = u
	}
	return users, nil
}

func encodeCooldowns(seconds map[snowflake.ID]int64) ([]byte, error) {
	doc := make(cooldownsDocument, len(seconds))
	for userID, s := range seconds {
		doc[userID.String()] = s
	}
	return encode(doc)
}

func decodeCooldowns(data []byte) (map[snowflake.ID]int64, error) {
	var doc cooldownsDocument
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	out := make(map[snowflake.ID]int64, len(doc))
	for userKey, s := range doc {
		userID, err := snowflake.Parse(userKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid user id %q", ErrMalformed, userKey)
		}
		out[userID] = s
	}
	return out, nil
}

func encodeLog(days map[string]map[snowflake.ID][]watch.LogEntry) ([]byte, error) {
	doc := make(logDocument, len(days))
	for date, channels := range days {
		c := make(map[string][]logEntryDocument, len(channels))
		for channelID, entries := range channels {
			list := make([]logEntryDocument, 0, len(entries))
			for _, e := range entries {
				list = append(list, logEntryDocument{Author: e.Author, Content: e.Content, Timestamp: e.Timestamp})
			}
			c[channelID.String()] = list
		}
		doc[date] = c
	}
	return encode(doc)
}

func decodeLog(data []byte) (map[string]map[snowflake.ID][]watch.LogEntry, error) {
	var doc logDocument
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	out := make(map[string]map[snowflake.ID][]watch.LogEntry, len(doc))
	for date, channels := range doc {
		c := make(map[snowflake.ID][]watch.LogEntry, len(channels))
		for channelKey, entries := range channels {
			channelID, err := snowflake.Parse(channelKey)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid channel id %q", ErrMalformed, channelKey)
			}
			list := make([]watch.LogEntry, 0, len(entries))
			for _, e := range entries {
				list = append(list, watch.LogEntry{Author: e.Author, Content: e.Content, Timestamp: e.Timestamp})
			}
			c[channelID] = list
		}
		out[date] = c
	}
	return out, nil
}
