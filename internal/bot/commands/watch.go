package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/robalyx/wordwatch/internal/watch"
	"github.com/robalyx/wordwatch/pkg/utils"
	"go.uber.org/zap"
)

// lastSeenLayout formats the last alert time in worddetail.
const lastSeenLayout = "2006-01-02 15:04:05"

// notWatched converts a missing keyword into the reply for word.
func notWatched(err error, word string) error {
	if errors.Is(err, watch.ErrKeywordNotFound) || errors.Is(err, watch.ErrNoWatchList) {
		return userErrorf("Word '%s' is not in your watch list.", word)
	}
	return err
}

func channelMentions(ids []snowflake.ID) string {
	mentions := make([]string, len(ids))
	for i, id := range ids {
		mentions[i] = "<#" + id.String() + ">"
	}
	return strings.Join(mentions, ", ")
}

func (h *Handler) channelArgs(args []string) ([]snowflake.ID, error) {
	ids, err := parseAll(args, ParseChannel)
	if errors.Is(err, ErrInvalidMention) {
		return nil, userErrorf("Please mention channels like #general. %s", err)
	}
	return ids, err
}

func (h *Handler) memberArgs(args []string) ([]snowflake.ID, error) {
	ids, err := parseAll(args, ParseUser)
	if errors.Is(err, ErrInvalidMention) {
		return nil, userErrorf("Please mention members like @someone. %s", err)
	}
	return ids, err
}

// memberNames resolves display names, falling back to mentions.
func (h *Handler) memberNames(ctx context.Context, guildID snowflake.ID, ids []snowflake.ID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		name, err := h.Platform.MemberName(ctx, guildID, id)
		if err != nil || name == "" {
			name = "<@" + id.String() + ">"
		}
		names[i] = name
	}
	return strings.Join(names, ", ")
}

func (h *Handler) watched(ctx context.Context, c *Context) error {
	keywords, err := state.Query(ctx, h.State, func(d *state.Data) ([]string, error) {
		return d.Watches.Keywords(c.AuthorID, c.GuildID), nil
	})
	if err != nil {
		return err
	}
	if len(keywords) == 0 {
		return c.Reply(ctx, "You have no watched words.")
	}
	return c.Reply(ctx, utils.Truncate("Your watched words: "+strings.Join(keywords, ", "), maxReply))
}

func (h *Handler) watchWord(ctx context.Context, c *Context) error {
	word := c.Arg(0)
	channels, err := h.channelArgs(c.Args[1:])
	if err != nil {
		return err
	}

	err = h.State.Do(ctx, func(d *state.Data) error {
		_, err := d.Watches.AddKeyword(c.AuthorID, c.GuildID, word, channels...)
		return err
	})
	switch {
	case errors.Is(err, watch.ErrAlreadyWatching):
		return userErrorf("Word '%s' is already in your watch list.", word)
	case errors.Is(err, watch.ErrEmptyKeyword):
		return userErrorf("Please provide a word to watch.")
	case err != nil:
		return err
	}

	if len(channels) == 0 {
		return c.Reply(ctx, fmt.Sprintf("Word '%s' has been added to your watch list in all channels.", word))
	}
	return c.Reply(ctx, fmt.Sprintf("Word '%s' has been added to your watch list in the specified channels.", word))
}

// deleteWord removes a keyword and purges log entries that mention it.
func (h *Handler) deleteWord(ctx context.Context, c *Context) error {
	word := c.Arg(0)

	var purged int
	err := h.State.Do(ctx, func(d *state.Data) error {
		if err := d.Watches.RemoveKeyword(c.AuthorID, c.GuildID, word); err != nil {
			return err
		}
		purged = d.Log.PurgeKeyword(watch.NormalizeKeyword(word))
		return nil
	})
	if err != nil {
		return notWatched(err, word)
	}

	h.logger.Debug("Keyword deleted",
		zap.String("keyword", word),
		zap.Int("purged_entries", purged))
	return c.Reply(ctx, fmt.Sprintf("Word '%s' has been removed from your watch list and its logs have been cleared.", word))
}

func (h *Handler) watchClear(ctx context.Context, c *Context) error {
	err := h.State.Do(ctx, func(d *state.Data) error {
		return d.Watches.ClearAll(c.AuthorID, c.GuildID)
	})
	if errors.Is(err, watch.ErrNoWatchList) {
		return userErrorf("You have no watched words to clear.")
	}
	if err != nil {
		return err
	}
	return c.Reply(ctx, "Your watch list has been cleared.")
}

func (h *Handler) cooldown(ctx context.Context, c *Context) error {
	minutes := watch.DefaultCooldownSeconds / 60
	if arg := c.Arg(0); arg != "" {
		n, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return userErrorf("Cooldown must be a whole number of minutes.")
		}
		minutes = n
	}
	if minutes < 0 {
		return userErrorf("Cooldown cannot be negative.")
	}

	err := h.State.Do(ctx, func(d *state.Data) error {
		d.Cooldowns.Set(c.AuthorID, minutes)
		return nil
	})
	if err != nil {
		return err
	}
	return c.Reply(ctx, fmt.Sprintf("Notification cooldown set to %d minutes.", minutes))
}

type wordDetail struct {
	entry    *watch.Entry
	cooldown int64
}

func (h *Handler) wordDetail(ctx context.Context, c *Context) error {
	word := c.Arg(0)
	detail, err := state.Query(ctx, h.State, func(d *state.Data) (wordDetail, error) {
		e, err := d.Watches.Entry(c.AuthorID, c.GuildID, word)
		if err != nil {
			return wordDetail{}, err
		}
		return wordDetail{entry: e, cooldown: d.Cooldowns.Get(c.AuthorID)}, nil
	})
	if err != nil {
		return notWatched(err, word)
	}

	where := "all channels"
	if ids := detail.entry.ChannelIDs(); len(ids) > 0 {
		where = channelMentions(ids)
	}
	lastSeen := "never"
	if detail.entry.LastAlerted > 0 {
		lastSeen = time.Unix(detail.entry.LastAlerted, 0).UTC().Format(lastSeenLayout) + " UTC"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Word '%s' is being watched in: %s\nLast seen: %s", word, where, lastSeen)
	fmt.Fprintf(&b, "\nCooldown: %d minutes", detail.cooldown/60)
	if len(detail.entry.NotifyUsers) > 0 {
		fmt.Fprintf(&b, "\nNotifying: %s", h.memberNames(ctx, c.GuildID, detail.entry.NotifyUsers))
	}
	return c.Reply(ctx, utils.Truncate(b.String(), maxReply))
}

func (h *Handler) addFilter(ctx context.Context, c *Context) error {
	word := c.Arg(0)
	channels, err := h.channelArgs(c.Args[1:])
	if err != nil {
		return err
	}

	err = h.State.Do(ctx, func(d *state.Data) error {
		return d.Watches.AddChannelFilter(c.AuthorID, c.GuildID, word, channels...)
	})
	if err != nil {
		return notWatched(err, word)
	}
	return c.Reply(ctx, fmt.Sprintf("Filters have been added to the word '%s' for the specified channels.", word))
}

func (h *Handler) deleteFilter(ctx context.Context, c *Context) error {
	word := c.Arg(0)
	channels, err := h.channelArgs(c.Args[1:])
	if err != nil {
		return err
	}

	err = h.State.Do(ctx, func(d *state.Data) error {
		return d.Watches.RemoveChannelFilter(c.AuthorID, c.GuildID, word, channels...)
	})
	if err != nil {
		return notWatched(err, word)
	}
	return c.Reply(ctx, fmt.Sprintf("Filters have been removed from the word '%s' for the specified channels.", word))
}

func (h *Handler) clearFilter(ctx context.Context, c *Context) error {
	word := c.Arg(0)
	err := h.State.Do(ctx, func(d *state.Data) error {
		return d.Watches.ClearChannelFilters(c.AuthorID, c.GuildID, word)
	})
	if err != nil {
		return notWatched(err, word)
	}
	return c.Reply(ctx, fmt.Sprintf("All filters have been cleared for the word '%s'. It is now watched in all channels.", word))
}

func (h *Handler) addNotify(ctx context.Context, c *Context) error {
	word := watch.NormalizeKeyword(c.Arg(0))
	members, err := h.memberArgs(c.Args[1:])
	if err != nil {
		return err
	}

	added, err := state.Query(ctx, h.State, func(d *state.Data) ([]snowflake.ID, error) {
		return d.Watches.AddSubscribers(c.AuthorID, c.GuildID, word, members...)
	})
	if errors.Is(err, watch.ErrKeywordNotFound) {
		return userErrorf("'%s' is not being watched.", word)
	}
	if err != nil {
		return err
	}

	if len(added) == 0 {
		return c.Reply(ctx, "No new members were added.")
	}
	return c.Reply(ctx, fmt.Sprintf("Added %s to notifications for '%s'.", h.memberNames(ctx, c.GuildID, added), word))
}

func (h *Handler) removeNotify(ctx context.Context, c *Context) error {
	word := watch.NormalizeKeyword(c.Arg(0))
	members, err := h.memberArgs(c.Args[1:])
	if err != nil {
		return err
	}

	removed, err := state.Query(ctx, h.State, func(d *state.Data) ([]snowflake.ID, error) {
		return d.Watches.RemoveSubscribers(c.AuthorID, c.GuildID, word, members...)
	})
	if errors.Is(err, watch.ErrKeywordNotFound) {
		return userErrorf("'%s' is not being watched.", word)
	}
	if err != nil {
		return err
	}

	if len(removed) == 0 {
		return c.Reply(ctx, "No members were removed.")
	}
	return c.Reply(ctx, fmt.Sprintf("Removed %s from notifications for '%s'.", h.memberNames(ctx, c.GuildID, removed), word))
}
