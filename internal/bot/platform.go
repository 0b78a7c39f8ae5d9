package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/matcher"
	"github.com/robalyx/wordwatch/internal/notifier"
	"go.uber.org/zap"
)

const unknownAuthor = "Unknown"

// Platform implements the Discord calls made outside of replies: DMs for the
// notifier, history pages for the scanner and lookups for the commands.
type Platform struct {
	client bot.Client
	logger *zap.Logger
}

// SendDirect opens a DM channel with the user and sends content.
func (p *Platform) SendDirect(ctx context.Context, userID snowflake.ID, content string) (notifier.Handle, error) {
	channel, err := p.client.Rest().CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return notifier.Handle{}, fmt.Errorf("failed to open DM channel: %w", err)
	}
	msg, err := p.client.Rest().CreateMessage(channel.ID(), discord.MessageCreate{Content: content}, rest.WithCtx(ctx))
	if err != nil {
		return notifier.Handle{}, fmt.Errorf("failed to send DM: %w", err)
	}
	return notifier.Handle{ChannelID: channel.ID(), MessageID: msg.ID}, nil
}

// EditDirect replaces the content of a sent DM.
func (p *Platform) EditDirect(ctx context.Context, handle notifier.Handle, content string) error {
	_, err := p.client.Rest().UpdateMessage(handle.ChannelID, handle.MessageID,
		discord.MessageUpdate{Content: &content}, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to edit DM: %w", err)
	}
	return nil
}

// HistoryPage returns up to limit messages older than before, newest first.
// REST messages carry no member, so authors are resolved through MemberName.
func (p *Platform) HistoryPage(
	ctx context.Context, guildID, channelID, before snowflake.ID, limit int,
) ([]*matcher.Message, error) {
	msgs, err := p.client.Rest().GetMessages(channelID, 0, before, 0, limit, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}

	names := memberNames(ctx, msgs, func(ctx context.Context, userID snowflake.ID) (string, error) {
		return p.MemberName(ctx, guildID, userID)
	})

	page := make([]*matcher.Message, len(msgs))
	for i, msg := range msgs {
		page[i] = toMessage(msg, guildID)
		if name, ok := names[msg.Author.ID]; ok {
			page[i].AuthorName = name
		}
	}
	return page, nil
}

// memberNames looks up each distinct author that arrived without member data.
// Authors that are no longer members are named unknownAuthor.
func memberNames(
	ctx context.Context, msgs []discord.Message, lookup func(context.Context, snowflake.ID) (string, error),
) map[snowflake.ID]string {
	names := make(map[snowflake.ID]string)
	for _, msg := range msgs {
		if msg.Member != nil {
			continue
		}
		if _, ok := names[msg.Author.ID]; ok {
			continue
		}
		name, err := lookup(ctx, msg.Author.ID)
		if err != nil || name == "" {
			name = unknownAuthor
		}
		names[msg.Author.ID] = name
	}
	return names
}

// TextChannels lists the text channels of a guild.
func (p *Platform) TextChannels(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error) {
	channels, err := p.client.Rest().GetGuildChannels(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}

	var ids []snowflake.ID
	for _, ch := range channels {
		if ch.Type() == discord.ChannelTypeGuildText {
			ids = append(ids, ch.ID())
		}
	}
	return ids, nil
}

// UserName returns a user's global name, or the username when unset.
func (p *Platform) UserName(ctx context.Context, userID snowflake.ID) (string, error) {
	user, err := p.client.Rest().GetUser(userID, rest.WithCtx(ctx))
	if err != nil {
		return "", err
	}
	return displayName(*user, nil), nil
}

// MemberName returns a member's display name, from the cache when possible.
func (p *Platform) MemberName(ctx context.Context, guildID, userID snowflake.ID) (string, error) {
	if member, ok := p.client.Caches().Member(guildID, userID); ok {
		return displayName(member.User, &member), nil
	}
	member, err := p.client.Rest().GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return "", err
	}
	return displayName(member.User, member), nil
}

// RoleName returns the name of a guild role.
func (p *Platform) RoleName(ctx context.Context, guildID, roleID snowflake.ID) (string, error) {
	if role, ok := p.client.Caches().Role(guildID, roleID); ok {
		return role.Name, nil
	}
	roles, err := p.client.Rest().GetRoles(guildID, rest.WithCtx(ctx))
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role.Name, nil
		}
	}
	return "", nil
}

// ClearOwnMessages deletes the bot's messages among the last limit messages.
func (p *Platform) ClearOwnMessages(ctx context.Context, channelID snowflake.ID, limit int) (int, error) {
	msgs, err := p.client.Rest().GetMessages(channelID, 0, 0, 0, limit, rest.WithCtx(ctx))
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, msg := range msgs {
		if msg.Author.ID != p.client.ID() {
			continue
		}
		if err := p.client.Rest().DeleteMessage(channelID, msg.ID, rest.WithCtx(ctx)); err != nil {
			p.logger.Warn("Failed to delete message", zap.Uint64("message_id", uint64(msg.ID)), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
