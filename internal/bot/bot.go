// Package bot connects the command router and scanner to the Discord gateway.
package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/bot/commands"
	"github.com/robalyx/wordwatch/internal/bot/constants"
	"github.com/robalyx/wordwatch/internal/matcher"
	"github.com/robalyx/wordwatch/internal/scanner"
	"go.uber.org/zap"
)

// Router dispatches command messages.
type Router interface {
	Parse(content string) (string, []string, bool)
	Dispatch(ctx context.Context, content string, c *commands.Context) bool
}

// Bot owns the Discord client and routes gateway events.
type Bot struct {
	client   bot.Client
	router   Router
	scanner  *scanner.Scanner
	matcher  *matcher.Matcher
	confirms *confirmations
	ctx      context.Context
	logger   *zap.Logger
}

// New creates the Discord client. Events are not received until Start.
func New(token, prefix string, logger *zap.Logger) (*Bot, error) {
	b := &Bot{
		confirms: newConfirmations(),
		ctx:      context.Background(),
		logger:   logger.Named("bot"),
	}

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMessageReactions,
				gateway.IntentDirectMessages,
				gateway.IntentMessageContent,
			),
			gateway.WithPresenceOpts(
				gateway.WithPlayingActivity(fmt.Sprintf(constants.PresenceFormat, prefix)),
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagChannels, cache.FlagMembers, cache.FlagRoles),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnReady:                   b.handleReady,
			OnGuildMessageCreate:      b.handleGuildMessage,
			OnDMMessageCreate:         b.handleDirectMessage,
			OnGuildMessageReactionAdd: b.handleReaction,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = client
	return b, nil
}

// Platform returns the Discord operations used by the scanner and commands.
func (b *Bot) Platform() *Platform {
	return &Platform{client: b.client, logger: b.logger}
}

// Attach connects the router, scanner and matcher. It must be called before Start.
func (b *Bot) Attach(router Router, s *scanner.Scanner, m *matcher.Matcher) {
	b.router = router
	b.scanner = s
	b.matcher = m
}

// Start opens the gateway connection. Commands run with ctx.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// Close shuts down the gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
}

func (b *Bot) handleReady(event *events.Ready) {
	b.matcher.SetBotID(event.User.ID)
	b.logger.Info("Logged in",
		zap.String("username", event.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) handleGuildMessage(event *events.GuildMessageCreate) {
	msg := event.Message
	if msg.Author.ID == b.client.ID() {
		return
	}

	c := &commands.Context{
		GuildID:   event.GuildID,
		ChannelID: event.ChannelID,
		AuthorID:  msg.Author.ID,
	}
	c.Responder = b.responder(event.ChannelID, msg.ID, msg.Author.ID)

	member := msg.Member
	if member != nil {
		member.User = msg.Author
		c.Nickname = ptrString(member.Nick)
		c.Roles = member.RoleIDs
	}
	if cached, ok := b.client.Caches().Member(event.GuildID, msg.Author.ID); ok {
		member = &cached
		c.Roles = cached.RoleIDs
		c.Nickname = ptrString(cached.Nick)
	}
	if member != nil {
		member.GuildID = event.GuildID
		c.DisplayName = displayName(msg.Author, member)
		c.Admin = b.client.Caches().MemberPermissions(*member).Has(discord.PermissionAdministrator)
	}

	if b.dispatch(c, msg.Content) {
		return
	}

	b.scanner.Enqueue(toMessage(msg, event.GuildID))
}

func (b *Bot) handleDirectMessage(event *events.DMMessageCreate) {
	msg := event.Message
	if msg.Author.ID == b.client.ID() || msg.Author.Bot {
		return
	}

	c := &commands.Context{
		ChannelID:   event.ChannelID,
		AuthorID:    msg.Author.ID,
		DisplayName: displayName(msg.Author, nil),
	}
	c.Responder = b.responder(event.ChannelID, msg.ID, msg.Author.ID)
	b.dispatch(c, msg.Content)
}

// dispatch starts a command in its own goroutine and reports whether content
// was a command invocation.
func (b *Bot) dispatch(c *commands.Context, content string) bool {
	if _, _, ok := b.router.Parse(content); !ok {
		return false
	}
	go b.router.Dispatch(b.ctx, content, c)
	return true
}

func (b *Bot) handleReaction(event *events.GuildMessageReactionAdd) {
	if event.UserID == b.client.ID() || event.Emoji.Name == nil {
		return
	}
	b.confirms.resolve(event.MessageID, event.UserID, *event.Emoji.Name)
}

func (b *Bot) responder(channelID, messageID, authorID snowflake.ID) *responder {
	return &responder{
		client:    b.client,
		confirms:  b.confirms,
		channelID: channelID,
		messageID: messageID,
		authorID:  authorID,
		logger:    b.logger,
	}
}

func ptrString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// displayName prefers the guild nickname, then the global name, then the username.
func displayName(user discord.User, member *discord.Member) string {
	if member != nil && member.Nick != nil && *member.Nick != "" {
		return *member.Nick
	}
	if user.GlobalName != nil && *user.GlobalName != "" {
		return *user.GlobalName
	}
	return user.Username
}

func toMessage(msg discord.Message, guildID snowflake.ID) *matcher.Message {
	stickers := make([]discord.StickerFormatType, len(msg.StickerItems))
	for i, s := range msg.StickerItems {
		stickers[i] = s.FormatType
	}
	return &matcher.Message{
		ID:         msg.ID,
		GuildID:    guildID,
		ChannelID:  msg.ChannelID,
		AuthorID:   msg.Author.ID,
		AuthorName: displayName(msg.Author, msg.Member),
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
		Stickers:   stickers,
	}
}
