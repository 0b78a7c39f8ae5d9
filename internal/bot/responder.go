package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/bot/commands"
	"github.com/robalyx/wordwatch/internal/bot/constants"
	"github.com/robalyx/wordwatch/pkg/utils"
	"go.uber.org/zap"
)

// responder answers one command message.
type responder struct {
	client    bot.Client
	confirms  *confirmations
	channelID snowflake.ID
	messageID snowflake.ID
	authorID  snowflake.ID
	logger    *zap.Logger
}

func (r *responder) send(ctx context.Context, channelID snowflake.ID, msg discord.MessageCreate) (*discord.Message, error) {
	sent, err := r.client.Rest().CreateMessage(channelID, msg, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return sent, nil
}

func (r *responder) Reply(ctx context.Context, content string) error {
	_, err := r.send(ctx, r.channelID, discord.MessageCreate{
		Content: utils.Truncate(content, constants.MaxMessageLength),
	})
	return err
}

func (r *responder) ReplyEmbed(ctx context.Context, embed discord.Embed, files ...*discord.File) error {
	_, err := r.send(ctx, r.channelID, discord.MessageCreate{
		Embeds: []discord.Embed{embed},
		Files:  files,
	})
	return err
}

func (r *responder) ReplyFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	_, err = r.send(ctx, r.channelID, discord.MessageCreate{
		Files: []*discord.File{discord.NewFile(filepath.Base(path), "", f)},
	})
	return err
}

func (r *responder) DirectEmbed(ctx context.Context, embed discord.Embed) error {
	channel, err := r.client.Rest().CreateDMChannel(r.authorID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	_, err = r.send(ctx, channel.ID(), discord.MessageCreate{Embeds: []discord.Embed{embed}})
	return err
}

// Confirm posts the prompt with both reactions and waits for the author's choice.
func (r *responder) Confirm(ctx context.Context, prompt discord.Embed, timeout time.Duration) (bool, error) {
	msg, err := r.send(ctx, r.channelID, discord.MessageCreate{Embeds: []discord.Embed{prompt}})
	if err != nil {
		return false, err
	}

	answer := r.confirms.register(msg.ID, r.authorID)
	defer r.confirms.cancel(msg.ID)

	for _, emoji := range []string{constants.ConfirmEmoji, constants.CancelEmoji} {
		if err := r.client.Rest().AddReaction(r.channelID, msg.ID, emoji, rest.WithCtx(ctx)); err != nil {
			r.logger.Warn("Failed to add confirmation reaction", zap.String("emoji", emoji), zap.Error(err))
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case confirmed := <-answer:
		return confirmed, nil
	case <-timer.C:
		return false, commands.ErrConfirmTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
