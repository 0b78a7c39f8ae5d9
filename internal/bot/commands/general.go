package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/robalyx/wordwatch/internal/bot/builder/help"
	"github.com/robalyx/wordwatch/internal/bot/constants"
	"github.com/robalyx/wordwatch/internal/setup/telemetry"
	"go.uber.org/zap"
)

// help sends a help page to the invoker's direct messages.
func (h *Handler) help(ctx context.Context, c *Context) error {
	page := 1
	if arg := c.Arg(0); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return userErrorf("Invalid help page number.")
		}
		page = n
	}

	embed, err := help.Build(page, h.router.Prefix())
	if errors.Is(err, help.ErrInvalidPage) {
		return userErrorf("Invalid help page number.")
	}
	if err != nil {
		return err
	}
	return c.DirectEmbed(ctx, embed)
}

func (h *Handler) test(ctx context.Context, c *Context) error {
	return c.Reply(ctx, "Test command executed successfully!")
}

// clearDM deletes the bot's recent messages in a direct message channel.
func (h *Handler) clearDM(ctx context.Context, c *Context) error {
	deleted, err := h.Platform.ClearOwnMessages(ctx, c.ChannelID, constants.CleanDMLimit)
	if err != nil {
		h.logger.Error("Failed to clear direct messages", zap.Error(err))
		return userErrorf("An error occurred while trying to clear messages.")
	}
	h.logger.Debug("Cleared direct messages", zap.Int("deleted", deleted))
	return c.Reply(ctx, "Cleared my messages from this DM.")
}

func (h *Handler) checkName(ctx context.Context, c *Context) error {
	if c.DisplayName == "" {
		return c.Reply(ctx, "Unable to fetch member from cache.")
	}
	nick := c.Nickname
	if nick == "" {
		nick = "No Nickname"
	}
	return c.Reply(ctx, fmt.Sprintf("Display Name: %s, Nickname: %s", c.DisplayName, nick))
}

func (h *Handler) setVerbosity(ctx context.Context, c *Context) error {
	level := strings.ToLower(c.Arg(0))
	if !slices.Contains(telemetry.Levels, level) {
		return userErrorf("Invalid verbosity level. Choose from 'debug', 'info', 'warning', 'error'.")
	}
	if err := h.Levels.SetLevel(level); err != nil {
		return err
	}
	return c.Reply(ctx, fmt.Sprintf("Verbosity level set to %s.", level))
}
