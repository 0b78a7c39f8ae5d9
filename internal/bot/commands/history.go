package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/wordwatch/internal/bot/constants"
	"github.com/robalyx/wordwatch/internal/export"
	"github.com/robalyx/wordwatch/internal/scanner"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/robalyx/wordwatch/internal/watch"
	"go.uber.org/zap"
)

// dateRange parses the two YYYYMMDD arguments.
func dateRange(c *Context) (time.Time, time.Time, error) {
	from, err := export.ParseDate(c.Arg(0))
	if err != nil {
		return time.Time{}, time.Time{}, userErrorf("Dates must be in YYYYMMDD format.")
	}
	to, err := export.ParseDate(c.Arg(1))
	if err != nil {
		return time.Time{}, time.Time{}, userErrorf("Dates must be in YYYYMMDD format.")
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, userErrorf("The start date must not be after the end date.")
	}
	return from, to, nil
}

// fetchHistory scans channel history for the invoker's keywords. Without
// channel arguments every text channel of the guild is read.
func (h *Handler) fetchHistory(ctx context.Context, c *Context) error {
	from, to, err := dateRange(c)
	if err != nil {
		return err
	}

	channels, err := h.channelArgs(c.Args[2:])
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		channels, err = h.Platform.TextChannels(ctx, c.GuildID)
		if err != nil {
			return fmt.Errorf("failed to list guild channels: %w", err)
		}
	}

	res, err := h.Scanner.FetchHistory(ctx, h.History, scanner.HistoryRequest{
		GuildID:   c.GuildID,
		WatcherID: c.AuthorID,
		Channels:  channels,
		From:      from,
		To:        to,
	})
	switch {
	case errors.Is(err, scanner.ErrNoChannels):
		return userErrorf("There are no text channels to fetch.")
	case err != nil && res.Scanned == 0:
		h.logger.Error("History fetch failed", zap.Error(err))
		return userErrorf("An error occurred while fetching historical messages.")
	}

	reply := fmt.Sprintf("Fetched and processed %d historical messages across the specified channels. %d keyword matches were logged.",
		res.Scanned, res.Matches)
	if err != nil {
		h.logger.Warn("History fetch partially failed", zap.Error(err))
		reply += " Some channels could not be read."
	}
	return c.Reply(ctx, reply)
}

// exportLogs writes the log over a day range to a file and uploads it.
func (h *Handler) exportLogs(ctx context.Context, c *Context) error {
	from, to, err := dateRange(c)
	if err != nil {
		return err
	}

	format := h.DefaultFormat
	if arg := c.Arg(2); arg != "" {
		format, err = export.ParseFormat(arg)
		if err != nil {
			names := make([]string, len(export.Formats))
			for i, f := range export.Formats {
				names[i] = string(f)
			}
			return userErrorf("Unsupported export format. Choose from %s.", strings.Join(names, ", "))
		}
	}

	rows, err := state.Query(ctx, h.State, func(d *state.Data) ([]watch.LogRow, error) {
		return d.Log.Range(from, to)
	})
	if err != nil {
		return err
	}

	path, err := h.Exporter.Export(rows, from, to, format)
	if err != nil {
		h.logger.Error("Export failed", zap.Error(err))
		return userErrorf("An error occurred while exporting the logs.")
	}

	h.logger.Info("Exported logs",
		zap.String("path", path),
		zap.Int("rows", len(rows)))
	return c.ReplyFile(ctx, path)
}

// clearLogs wipes the message log and exported files after a confirmation.
func (h *Handler) clearLogs(ctx context.Context, c *Context) error {
	prompt := discord.NewEmbedBuilder().
		SetTitle("Clear All Message Logs and Exported Files").
		SetDescription("Are you sure you want to clear all message logs and exported files? This action cannot be undone.").
		SetColor(constants.WarningColor).
		SetFooterText(fmt.Sprintf("React with %s to confirm or %s to cancel.", constants.ConfirmEmoji, constants.CancelEmoji)).
		Build()

	confirmed, err := c.Confirm(ctx, prompt, constants.ConfirmTimeout)
	if errors.Is(err, ErrConfirmTimeout) {
		return c.Reply(ctx, "Confirmation timed out. Message logs and files were not cleared.")
	}
	if err != nil {
		return err
	}
	if !confirmed {
		return c.Reply(ctx, "Message log and file clearance cancelled.")
	}

	if err := h.State.Do(ctx, func(d *state.Data) error {
		d.Log.Clear()
		return nil
	}); err != nil {
		return err
	}
	if err := h.Persistence.Save(ctx); err != nil {
		h.logger.Error("Failed to save after clearing logs", zap.Error(err))
	}

	removed, err := h.Exporter.Clear()
	if err != nil {
		return fmt.Errorf("failed to delete exported files: %w", err)
	}
	h.logger.Info("Cleared message logs", zap.Int("removed_exports", removed))
	return c.Reply(ctx, "All message logs and exported files have been cleared.")
}
