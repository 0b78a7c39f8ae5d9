package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/bot/builder/dashboard"
	"github.com/robalyx/wordwatch/internal/bot/constants"
	"github.com/robalyx/wordwatch/internal/permissions"
	"github.com/robalyx/wordwatch/internal/state"
	"github.com/robalyx/wordwatch/internal/watch"
	"github.com/robalyx/wordwatch/pkg/utils"
	"go.uber.org/zap"
)

func (h *Handler) forceSave(ctx context.Context, c *Context) error {
	if err := h.Persistence.Save(ctx); err != nil {
		h.logger.Error("Force save failed", zap.Error(err))
		return userErrorf("An error occurred while force-saving data.")
	}
	return c.Reply(ctx, "All data has been force-saved.")
}

// testSave saves and reports the state of each stored document.
func (h *Handler) testSave(ctx context.Context, c *Context) error {
	if err := h.Persistence.Save(ctx); err != nil {
		h.logger.Error("Test save failed", zap.Error(err))
		return userErrorf("An error occurred while saving data.")
	}

	lines := []string{"Test save executed. Check the stored documents."}
	for _, doc := range h.Persistence.Check(ctx) {
		switch {
		case doc.Err != nil:
			lines = append(lines, fmt.Sprintf("`%s`: unreadable", doc.Name))
		case !doc.Present:
			lines = append(lines, fmt.Sprintf("`%s`: missing", doc.Name))
		default:
			lines = append(lines, fmt.Sprintf("`%s`: %d bytes", doc.Name, doc.Size))
		}
	}
	return c.Reply(ctx, strings.Join(lines, "\n"))
}

// botStop begins a controlled shutdown, which ends with a final save.
func (h *Handler) botStop(ctx context.Context, c *Context) error {
	if err := c.Reply(ctx, "Saving data and logging out..."); err != nil {
		h.logger.Warn("Failed to announce shutdown", zap.Error(err))
	}
	h.logger.Info("Shutdown requested", zap.Uint64("user_id", uint64(c.AuthorID)))
	h.Stop()
	return nil
}

func (h *Handler) adminDashboard(ctx context.Context, c *Context) error {
	stats, err := state.Query(ctx, h.State, func(d *state.Data) (dashboard.Stats, error) {
		keywords := 0
		for _, s := range d.Watches.Summary() {
			keywords += len(s.Keywords)
		}
		return dashboard.Stats{
			Watchers:     len(d.Watches.Users()),
			Keywords:     keywords,
			LogEntries:   d.Log.Len(),
			DailyMatches: d.Log.CountByDate(),
		}, nil
	})
	if err != nil {
		return err
	}

	stats.ScanInterval = h.Scanner.Interval()
	stats.SaveInterval = h.Persistence.Interval()
	stats.LastSaved = h.Persistence.LastSaved()
	stats.Pending = h.Scanner.Pending()
	stats.Backend = h.Backend
	stats.InstanceID = h.InstanceID

	embed, file := dashboard.NewBuilder(stats, h.router.Prefix(), h.Now()).Build()
	if file == nil {
		return c.ReplyEmbed(ctx, embed)
	}
	return c.ReplyEmbed(ctx, embed, file)
}

// positiveArg parses a whole number of at least one.
func positiveArg(arg, message string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, userErrorf("%s", message)
	}
	return n, nil
}

func (h *Handler) setScan(ctx context.Context, c *Context) error {
	seconds, err := positiveArg(c.Arg(0), "Scan frequency must be at least 1 second.")
	if err != nil {
		return err
	}
	if err := h.Scanner.SetInterval(time.Duration(seconds) * time.Second); err != nil {
		return err
	}
	return c.Reply(ctx, fmt.Sprintf("Scan frequency set to %d seconds.", seconds))
}

func (h *Handler) setSave(ctx context.Context, c *Context) error {
	minutes, err := positiveArg(c.Arg(0), "Save frequency must be at least 1 minute.")
	if err != nil {
		return err
	}
	if err := h.Persistence.SetInterval(time.Duration(minutes) * time.Minute); err != nil {
		return err
	}
	return c.Reply(ctx, fmt.Sprintf("Save frequency set to %d minutes.", minutes))
}

// roleArgs validates the command name and role of addrole and removerole.
func (h *Handler) roleArgs(ctx context.Context, c *Context) (string, snowflake.ID, string, error) {
	cmd := c.Arg(0)
	if !h.router.Has(cmd) {
		return "", 0, "", userErrorf("Unknown command: %s.", cmd)
	}
	role, err := ParseRole(c.Arg(1))
	if err != nil {
		return "", 0, "", userErrorf("Please mention a role like @moderators.")
	}

	name, err := h.Platform.RoleName(ctx, c.GuildID, role)
	if err != nil || name == "" {
		name = role.String()
	}
	return cmd, role, name, nil
}

func (h *Handler) addRole(ctx context.Context, c *Context) error {
	cmd, role, name, err := h.roleArgs(ctx, c)
	if err != nil {
		return err
	}

	err = h.Permissions.AddRole(cmd, role)
	switch {
	case errors.Is(err, permissions.ErrRoleAlreadyPresent):
		return userErrorf("Role already has permission for this command.")
	case errors.Is(err, permissions.ErrMalformed):
		return userErrorf("There was an error reading the permissions file. Please check its format.")
	case err != nil:
		return err
	}
	return c.Reply(ctx, fmt.Sprintf("Role %s added to %s.", name, cmd))
}

func (h *Handler) removeRole(ctx context.Context, c *Context) error {
	cmd, role, name, err := h.roleArgs(ctx, c)
	if err != nil {
		return err
	}

	err = h.Permissions.RemoveRole(cmd, role)
	switch {
	case errors.Is(err, permissions.ErrRoleNotPresent):
		return userErrorf("Role was not set for this command or command does not exist.")
	case errors.Is(err, permissions.ErrMalformed):
		return userErrorf("There was an error reading the permissions file. Please check its format.")
	case err != nil:
		return err
	}
	return c.Reply(ctx, fmt.Sprintf("Role %s removed from %s.", name, cmd))
}

// listWatched summarizes the watch lists of this guild.
func (h *Handler) listWatched(ctx context.Context, c *Context) error {
	summaries, err := state.Query(ctx, h.State, func(d *state.Data) ([]watch.Summary, error) {
		return d.Watches.Summary(), nil
	})
	if err != nil {
		return err
	}

	var lines []string
	for _, s := range summaries {
		if s.GuildID != c.GuildID {
			continue
		}
		name, err := h.Platform.UserName(ctx, s.UserID)
		if err != nil || name == "" {
			name = s.UserID.String()
		}
		lines = append(lines, fmt.Sprintf("**%s** (%d words): %s", name, len(s.Keywords), strings.Join(s.Keywords, ", ")))
	}

	chunks := []string{"No words are being watched currently."}
	if len(lines) > 0 {
		chunks = utils.ChunkLines(lines, constants.MaxEmbedDescription)
	}

	// Long summaries are split across several embeds.
	for _, chunk := range chunks {
		embed := discord.NewEmbedBuilder().
			SetTitle("Watched Words Summary").
			SetDescription(chunk).
			SetColor(constants.DashboardColor).
			Build()
		if err := c.ReplyEmbed(ctx, embed); err != nil {
			return err
		}
	}
	return nil
}
