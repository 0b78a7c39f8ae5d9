// Package dashboard builds the admin dashboard message.
package dashboard

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/wordwatch/internal/bot/constants"
)

// Stats is the data shown on the dashboard.
type Stats struct {
	ScanInterval time.Duration
	SaveInterval time.Duration
	LastSaved    time.Time
	Watchers     int
	Keywords     int
	LogEntries   int
	Pending      int
	Backend      string
	InstanceID   string
	// DailyMatches maps days to logged matches for the chart.
	DailyMatches map[string]int
}

// Builder creates the admin dashboard embed.
type Builder struct {
	stats  Stats
	prefix string
	now    time.Time
}

// NewBuilder creates a new dashboard builder.
func NewBuilder(stats Stats, prefix string, now time.Time) *Builder {
	return &Builder{stats: stats, prefix: prefix, now: now}
}

// Build returns the embed and, when the chart renders, a PNG attachment that
// the embed shows as its image.
func (b *Builder) Build() (discord.Embed, *discord.File) {
	lastSaved := "never"
	if !b.stats.LastSaved.IsZero() {
		lastSaved = fmt.Sprintf("<t:%d:R>", b.stats.LastSaved.Unix())
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("WordWatch Bot Admin Dashboard").
		SetColor(constants.DashboardColor).
		SetThumbnail(constants.ThumbnailURL).
		AddField("Scan Frequency", fmt.Sprintf("%d seconds", int(b.stats.ScanInterval.Seconds())), false).
		AddField("Save Frequency", fmt.Sprintf("%g minutes", b.stats.SaveInterval.Minutes()), false).
		AddField("Watched Words", fmt.Sprintf("%d users", b.stats.Watchers), false).
		AddField("Keywords", fmt.Sprintf("%d", b.stats.Keywords), true).
		AddField("Logged Matches", fmt.Sprintf("%d", b.stats.LogEntries), true).
		AddField("Queued Messages", fmt.Sprintf("%d", b.stats.Pending), true).
		AddField("Storage", fmt.Sprintf("`%s`, last saved %s", b.stats.Backend, lastSaved), false).
		AddField("Commands", fmt.Sprintf(
			"`%[1]ssetscan <seconds>` - Set scan frequency\n"+
				"`%[1]ssetsave <minutes>` - Set save frequency\n"+
				"`%[1]slistwatched` - List all watched words", b.prefix), false).
		SetFooterText("Use the commands to modify settings. Instance " + b.stats.InstanceID)

	buf, err := NewChartBuilder(b.stats.DailyMatches, b.now, constants.ChartDays).Build()
	if err != nil {
		return embed.Build(), nil
	}

	embed.SetImage("attachment://" + constants.ChartFileName)
	return embed.Build(), discord.NewFile(constants.ChartFileName, "", buf)
}
