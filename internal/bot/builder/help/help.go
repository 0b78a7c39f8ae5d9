// Package help builds the paged help embeds.
package help

import (
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/wordwatch/internal/bot/constants"
)

// ErrInvalidPage is returned for page numbers outside 1..Pages.
var ErrInvalidPage = errors.New("invalid help page number")

const description = "**Welcome to the Tracker Bot!**\n" +
	"This bot monitors messages for specified keywords and notifies you when they appear.\n" +
	"Use the following commands to manage keywords, view logs, and configure settings.\n" +
	"All commands must be prefixed with '%s'."

const footer = "Ensure you have the necessary permissions to use these commands. Contact the admin for more details."

type entry struct {
	name string
	text string
}

var pages = [][]entry{
	{
		{"watched", "Displays a list of all words you are currently watching."},
		{"watchword", "Starts monitoring a specific word or phrase in your messages. You can specify channels to narrow down the monitoring."},
		{"deleteword", "Stops monitoring the specified word and clears all associated logs."},
		{"watchclear", "Removes all words from your watch list and clears all logs."},
		{"cd", "Sets a cooldown period for alerts on each word to avoid spamming notifications."},
		{"worddetail", "Provides detailed information about a watched word, including where it is being monitored."},
		{"addfilter", "Adds channel-specific filters to a watched word, allowing you to monitor the word only in selected channels."},
		{"deletefilter", "Removes channel-specific filters from a watched word."},
		{"clearfilter", "Removes all channel filters from a watched word, making it monitored in all channels."},
		{"fetchhistory", "Retrieves historical messages within a specified date range for analysis. This can be limited to specific channels."},
		{"exportlogs", "Exports logs of all detected words within a specified date range to an Excel, CSV or SQLite file."},
		{"forcesave", "Immediately saves all current data to the server. This is restricted to administrators only."},
		{"botstop", "Safely shuts down the bot and saves all data. Restricted to administrators only."},
	},
	{
		{"admindashboard", "Displays administrative settings and statistics for the bot."},
		{"addrole", "Adds a role to the permission list for a specific command, allowing users with that role to execute the command."},
		{"removerole", "Removes a role from the permission list for a specific command, preventing users with that role from executing the command."},
		{"listwatched", "Lists all watched words and the users watching them. Shows user details alongside the words they are monitoring."},
		{"setscan", "Adjusts the frequency at which the bot scans messages. Specify the time in seconds."},
		{"setsave", "Adjusts the frequency at which the bot saves data to the server. Specify the time in minutes."},
		{"checkname", "Displays the nickname and display name of the user who invokes the command. Useful for verification and administrative tasks."},
		{"addnotify", "Adds members to the notification list for a watched word."},
		{"removenotify", "Removes members from the notification list for a watched word."},
		{"test_save", "Test command to save data and check the stored documents."},
		{"setverbosity", "Adjusts the verbosity level of console outputs. Specify the level (`debug`, `info`, `warning`, `error`) to control the detail of logs."},
		{"cleardm", "Clears all messages sent by the bot in this DM. Use with caution as this cannot be undone."},
		{"clearlogs", "Clears all stored message logs and deletes exported files. Includes a confirmation step to prevent accidental data loss."},
	},
}

// Pages is the number of help pages.
var Pages = len(pages)

// Build returns the help embed for a 1-based page.
func Build(page int, prefix string) (discord.Embed, error) {
	if page < 1 || page > Pages {
		return discord.Embed{}, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	builder := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Tracker Bot Commands - Page %d", page)).
		SetDescription(fmt.Sprintf(description, prefix) +
			fmt.Sprintf("\n\nList of available commands (%d/%d):", page, Pages)).
		SetColor(constants.HelpColor).
		SetFooterText(footer)

	for _, e := range pages[page-1] {
		builder.AddField(prefix+e.name, e.text, false)
	}
	return builder.Build(), nil
}
