package constants

import "time"

// Embed colors.
const (
	HelpColor      = 0x30abc0
	DashboardColor = 0x3498db
	WarningColor   = 0xff0000
)

// ThumbnailURL is shown on the admin dashboard.
const ThumbnailURL = "https://raw.githubusercontent.com/pixeltopic/WordWatch/master/alertimage.gif"

// PresenceFormat builds the bot's activity text from the command prefix.
const PresenceFormat = "Questions? Type %shelp"

// Reactions used by confirmation prompts.
const (
	ConfirmEmoji = "✅"
	CancelEmoji  = "❌"
)

// ConfirmTimeout is how long a confirmation prompt waits for a reaction.
const ConfirmTimeout = 60 * time.Second

// CleanDMLimit is how many recent direct messages cleardm inspects.
const CleanDMLimit = 100

// ChartFileName is the attachment name of the dashboard activity chart.
const ChartFileName = "activity.png"

// ChartDays is the number of days plotted on the dashboard chart.
const ChartDays = 14

// MaxMessageLength is Discord's limit on message content.
const MaxMessageLength = 2000

// MaxEmbedDescription is Discord's limit on an embed description.
const MaxEmbedDescription = 4096
