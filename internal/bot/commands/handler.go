package commands

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/bot/constants"
	"github.com/robalyx/wordwatch/internal/export"
	"github.com/robalyx/wordwatch/internal/permissions"
	"github.com/robalyx/wordwatch/internal/persistence"
	"github.com/robalyx/wordwatch/internal/scanner"
	"github.com/robalyx/wordwatch/internal/state"
	"go.uber.org/zap"
)

const maxReply = constants.MaxMessageLength

// Platform is the part of the Discord API the commands use beyond replying.
type Platform interface {
	// TextChannels lists the text channels of a guild.
	TextChannels(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error)
	// UserName returns a user's global name.
	UserName(ctx context.Context, userID snowflake.ID) (string, error)
	// MemberName returns a member's display name in a guild.
	MemberName(ctx context.Context, guildID, userID snowflake.ID) (string, error)
	// RoleName returns the name of a guild role.
	RoleName(ctx context.Context, guildID, roleID snowflake.ID) (string, error)
	// ClearOwnMessages deletes the bot's messages among the last limit messages
	// of a channel and returns how many were deleted.
	ClearOwnMessages(ctx context.Context, channelID snowflake.ID, limit int) (int, error)
}

// LevelSetter changes the log level at runtime.
type LevelSetter interface {
	SetLevel(name string) error
}

// Deps are the services the commands operate on.
type Deps struct {
	State       *state.Manager
	Scanner     *scanner.Scanner
	History     scanner.HistorySource
	Persistence *persistence.Manager
	Permissions *permissions.File
	Exporter    *export.Exporter
	Levels      LevelSetter
	Platform    Platform
	// DefaultFormat is used by exportlogs when no format is given.
	DefaultFormat export.Format
	Backend       string
	InstanceID    string
	// Stop begins a controlled shutdown.
	Stop func()
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler implements every command.
type Handler struct {
	Deps
	router *Router
	logger *zap.Logger
}

// New creates a Router with every command registered.
func New(prefix string, deps Deps, logger *zap.Logger) *Router {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	router := NewRouter(prefix, deps.Permissions, logger)
	h := &Handler{Deps: deps, router: router, logger: logger.Named("handler")}

	router.Register(
		&Command{Name: "help", Usage: "help [page]", Scope: ScopeAny, Run: h.help},
		&Command{Name: "test", Usage: "test", Scope: ScopeAny, Run: h.test},
		&Command{Name: "cleardm", Usage: "cleardm", Scope: ScopeDM, Run: h.clearDM},
		&Command{Name: "checkname", Usage: "checkname", Run: h.checkName},
		&Command{Name: "setverbosity", Usage: "setverbosity <debug|info|warning|error>", MinArgs: 1, Run: h.setVerbosity},

		&Command{Name: "watched", Usage: "watched", Run: h.watched},
		&Command{Name: "watchword", Usage: "watchword <word> [#channel...]", MinArgs: 1, Run: h.watchWord},
		&Command{Name: "deleteword", Usage: "deleteword <word>", MinArgs: 1, Run: h.deleteWord},
		&Command{Name: "watchclear", Usage: "watchclear", Run: h.watchClear},
		&Command{Name: "cd", Usage: "cd [minutes]", Run: h.cooldown},
		&Command{Name: "worddetail", Usage: "worddetail <word>", MinArgs: 1, Run: h.wordDetail},
		&Command{Name: "addfilter", Usage: "addfilter <word> <#channel...>", MinArgs: 2, Run: h.addFilter},
		&Command{Name: "deletefilter", Usage: "deletefilter <word> <#channel...>", MinArgs: 2, Run: h.deleteFilter},
		&Command{Name: "clearfilter", Usage: "clearfilter <word>", MinArgs: 1, Run: h.clearFilter},
		&Command{Name: "addnotify", Usage: "addnotify <word> <@member...>", MinArgs: 2, Run: h.addNotify},
		&Command{Name: "removenotify", Usage: "removenotify <word> <@member...>", MinArgs: 2, Run: h.removeNotify},

		&Command{Name: "fetchhistory", Usage: "fetchhistory <YYYYMMDD> <YYYYMMDD> [#channel...]", MinArgs: 2, Run: h.fetchHistory},
		&Command{Name: "exportlogs", Usage: "exportlogs <YYYYMMDD> <YYYYMMDD> [xlsx|csv|sqlite]", MinArgs: 2, Run: h.exportLogs},
		&Command{Name: "clearlogs", Usage: "clearlogs", Admin: true, Run: h.clearLogs},

		&Command{Name: "forcesave", Usage: "forcesave", Admin: true, Run: h.forceSave},
		&Command{Name: "test_save", Usage: "test_save", Run: h.testSave},
		&Command{Name: "botstop", Usage: "botstop", Admin: true, Run: h.botStop},
		&Command{Name: "admindashboard", Usage: "admindashboard", Admin: true, Run: h.adminDashboard},
		&Command{Name: "setscan", Usage: "setscan <seconds>", Admin: true, MinArgs: 1, Run: h.setScan},
		&Command{Name: "setsave", Usage: "setsave <minutes>", Admin: true, MinArgs: 1, Run: h.setSave},
		&Command{Name: "addrole", Usage: "addrole <command> <@role>", Admin: true, MinArgs: 2, Run: h.addRole},
		&Command{Name: "removerole", Usage: "removerole <command> <@role>", Admin: true, MinArgs: 2, Run: h.removeRole},
		&Command{Name: "listwatched", Usage: "listwatched", Admin: true, Run: h.listWatched},
	)
	return router
}
