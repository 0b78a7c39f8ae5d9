// Package commands parses prefixed chat commands and runs their handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// ErrConfirmTimeout is returned by Responder.Confirm when nobody answered in time.
var ErrConfirmTimeout = errors.New("confirmation timed out")

// Replies shared by the router.
const (
	NotFoundReply   = "Command not found. Please check the command and try again."
	PermissionReply = "You do not have the required permissions to use this command."
	GenericReply    = "An error occurred while processing the command."
	GuildOnlyReply  = "This command can only be used in a server."
	DMOnlyReply     = "This command can only be used in DMs with the bot."
)

// Responder answers the message that invoked a command.
type Responder interface {
	// Reply sends text to the invoking channel.
	Reply(ctx context.Context, content string) error
	// ReplyEmbed sends an embed, with optional attachments, to the invoking channel.
	ReplyEmbed(ctx context.Context, embed discord.Embed, files ...*discord.File) error
	// ReplyFile uploads a local file to the invoking channel.
	ReplyFile(ctx context.Context, path string) error
	// DirectEmbed sends an embed to the invoker's direct messages.
	DirectEmbed(ctx context.Context, embed discord.Embed) error
	// Confirm posts a prompt with confirm and cancel reactions and waits for the
	// invoker to pick one. It returns ErrConfirmTimeout when nobody answers.
	Confirm(ctx context.Context, prompt discord.Embed, timeout time.Duration) (bool, error)
}

// Context describes one command invocation.
type Context struct {
	Responder

	GuildID   snowflake.ID // zero in direct messages
	ChannelID snowflake.ID
	AuthorID  snowflake.ID
	// DisplayName and Nickname come from the invoker's guild membership.
	DisplayName string
	Nickname    string
	// Admin is set when the invoker has the Administrator permission.
	Admin bool
	Roles []snowflake.ID
	Args  []string
}

// InGuild reports whether the command was sent in a guild channel.
func (c *Context) InGuild() bool {
	return c.GuildID != 0
}

// Arg returns the i-th argument or the empty string.
func (c *Context) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// UserError carries a reply for the invoker. Handlers return it for input
// problems and expected failures.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// userErrorf creates a UserError.
func userErrorf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// Scope restricts where a command may run.
type Scope int

const (
	ScopeGuild Scope = iota
	ScopeDM
	ScopeAny
)

// Command is one registered command.
type Command struct {
	Name  string
	Usage string
	// Admin commands need the Administrator permission or a role listed for the
	// command in the permission file.
	Admin bool
	Scope Scope
	// MinArgs is the number of required arguments.
	MinArgs int
	Run     func(ctx context.Context, c *Context) error
}

// RoleChecker reports whether a role grants access to a command.
type RoleChecker interface {
	Allowed(cmd string, roles []snowflake.ID) (bool, error)
}

// Router dispatches prefixed messages to commands.
type Router struct {
	prefix   string
	commands map[string]*Command
	roles    RoleChecker
	logger   *zap.Logger
}

// NewRouter creates an empty Router.
func NewRouter(prefix string, roles RoleChecker, logger *zap.Logger) *Router {
	return &Router{
		prefix:   prefix,
		commands: make(map[string]*Command),
		roles:    roles,
		logger:   logger.Named("commands"),
	}
}

// Prefix returns the command prefix.
func (r *Router) Prefix() string {
	return r.prefix
}

// Register adds commands, replacing any with the same name.
func (r *Router) Register(cmds ...*Command) {
	for _, cmd := range cmds {
		r.commands[cmd.Name] = cmd
	}
}

// Has reports whether name is a registered command.
func (r *Router) Has(name string) bool {
	_, ok := r.commands[name]
	return ok
}

// Names returns the registered command names in order.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Parse splits a message into a command name and arguments. It reports false
// for messages that are not command invocations. Text such as "...." that
// merely starts with the prefix is not treated as a command.
func (r *Router) Parse(content string) (string, []string, bool) {
	rest, ok := strings.CutPrefix(content, r.prefix)
	if !ok {
		return "", nil, false
	}

	first, _ := utf8.DecodeRuneInString(rest)
	if !unicode.IsLetter(first) {
		return "", nil, false
	}

	tokens := Tokenize(rest)
	if len(tokens) == 0 {
		return "", nil, false
	}
	return tokens[0], tokens[1:], true
}

// Dispatch runs the command in content, if any, and reports whether content was
// a command invocation. Failures never escape: errors and panics are logged and
// answered so one command cannot affect another.
func (r *Router) Dispatch(ctx context.Context, content string, c *Context) bool {
	name, args, ok := r.Parse(content)
	if !ok {
		return false
	}
	c.Args = args

	logger := r.logger.With(
		zap.String("command", name),
		zap.Uint64("user_id", uint64(c.AuthorID)),
		zap.Uint64("guild_id", uint64(c.GuildID)))

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Panic in command handler",
				zap.Any("panic", p),
				zap.String("stack", string(debug.Stack())))
			r.reply(ctx, c, logger, GenericReply)
		}
		logger.Debug("Command handled", zap.Duration("duration", time.Since(start)))
	}()

	cmd, ok := r.commands[name]
	if !ok {
		r.reply(ctx, c, logger, NotFoundReply)
		return true
	}

	if reply, ok := r.allowed(cmd, c, logger); !ok {
		r.reply(ctx, c, logger, reply)
		return true
	}

	if len(args) < cmd.MinArgs {
		r.reply(ctx, c, logger, fmt.Sprintf("Missing arguments. Usage: `%s%s`", r.prefix, cmd.Usage))
		return true
	}

	if err := cmd.Run(ctx, c); err != nil {
		var ue *UserError
		if errors.As(err, &ue) {
			r.reply(ctx, c, logger, ue.Message)
			return true
		}
		logger.Error("Command failed", zap.Error(err))
		r.reply(ctx, c, logger, GenericReply)
	}
	return true
}

// allowed checks scope and permissions, returning the reply on refusal.
func (r *Router) allowed(cmd *Command, c *Context, logger *zap.Logger) (string, bool) {
	switch {
	case cmd.Scope == ScopeGuild && !c.InGuild():
		return GuildOnlyReply, false
	case cmd.Scope == ScopeDM && c.InGuild():
		return DMOnlyReply, false
	}

	if !cmd.Admin || c.Admin {
		return "", true
	}

	ok, err := r.roles.Allowed(cmd.Name, c.Roles)
	if err != nil {
		logger.Error("Failed to check command roles", zap.Error(err))
		return PermissionReply, false
	}
	if !ok {
		return PermissionReply, false
	}
	return "", true
}

func (r *Router) reply(ctx context.Context, c *Context, logger *zap.Logger, content string) {
	if err := c.Reply(ctx, content); err != nil {
		logger.Warn("Failed to send reply", zap.Error(err))
	}
}
