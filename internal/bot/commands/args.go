package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/disgoorg/snowflake/v2"
)

// ErrInvalidMention is returned when an argument is not the expected mention.
var ErrInvalidMention = errors.New("invalid mention")

// Tokenize splits a command line on whitespace. Double-quoted text stays one
// argument so phrases can be watched.
func Tokenize(s string) []string {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)

	flush := func() {
		if started {
			args = append(args, current.String())
		}
		current.Reset()
		started = false
	}

	for _, r := range s {
		switch {
		case r == '"':
			if quoted {
				quoted = false
				flush()
				continue
			}
			flush()
			quoted = true
			started = true
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()
	return args
}

// parseMention accepts <sigil ID> or a bare ID.
func parseMention(arg, sigil string) (snowflake.ID, error) {
	raw := arg
	if strings.HasPrefix(arg, "<"+sigil) && strings.HasSuffix(arg, ">") {
		raw = arg[len(sigil)+1 : len(arg)-1]
	}
	if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMention, arg)
	}
	return snowflake.Parse(raw)
}

// ParseChannel parses a channel mention such as <#123>.
func ParseChannel(arg string) (snowflake.ID, error) {
	return parseMention(arg, "#")
}

// ParseUser parses a user mention such as <@123> or <@!123>.
func ParseUser(arg string) (snowflake.ID, error) {
	if strings.HasPrefix(arg, "<@!") {
		return parseMention(arg, "@!")
	}
	return parseMention(arg, "@")
}

// ParseRole parses a role mention such as <@&123>.
func ParseRole(arg string) (snowflake.ID, error) {
	return parseMention(arg, "@&")
}

// parseAll applies parse to every argument.
func parseAll(args []string, parse func(string) (snowflake.ID, error)) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(args))
	for _, arg := range args {
		id, err := parse(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
