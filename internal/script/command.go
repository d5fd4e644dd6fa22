package script

import (
	"strings"
)

// Command is a single engine command parsed from a script line.
//
// Verb is the lowercased command name (e.g. "calibrate"). Args holds the
// remaining tokens in source order with quotes already removed. Line is the
// 1-based line number in the source script, or 0 for commands built in code.
type Command struct {
	Verb string
	Args []string
	Line int
}

// NewCommand builds a [Command] from a verb and its arguments.
func NewCommand(verb string, args ...string) Command {
	return Command{Verb: strings.ToLower(verb), Args: append([]string(nil), args...)}
}

// IsFlag reports whether the token is a "-name" or "-name=value" flag.
func IsFlag(token string) bool {
	return len(token) > 1 && token[0] == '-'
}

// splitFlag returns the flag name and value of a flag token. hasValue is
// false for bare "-name" flags.
func splitFlag(token string) (name, value string, hasValue bool) {
	body := token[1:]
	if i := strings.IndexByte(body, '='); i >= 0 {
		return body[:i], body[i+1:], true
	}
	return body, "", false
}

// Flag returns the value of the "-name=value" flag and true, or "" and false
// if the flag is absent or has no value. The last occurrence wins.
func (c Command) Flag(name string) (string, bool) {
	value, found := "", false
	for _, a := range c.Args {
		if !IsFlag(a) {
			continue
		}
		n, v, hasValue := splitFlag(a)
		if n == name && hasValue {
			value, found = v, true
		}
	}
	return value, found
}

// HasFlag reports whether the flag appears, with or without a value.
func (c Command) HasFlag(name string) bool {
	for _, a := range c.Args {
		if !IsFlag(a) {
			continue
		}
		if n, _, _ := splitFlag(a); n == name {
			return true
		}
	}
	return false
}

// Positional returns the non-flag arguments in order.
func (c Command) Positional() []string {
	var out []string
	for _, a := range c.Args {
		if !IsFlag(a) {
			out = append(out, a)
		}
	}
	return out
}

// Arg returns the i-th positional argument or "" if there is none.
func (c Command) Arg(i int) string {
	pos := c.Positional()
	if i < 0 || i >= len(pos) {
		return ""
	}
	return pos[i]
}

// WithArgs returns a copy of the command with its arguments replaced.
func (c Command) WithArgs(args []string) Command {
	return Command{Verb: c.Verb, Args: append([]string(nil), args...), Line: c.Line}
}

// String renders the command in engine syntax. Values containing
// whitespace, quotes or '=' are double-quoted so the engine reads them back
// as a single token.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Verb)
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(quoteArg(a))
	}
	return b.String()
}

func quoteArg(a string) string {
	if IsFlag(a) {
		name, value, hasValue := splitFlag(a)
		if hasValue && needsQuote(value, true) {
			return "-" + name + "=" + quote(value)
		}
		return a
	}
	if a == "" || needsQuote(a, false) {
		return quote(a)
	}
	return a
}

func needsQuote(s string, isFlagValue bool) bool {
	if isFlagValue && strings.ContainsRune(s, '=') {
		return true
	}
	return strings.ContainsAny(s, " \t\"'")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
