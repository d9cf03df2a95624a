package bot

import (
	"strconv"
	"strings"

	"warden/apperr"
)

// Args holds coerced command arguments keyed by option name. Snowflake
// options (user, channel, role) coerce to int64 ids.
type Args map[string]any

// Has reports whether an option was supplied
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns a string option, empty when absent
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Int returns an integer option, zero when absent
func (a Args) Int(name string) int64 {
	v, _ := a[name].(int64)
	return v
}

// Snowflake returns a user, channel or role id option, zero when absent
func (a Args) Snowflake(name string) int64 {
	v, _ := a[name].(int64)
	return v
}

// parseCommand strips the prefix and splits the invocation into a command
// name and raw tokens. Double quotes group tokens; rawTail carries everything
// after the command name unsplit, for tail options.
func parseCommand(content, prefix string) (name string, tokens []string, rawTail string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, "", false
	}

	body := strings.TrimSpace(content[len(prefix):])
	if body == "" {
		return "", nil, "", false
	}

	fields := splitQuoted(body)
	if len(fields) == 0 {
		return "", nil, "", false
	}

	name = fields[0]
	if len(fields) > 1 {
		tokens = fields[1:]
	}
	rawTail = strings.TrimSpace(strings.TrimPrefix(body, name))
	return name, tokens, rawTail, true
}

// splitQuoted splits on whitespace, honoring double-quoted groups. An
// unterminated quote runs to the end of the input.
func splitQuoted(s string) []string {
	var fields []string
	var current strings.Builder
	inQuote := false
	flushed := true

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			flushed = false
		case !inQuote && (r == ' ' || r == '\t' || r == '\n'):
			if !flushed || current.Len() > 0 {
				fields = append(fields, current.String())
				current.Reset()
				flushed = true
			}
		default:
			current.WriteRune(r)
			flushed = false
		}
	}
	if !flushed || current.Len() > 0 {
		fields = append(fields, current.String())
	}
	return fields
}

// coerceArgs binds raw tokens to a descriptor's option schema. replyTarget
// fills the first required user option when the invocation was a reply and
// the mention was omitted.
func coerceArgs(d *CommandDescriptor, tokens []string, rawTail string, replyTarget int64) (Args, error) {
	args := make(Args, len(d.Options))
	pos := 0

	for _, opt := range d.Options {
		if opt.Type == OptionTail {
			tail := tailAfter(rawTail, tokens[:pos])
			if tail == "" && opt.Required {
				return nil, apperr.New(apperr.KindBadArgument, "missing required argument `%s`", opt.Name)
			}
			if tail != "" {
				args[opt.Name] = tail
			}
			pos = len(tokens)
			continue
		}

		if pos >= len(tokens) {
			if opt.Type == OptionUser && replyTarget != 0 {
				args[opt.Name] = replyTarget
				replyTarget = 0
				continue
			}
			if opt.Required {
				return nil, apperr.New(apperr.KindBadArgument, "missing required argument `%s`", opt.Name)
			}
			continue
		}

		value, err := coerceToken(opt, tokens[pos])
		if err != nil {
			// A reply can still stand in when the first token belongs to a
			// later option
			if opt.Type == OptionUser && replyTarget != 0 {
				args[opt.Name] = replyTarget
				replyTarget = 0
				continue
			}
			return nil, err
		}
		args[opt.Name] = value
		pos++
	}

	return args, nil
}

func coerceToken(opt Option, token string) (any, error) {
	switch opt.Type {
	case OptionInt:
		n, err := strconv.ParseInt(strings.ReplaceAll(token, ",", ""), 10, 64)
		if err != nil {
			return nil, apperr.New(apperr.KindBadArgument, "`%s` must be a whole number", opt.Name)
		}
		if (opt.MinValue != 0 || opt.MaxValue != 0) && (n < opt.MinValue || n > opt.MaxValue) {
			return nil, apperr.New(apperr.KindBadArgument, "`%s` must be between %d and %d", opt.Name, opt.MinValue, opt.MaxValue)
		}
		return n, nil

	case OptionUser:
		id, ok := parseSnowflake(token, "<@", "<@!")
		if !ok {
			return nil, apperr.New(apperr.KindBadArgument, "`%s` must be a user mention or id", opt.Name)
		}
		return id, nil

	case OptionChannel:
		id, ok := parseSnowflake(token, "<#")
		if !ok {
			return nil, apperr.New(apperr.KindBadArgument, "`%s` must be a channel mention or id", opt.Name)
		}
		return id, nil

	case OptionRole:
		id, ok := parseSnowflake(token, "<@&")
		if !ok {
			return nil, apperr.New(apperr.KindBadArgument, "`%s` must be a role mention or id", opt.Name)
		}
		return id, nil

	default:
		return token, nil
	}
}

// parseSnowflake accepts a bare numeric id or a mention wrapped in one of
// the given prefixes and a closing angle bracket. The longest matching
// prefix wins, so "<@!" is stripped whole rather than as "<@" plus "!".
func parseSnowflake(token string, prefixes ...string) (int64, bool) {
	inner := token
	matched := ""
	for _, p := range prefixes {
		if len(p) > len(matched) && strings.HasPrefix(token, p) && strings.HasSuffix(token, ">") {
			matched = p
		}
	}
	if matched != "" {
		inner = token[len(matched) : len(token)-1]
	}
	id, err := strconv.ParseInt(inner, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// tailAfter returns what remains of raw once the already-consumed leading
// tokens are stripped
func tailAfter(raw string, used []string) string {
	rest := raw
	for _, tok := range used {
		rest = strings.TrimSpace(rest)
		// Quoted tokens lose their quotes during splitting; skip either form
		if strings.HasPrefix(rest, "\""+tok+"\"") {
			rest = rest[len(tok)+2:]
		} else if strings.HasPrefix(rest, tok) {
			rest = rest[len(tok):]
		}
	}
	return strings.TrimSpace(rest)
}
