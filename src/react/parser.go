package react

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
)

// NoThought stands in for a reply that skipped the Thought: line.
const NoThought = "(no thought given)"

// Parsed is the structured form of one model reply.
type Parsed struct {
	Thought string
	Action  Action
}

// Parser turns model text into a Parsed step. Model output is untrusted: a
// Parser never fails, it returns an Invalid action instead.
type Parser interface {
	Parse(text string) Parsed
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(text string) Parsed

// Parse calls f.
func (f ParserFunc) Parse(text string) Parsed { return f(text) }

// TextParser reads the line-oriented grammar
//
//	Thought: <text>
//	Action: Tool(key="value", n=1, flag=true, items=[1,2])
//
// or
//
//	Thought: <text>
//	Action: FINISH
//	Answer: <text>
type TextParser struct{}

var (
	thoughtRe = regexp.MustCompile(`(?im)^[ \t]*thought[ \t]*:[ \t]*`)
	actionRe  = regexp.MustCompile(`(?im)^[ \t]*action[ \t]*:[ \t]*`)
	answerRe  = regexp.MustCompile(`(?im)^[ \t]*(?:final[ \t]+)?answer[ \t]*:[ \t]*`)
	finishRe  = regexp.MustCompile(`(?i)^finish\b`)
	callRe    = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)[ \t]*(\()?`)
	keyRe     = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*[=:]\s*`)
	quotedKey = regexp.MustCompile(`^"([^"]+)"\s*[=:]\s*`)
)

// Parse implements Parser.
func (TextParser) Parse(text string) Parsed {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	actLoc := actionRe.FindStringIndex(text)
	ansLoc := answerRe.FindStringIndex(text)
	thoughtEnd := len(text)
	switch {
	case actLoc != nil:
		thoughtEnd = actLoc[0]
	case ansLoc != nil:
		thoughtEnd = ansLoc[0]
	}

	var p Parsed
	if loc := thoughtRe.FindStringIndex(text[:thoughtEnd]); loc != nil {
		p.Thought = strings.TrimSpace(text[loc[1]:thoughtEnd])
	}
	if p.Thought == "" {
		p.Thought = NoThought
	}

	if actLoc == nil {
		if ansLoc != nil {
			p.Action = Finish{Answer: strings.TrimSpace(text[ansLoc[1]:])}
			return p
		}
		p.Action = Invalid{Raw: strings.TrimSpace(text), Reason: "no Action: line"}
		return p
	}
	p.Action = parseAction(text[actLoc[1]:])
	return p
}

func parseAction(rest string) Action {
	body := strings.TrimLeft(strings.TrimSpace(rest), "`")
	line := firstLine(body)

	if finishRe.MatchString(body) {
		return parseFinish(body, rest)
	}

	m := callRe.FindStringSubmatch(body)
	if m == nil {
		return Invalid{Raw: line, Reason: "action is not a tool call"}
	}
	name := m[1]
	if m[2] == "" {
		tail := strings.Trim(strings.TrimSpace(line[len(m[0]):]), "`")
		if tail != "" {
			return Invalid{Raw: line, Reason: "expected ( after tool name"}
		}
		return FunctionCall{Name: name, Args: map[string]any{}}
	}

	inner, _, err := enclosed(body[len(m[0]):])
	if err != nil {
		return Invalid{Raw: line, Reason: err.Error()}
	}
	args, err := parseArgs(inner)
	if err != nil {
		return Invalid{Raw: line, Reason: err.Error()}
	}
	return FunctionCall{Name: name, Args: args}
}

func parseFinish(body, rest string) Action {
	var answer string
	if loc := answerRe.FindStringIndex(rest); loc != nil {
		answer = strings.TrimSpace(rest[loc[1]:])
	}
	if answer != "" {
		return Finish{Answer: answer}
	}

	after := strings.TrimSpace(body[len("finish"):])
	if strings.HasPrefix(after, "(") {
		inner, _, err := enclosed(after[1:])
		if err == nil {
			if args, err := parseArgs(inner); err == nil {
				for _, k := range []string{"answer", "arg0", "result"} {
					if v, ok := args[k]; ok && v != nil {
						if s, ok := v.(string); ok {
							return Finish{Answer: s}
						}
						raw, _ := json.Marshal(v)
						return Finish{Answer: string(raw)}
					}
				}
			}
		}
		return Finish{}
	}
	after = strings.TrimLeft(firstLine(after), ":- \t`")
	return Finish{Answer: strings.TrimSpace(after)}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

var errUnbalanced = errors.New("unbalanced parentheses or quotes in arguments")

// enclosed returns the text up to the ')' closing an already consumed '('.
func enclosed(s string) (inner, tail string, err error) {
	depth := 1
	var quote rune
	escaped := false
	for i, r := range s {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'':
			quote = r
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				if r != ')' {
					return "", "", errUnbalanced
				}
				return s[:i], s[i+1:], nil
			}
		}
	}
	return "", "", errUnbalanced
}

// splitTopLevel splits on commas outside quotes and brackets.
func splitTopLevel(s string) ([]string, error) {
	var (
		parts   []string
		depth   int
		quote   rune
		escaped bool
		start   int
	)
	for i, r := range s {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'':
			quote = r
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if quote != 0 || depth != 0 {
		return nil, errUnbalanced
	}
	parts = append(parts, s[start:])

	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out, nil
}

// parseArgs reads key=value and positional literals. Positional values are
// keyed arg0, arg1 and so on. A lone JSON object is taken as the named
// arguments themselves.
func parseArgs(inner string) (map[string]any, error) {
	pieces, err := splitTopLevel(inner)
	if err != nil {
		return nil, err
	}
	args := make(map[string]any, len(pieces))
	positional := 0
	for _, piece := range pieces {
		key := ""
		value := piece
		if m := keyRe.FindStringSubmatch(piece); m != nil {
			key, value = m[1], piece[len(m[0]):]
		} else if m := quotedKey.FindStringSubmatch(piece); m != nil {
			key, value = m[1], piece[len(m[0]):]
		}
		v, err := parseValue(value)
		if err != nil {
			return nil, err
		}
		if key == "" {
			key = "arg" + strconv.Itoa(positional)
			positional++
		}
		args[key] = v
	}
	if len(args) == 1 {
		if obj, ok := args["arg0"].(map[string]any); ok {
			return obj, nil
		}
	}
	return args, nil
}

func parseValue(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	switch s[0] {
	case '"':
		if v, err := strconv.Unquote(s); err == nil {
			return v, nil
		}
		if len(s) >= 2 && s[len(s)-1] == '"' {
			return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`), nil
		}
		return nil, errors.New("unterminated string " + s)
	case '\'':
		if len(s) >= 2 && s[len(s)-1] == '\'' {
			return strings.ReplaceAll(s[1:len(s)-1], `\'`, `'`), nil
		}
		return nil, errors.New("unterminated string " + s)
	case '[', '{':
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v, nil
		}
		return s, nil
	}
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "none", "nil":
		return nil, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return s, nil
}
