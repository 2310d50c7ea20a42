package orchestrator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrMalformedToolCall is returned when a CALL_TOOL line has unparseable arguments.
var ErrMalformedToolCall = errors.New("malformed tool call")

// toolCallPattern matches "CALL_TOOL: name" or "CALL_TOOL: name.action".
// The argument list is scanned by hand because JSON may contain parentheses.
var toolCallPattern = regexp.MustCompile(`CALL_TOOL:\s*([A-Za-z_][A-Za-z0-9_-]*)(?:\.([A-Za-z_][A-Za-z0-9_-]*))?`)

// ToolCall is an inline tool invocation parsed from agent text.
type ToolCall struct {
	// Name is the tool name.
	Name string
	// Action is the dotted action, if any. It is also merged into Args.
	Action string
	// Args is the JSON object argument payload.
	Args string
}

// String encodes the call in the inline wire syntax.
func (c ToolCall) String() string {
	args := c.Args
	if args == "" {
		args = "{}"
	}
	if c.Action != "" {
		return fmt.Sprintf("CALL_TOOL: %s.%s(%s)", c.Name, c.Action, args)
	}
	return fmt.Sprintf("CALL_TOOL: %s(%s)", c.Name, args)
}

// ParseToolCall finds the first CALL_TOOL invocation in content. found is
// false when content has none. Missing arguments default to {}. A dotted
// action is merged into the arguments under "action" unless already present.
func ParseToolCall(content string) (call ToolCall, found bool, err error) {
	loc := toolCallPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return ToolCall{}, false, nil
	}
	call.Name = content[loc[2]:loc[3]]
	if loc[4] >= 0 {
		call.Action = content[loc[4]:loc[5]]
	}

	rest := strings.TrimLeft(content[loc[1]:], " \t")
	args := "{}"
	if strings.HasPrefix(rest, "(") {
		inner, ok := scanArgs(rest)
		if !ok {
			return call, true, fmt.Errorf("%w: unterminated argument list for %s", ErrMalformedToolCall, call.Name)
		}
		if strings.TrimSpace(inner) != "" {
			args = strings.TrimSpace(inner)
		}
	}

	if !gjson.Valid(args) || !gjson.Parse(args).IsObject() {
		return call, true, fmt.Errorf("%w: arguments for %s are not a JSON object", ErrMalformedToolCall, call.Name)
	}
	if call.Action != "" && !gjson.Get(args, "action").Exists() {
		merged, err := sjson.Set(args, "action", call.Action)
		if err != nil {
			return call, true, fmt.Errorf("%w: %v", ErrMalformedToolCall, err)
		}
		args = merged
	}
	call.Args = args
	return call, true, nil
}

// scanArgs returns the text between the opening parenthesis at s[0] and its
// matching close, skipping parentheses inside JSON strings.
func scanArgs(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return "", false
}
