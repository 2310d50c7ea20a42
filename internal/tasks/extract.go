package tasks

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// mentionPattern matches an "@id" token.
var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_-]+(?:\.[A-Za-z0-9_-]+)*)`)

// Candidate is a best-effort (assignee, description) pair parsed from a message.
type Candidate struct {
	Assignee    string
	Description string
}

// ExtractTaskFromMessage finds the first "@id <work>" pattern in content.
// Text after a second mention on the same line is cut off. It returns false if
// no mention is followed by any text.
func ExtractTaskFromMessage(content string) (Candidate, bool) {
	for _, loc := range mentionPattern.FindAllStringSubmatchIndex(content, -1) {
		rest := content[loc[1]:]
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[:i]
		}
		if i := strings.IndexByte(rest, '@'); i >= 0 {
			rest = rest[:i]
		}
		desc := strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), ",;:-"))
		if desc == "" {
			continue
		}
		return Candidate{Assignee: content[loc[2]:loc[3]], Description: desc}, true
	}
	return Candidate{}, false
}

// FallbackDescription builds a generic task description from a message when
// the extractor does not target the mentioned member.
func FallbackDescription(authorName, content string) string {
	text := strings.Join(strings.Fields(content), " ")
	const max = 160
	if len(text) > max {
		text = strings.TrimSpace(Truncate(text, max)) + "..."
	}
	if authorName == "" {
		return "Follow up on: " + text
	}
	return "Follow up on request from " + authorName + ": " + text
}

// Truncate returns the longest prefix of s that fits in max bytes without
// splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}
