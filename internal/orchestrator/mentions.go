package orchestrator

import (
	"regexp"
	"strings"

	"github.com/ShayCichocki/crew/pkg/models"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_-]+(?:\.[A-Za-z0-9_-]+)*)`)

// ExtractMentions returns the roster ids addressed with @id in content, in
// first-mention order. Ids match case-insensitively; self is excluded.
func ExtractMentions(content string, roster models.Roster, self string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		id, ok := resolveMember(roster, m[1])
		if !ok || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func resolveMember(roster models.Roster, token string) (string, bool) {
	for _, m := range roster {
		if m.ID == token {
			return m.ID, true
		}
	}
	for _, m := range roster {
		if strings.EqualFold(m.ID, token) {
			return m.ID, true
		}
	}
	return "", false
}

// Sanitizer strips echoed speaker prefixes such as "Lena (Team Lead):" that
// agents copy from the transcript into their own replies.
type Sanitizer struct {
	prefix *regexp.Regexp
}

// NewSanitizer builds a sanitizer that recognizes every roster member's name
// and id as a speaker.
func NewSanitizer(roster models.Roster) *Sanitizer {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		n = strings.TrimSpace(n)
		if n == "" || seen[strings.ToLower(n)] {
			return
		}
		seen[strings.ToLower(n)] = true
		names = append(names, regexp.QuoteMeta(n))
	}
	for _, m := range roster {
		add(m.Name)
		add(m.ID)
	}
	add("System")
	pattern := `(?im)^[ \t]*(?:\*\*)?(?:` + strings.Join(names, "|") + `)[ \t]*\([^)\n]*\)[ \t]*:(?:\*\*)?[ \t]*`
	return &Sanitizer{prefix: regexp.MustCompile(pattern)}
}

// Clean removes speaker prefixes at the start of any line and trims the result.
func (s *Sanitizer) Clean(content string) string {
	for {
		next := s.prefix.ReplaceAllString(content, "")
		if next == content {
			break
		}
		content = next
	}
	return strings.TrimSpace(content)
}
