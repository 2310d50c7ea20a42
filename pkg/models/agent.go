package models

import "strings"

// Member is a roster entry: one agent on the team.
type Member struct {
	// ID is the unique identifier used in @mentions.
	ID string `json:"id" yaml:"id" mapstructure:"id"`
	// Name is the display name.
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	// Role is the free-text role ("Team Lead", "QA", "Engineer").
	Role string `json:"role" yaml:"role" mapstructure:"role"`
	// Level is the optional seniority used for review escalation.
	Level Level `json:"level,omitempty" yaml:"level,omitempty" mapstructure:"level"`
	// Model selects the agent backend from the registry.
	Model string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
}

// IsLead reports whether the member's role is "team lead".
func (m Member) IsLead() bool {
	return strings.EqualFold(strings.TrimSpace(m.Role), "team lead")
}

// IsQA reports whether the member's role is a QA role.
func (m Member) IsQA() bool {
	role := strings.ToLower(m.Role)
	return role == "qa" || strings.HasPrefix(role, "qa ") || strings.Contains(role, "quality assurance")
}

// DisplayName returns Name, falling back to ID.
func (m Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Roster is the ordered team membership fixed at session start.
type Roster []Member

// Get looks up a member by id.
func (r Roster) Get(id string) (Member, bool) {
	for _, m := range r {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// Has reports whether id is on the roster.
func (r Roster) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Lead returns the member whose role is "team lead", else the first member.
// ok is false only for an empty roster.
func (r Roster) Lead() (Member, bool) {
	for _, m := range r {
		if m.IsLead() {
			return m, true
		}
	}
	if len(r) == 0 {
		return Member{}, false
	}
	return r[0], true
}

// IDs returns member ids in roster order.
func (r Roster) IDs() []string {
	ids := make([]string, len(r))
	for i, m := range r {
		ids[i] = m.ID
	}
	return ids
}
