package models

import "strings"

// Level represents the seniority of a roster member.
type Level string

const (
	// LevelJunior marks a member whose messages are escalated for review.
	LevelJunior Level = "junior"
	// LevelMid is a mid-level member.
	LevelMid Level = "mid"
	// LevelSenior is a senior member.
	LevelSenior Level = "senior"
	// LevelPrincipal is the highest seniority.
	LevelPrincipal Level = "principal"
)

// Valid returns true if the level is a known value.
func (l Level) Valid() bool {
	switch l {
	case LevelJunior, LevelMid, LevelSenior, LevelPrincipal:
		return true
	default:
		return false
	}
}

// Rank orders levels from junior (1) to principal (4).
// Unknown or empty levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelJunior:
		return 1
	case LevelMid:
		return 2
	case LevelSenior:
		return 3
	case LevelPrincipal:
		return 4
	default:
		return 0
	}
}

// ParseLevel normalizes a configured level string. Empty input yields "".
func ParseLevel(s string) Level {
	return Level(strings.ToLower(strings.TrimSpace(s)))
}

// SandboxLevel is the policy tier that constrains tool actions.
type SandboxLevel string

const (
	// SandboxStrict requires approval for anything beyond reads.
	SandboxStrict SandboxLevel = "strict"
	// SandboxGuided auto-permits workspace writes.
	SandboxGuided SandboxLevel = "guided"
	// SandboxWild auto-permits everything.
	SandboxWild SandboxLevel = "wild"
)

// Valid returns true if the sandbox level is a known value.
func (s SandboxLevel) Valid() bool {
	switch s {
	case SandboxStrict, SandboxGuided, SandboxWild:
		return true
	default:
		return false
	}
}

// DeliveryMode is the session-wide cost/time/quality bias.
type DeliveryMode string

const (
	// ModeCost favors fewer, cheaper turns.
	ModeCost DeliveryMode = "cost"
	// ModeTime favors parallelism.
	ModeTime DeliveryMode = "time"
	// ModeQuality favors review depth.
	ModeQuality DeliveryMode = "quality"
)

// Valid returns true if the mode is a known value.
func (m DeliveryMode) Valid() bool {
	switch m {
	case ModeCost, ModeTime, ModeQuality:
		return true
	default:
		return false
	}
}
