package models

// Priority is the urgency the model assigns to an issue.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists the accepted priorities from most to least urgent.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the accepted priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank returns a numeric rank for sorting (higher = more urgent).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Issue is a single problem flagged by the model.
//
// Line is not checked against the length of the reviewed file; the model may
// reference lines that do not exist.
type Issue struct {
	Line            int      `json:"line" yaml:"line"`
	Priority        Priority `json:"priority" yaml:"priority"`
	Category        string   `json:"category" yaml:"category"`
	Tags            []string `json:"tags" yaml:"tags"`
	Title           string   `json:"title" yaml:"title"`
	Description     string   `json:"description" yaml:"description"`
	PotentialImpact string   `json:"potential_impact" yaml:"potential_impact"`
	SuggestedFix    string   `json:"suggested_fix" yaml:"suggested_fix"`
}
