package models

import (
	"strings"
	"time"
)

// Incident is a closed ticket record as delivered by the upstream validator.
type Incident struct {
	Number           string     `json:"number"`
	ShortDescription string     `json:"short_description"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	Subcategory      string     `json:"subcategory"`
	Priority         string     `json:"priority"`
	AssignmentGroup  string     `json:"assignment_group"`
	ResolutionNotes  string     `json:"resolution_notes"`
	CloseNotes       string     `json:"close_notes"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
}

// Field names understood by Incident.Field.
const (
	FieldNumber           = "number"
	FieldShortDescription = "short_description"
	FieldDescription      = "description"
	FieldCategory         = "category"
	FieldSubcategory      = "subcategory"
	FieldPriority         = "priority"
	FieldAssignmentGroup  = "assignment_group"
	FieldResolutionNotes  = "resolution_notes"
	FieldCloseNotes       = "close_notes"
	// FieldResolution is virtual: resolution notes, falling back to close notes.
	FieldResolution = "resolution"
)

// Field returns the named text field. Unknown names and timestamp fields yield "".
func (i Incident) Field(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FieldNumber:
		return i.Number
	case FieldShortDescription:
		return i.ShortDescription
	case FieldDescription:
		return i.Description
	case FieldCategory:
		return i.Category
	case FieldSubcategory:
		return i.Subcategory
	case FieldPriority:
		return i.Priority
	case FieldAssignmentGroup:
		return i.AssignmentGroup
	case FieldResolutionNotes:
		return i.ResolutionNotes
	case FieldCloseNotes:
		return i.CloseNotes
	case FieldResolution:
		return i.Resolution()
	default:
		return ""
	}
}

// Resolution returns the resolution notes, or the close notes when none were recorded.
func (i Incident) Resolution() string {
	if strings.TrimSpace(i.ResolutionNotes) != "" {
		return i.ResolutionNotes
	}
	return i.CloseNotes
}

// ResolutionDuration reports resolved_at - created_at when both timestamps are present.
func (i Incident) ResolutionDuration() (time.Duration, bool) {
	if i.CreatedAt == nil || i.ResolvedAt == nil {
		return 0, false
	}
	return i.ResolvedAt.Sub(*i.CreatedAt), true
}
