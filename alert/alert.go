// Package alert defines the SecurityAlert entity and its lifecycle.
package alert

import (
	"time"

	"github.com/xraph/custos/id"
)

// Severity grades how serious an alert is.
type Severity string

// Alert severities, lowest to highest.
const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of an alert.
type Status string

// Alert statuses. RESOLVED, FALSE_POSITIVE, and IGNORED are terminal.
const (
	StatusNew           Status = "NEW"
	StatusInvestigating Status = "INVESTIGATING"
	StatusResolved      Status = "RESOLVED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
	StatusIgnored       Status = "IGNORED"
)

// Terminal reports whether s permits no further transition.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFalsePositive || s == StatusIgnored
}

// Alert is a detected security anomaly under lifecycle management.
// Detection itself is external; this engine only tracks the alert from
// NEW to one terminal state.
type Alert struct {
	ID                 id.AlertID     `json:"id" db:"id"`
	Title              string         `json:"title" db:"title"`
	Description        string         `json:"description,omitempty" db:"description"`
	Severity           Severity       `json:"severity" db:"severity"`
	Status             Status         `json:"status" db:"status"`
	PrincipalID        string         `json:"principal_id,omitempty" db:"principal_id"`
	ThreatType         string         `json:"threat_type,omitempty" db:"threat_type"`
	SourceIP           string         `json:"source_ip,omitempty" db:"source_ip"`
	ActionsTaken       []string       `json:"actions_taken,omitempty" db:"actions_taken"`
	InvestigatedBy     string         `json:"investigated_by,omitempty" db:"investigated_by"`
	InvestigationNotes string         `json:"investigation_notes,omitempty" db:"investigation_notes"`
	Metadata           map[string]any `json:"metadata,omitempty" db:"metadata"`
	DetectedAt         time.Time      `json:"detected_at" db:"detected_at"`
	ResolvedAt         *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing alerts.
type ListFilter struct {
	Status      Status     `json:"status,omitempty"`
	Severity    Severity   `json:"severity,omitempty"`
	PrincipalID string     `json:"principal_id,omitempty"`
	ThreatType  string     `json:"threat_type,omitempty"`
	After       *time.Time `json:"after,omitempty"`
	Before      *time.Time `json:"before,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}
