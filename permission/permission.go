// Package permission defines the Permission entity and its store interface.
package permission

import (
	"time"

	"github.com/xraph/custos/id"
)

// RiskLevel classifies how dangerous a permission is if misused.
type RiskLevel string

// Risk levels, lowest to highest.
const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

// Permission is a catalog entry describing one grantable capability.
// Permissions are long-lived and soft-deactivated, never hard-deleted
// once referenced.
type Permission struct {
	ID               id.PermissionID `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Code             string          `json:"code" db:"code"`
	Description      string          `json:"description,omitempty" db:"description"`
	Category         string          `json:"category,omitempty" db:"category"`
	RiskLevel        RiskLevel       `json:"risk_level" db:"risk_level"`
	RequiresApproval bool            `json:"requires_approval" db:"requires_approval"`
	AutoExpire       bool            `json:"auto_expire" db:"auto_expire"`
	ExpireDays       int             `json:"expire_days,omitempty" db:"expire_days"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing permissions.
type ListFilter struct {
	Category         string    `json:"category,omitempty"`
	RiskLevel        RiskLevel `json:"risk_level,omitempty"`
	RequiresApproval *bool     `json:"requires_approval,omitempty"`
	IsActive         *bool     `json:"is_active,omitempty"`
	Search           string    `json:"search,omitempty"`
	Limit            int       `json:"limit,omitempty"`
	Offset           int       `json:"offset,omitempty"`
}
