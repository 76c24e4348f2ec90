// Package role defines the Role entity and its store interface.
package role

import (
	"time"

	"github.com/xraph/custos/id"
)

// Level places a role in the organizational hierarchy.
type Level string

// Role levels, broadest to narrowest.
const (
	LevelSystem     Level = "SYSTEM"
	LevelUniversity Level = "UNIVERSITY"
	LevelCollege    Level = "COLLEGE"
	LevelDepartment Level = "DEPARTMENT"
	LevelCourse     Level = "COURSE"
)

// Valid reports whether l is a known role level.
func (l Level) Valid() bool {
	switch l {
	case LevelSystem, LevelUniversity, LevelCollege, LevelDepartment, LevelCourse:
		return true
	default:
		return false
	}
}

// Role is a named bundle of permissions assignable to principals.
// Roles are long-lived and soft-deactivated, never hard-deleted once
// referenced.
type Role struct {
	ID             id.RoleID      `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	NameEN         string         `json:"name_en,omitempty" db:"name_en"`
	Description    string         `json:"description,omitempty" db:"description"`
	Level          Level          `json:"level" db:"level"`
	HierarchyLevel int            `json:"hierarchy_level" db:"hierarchy_level"`
	MaxAssignees   int            `json:"max_assignees,omitempty" db:"max_assignees"`
	IsDefault      bool           `json:"is_default" db:"is_default"`
	IsSystemRole   bool           `json:"is_system_role" db:"is_system_role"`
	Restrictions   map[string]any `json:"restrictions,omitempty" db:"restrictions"`
	Settings       map[string]any `json:"settings,omitempty" db:"settings"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Unlimited reports whether the role has no assignee capacity limit.
func (r *Role) Unlimited() bool { return r.MaxAssignees <= 0 }

// ListFilter contains filters for listing roles.
type ListFilter struct {
	Level     Level  `json:"level,omitempty"`
	IsActive  *bool  `json:"is_active,omitempty"`
	IsDefault *bool  `json:"is_default,omitempty"`
	IsSystem  *bool  `json:"is_system,omitempty"`
	Search    string `json:"search,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}
