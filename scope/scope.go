// Package scope defines the organizational scope a grant or assignment is
// narrowed to. A Scope is a (kind, id) pair over the known organizational
// kinds, or the zero value meaning "unscoped" (global). Scopes are opaque
// keys compared only by equality; there is no hierarchy between kinds.
package scope

import (
	"fmt"
	"strings"
)

// Kind identifies the organizational entity type a scope points at.
type Kind string

// Known scope kinds.
const (
	KindUniversity Kind = "university"
	KindCollege    Kind = "college"
	KindDepartment Kind = "department"
	KindCourse     Kind = "course"
)

// ValidKind reports whether k is one of the known scope kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindUniversity, KindCollege, KindDepartment, KindCourse:
		return true
	default:
		return false
	}
}

// Scope narrows a grant or assignment to one organizational entity.
// The zero value is the unscoped (global) variant.
type Scope struct {
	Kind Kind   `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Unscoped is the global scope.
var Unscoped = Scope{}

// New creates a scope for the given kind and identifier.
func New(kind Kind, scopeID string) Scope {
	return Scope{Kind: kind, ID: scopeID}
}

// IsZero reports whether s is the unscoped variant.
func (s Scope) IsZero() bool {
	return s.Kind == "" && s.ID == ""
}

// Equal reports whether two scopes refer to the same entity.
// Comparison is exact; no hierarchical containment.
func (s Scope) Equal(o Scope) bool {
	return s.Kind == o.Kind && s.ID == o.ID
}

// Validate checks that s is either unscoped or a well-formed (kind, id) pair.
func (s Scope) Validate() error {
	if s.IsZero() {
		return nil
	}
	if !ValidKind(s.Kind) {
		return fmt.Errorf("scope: unknown kind %q", s.Kind)
	}
	if s.ID == "" {
		return fmt.Errorf("scope: kind %q requires an id", s.Kind)
	}
	return nil
}

// String renders the scope as "kind:id", or "" when unscoped.
func (s Scope) String() string {
	if s.IsZero() {
		return ""
	}
	return string(s.Kind) + ":" + s.ID
}

// Parse parses a "kind:id" string into a Scope. The empty string parses
// to Unscoped.
func Parse(str string) (Scope, error) {
	if str == "" {
		return Unscoped, nil
	}

	kind, scopeID, ok := strings.Cut(str, ":")
	if !ok || scopeID == "" {
		return Unscoped, fmt.Errorf("scope: parse %q: want \"kind:id\"", str)
	}

	s := Scope{Kind: Kind(kind), ID: scopeID}
	if err := s.Validate(); err != nil {
		return Unscoped, err
	}
	return s, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded scopes.
func MustParse(str string) Scope {
	s, err := Parse(str)
	if err != nil {
		panic(fmt.Sprintf("scope: must parse %q: %v", str, err))
	}
	return s
}

// MarshalText implements encoding.TextMarshaler.
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scope) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
