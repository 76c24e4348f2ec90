package scope_test

import (
	"testing"

	"github.com/xraph/custos/scope"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"university:u1",
		"college:eng",
		"department:cs",
		"course:cs101",
	}

	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			s, err := scope.Parse(tt)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt, err)
			}
			if s.String() != tt {
				t.Errorf("round-trip mismatch: %q != %q", s.String(), tt)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"university",
		"university:",
		"planet:earth",
		":x",
	}

	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			if _, err := scope.Parse(tt); err == nil {
				t.Errorf("Parse(%q) should fail", tt)
			}
		})
	}
}

func TestEqualExactMatchOnly(t *testing.T) {
	college := scope.New(scope.KindCollege, "eng")
	dept := scope.New(scope.KindDepartment, "eng")

	if !college.Equal(scope.New(scope.KindCollege, "eng")) {
		t.Error("identical scopes should be equal")
	}
	if college.Equal(dept) {
		t.Error("different kinds with same id must not be equal")
	}
	if college.Equal(scope.Unscoped) {
		t.Error("scoped must not equal unscoped")
	}
}

func TestZeroValue(t *testing.T) {
	var s scope.Scope
	if !s.IsZero() {
		t.Error("zero value should be unscoped")
	}
	if s.String() != "" {
		t.Errorf("unscoped String() should be empty, got %q", s.String())
	}
	if err := s.Validate(); err != nil {
		t.Errorf("unscoped should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := scope.New(scope.KindCourse, "cs101").Validate(); err != nil {
		t.Errorf("valid scope rejected: %v", err)
	}
	if err := (scope.Scope{Kind: "galaxy", ID: "x"}).Validate(); err == nil {
		t.Error("unknown kind should fail validation")
	}
	if err := (scope.Scope{Kind: scope.KindCollege}).Validate(); err == nil {
		t.Error("missing id should fail validation")
	}
}

func TestMarshalText(t *testing.T) {
	original := scope.New(scope.KindDepartment, "math")
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored scope.Scope
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if !restored.Equal(original) {
		t.Errorf("mismatch: %v != %v", restored, original)
	}
}
