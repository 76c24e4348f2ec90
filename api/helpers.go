package api

import (
	"errors"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/custos"
	"github.com/xraph/custos/scope"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, custos.ErrNotFound) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, custos.ErrValidation) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, custos.ErrDuplicateCode) ||
		errors.Is(err, custos.ErrDuplicateName) ||
		errors.Is(err, custos.ErrDuplicateGrant) ||
		errors.Is(err, custos.ErrDuplicateAssignment) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, custos.ErrCapacityExceeded) || errors.Is(err, custos.ErrInvalidState) {
		return forge.BadRequest(err.Error())
	}
	return err
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// parseScope parses a "kind:id" scope string, "" meaning unscoped.
func parseScope(s string) (scope.Scope, error) {
	sc, err := scope.Parse(s)
	if err != nil {
		return scope.Scope{}, forge.BadRequest("invalid scope: " + err.Error())
	}
	return sc, nil
}

// parseTimePtr parses an optional RFC3339 timestamp.
func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, forge.BadRequest("invalid timestamp: " + err.Error())
	}
	return &t, nil
}

// actor resolves the acting principal from the request context.
func actor(ctx forge.Context) string {
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return userID
	}
	return "anonymous"
}
