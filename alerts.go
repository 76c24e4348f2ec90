package custos

import (
	"context"
	"fmt"

	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/alert"
	"github.com/xraph/custos/id"
)

// RaiseAlertInput holds the fields for a new security alert. Detection
// logic is external; this engine only manages the lifecycle.
type RaiseAlertInput struct {
	Title       string
	Description string
	Severity    alert.Severity
	ThreatType  string
	PrincipalID string
	SourceIP    string
	Metadata    map[string]any
}

// RaiseAlert opens a new alert in status NEW.
func (e *Engine) RaiseAlert(ctx context.Context, in RaiseAlertInput) (*alert.Alert, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: alert title is required", ErrValidation)
	}
	if !in.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrValidation, in.Severity)
	}

	now := e.now().UTC()
	a := &alert.Alert{
		ID:          id.NewAlertID(),
		Title:       in.Title,
		Description: in.Description,
		Severity:    in.Severity,
		Status:      alert.StatusNew,
		PrincipalID: in.PrincipalID,
		ThreatType:  in.ThreatType,
		SourceIP:    in.SourceIP,
		Metadata:    in.Metadata,
		DetectedAt:  now,
		UpdatedAt:   now,
	}

	if err := e.store.CreateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("custos: raise alert: %w", err)
	}

	if e.plugins != nil {
		e.plugins.EmitAlertRaised(ctx, a)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: in.PrincipalID,
		Action:      ActionAlertRaise,
		Resource:    "alert",
		Description: "raised alert: " + in.Title,
		TargetID:    a.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return a, nil
}

// BeginInvestigation moves a NEW alert to INVESTIGATING and records the
// investigator.
func (e *Engine) BeginInvestigation(ctx context.Context, alertID id.AlertID, investigatedBy string) (*alert.Alert, error) {
	return e.transitionAlert(ctx, alertID, alert.StatusInvestigating, investigatedBy, "",
		func(a *alert.Alert) error {
			if a.Status != alert.StatusNew {
				return fmt.Errorf("%w: investigation can only begin on a NEW alert", ErrInvalidState)
			}
			return nil
		})
}

// ResolveAlert closes an INVESTIGATING alert as RESOLVED.
// Investigation is mandatory: resolving straight from NEW is rejected.
func (e *Engine) ResolveAlert(ctx context.Context, alertID id.AlertID, resolvedBy, notes string) (*alert.Alert, error) {
	return e.transitionAlert(ctx, alertID, alert.StatusResolved, resolvedBy, notes,
		func(a *alert.Alert) error {
			if a.Status != alert.StatusInvestigating {
				return fmt.Errorf("%w: only an INVESTIGATING alert can be resolved", ErrInvalidState)
			}
			return nil
		})
}

// MarkFalsePositive closes an INVESTIGATING alert as FALSE_POSITIVE.
// Same policy as ResolveAlert: investigation is mandatory.
func (e *Engine) MarkFalsePositive(ctx context.Context, alertID id.AlertID, markedBy, notes string) (*alert.Alert, error) {
	return e.transitionAlert(ctx, alertID, alert.StatusFalsePositive, markedBy, notes,
		func(a *alert.Alert) error {
			if a.Status != alert.StatusInvestigating {
				return fmt.Errorf("%w: only an INVESTIGATING alert can be marked false positive", ErrInvalidState)
			}
			return nil
		})
}

// IgnoreAlert closes an alert as IGNORED from any non-terminal state.
func (e *Engine) IgnoreAlert(ctx context.Context, alertID id.AlertID, ignoredBy, notes string) (*alert.Alert, error) {
	return e.transitionAlert(ctx, alertID, alert.StatusIgnored, ignoredBy, notes,
		func(a *alert.Alert) error {
			if a.Status.Terminal() {
				return fmt.Errorf("%w: alert is already %s", ErrInvalidState, a.Status)
			}
			return nil
		})
}

// transitionAlert applies one lifecycle transition after the guard
// accepts the current state.
func (e *Engine) transitionAlert(ctx context.Context, alertID id.AlertID, to alert.Status, by, notes string, guard func(*alert.Alert) error) (*alert.Alert, error) {
	a, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("custos: alert transition: %w", err)
	}
	if err := guard(a); err != nil {
		return nil, err
	}

	from := a.Status
	now := e.now().UTC()

	a.Status = to
	a.InvestigatedBy = by
	if notes != "" {
		a.InvestigationNotes = notes
	}
	if to.Terminal() {
		a.ResolvedAt = &now
	}
	a.UpdatedAt = now

	if err := e.store.UpdateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("custos: alert transition: %w", err)
	}

	if e.plugins != nil {
		e.plugins.EmitAlertTransitioned(ctx, a, from)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: by,
		Action:      ActionAlertTransition,
		Resource:    "alert",
		Description: fmt.Sprintf("alert %s → %s", from, to),
		TargetID:    a.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return a, nil
}

// AppendActionTaken records a containment or follow-up action on a
// non-terminal alert.
func (e *Engine) AppendActionTaken(ctx context.Context, alertID id.AlertID, action, by string) (*alert.Alert, error) {
	if action == "" {
		return nil, fmt.Errorf("%w: action is required", ErrValidation)
	}

	a, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("custos: append action: %w", err)
	}
	if a.Status.Terminal() {
		return nil, fmt.Errorf("%w: alert is already %s", ErrInvalidState, a.Status)
	}

	a.ActionsTaken = append(a.ActionsTaken, action)
	a.UpdatedAt = e.now().UTC()

	if err := e.store.UpdateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("custos: append action: %w", err)
	}

	e.audit(ctx, RecordInput{
		PrincipalID: by,
		Action:      ActionAlertTransition,
		Resource:    "alert",
		Description: "action taken: " + action,
		TargetID:    a.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return a, nil
}

// GetAlert retrieves an alert by ID.
func (e *Engine) GetAlert(ctx context.Context, alertID id.AlertID) (*alert.Alert, error) {
	return e.store.GetAlert(ctx, alertID)
}

// ListAlerts returns alerts matching the filter, newest first.
func (e *Engine) ListAlerts(ctx context.Context, filter *alert.ListFilter) ([]*alert.Alert, error) {
	return e.store.ListAlerts(ctx, filter)
}
