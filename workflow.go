package custos

import (
	"context"
	"fmt"

	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/request"
	"github.com/xraph/custos/scope"
)

// SubmitRequestInput holds the fields for a new permission request.
type SubmitRequestInput struct {
	RequestedBy      string
	RequestedFor     string
	RoleID           id.RoleID
	ExtraPermissions []string
	Scope            scope.Scope
	Reason           string
	Justification    string
	DurationDays     int
	Priority         request.Priority
	Metadata         map[string]any
}

// SubmitRequest opens a PENDING permission request. When
// Config.PendingRequestTTL is set the request lapses after that long.
func (e *Engine) SubmitRequest(ctx context.Context, in SubmitRequestInput) (*request.Request, error) {
	if in.RequestedBy == "" || in.RequestedFor == "" {
		return nil, fmt.Errorf("%w: requested_by and requested_for are required", ErrValidation)
	}
	if in.Reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if err := in.Scope.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.DurationDays < 0 {
		return nil, fmt.Errorf("%w: duration_days must be >= 0", ErrValidation)
	}
	if in.Priority == "" {
		in.Priority = request.PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, in.Priority)
	}

	r, err := e.store.GetRole(ctx, in.RoleID)
	if err != nil {
		return nil, fmt.Errorf("custos: submit request: %w", err)
	}
	if !r.IsActive {
		return nil, fmt.Errorf("%w: role %q is deactivated", ErrInvalidState, r.Name)
	}

	now := e.now().UTC()
	req := &request.Request{
		ID:               id.NewRequestID(),
		RequestedBy:      in.RequestedBy,
		RequestedFor:     in.RequestedFor,
		RoleID:           in.RoleID,
		ExtraPermissions: in.ExtraPermissions,
		Scope:            in.Scope,
		Reason:           in.Reason,
		Justification:    in.Justification,
		DurationDays:     in.DurationDays,
		Priority:         in.Priority,
		Status:           request.StatusPending,
		RequestedAt:      now,
		Metadata:         in.Metadata,
	}
	if ttl := e.config.PendingRequestTTL; ttl > 0 {
		expires := now.Add(ttl)
		req.ExpiresAt = &expires
	}

	if err := e.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("custos: submit request: %w", err)
	}

	if e.plugins != nil {
		e.plugins.EmitRequestSubmitted(ctx, req)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: in.RequestedBy,
		Action:      ActionRequestSubmit,
		Resource:    "request",
		Description: fmt.Sprintf("requested role %s for %s", r.Name, in.RequestedFor),
		TargetID:    req.ID.String(),
		RoleUsed:    r.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return req, nil
}

// ApproveRequest transitions a PENDING request to APPROVED and creates
// the resulting assignment as one atomic unit. All-or-nothing: if the
// assignment cannot be created (capacity, duplicate), the request stays
// PENDING and the same error surfaces to the caller.
func (e *Engine) ApproveRequest(ctx context.Context, reqID id.RequestID, approvedBy, notes string) (*request.Request, error) {
	req, err := e.store.GetRequest(ctx, reqID)
	if err != nil {
		return nil, fmt.Errorf("custos: approve request: %w", err)
	}

	now := e.now().UTC()
	if req.Lapsed(now) {
		return nil, fmt.Errorf("%w: request has expired", ErrInvalidState)
	}
	if req.Status != request.StatusPending {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}

	in := AssignRoleInput{
		PrincipalID: req.RequestedFor,
		RoleID:      req.RoleID,
		Scope:       req.Scope,
		GrantedBy:   approvedBy,
		ApprovedBy:  approvedBy,
		Reason:      req.Reason,
	}
	if req.DurationDays > 0 {
		expires := now.AddDate(0, 0, req.DurationDays)
		in.ExpiresAt = &expires
	}

	r, a, err := e.buildAssignment(ctx, in)
	if err != nil {
		return nil, err
	}

	approved := *req
	approved.Status = request.StatusApproved
	approved.ReviewedBy = approvedBy
	approved.ReviewedAt = &now
	approved.ReviewNotes = notes
	approved.AssignmentID = &a.ID

	if err := e.store.ApproveRequest(ctx, &approved, a, r.MaxAssignees, now); err != nil {
		e.audit(ctx, RecordInput{
			PrincipalID:  approvedBy,
			Action:       ActionRequestApprove,
			Resource:     "request",
			Description:  "approve request failed",
			TargetID:     req.ID.String(),
			RoleUsed:     r.ID.String(),
			Result:       accesslog.ResultFailed,
			ErrorMessage: err.Error(),
		})
		return nil, fmt.Errorf("custos: approve request: %w", err)
	}

	e.invalidatePrincipal(ctx, a.PrincipalID)
	if e.plugins != nil {
		e.plugins.EmitRequestApproved(ctx, &approved, a)
		e.plugins.EmitRoleAssigned(ctx, a)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: approvedBy,
		Action:      ActionRequestApprove,
		Resource:    "request",
		Description: fmt.Sprintf("approved role %s for %s", r.Name, req.RequestedFor),
		TargetID:    req.ID.String(),
		RoleUsed:    r.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return &approved, nil
}

// RejectRequest transitions a PENDING request to REJECTED. Terminal; no
// assignment results.
func (e *Engine) RejectRequest(ctx context.Context, reqID id.RequestID, rejectedBy, notes string) (*request.Request, error) {
	req, err := e.store.GetRequest(ctx, reqID)
	if err != nil {
		return nil, fmt.Errorf("custos: reject request: %w", err)
	}

	now := e.now().UTC()
	if req.Lapsed(now) {
		return nil, fmt.Errorf("%w: request has expired", ErrInvalidState)
	}
	if req.Status != request.StatusPending {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}

	req.Status = request.StatusRejected
	req.ReviewedBy = rejectedBy
	req.ReviewedAt = &now
	req.ReviewNotes = notes

	if err := e.store.UpdateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("custos: reject request: %w", err)
	}

	if e.plugins != nil {
		e.plugins.EmitRequestRejected(ctx, req)
	}
	e.audit(ctx, RecordInput{
		PrincipalID: rejectedBy,
		Action:      ActionRequestReject,
		Resource:    "request",
		Description: "rejected request",
		TargetID:    req.ID.String(),
		Result:      accesslog.ResultSuccess,
	})
	return req, nil
}

// GetRequest retrieves a request by ID with lazy expiry applied to the
// reported status.
func (e *Engine) GetRequest(ctx context.Context, reqID id.RequestID) (*request.Request, error) {
	req, err := e.store.GetRequest(ctx, reqID)
	if err != nil {
		return nil, err
	}
	req.Status = req.EffectiveStatus(e.now().UTC())
	return req, nil
}

// ListRequests returns requests matching the filter, with lazy expiry
// applied to the reported statuses.
func (e *Engine) ListRequests(ctx context.Context, filter *request.ListFilter) ([]*request.Request, error) {
	reqs, err := e.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	for _, req := range reqs {
		req.Status = req.EffectiveStatus(now)
	}
	return reqs, nil
}
