package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/custos"
	"github.com/xraph/custos/id"
	"github.com/xraph/custos/request"
)

func (a *API) registerRequestRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("requests"))

	if err := g.POST("/requests", a.submitRequest,
		forge.WithSummary("Submit permission request"),
		forge.WithDescription("Opens a PENDING request for a role assignment."),
		forge.WithOperationID("submitRequest"),
		forge.WithRequestSchema(SubmitRequestRequest{}),
		forge.WithCreatedResponse(&request.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/requests/:requestId", a.getRequest,
		forge.WithSummary("Get request"),
		forge.WithOperationID("getRequest"),
		forge.WithResponseSchema(http.StatusOK, "Request details", &request.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/requests", a.listRequests,
		forge.WithSummary("List requests"),
		forge.WithOperationID("listRequests"),
		forge.WithRequestSchema(ListRequestsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Request list", ListResponse[*request.Request]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/requests/:requestId/approve", a.approveRequest,
		forge.WithSummary("Approve request"),
		forge.WithDescription("Approves a PENDING request and creates the resulting assignment atomically."),
		forge.WithOperationID("approveRequest"),
		forge.WithRequestSchema(ReviewRequestRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Approved request", &request.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/requests/:requestId/reject", a.rejectRequest,
		forge.WithSummary("Reject request"),
		forge.WithOperationID("rejectRequest"),
		forge.WithRequestSchema(ReviewRequestRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Rejected request", &request.Request{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) submitRequest(ctx forge.Context, req *SubmitRequestRequest) (*request.Request, error) {
	if req.RequestedFor == "" || req.RoleID == "" {
		return nil, forge.BadRequest("requested_for and role_id are required")
	}
	roleID, err := id.ParseRoleID(req.RoleID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}
	sc, err := parseScope(req.Scope)
	if err != nil {
		return nil, err
	}

	r, err := a.eng.SubmitRequest(ctx.Context(), custos.SubmitRequestInput{
		RequestedBy:      actor(ctx),
		RequestedFor:     req.RequestedFor,
		RoleID:           roleID,
		ExtraPermissions: req.ExtraPermissions,
		Scope:            sc,
		Reason:           req.Reason,
		Justification:    req.Justification,
		DurationDays:     req.DurationDays,
		Priority:         request.Priority(req.Priority),
		Metadata:         req.Metadata,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) getRequest(ctx forge.Context, _ *GetRequestRequest) (*request.Request, error) {
	reqID, err := id.ParseRequestID(ctx.Param("requestId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid request ID: %v", err))
	}

	r, err := a.eng.GetRequest(ctx.Context(), reqID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) listRequests(ctx forge.Context, req *ListRequestsRequest) (*ListResponse[*request.Request], error) {
	filter := &request.ListFilter{
		RequestedBy:  req.RequestedBy,
		RequestedFor: req.RequestedFor,
		Status:       request.Status(req.Status),
		Priority:     request.Priority(req.Priority),
		Limit:        defaultLimit(req.Limit),
		Offset:       req.Offset,
	}

	reqs, err := a.eng.ListRequests(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountRequests(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*request.Request]{
		Items:  reqs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) approveRequest(ctx forge.Context, req *ReviewRequestRequest) (*request.Request, error) {
	reqID, err := id.ParseRequestID(ctx.Param("requestId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid request ID: %v", err))
	}

	r, err := a.eng.ApproveRequest(ctx.Context(), reqID, actor(ctx), req.Notes)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) rejectRequest(ctx forge.Context, req *ReviewRequestRequest) (*request.Request, error) {
	reqID, err := id.ParseRequestID(ctx.Param("requestId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid request ID: %v", err))
	}

	r, err := a.eng.RejectRequest(ctx.Context(), reqID, actor(ctx), req.Notes)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}
