package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/custos"
	"github.com/xraph/custos/alert"
	"github.com/xraph/custos/id"
)

func (a *API) registerAlertRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("alerts"))

	if err := g.POST("/alerts", a.raiseAlert,
		forge.WithSummary("Raise alert"),
		forge.WithDescription("Opens a new security alert in status NEW."),
		forge.WithOperationID("raiseAlert"),
		forge.WithRequestSchema(RaiseAlertRequest{}),
		forge.WithCreatedResponse(&alert.Alert{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/alerts/:alertId", a.getAlert,
		forge.WithSummary("Get alert"),
		forge.WithOperationID("getAlert"),
		forge.WithResponseSchema(http.StatusOK, "Alert details", &alert.Alert{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/alerts", a.listAlerts,
		forge.WithSummary("List alerts"),
		forge.WithOperationID("listAlerts"),
		forge.WithRequestSchema(ListAlertsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Alert list", ListResponse[*alert.Alert]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/alerts/:alertId/investigate", a.investigateAlert,
		forge.WithSummary("Begin investigation"),
		forge.WithOperationID("investigateAlert"),
		forge.WithResponseSchema(http.StatusOK, "Alert under investigation", &alert.Alert{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/alerts/:alertId/resolve", a.resolveAlert,
		forge.WithSummary("Resolve alert"),
		forge.WithOperationID("resolveAlert"),
		forge.WithRequestSchema(AlertActionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Resolved alert", &alert.Alert{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/alerts/:alertId/false-positive", a.markFalsePositive,
		forge.WithSummary("Mark false positive"),
		forge.WithOperationID("markAlertFalsePositive"),
		forge.WithRequestSchema(AlertActionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Dismissed alert", &alert.Alert{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/alerts/:alertId/ignore", a.ignoreAlert,
		forge.WithSummary("Ignore alert"),
		forge.WithOperationID("ignoreAlert"),
		forge.WithRequestSchema(AlertActionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Ignored alert", &alert.Alert{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/alerts/:alertId/actions", a.appendAlertAction,
		forge.WithSummary("Record response action"),
		forge.WithOperationID("appendAlertAction"),
		forge.WithRequestSchema(AppendActionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated alert", &alert.Alert{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) raiseAlert(ctx forge.Context, req *RaiseAlertRequest) (*alert.Alert, error) {
	if req.Title == "" {
		return nil, forge.BadRequest("title is required")
	}

	al, err := a.eng.RaiseAlert(ctx.Context(), custos.RaiseAlertInput{
		Title:       req.Title,
		Description: req.Description,
		Severity:    alert.Severity(req.Severity),
		ThreatType:  req.ThreatType,
		PrincipalID: req.PrincipalID,
		SourceIP:    req.SourceIP,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return al, ctx.JSON(http.StatusCreated, al)
}

func (a *API) getAlert(ctx forge.Context, _ *GetAlertRequest) (*alert.Alert, error) {
	alertID, err := id.ParseAlertID(ctx.Param("alertId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid alert ID: %v", err))
	}

	al, err := a.eng.GetAlert(ctx.Context(), alertID)
	if err != nil {
		return nil, mapError(err)
	}

	return al, ctx.JSON(http.StatusOK, al)
}

func (a *API) listAlerts(ctx forge.Context, req *ListAlertsRequest) (*ListResponse[*alert.Alert], error) {
	after, err := parseTimePtr(req.After)
	if err != nil {
		return nil, err
	}
	before, err := parseTimePtr(req.Before)
	if err != nil {
		return nil, err
	}

	filter := &alert.ListFilter{
		Status:      alert.Status(req.Status),
		Severity:    alert.Severity(req.Severity),
		PrincipalID: req.PrincipalID,
		ThreatType:  req.ThreatType,
		After:       after,
		Before:      before,
		Limit:       defaultLimit(req.Limit),
		Offset:      req.Offset,
	}

	alerts, err := a.eng.ListAlerts(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountAlerts(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*alert.Alert]{
		Items:  alerts,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) investigateAlert(ctx forge.Context, _ *GetAlertRequest) (*alert.Alert, error) {
	alertID, err := id.ParseAlertID(ctx.Param("alertId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid alert ID: %v", err))
	}

	al, err := a.eng.BeginInvestigation(ctx.Context(), alertID, actor(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	return al, ctx.JSON(http.StatusOK, al)
}

func (a *API) resolveAlert(ctx forge.Context, req *AlertActionRequest) (*alert.Alert, error) {
	alertID, err := id.ParseAlertID(ctx.Param("alertId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid alert ID: %v", err))
	}

	al, err := a.eng.ResolveAlert(ctx.Context(), alertID, actor(ctx), req.Notes)
	if err != nil {
		return nil, mapError(err)
	}

	return al, ctx.JSON(http.StatusOK, al)
}

func (a *API) markFalsePositive(ctx forge.Context, req *AlertActionRequest) (*alert.Alert, error) {
	alertID, err := id.ParseAlertID(ctx.Param("alertId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid alert ID: %v", err))
	}

	al, err := a.eng.MarkFalsePositive(ctx.Context(), alertID, actor(ctx), req.Notes)
	if err != nil {
		return nil, mapError(err)
	}

	return al, ctx.JSON(http.StatusOK, al)
}

func (a *API) ignoreAlert(ctx forge.Context, req *AlertActionRequest) (*alert.Alert, error) {
	alertID, err := id.ParseAlertID(ctx.Param("alertId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid alert ID: %v", err))
	}

	al, err := a.eng.IgnoreAlert(ctx.Context(), alertID, actor(ctx), req.Notes)
	if err != nil {
		return nil, mapError(err)
	}

	return al, ctx.JSON(http.StatusOK, al)
}

func (a *API) appendAlertAction(ctx forge.Context, req *AppendActionRequest) (*alert.Alert, error) {
	alertID, err := id.ParseAlertID(ctx.Param("alertId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid alert ID: %v", err))
	}
	if req.Action == "" {
		return nil, forge.BadRequest("action is required")
	}

	al, err := a.eng.AppendActionTaken(ctx.Context(), alertID, req.Action, actor(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	return al, ctx.JSON(http.StatusOK, al)
}
