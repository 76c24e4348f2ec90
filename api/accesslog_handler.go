package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/custos/accesslog"
)

func (a *API) registerAccessLogRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("access-logs"))

	return g.GET("/access-logs", a.listAccessLogs,
		forge.WithSummary("Query access log"),
		forge.WithDescription("Returns audit entries matching the filters, newest first."),
		forge.WithOperationID("listAccessLogs"),
		forge.WithRequestSchema(ListAccessLogsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Access log entries", ListResponse[*accesslog.Entry]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listAccessLogs(ctx forge.Context, req *ListAccessLogsRequest) (*ListResponse[*accesslog.Entry], error) {
	after, err := parseTimePtr(req.After)
	if err != nil {
		return nil, err
	}
	before, err := parseTimePtr(req.Before)
	if err != nil {
		return nil, err
	}

	filter := &accesslog.QueryFilter{
		PrincipalID: req.PrincipalID,
		Action:      req.Action,
		Result:      accesslog.Result(req.Result),
		SourceIP:    req.SourceIP,
		After:       after,
		Before:      before,
		Limit:       defaultLimit(req.Limit),
		Offset:      req.Offset,
	}

	entries, err := a.eng.ListLogEntries(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.CountLogEntries(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*accesslog.Entry]{
		Items:  entries,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}
