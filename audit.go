package custos

import (
	"context"
	"iter"
	"log/slog"

	"github.com/xraph/custos/accesslog"
	"github.com/xraph/custos/id"
)

// RecordInput describes one access audit entry.
type RecordInput struct {
	PrincipalID    string
	Action         string
	Resource       string
	Description    string
	Result         accesslog.Result
	RoleUsed       string
	PermissionUsed string
	TargetID       string
	ErrorMessage   string
	Metadata       map[string]any
}

// Record appends an entry to the access audit log. It never fails the
// caller: write failures are logged and forwarded to the
// AuditWriteFailed plugin hook, the business operation proceeds.
func (e *Engine) Record(ctx context.Context, in RecordInput) *accesslog.Entry {
	info := clientInfoFromContext(ctx)
	entry := &accesslog.Entry{
		ID:             id.NewLogEntryID(),
		PrincipalID:    in.PrincipalID,
		RoleUsed:       in.RoleUsed,
		PermissionUsed: in.PermissionUsed,
		Action:         in.Action,
		Resource:       in.Resource,
		Description:    in.Description,
		TargetID:       in.TargetID,
		Result:         in.Result,
		ErrorMessage:   in.ErrorMessage,
		SourceIP:       info.SourceIP,
		UserAgent:      info.UserAgent,
		Metadata:       in.Metadata,
		CreatedAt:      e.now().UTC(),
	}

	if err := e.store.AppendLogEntry(ctx, entry); err != nil {
		e.logger.Warn("custos: audit write failed",
			slog.String("action", in.Action),
			slog.String("principal", in.PrincipalID),
			slog.String("error", err.Error()),
		)
		if e.plugins != nil {
			e.plugins.EmitAuditWriteFailed(ctx, entry, err)
		}
	}
	return entry
}

// audit is Record gated on Config.EnableAudit, used by the engine's
// own operations.
func (e *Engine) audit(ctx context.Context, in RecordInput) {
	if !e.config.auditEnabled() {
		return
	}
	e.Record(ctx, in)
}

// QueryLogs returns a lazy sequence of audit entries matching the
// filter, newest first. The sequence pages through the store
// internally; filter.Limit, when set, caps the total number yielded.
func (e *Engine) QueryLogs(ctx context.Context, filter accesslog.QueryFilter) iter.Seq2[*accesslog.Entry, error] {
	return func(yield func(*accesslog.Entry, error) bool) {
		page := filter
		page.Limit = e.config.logPageSize()

		offset := filter.Offset
		yielded := 0
		for {
			page.Offset = offset
			entries, err := e.store.ListLogEntries(ctx, &page)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, entry := range entries {
				if filter.Limit > 0 && yielded >= filter.Limit {
					return
				}
				if !yield(entry, nil) {
					return
				}
				yielded++
			}
			if len(entries) < page.Limit {
				return
			}
			offset += len(entries)
		}
	}
}

// ListLogEntries returns one page of audit entries, newest first.
func (e *Engine) ListLogEntries(ctx context.Context, filter *accesslog.QueryFilter) ([]*accesslog.Entry, error) {
	return e.store.ListLogEntries(ctx, filter)
}

// CountLogEntries returns the number of entries matching the filter.
func (e *Engine) CountLogEntries(ctx context.Context, filter *accesslog.QueryFilter) (int64, error) {
	return e.store.CountLogEntries(ctx, filter)
}
