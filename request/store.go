package request

import (
	"context"
	"time"

	"github.com/xraph/custos/assignment"
	"github.com/xraph/custos/id"
)

// Store defines persistence operations for permission requests.
type Store interface {
	// CreateRequest persists a new request.
	CreateRequest(ctx context.Context, r *Request) error

	// GetRequest retrieves a request by ID.
	GetRequest(ctx context.Context, reqID id.RequestID) (*Request, error)

	// UpdateRequest persists changes to a request.
	UpdateRequest(ctx context.Context, r *Request) error

	// ApproveRequest transitions the request to APPROVED and creates the
	// resulting assignment as one atomic unit, applying the same
	// capacity, duplicate and lapsed-row checks as
	// assignment.Store.CreateAssignment. On any failure the request
	// stays PENDING and no assignment exists.
	ApproveRequest(ctx context.Context, r *Request, a *assignment.Assignment, maxAssignees int, now time.Time) error

	// ListRequests returns requests matching the filter.
	ListRequests(ctx context.Context, filter *ListFilter) ([]*Request, error)

	// CountRequests returns the number of requests matching the filter.
	CountRequests(ctx context.Context, filter *ListFilter) (int64, error)

	// MarkExpiredRequests transitions PENDING requests whose expiry has
	// passed to EXPIRED. Reporting convenience only.
	MarkExpiredRequests(ctx context.Context, now time.Time) (int64, error)
}
