package alert

import (
	"context"

	"github.com/xraph/custos/id"
)

// Store defines persistence operations for security alerts.
type Store interface {
	// CreateAlert persists a new alert.
	CreateAlert(ctx context.Context, a *Alert) error

	// GetAlert retrieves an alert by ID.
	GetAlert(ctx context.Context, alertID id.AlertID) (*Alert, error)

	// UpdateAlert persists changes to an alert.
	UpdateAlert(ctx context.Context, a *Alert) error

	// ListAlerts returns alerts matching the filter, newest first.
	ListAlerts(ctx context.Context, filter *ListFilter) ([]*Alert, error)

	// CountAlerts returns the number of alerts matching the filter.
	CountAlerts(ctx context.Context, filter *ListFilter) (int64, error)
}
