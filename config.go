package custos

import "time"

// Config holds configuration for the Custos engine.
type Config struct {
	// SweepInterval is how often the engine physically transitions
	// expired assignments and requests to EXPIRED for reporting.
	// Zero disables the sweep loop; validity is always re-derived
	// lazily at read time regardless.
	SweepInterval time.Duration `json:"sweep_interval,omitempty"`

	// PendingRequestTTL is how long a submitted request stays
	// approvable. Zero means requests never lapse.
	PendingRequestTTL time.Duration `json:"pending_request_ttl,omitempty"`

	// LogPageSize is the page size used internally when streaming
	// audit log queries. Defaults to 200.
	LogPageSize int `json:"log_page_size,omitempty"`

	// EnableAudit controls whether engine operations write their own
	// audit entries. Defaults to true.
	EnableAudit *bool `json:"enable_audit,omitempty"`

	// EnableLastUsed controls whether successful authorization checks
	// stamp last_used on the winning assignment. Defaults to true.
	EnableLastUsed *bool `json:"enable_last_used,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		LogPageSize:    200,
		EnableAudit:    &t,
		EnableLastUsed: &t,
	}
}

func (c Config) auditEnabled() bool    { return c.EnableAudit == nil || *c.EnableAudit }
func (c Config) lastUsedEnabled() bool { return c.EnableLastUsed == nil || *c.EnableLastUsed }

func (c Config) logPageSize() int {
	if c.LogPageSize > 0 {
		return c.LogPageSize
	}
	return 200
}
