package api

// AuthorizeResponse is the response for an authorization check.
type AuthorizeResponse struct {
	Allowed bool `json:"allowed" description:"Whether the principal holds the permission"`
}

// SweepResponse reports how many records an expiry sweep transitioned.
type SweepResponse struct {
	ExpiredAssignments int64 `json:"expired_assignments" description:"Assignments transitioned to EXPIRED"`
	ExpiredRequests    int64 `json:"expired_requests" description:"Requests transitioned to EXPIRED"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}
