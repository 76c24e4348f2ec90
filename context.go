package custos

import "context"

type contextKey int

const ctxKeyClientInfo contextKey = iota

// WithClientInfo returns a context carrying client metadata (source IP,
// user agent) that the engine captures into audit log entries.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, ctxKeyClientInfo, info)
}

func clientInfoFromContext(ctx context.Context) ClientInfo {
	v, ok := ctx.Value(ctxKeyClientInfo).(ClientInfo)
	if !ok {
		return ClientInfo{}
	}
	return v
}
