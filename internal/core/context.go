package core

import "context"

type contextKey string

const (
	ctxKeyConversionID contextKey = "conversion_id"
	ctxKeyClientIP     contextKey = "client_ip"
)

// ContextWithConversionID tags ctx with the conversion it belongs to.
func ContextWithConversionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyConversionID, id)
}

// ConversionIDFromContext returns the conversion ID, or "" outside a conversion.
func ConversionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyConversionID).(string); ok {
		return v
	}
	return ""
}

// ContextWithClientIP records the requesting client for conversion logs.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ClientIPFromContext extracts the client IP recorded by ContextWithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}
