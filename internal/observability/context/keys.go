// Package context carries per-request observability values. Handlers put the
// request id and the payment id being reconciled into the context; loggers
// and trace attributes read them back without threading extra parameters.
package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability_request_id"
	paymentIDKey contextKey = "observability_payment_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithPaymentID(ctx context.Context, paymentID string) context.Context {
	if ctx == nil || paymentID == "" {
		return ctx
	}
	return context.WithValue(ctx, paymentIDKey, paymentID)
}

func PaymentIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(paymentIDKey).(string)
	return value
}
