package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	MessageIDKey   = "message_id"
	ServiceNameKey = "service_name"
	RequestIDKey   = "request_id"
)

type contextKey string

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKey(TraceIDKey), traceID)
}

// WithMessageID tags the context with the envelope ID being processed.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, contextKey(MessageIDKey), messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, contextKey(ServiceNameKey), serviceName)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey(RequestIDKey), requestID)
}

func get(ctx context.Context, key string) string {
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string     { return get(ctx, TraceIDKey) }
func GetMessageID(ctx context.Context) string   { return get(ctx, MessageIDKey) }
func GetServiceName(ctx context.Context) string { return get(ctx, ServiceNameKey) }
func GetRequestID(ctx context.Context) string   { return get(ctx, RequestIDKey) }

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	for _, key := range []string{TraceIDKey, RequestIDKey, MessageIDKey, ServiceNameKey} {
		if v := get(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
