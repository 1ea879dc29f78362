package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys used across spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	TaskNameKey     = "task.name"
	TaskIDKey       = "task.id"
	TaskAttemptKey  = "task.attempt"
	TaskDurationKey = "task.duration_ms"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// TaskAttributes creates task execution span attributes.
func TaskAttributes(name, id string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TaskNameKey, name),
		attribute.String(TaskIDKey, id),
		attribute.Int(TaskAttemptKey, attempt),
	}
}
