// Package audit records authentication events and fans them out to the
// audit_logs table and to optional live sinks (MQTT, InfluxDB, websocket,
// Prometheus).
package audit

import (
	"context"
	"time"
)

// Actions recorded by shopgate.
const (
	ActionLoginSucceeded = "login.succeeded"
	ActionLoginFailed    = "login.failed"
	ActionLoginThrottled = "login.throttled"
	ActionUserRegistered = "user.registered"
	ActionAccessDenied   = "access.denied"
)

// Event is a single audit trail entry.
type Event struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Username  string         `json:"username,omitempty"`
	Source    string         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink receives dispatched events. Write is called from a single goroutine.
type Sink interface {
	Write(ctx context.Context, e *Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e *Event) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, e *Event) error {
	return f(ctx, e)
}
