// Package api provides the HTTP surface for shopgate.
//
// This package provides:
//   - POST /auth/register and POST /auth/login
//   - The product catalogue under /product and order placement under /orders
//   - An admin-only WebSocket feed of audit events at /events/ws
//   - The development console under /console (only when enabled)
//   - Middleware stack (request ID, logging, recovery, CORS, body limit,
//     bearer authentication, access policy)
//
// # Security
//
// Every request passes through two middleware stages. The first reads an
// "Authorization: Bearer" header and, when the token verifies, attaches the
// resulting principal to the request context. It never rejects a request.
// The second evaluates the access policy: a request without a principal that
// needs one gets 401, and a principal lacking a required role gets 403.
//
// Login failures always answer 401 "invalid credentials" so callers cannot
// tell unknown usernames from wrong passwords. When a login throttle is
// configured, repeated failures answer 429 with Retry-After; a throttle
// outage lets logins through.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
