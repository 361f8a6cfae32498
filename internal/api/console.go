package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/nerrad567/shopgate/internal/audit"
	"github.com/nerrad567/shopgate/internal/infrastructure/database"
)

// consoleHealthTimeout bounds each component check on /console/health.
const consoleHealthTimeout = 3 * time.Second

// handleConsoleHealth reports the health of every registered component.
// It answers 503 when any component fails.
func (s *Server) handleConsoleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), consoleHealthTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

func (s *Server) handleConsoleMigrations(w http.ResponseWriter, r *http.Request) {
	if s.migrations == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "migration status not available")
		return
	}

	applied, pending, err := s.migrations.GetMigrationStatus(r.Context())
	if err != nil {
		s.logger.Error("reading migration status", "error", err)
		writeInternalError(w, "failed to read migration status")
		return
	}
	if applied == nil {
		applied = []database.MigrationRecord{}
	}
	if pending == nil {
		pending = []database.Migration{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"pending": pending,
	})
}

// handleConsoleAudit returns paginated audit events.
//
// Query parameters:
//   - action: filter by action (login.failed, access.denied, ...)
//   - username: filter by username
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleConsoleAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "audit log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		Username: q.Get("username"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditLog.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit events", "error", err)
		writeInternalError(w, "failed to list audit events")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleConsolePolicy shows the access rules in evaluation order.
func (s *Server) handleConsolePolicy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": s.policy.Rules(),
	})
}
