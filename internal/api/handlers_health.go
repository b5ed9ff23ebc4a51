package api

import (
	"github.com/gofiber/fiber/v2"
)

// connectivity is implemented by publishers holding a live broker connection.
type connectivity interface {
	IsConnected() bool
}

// HealthCheck verifies API and database connectivity and reports the event
// publisher. A disconnected publisher degrades the status but does not fail
// the check, since requests never depend on it.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	var errors []string

	if err := s.store.Ping(c.UserContext()); err != nil {
		errors = append(errors, "database: "+err.Error())
	}

	if len(errors) > 0 {
		return &APIError{
			Status:  fiber.StatusServiceUnavailable,
			Code:    CodeUnavailable,
			Message: "service unhealthy",
			Details: map[string]interface{}{"errors": errors},
		}
	}

	status, eventsState := "ok", "disabled"
	if conn, isConn := s.events.(connectivity); isConn {
		eventsState = "connected"
		if !conn.IsConnected() {
			eventsState = "disconnected"
			status = "degraded"
		}
	}
	return ok(c, fiber.Map{"status": status, "events": eventsState})
}
