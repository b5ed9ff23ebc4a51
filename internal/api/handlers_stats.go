package api

import (
	"github.com/gofiber/fiber/v2"
)

// GetStats returns the system summary. detailed=false drops the per-agent
// breakdown.
func (s *Server) GetStats(c *fiber.Ctx) error {
	detailed, err := boolQuery(c, "detailed", true)
	if err != nil {
		return err
	}
	ov, err := s.stats.Overview(c.UserContext())
	if err != nil {
		return err
	}
	if !detailed {
		return ok(c, ov.Summary)
	}
	return ok(c, ov)
}

// GetPerformance reports row counts and indexes per table.
func (s *Server) GetPerformance(c *fiber.Ctx) error {
	report, err := s.stats.PerformanceReport(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, report)
}
