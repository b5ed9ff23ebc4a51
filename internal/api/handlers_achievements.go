package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/store"
)

// ListAchievements returns a page of achievements filtered by agentId and
// rarity.
func (s *Server) ListAchievements(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	filter := store.AchievementFilter{
		AgentID: strings.TrimSpace(c.Query("agentId")),
		Rarity:  c.Query("rarity"),
	}
	if err := checkEnum("rarity", filter.Rarity, models.Rarities); err != nil {
		return err
	}

	res, err := s.store.Achievements.FindAll(c.UserContext(), filter, page)
	if err != nil {
		return err
	}
	return paged(c, res.Items, newPagination(page.Number, page.Size, res.Total))
}

func (s *Server) GetAchievement(c *fiber.Ctx) error {
	achievement, err := s.store.Achievements.FindByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if achievement == nil {
		return NotFoundError("achievement")
	}
	return ok(c, achievement)
}

func (s *Server) DeleteAchievement(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := s.store.Achievements.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return NotFoundError("achievement")
	}
	return ok(c, fiber.Map{"id": id, "deleted": true})
}
