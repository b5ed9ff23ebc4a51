package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/store"
)

// GetSkill returns a single skill record.
func (s *Server) GetSkill(c *fiber.Ctx) error {
	skill, err := s.store.Skills.FindByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if skill == nil {
		return NotFoundError("skill")
	}
	return ok(c, skill)
}

// UpdateSkill applies a partial update to a skill record.
func (s *Server) UpdateSkill(c *fiber.Ctx) error {
	var patch store.SkillPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	if patch.Proficiency.Present() {
		if err := checkProficiency("proficiency", patch.Proficiency.Value); err != nil {
			return err
		}
	}
	if err := checkPatchEnum("status", patch.Status, models.SkillStatuses); err != nil {
		return err
	}

	skill, err := s.store.Skills.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return err
	}
	if skill == nil {
		return NotFoundError("skill")
	}
	return ok(c, skill)
}

func (s *Server) DeleteSkill(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := s.store.Skills.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return NotFoundError("skill")
	}
	return ok(c, fiber.Map{"id": id, "deleted": true})
}
