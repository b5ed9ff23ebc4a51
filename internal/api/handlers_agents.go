package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/helmcode/crewboard/internal/events"
	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/stats"
	"github.com/helmcode/crewboard/internal/store"
)

// agentWithStats is an agent plus its counters when requested.
type agentWithStats struct {
	*models.Agent
	Stats interface{} `json:"stats,omitempty"`
}

// ListAgents returns a page of agents, optionally filtered by role.
// withStats=true attaches the per-agent breakdown in one extra query.
func (s *Server) ListAgents(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	withStats, err := boolQuery(c, "withStats", false)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	res, err := s.store.Agents.FindAll(ctx, store.AgentFilter{Role: c.Query("role")}, page)
	if err != nil {
		return err
	}

	var breakdown map[string]stats.AgentStats
	if withStats && len(res.Items) > 0 {
		ids := make([]string, 0, len(res.Items))
		for _, a := range res.Items {
			ids = append(ids, a.ID)
		}
		if breakdown, err = s.stats.AgentStatsFor(ctx, ids); err != nil {
			return err
		}
	}

	items := make([]agentWithStats, 0, len(res.Items))
	for i := range res.Items {
		item := agentWithStats{Agent: &res.Items[i]}
		if withStats {
			item.Stats = breakdown[res.Items[i].ID]
		}
		items = append(items, item)
	}
	return paged(c, items, newPagination(page.Number, page.Size, res.Total))
}

// GetAgent returns a single agent. Stats are included unless withStats=false.
func (s *Server) GetAgent(c *fiber.Ctx) error {
	withStats, err := boolQuery(c, "withStats", true)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	agent, err := s.store.Agents.FindByID(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	if agent == nil {
		return NotFoundError("agent")
	}

	resp := agentWithStats{Agent: agent}
	if withStats {
		st, err := s.store.Agents.Stats(ctx, agent.ID)
		if err != nil {
			return err
		}
		resp.Stats = st
	}
	return ok(c, resp)
}

// GetAgentDetails returns the agent merged with its tasks, skills,
// achievements and projects.
func (s *Server) GetAgentDetails(c *fiber.Ctx) error {
	details, err := s.stats.AgentFullDetails(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if details == nil {
		return NotFoundError("agent")
	}
	return ok(c, details)
}

// GetAgentsDetails returns full details for ids=a,b,c. Unknown ids are
// skipped.
func (s *Server) GetAgentsDetails(c *fiber.Ctx) error {
	ids := splitIDs(c.Query("ids"))
	if len(ids) == 0 {
		return FieldValidationError("ids", "ids must list at least one agent id")
	}
	if len(ids) > store.MaxPageSize {
		return rangeError("ids", fmt.Sprint(len(ids)), fmt.Sprintf("at most %d ids are allowed", store.MaxPageSize))
	}
	details, err := s.stats.AgentsFullDetails(c.UserContext(), ids)
	if err != nil {
		return err
	}
	return ok(c, details)
}

// CreateAgent creates an agent. Names are unique after trimming.
func (s *Server) CreateAgent(c *fiber.Ctx) error {
	var in store.AgentInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := validateAgentSkills(in.Skills); err != nil {
		return err
	}

	ctx := c.UserContext()
	if in.Name != "" {
		existing, err := s.store.Agents.FindByName(ctx, in.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return duplicateName(existing.Name)
		}
	}

	agent, err := s.store.Agents.Create(ctx, in)
	if err != nil {
		return err
	}
	s.emit(c, events.AgentCreated, agent.ID, agent)
	return created(c, agent)
}

// UpdateAgent applies a partial update. Renaming onto another agent's name
// is a conflict.
func (s *Server) UpdateAgent(c *fiber.Ctx) error {
	var patch store.AgentPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	if patch.Skills.Present() {
		if err := validateAgentSkills(patch.Skills.Value); err != nil {
			return err
		}
	}

	ctx := c.UserContext()
	id := c.Params("id")
	if patch.Name.Present() {
		existing, err := s.store.Agents.FindByName(ctx, patch.Name.Value)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != id {
			return duplicateName(existing.Name)
		}
	}

	agent, err := s.store.Agents.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	if agent == nil {
		return NotFoundError("agent")
	}
	s.emit(c, events.AgentUpdated, agent.ID, agent)
	return ok(c, agent)
}

// DeleteAgent removes an agent together with its tasks, skills and
// achievements.
func (s *Server) DeleteAgent(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := s.store.Agents.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return NotFoundError("agent")
	}
	s.emit(c, events.AgentDeleted, id, nil)
	return ok(c, fiber.Map{"id": id, "deleted": true})
}

// ListAgentSkills returns the skill records of an agent.
func (s *Server) ListAgentSkills(c *fiber.Ctx) error {
	id, err := s.requireAgent(c)
	if err != nil {
		return err
	}
	skills, err := s.store.Skills.FindByAgent(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, skills)
}

// CreateAgentSkill adds a skill record to an agent.
func (s *Server) CreateAgentSkill(c *fiber.Ctx) error {
	id, err := s.requireAgent(c)
	if err != nil {
		return err
	}
	var in store.SkillInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	in.AgentID = id
	if in.Proficiency != 0 {
		if err := checkProficiency("proficiency", in.Proficiency); err != nil {
			return err
		}
	}
	if err := checkEnum("status", in.Status, models.SkillStatuses); err != nil {
		return err
	}

	skill, err := s.store.Skills.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return created(c, skill)
}

// ListAgentAchievements returns an agent's achievements, newest first.
func (s *Server) ListAgentAchievements(c *fiber.Ctx) error {
	id, err := s.requireAgent(c)
	if err != nil {
		return err
	}
	achievements, err := s.store.Achievements.FindByAgent(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, achievements)
}

// CreateAgentAchievement awards an achievement to an agent.
func (s *Server) CreateAgentAchievement(c *fiber.Ctx) error {
	id, err := s.requireAgent(c)
	if err != nil {
		return err
	}
	var in store.AchievementInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	in.AgentID = id
	if err := checkEnum("rarity", in.Rarity, models.Rarities); err != nil {
		return err
	}

	achievement, err := s.store.Achievements.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return created(c, achievement)
}

// requireAgent returns the :id param or a NOT_FOUND error.
func (s *Server) requireAgent(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	found, err := s.store.Agents.Exists(c.UserContext(), id)
	if err != nil {
		return "", err
	}
	if !found {
		return "", NotFoundError("agent")
	}
	return id, nil
}

func duplicateName(name string) *APIError {
	return ConflictError(fmt.Sprintf("an agent named %q already exists", name), map[string]interface{}{"field": "name"})
}
