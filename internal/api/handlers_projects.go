package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helmcode/crewboard/internal/events"
	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/store"
)

type projectWithTasks struct {
	*models.Project
	Tasks []models.Task `json:"tasks"`
}

// ListProjects returns a page of projects, optionally filtered by status.
func (s *Server) ListProjects(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	status := c.Query("status")
	if err := checkEnum("status", status, models.ProjectStatuses); err != nil {
		return err
	}

	res, err := s.store.Projects.FindAll(c.UserContext(), store.ProjectFilter{Status: status}, page)
	if err != nil {
		return err
	}
	items := res.Items
	if items == nil {
		items = []models.Project{}
	}
	return paged(c, items, newPagination(page.Number, page.Size, res.Total))
}

// GetProject returns a project with its tasks.
func (s *Server) GetProject(c *fiber.Ctx) error {
	ctx := c.UserContext()
	project, err := s.store.Projects.FindByID(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	if project == nil {
		return NotFoundError("project")
	}
	tasks, err := s.store.Tasks.FindByProject(ctx, project.ID)
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return ok(c, projectWithTasks{Project: project, Tasks: tasks})
}

// CreateProject creates a project.
func (s *Server) CreateProject(c *fiber.Ctx) error {
	var in store.ProjectInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := checkEnum("status", in.Status, models.ProjectStatuses); err != nil {
		return err
	}
	if err := checkProgress(in.Progress); err != nil {
		return err
	}
	if err := checkDateOrder(in.StartDate, in.EndDate); err != nil {
		return err
	}

	project, err := s.store.Projects.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	s.emit(c, events.ProjectCreated, project.ID, project)
	return created(c, project)
}

// UpdateProject applies a partial update with status and progress checks.
func (s *Server) UpdateProject(c *fiber.Ctx) error {
	var patch store.ProjectPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	if err := checkPatchEnum("status", patch.Status, models.ProjectStatuses); err != nil {
		return err
	}
	if patch.Progress.Set {
		if patch.Progress.Null {
			return FieldValidationError("progress", "progress cannot be null")
		}
		if err := checkProgress(patch.Progress.Value); err != nil {
			return err
		}
	}

	ctx := c.UserContext()
	id := c.Params("id")
	current, err := s.store.Projects.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return NotFoundError("project")
	}
	start, end := &current.StartDate, current.EndDate
	if patch.StartDate.Present() {
		start = &patch.StartDate.Value
	}
	if patch.EndDate.Set {
		end = nil
		if patch.EndDate.Present() {
			end = &patch.EndDate.Value
		}
	}
	if err := checkDateOrder(start, end); err != nil {
		return err
	}

	project, err := s.store.Projects.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	if project == nil {
		return NotFoundError("project")
	}
	s.emit(c, events.ProjectUpdated, project.ID, project)
	return ok(c, project)
}

// DeleteProject removes a project. Its tasks are kept with project_id
// cleared.
func (s *Server) DeleteProject(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := s.store.Projects.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return NotFoundError("project")
	}
	s.emit(c, events.ProjectDeleted, id, nil)
	return ok(c, fiber.Map{"id": id, "deleted": true})
}
