package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/helmcode/crewboard/internal/events"
	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/store"
)

// ListTasks returns a filtered, sorted page of tasks.
//
// Query parameters: agentId, agentName, project (or projectId), status, category,
// priority, dateFrom, dateTo, sortBy, sortOrder, page, pageSize. agentName
// takes precedence over agentId; an unknown name yields an empty page.
func (s *Server) ListTasks(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}
	filter, err := taskFilter(c)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	if name := strings.TrimSpace(c.Query("agentName")); name != "" {
		agent, err := s.store.Agents.FindByName(ctx, name)
		if err != nil {
			return err
		}
		if agent == nil {
			return paged(c, []models.Task{}, newPagination(page.Number, page.Size, 0))
		}
		filter.AgentID = agent.ID
	}

	res, err := s.store.Tasks.FindAll(ctx, filter, page)
	if err != nil {
		return err
	}
	items := res.Items
	if items == nil {
		items = []models.Task{}
	}
	return paged(c, items, newPagination(page.Number, page.Size, res.Total))
}

func taskFilter(c *fiber.Ctx) (store.TaskFilter, error) {
	f := store.TaskFilter{
		AgentID:   strings.TrimSpace(c.Query("agentId")),
		ProjectID: strings.TrimSpace(c.Query("project", c.Query("projectId"))),
		Status:    c.Query("status"),
		Category:  c.Query("category"),
		Priority:  c.Query("priority"),
		SortBy:    c.Query("sortBy"),
		SortOrder: strings.ToLower(c.Query("sortOrder")),
	}
	checks := []error{
		checkEnum("status", f.Status, models.TaskStatuses),
		checkEnum("priority", f.Priority, models.Priorities),
		checkEnum("sortBy", f.SortBy, models.TaskSortFields),
		checkEnum("sortOrder", f.SortOrder, sortOrders),
	}
	for _, err := range checks {
		if err != nil {
			return f, err
		}
	}

	var err error
	if f.From, err = parseDate("dateFrom", c.Query("dateFrom"), false); err != nil {
		return f, err
	}
	if f.To, err = parseDate("dateTo", c.Query("dateTo"), true); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, FieldValidationError("dateTo", "dateTo must not be before dateFrom")
	}
	return f, nil
}

// GetTask returns a single task.
func (s *Server) GetTask(c *fiber.Ctx) error {
	task, err := s.store.Tasks.FindByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if task == nil {
		return NotFoundError("task")
	}
	return ok(c, task)
}

// TodayTasks returns the tasks created on the current UTC day.
func (s *Server) TodayTasks(c *fiber.Ctx) error {
	tasks, err := s.store.Tasks.Today(c.UserContext(), time.Now())
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return ok(c, tasks)
}

// CreateTask creates a task. agent_id and project_id must reference existing
// rows.
func (s *Server) CreateTask(c *fiber.Ctx) error {
	var in store.TaskInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := validateTaskInput("", in); err != nil {
		return err
	}
	if err := s.checkTaskRefs(c, "", in.AgentID, in.ProjectID); err != nil {
		return err
	}

	task, err := s.store.Tasks.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	s.emit(c, events.TaskCreated, task.ID, task)
	if task.Status == models.TaskStatusCompleted {
		s.emit(c, events.TaskCompleted, task.ID, task)
	}
	return created(c, task)
}

// BatchCreateTasks creates all tasks in one transaction.
func (s *Server) BatchCreateTasks(c *fiber.Ctx) error {
	var req BatchCreateTasksRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if len(req.Tasks) == 0 {
		return FieldValidationError("tasks", "tasks must contain at least one task")
	}
	if len(req.Tasks) > store.MaxPageSize {
		return rangeError("tasks", fmt.Sprint(len(req.Tasks)), fmt.Sprintf("at most %d tasks are allowed", store.MaxPageSize))
	}

	agentIDs := make([]string, 0, len(req.Tasks))
	projectIDs := make([]string, 0)
	for i, in := range req.Tasks {
		if err := validateTaskInput(fmt.Sprintf("tasks[%d]", i), in); err != nil {
			return err
		}
		agentIDs = append(agentIDs, in.AgentID)
		if in.ProjectID != nil && *in.ProjectID != "" {
			projectIDs = append(projectIDs, *in.ProjectID)
		}
	}

	ctx := c.UserContext()
	knownAgents, err := s.store.Agents.ExistingIDs(ctx, agentIDs)
	if err != nil {
		return err
	}
	projects, err := s.store.Projects.FindByIDs(ctx, projectIDs)
	if err != nil {
		return err
	}
	knownProjects := make(map[string]bool, len(projects))
	for _, p := range projects {
		knownProjects[p.ID] = true
	}
	for i, in := range req.Tasks {
		if in.AgentID != "" && !knownAgents[in.AgentID] {
			return unknownRef(fmt.Sprintf("tasks[%d].agent_id", i), "agent", in.AgentID)
		}
		if in.ProjectID != nil && *in.ProjectID != "" && !knownProjects[*in.ProjectID] {
			return unknownRef(fmt.Sprintf("tasks[%d].project_id", i), "project", *in.ProjectID)
		}
	}

	tasks, err := s.store.Tasks.BatchCreate(ctx, req.Tasks)
	if err != nil {
		return err
	}
	for i := range tasks {
		s.emit(c, events.TaskCreated, tasks[i].ID, &tasks[i])
	}
	return created(c, tasks)
}

// UpdateTask applies a partial update. Moving into completed stamps
// completed_at.
func (s *Server) UpdateTask(c *fiber.Ctx) error {
	var patch store.TaskPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	if err := validateTaskPatch(patch); err != nil {
		return err
	}

	ctx := c.UserContext()
	id := c.Params("id")
	before, err := s.store.Tasks.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if before == nil {
		return NotFoundError("task")
	}

	agentID := ""
	if patch.AgentID.Present() {
		agentID = patch.AgentID.Value
	}
	var projectID *string
	if patch.ProjectID.Present() {
		projectID = &patch.ProjectID.Value
	}
	if err := s.checkTaskRefs(c, "", agentID, projectID); err != nil {
		return err
	}

	task, err := s.store.Tasks.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	if task == nil {
		return NotFoundError("task")
	}
	s.emit(c, events.TaskUpdated, task.ID, task)
	if task.Status == models.TaskStatusCompleted && before.Status != models.TaskStatusCompleted {
		s.emit(c, events.TaskCompleted, task.ID, task)
	}
	return ok(c, task)
}

// BatchUpdateTaskStatus sets one status on many tasks atomically.
func (s *Server) BatchUpdateTaskStatus(c *fiber.Ctx) error {
	var req BatchStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ids := compactIDs(req.IDs)
	if len(ids) == 0 {
		return FieldValidationError("ids", "ids must contain at least one task id")
	}
	if req.Status == "" {
		return FieldValidationError("status", "status is required")
	}
	if err := checkEnum("status", req.Status, models.TaskStatuses); err != nil {
		return err
	}

	updated, err := s.store.Tasks.BatchUpdateStatus(c.UserContext(), ids, req.Status)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"updatedCount": updated})
}

// DeleteTask removes a task.
func (s *Server) DeleteTask(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := s.store.Tasks.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return NotFoundError("task")
	}
	s.emit(c, events.TaskDeleted, id, nil)
	return ok(c, fiber.Map{"id": id, "deleted": true})
}

// BatchDeleteTasks deletes each listed id independently and reports how many
// were removed. Missing ids do not abort the batch.
func (s *Server) BatchDeleteTasks(c *fiber.Ctx) error {
	var req BatchDeleteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ids := compactIDs(req.IDs)
	if len(ids) == 0 {
		return FieldValidationError("ids", "ids must contain at least one task id")
	}

	deleted, err := s.store.Tasks.DeleteMany(c.UserContext(), ids)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"deletedCount": deleted})
}

// checkTaskRefs turns dangling agent or project references into validation
// errors before they reach the foreign keys.
func (s *Server) checkTaskRefs(c *fiber.Ctx, prefix, agentID string, projectID *string) error {
	ctx := c.UserContext()
	if agentID != "" {
		found, err := s.store.Agents.Exists(ctx, agentID)
		if err != nil {
			return err
		}
		if !found {
			return unknownRef(prefixed(prefix, "agent_id"), "agent", agentID)
		}
	}
	if projectID != nil && *projectID != "" {
		found, err := s.store.Projects.Exists(ctx, *projectID)
		if err != nil {
			return err
		}
		if !found {
			return unknownRef(prefixed(prefix, "project_id"), "project", *projectID)
		}
	}
	return nil
}

func unknownRef(field, resource, id string) *APIError {
	return ValidationError(fmt.Sprintf("%s %q does not exist", resource, id), map[string]interface{}{
		"field":    field,
		"received": id,
	})
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
