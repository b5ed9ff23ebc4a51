// Package api implements the Fiber HTTP API for the Crewboard dashboard.
//
// Every response is wrapped in an envelope: {success, data, meta} on success
// and {success, error, meta} on failure. Query and body parameters are
// validated here; repositories only enforce required fields.
package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/store"
)

// BatchCreateTasksRequest is the payload for POST /api/tasks/batch.
type BatchCreateTasksRequest struct {
	Tasks []store.TaskInput `json:"tasks"`
}

// BatchDeleteRequest is the payload for DELETE /api/tasks/batch.
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BatchStatusRequest is the payload for PUT /api/tasks/batch/status.
type BatchStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

var sortOrders = []string{"asc", "desc"}

const dateOnly = "2006-01-02"

// parseBody decodes the JSON body into v.
func parseBody(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return ValidationError("invalid request body", map[string]interface{}{"reason": err.Error()})
	}
	return nil
}

// parsePage reads page and pageSize. Out-of-range values are rejected, not
// clamped.
func parsePage(c *fiber.Ctx) (store.Page, error) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		return store.Page{}, err
	}
	if page < 1 {
		return store.Page{}, rangeError("page", c.Query("page"), "page must be at least 1")
	}
	size, err := intQuery(c, "pageSize", store.DefaultPageSize)
	if err != nil {
		return store.Page{}, err
	}
	if size < 1 || size > store.MaxPageSize {
		return store.Page{}, rangeError("pageSize", c.Query("pageSize"),
			fmt.Sprintf("pageSize must be between 1 and %d", store.MaxPageSize))
	}
	return store.Page{Number: page, Size: size}, nil
}

func intQuery(c *fiber.Ctx, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, rangeError(name, raw, name+" must be an integer")
	}
	return n, nil
}

func boolQuery(c *fiber.Ctx, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, rangeError(name, raw, name+" must be true or false")
	}
	return b, nil
}

func rangeError(field, received, message string) *APIError {
	return ValidationError(message, map[string]interface{}{"field": field, "received": received})
}

// checkEnum accepts an empty value or one of valid.
func checkEnum(field, value string, valid []string) error {
	if value == "" || models.OneOf(value, valid) {
		return nil
	}
	return ValidationError(fmt.Sprintf("invalid %s %q", field, value), map[string]interface{}{
		"field":       field,
		"validValues": valid,
		"received":    value,
	})
}

// parseDate accepts RFC 3339 or YYYY-MM-DD. A date-only value with endOfDay
// covers the whole day.
func parseDate(field, raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, rangeError(field, raw, field+" must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// splitIDs splits a comma-separated list, dropping blanks.
func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func prefixed(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func validateTaskInput(prefix string, in store.TaskInput) error {
	if err := checkEnum(prefixed(prefix, "priority"), in.Priority, models.Priorities); err != nil {
		return err
	}
	if err := checkEnum(prefixed(prefix, "status"), in.Status, models.TaskStatuses); err != nil {
		return err
	}
	if err := checkHours(prefixed(prefix, "estimated_hours"), in.EstimatedHours); err != nil {
		return err
	}
	return checkHours(prefixed(prefix, "actual_hours"), in.ActualHours)
}

// checkPatchEnum validates an enum field of a partial update. Absent is
// fine; null or blank is rejected because the column always holds a value.
func checkPatchEnum(field string, o models.Optional[string], valid []string) error {
	if !o.Set {
		return nil
	}
	if o.Null || strings.TrimSpace(o.Value) == "" {
		return ValidationError(field+" must not be null or empty", map[string]interface{}{
			"field":       field,
			"validValues": valid,
		})
	}
	return checkEnum(field, o.Value, valid)
}

func validateTaskPatch(p store.TaskPatch) error {
	if err := checkPatchEnum("priority", p.Priority, models.Priorities); err != nil {
		return err
	}
	if err := checkPatchEnum("status", p.Status, models.TaskStatuses); err != nil {
		return err
	}
	if p.EstimatedHours.Present() {
		if err := checkHours("estimated_hours", &p.EstimatedHours.Value); err != nil {
			return err
		}
	}
	if p.ActualHours.Present() {
		return checkHours("actual_hours", &p.ActualHours.Value)
	}
	return nil
}

func checkHours(field string, v *float64) error {
	if v != nil && *v < 0 {
		return FieldValidationError(field, field+" must not be negative")
	}
	return nil
}

// validateAgentSkills fills in defaults and checks each embedded skill.
func validateAgentSkills(skills []models.AgentSkill) error {
	for i := range skills {
		field := fmt.Sprintf("skills[%d]", i)
		sk := &skills[i]
		sk.SkillName = strings.TrimSpace(sk.SkillName)
		if sk.SkillName == "" {
			return FieldValidationError(field+".skill_name", "skill_name is required")
		}
		if sk.Proficiency == 0 {
			sk.Proficiency = models.DefaultProficiency
		}
		if sk.Status == "" {
			sk.Status = models.DefaultSkillStatus
		}
		if err := checkProficiency(field+".proficiency", sk.Proficiency); err != nil {
			return err
		}
		if err := checkEnum(field+".status", sk.Status, models.SkillStatuses); err != nil {
			return err
		}
	}
	return nil
}

func checkProficiency(field string, v int) error {
	if v < models.MinProficiency || v > models.MaxProficiency {
		return rangeError(field, strconv.Itoa(v),
			fmt.Sprintf("proficiency must be between %d and %d", models.MinProficiency, models.MaxProficiency))
	}
	return nil
}

func checkProgress(v float64) error {
	if v < models.MinProgress || v > models.MaxProgress {
		return rangeError("progress", strconv.FormatFloat(v, 'f', -1, 64), "progress must be between 0 and 100")
	}
	return nil
}

func checkDateOrder(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return FieldValidationError("end_date", "end_date must not be before start_date")
	}
	return nil
}
