package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/helmcode/crewboard/internal/models"
)

// SkillInput is the payload for creating a skill record.
type SkillInput struct {
	ID           string                 `json:"id"`
	AgentID      string                 `json:"agent_id"`
	SkillName    string                 `json:"skill_name"`
	Proficiency  int                    `json:"proficiency"`
	Status       string                 `json:"status"`
	ExpectedDate *time.Time             `json:"expected_date"`
	Meta         map[string]interface{} `json:"meta"`
}

// SkillPatch is a partial skill update.
type SkillPatch struct {
	SkillName    models.Optional[string]                 `json:"skill_name"`
	Proficiency  models.Optional[int]                    `json:"proficiency"`
	Status       models.Optional[string]                 `json:"status"`
	ExpectedDate models.Optional[time.Time]              `json:"expected_date"`
	Meta         models.Optional[map[string]interface{}] `json:"meta"`
}

// SkillRepo persists skill records.
type SkillRepo struct {
	db *gorm.DB
}

func (r *SkillRepo) Create(ctx context.Context, in SkillInput) (*models.Skill, error) {
	if err := requiredField("agent_id", in.AgentID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.SkillName)
	if err := requiredField("skill_name", name); err != nil {
		return nil, err
	}

	skill := models.Skill{
		ID:           newID(in.ID),
		AgentID:      in.AgentID,
		SkillName:    name,
		Proficiency:  in.Proficiency,
		Status:       orDefault(in.Status, models.DefaultSkillStatus),
		ExpectedDate: in.ExpectedDate,
		Meta:         jsonMap(in.Meta),
	}
	if skill.Proficiency == 0 {
		skill.Proficiency = models.DefaultProficiency
	}
	if err := r.db.WithContext(ctx).Create(&skill).Error; err != nil {
		return nil, fmt.Errorf("creating skill: %w", err)
	}
	return r.FindByID(ctx, skill.ID)
}

func (r *SkillRepo) FindByID(ctx context.Context, id string) (*models.Skill, error) {
	skill, err := findOne[models.Skill](ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("finding skill %s: %w", id, err)
	}
	return normalizeSkill(skill), nil
}

// FindByAgent lists an agent's skills, highest proficiency first, ties
// broken by newest.
func (r *SkillRepo) FindByAgent(ctx context.Context, agentID string) ([]models.Skill, error) {
	skills := []models.Skill{}
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).
		Order("proficiency DESC").Order("created_at DESC").Order("id DESC").
		Find(&skills).Error
	if err != nil {
		return nil, fmt.Errorf("listing skills of agent %s: %w", agentID, err)
	}
	for i := range skills {
		normalizeSkill(&skills[i])
	}
	return skills, nil
}

func (r *SkillRepo) Update(ctx context.Context, id string, patch SkillPatch) (*models.Skill, error) {
	skill, err := r.FindByID(ctx, id)
	if err != nil || skill == nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.SkillName.Set {
		name := strings.TrimSpace(patch.SkillName.Value)
		if name == "" {
			return nil, &FieldError{Field: "skill_name", Message: "is required"}
		}
		updates["skill_name"] = name
	}
	if patch.Proficiency.Set {
		if patch.Proficiency.Null {
			return nil, &FieldError{Field: "proficiency", Message: "cannot be null"}
		}
		updates["proficiency"] = patch.Proficiency.Value
	}
	if patch.Status.Set {
		updates["status"] = orDefault(patch.Status.Value, models.DefaultSkillStatus)
	}
	if patch.ExpectedDate.Set {
		updates["expected_date"] = optionalPtr(patch.ExpectedDate)
	}
	if patch.Meta.Set {
		updates["meta"] = jsonMap(patch.Meta.Value)
	}
	if len(updates) == 0 {
		return skill, nil
	}

	if err := r.db.WithContext(ctx).Model(&models.Skill{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating skill %s: %w", id, err)
	}
	return r.FindByID(ctx, id)
}

func (r *SkillRepo) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := deleteOne[models.Skill](ctx, r.db, id)
	if err != nil {
		return false, fmt.Errorf("deleting skill %s: %w", id, err)
	}
	return ok, nil
}

func normalizeSkill(s *models.Skill) *models.Skill {
	if s != nil && s.Meta == nil {
		s.Meta = datatypes.JSONMap{}
	}
	return s
}
