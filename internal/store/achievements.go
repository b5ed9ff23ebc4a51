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

// AchievementInput is the payload for awarding an achievement.
type AchievementInput struct {
	ID          string                 `json:"id"`
	AgentID     string                 `json:"agent_id"`
	BadgeName   string                 `json:"badge_name"`
	Description string                 `json:"description"`
	Icon        *string                `json:"icon"`
	Rarity      string                 `json:"rarity"`
	EarnedAt    *time.Time             `json:"earned_at"`
	Meta        map[string]interface{} `json:"meta"`
}

// AchievementFilter narrows FindAll.
type AchievementFilter struct {
	AgentID string
	Rarity  string
}

// AchievementRepo persists achievements.
type AchievementRepo struct {
	db *gorm.DB
}

func (r *AchievementRepo) Create(ctx context.Context, in AchievementInput) (*models.Achievement, error) {
	if err := requiredField("agent_id", in.AgentID); err != nil {
		return nil, err
	}
	badge := strings.TrimSpace(in.BadgeName)
	if err := requiredField("badge_name", badge); err != nil {
		return nil, err
	}

	achievement := models.Achievement{
		ID:          newID(in.ID),
		AgentID:     in.AgentID,
		BadgeName:   badge,
		Description: in.Description,
		Icon:        emptyToNil(in.Icon),
		Rarity:      orDefault(in.Rarity, models.DefaultRarity),
		EarnedAt:    now(),
		Meta:        jsonMap(in.Meta),
	}
	if in.EarnedAt != nil {
		achievement.EarnedAt = in.EarnedAt.UTC()
	}
	if err := r.db.WithContext(ctx).Create(&achievement).Error; err != nil {
		return nil, fmt.Errorf("creating achievement: %w", err)
	}
	return r.FindByID(ctx, achievement.ID)
}

func (r *AchievementRepo) FindByID(ctx context.Context, id string) (*models.Achievement, error) {
	achievement, err := findOne[models.Achievement](ctx, r.db, id)
	if err != nil {
		return nil, fmt.Errorf("finding achievement %s: %w", id, err)
	}
	return normalizeAchievement(achievement), nil
}

// FindByAgent lists all of an agent's achievements, most recently earned
// first.
func (r *AchievementRepo) FindByAgent(ctx context.Context, agentID string) ([]models.Achievement, error) {
	achievements := []models.Achievement{}
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).
		Order("earned_at DESC").Order("id DESC").Find(&achievements).Error
	if err != nil {
		return nil, fmt.Errorf("listing achievements of agent %s: %w", agentID, err)
	}
	for i := range achievements {
		normalizeAchievement(&achievements[i])
	}
	return achievements, nil
}

func (r *AchievementRepo) FindAll(ctx context.Context, f AchievementFilter, p Page) (*Result[models.Achievement], error) {
	q := r.db.WithContext(ctx).Model(&models.Achievement{})
	if f.AgentID != "" {
		q = q.Where("agent_id = ?", f.AgentID)
	}
	if f.Rarity != "" {
		q = q.Where("rarity = ?", f.Rarity)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting achievements: %w", err)
	}

	achievements := []models.Achievement{}
	if err := paginate(q.Order("earned_at DESC").Order("id DESC"), p).Find(&achievements).Error; err != nil {
		return nil, fmt.Errorf("listing achievements: %w", err)
	}
	for i := range achievements {
		normalizeAchievement(&achievements[i])
	}
	return &Result[models.Achievement]{Items: achievements, Total: total}, nil
}

func (r *AchievementRepo) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := deleteOne[models.Achievement](ctx, r.db, id)
	if err != nil {
		return false, fmt.Errorf("deleting achievement %s: %w", id, err)
	}
	return ok, nil
}

func normalizeAchievement(a *models.Achievement) *models.Achievement {
	if a != nil && a.Meta == nil {
		a.Meta = datatypes.JSONMap{}
	}
	return a
}
