// Package models defines GORM models and database setup for Crewboard.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Task statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// Project statuses.
const (
	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// Skill statuses.
const (
	SkillStatusLearning   = "learning"
	SkillStatusPracticing = "practicing"
	SkillStatusMastered   = "mastered"
)

// Achievement rarities.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Defaults applied on create when the caller leaves a field empty.
const (
	DefaultCategory      = "general"
	DefaultPriority      = PriorityMedium
	DefaultTaskStatus    = TaskStatusPending
	DefaultProjectStatus = ProjectStatusPlanning
	DefaultProficiency   = 1
	DefaultSkillStatus   = SkillStatusLearning
	DefaultRarity        = RarityCommon
)

// Bounds for numeric fields.
const (
	MinProficiency = 1
	MaxProficiency = 10
	MinProgress    = 0.0
	MaxProgress    = 100.0
)

var (
	Priorities       = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
	TaskStatuses     = []string{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled}
	ProjectStatuses  = []string{ProjectStatusPlanning, ProjectStatusActive, ProjectStatusCompleted, ProjectStatusArchived}
	SkillStatuses    = []string{SkillStatusLearning, SkillStatusPracticing, SkillStatusMastered}
	Rarities         = []string{RarityCommon, RarityRare, RarityEpic, RarityLegendary}
	TaskSortFields   = []string{"created_at", "updated_at", "completed_at", "priority", "status", "title", "category"}
	rankedPriorities = map[string]int{PriorityLow: 0, PriorityMedium: 1, PriorityHigh: 2, PriorityUrgent: 3}
)

// OneOf reports whether v is one of the allowed values.
func OneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// PriorityRank orders priorities from low to urgent. Unknown values rank -1.
func PriorityRank(p string) int {
	if r, ok := rankedPriorities[p]; ok {
		return r
	}
	return -1
}

// IsRare reports whether an achievement rarity counts as rare for stats.
func IsRare(rarity string) bool {
	return rarity == RarityRare || rarity == RarityEpic || rarity == RarityLegendary
}

// AgentSkill is an entry of the inline skill summary stored on an agent.
type AgentSkill struct {
	SkillName   string `json:"skill_name"`
	Proficiency int    `json:"proficiency"`
	Status      string `json:"status"`
}

// Agent is a named persona that owns tasks, skills and achievements.
type Agent struct {
	ID          string                          `gorm:"primaryKey;size:64" json:"id"`
	Name        string                          `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Avatar      string                          `gorm:"size:255" json:"avatar"`
	Role        string                          `gorm:"not null;size:255;index" json:"role"`
	Description string                          `gorm:"type:text" json:"description"`
	Personality string                          `gorm:"type:text" json:"personality"`
	Skills      datatypes.JSONSlice[AgentSkill] `gorm:"type:text" json:"skills"`
	Meta        datatypes.JSONMap               `gorm:"type:text" json:"meta"`
	CreatedAt   time.Time                       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`

	Tasks        []Task        `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
	SkillRecords []Skill       `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
	Achievements []Achievement `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
}

// Task is a unit of work assigned to exactly one agent.
type Task struct {
	ID             string            `gorm:"primaryKey;size:64" json:"id"`
	Title          string            `gorm:"not null;size:512" json:"title"`
	AgentID        string            `gorm:"not null;size:64;index" json:"agent_id"`
	Category       string            `gorm:"not null;size:100;default:general;index" json:"category"`
	ProjectID      *string           `gorm:"size:64;index" json:"project_id"`
	Priority       string            `gorm:"not null;size:20;default:medium;index;check:priority IN ('low','medium','high','urgent')" json:"priority"`
	Status         string            `gorm:"not null;size:20;default:pending;index;check:status IN ('pending','in_progress','completed','cancelled')" json:"status"`
	Description    string            `gorm:"type:text" json:"description"`
	EstimatedHours *float64          `json:"estimated_hours"`
	ActualHours    *float64          `json:"actual_hours"`
	CompletedAt    *time.Time        `gorm:"index" json:"completed_at"`
	Meta           datatypes.JSONMap `gorm:"type:text" json:"meta"`
	CreatedAt      time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Project groups tasks and tracks overall progress.
type Project struct {
	ID          string                      `gorm:"primaryKey;size:64" json:"id"`
	Name        string                      `gorm:"not null;size:255" json:"name"`
	Description string                      `gorm:"type:text" json:"description"`
	Status      string                      `gorm:"not null;size:20;default:planning;index;check:status IN ('planning','active','completed','archived')" json:"status"`
	Progress    float64                     `gorm:"not null;default:0;check:progress >= 0 AND progress <= 100" json:"progress"`
	StartDate   time.Time                   `json:"start_date"`
	EndDate     *time.Time                  `json:"end_date"`
	TeamMembers datatypes.JSONSlice[string] `gorm:"type:text" json:"team_members"`
	Meta        datatypes.JSONMap           `gorm:"type:text" json:"meta"`
	CreatedAt   time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`

	Tasks []Task `gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL" json:"-"`
}

// Skill is a detailed per-agent skill record, kept apart from the agent's
// inline summary.
type Skill struct {
	ID           string            `gorm:"primaryKey;size:64" json:"id"`
	AgentID      string            `gorm:"not null;size:64;index" json:"agent_id"`
	SkillName    string            `gorm:"not null;size:255" json:"skill_name"`
	Proficiency  int               `gorm:"not null;default:1;check:proficiency >= 1 AND proficiency <= 10" json:"proficiency"`
	Status       string            `gorm:"not null;size:20;default:learning;check:status IN ('learning','practicing','mastered')" json:"status"`
	ExpectedDate *time.Time        `json:"expected_date"`
	Meta         datatypes.JSONMap `gorm:"type:text" json:"meta"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Achievement is a badge earned by an agent.
type Achievement struct {
	ID          string            `gorm:"primaryKey;size:64" json:"id"`
	AgentID     string            `gorm:"not null;size:64;index" json:"agent_id"`
	BadgeName   string            `gorm:"not null;size:255" json:"badge_name"`
	Description string            `gorm:"type:text" json:"description"`
	Icon        *string           `gorm:"size:255" json:"icon"`
	Rarity      string            `gorm:"not null;size:20;default:common;index;check:rarity IN ('common','rare','epic','legendary')" json:"rarity"`
	EarnedAt    time.Time         `gorm:"index" json:"earned_at"`
	Meta        datatypes.JSONMap `gorm:"type:text" json:"meta"`
	CreatedAt   time.Time         `json:"created_at"`
}

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{&Agent{}, &Project{}, &Task{}, &Skill{}, &Achievement{}}
}
