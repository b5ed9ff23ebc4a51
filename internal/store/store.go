// Package store holds the repositories for agents, tasks, projects, skills
// and achievements. Every repository method takes a context and returns
// (nil, nil) when the addressed row does not exist.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// Store bundles the repositories sharing one database handle.
type Store struct {
	db *gorm.DB

	Agents       *AgentRepo
	Tasks        *TaskRepo
	Projects     *ProjectRepo
	Skills       *SkillRepo
	Achievements *AchievementRepo
}

// New creates a Store on db.
func New(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Agents:       &AgentRepo{db: db},
		Tasks:        &TaskRepo{db: db},
		Projects:     &ProjectRepo{db: db},
		Skills:       &SkillRepo{db: db},
		Achievements: &AchievementRepo{db: db},
	}
}

// DB exposes the underlying handle for health checks and aggregates.
func (s *Store) DB() *gorm.DB { return s.db }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Page selects a 1-based page. Zero values fall back to page 1 and
// DefaultPageSize.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	return p
}

func (p Page) offset() int {
	p = p.normalize()
	return (p.Number - 1) * p.Size
}

// Result is one page of items plus the total matching the filters.
type Result[T any] struct {
	Items []T
	Total int64
}

// FieldError reports a missing or malformed input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func requiredField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Message: "is required"}
	}
	return nil
}

func newID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.New().String()
}

func now() time.Time {
	return time.Now().UTC()
}

func jsonMap(m map[string]interface{}) datatypes.JSONMap {
	if m == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(m)
}

func stringSlice(s []string) datatypes.JSONSlice[string] {
	if s == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](s)
}

func paginate(q *gorm.DB, p Page) *gorm.DB {
	p = p.normalize()
	return q.Offset(p.offset()).Limit(p.Size)
}

// findOne loads a single row by id, returning (nil, nil) when absent.
func findOne[T any](ctx context.Context, db *gorm.DB, id string) (*T, error) {
	var rows []T
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// deleteOne removes a row by id and reports whether it existed.
func deleteOne[T any](ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var model T
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// exists reports whether a row with id exists in model's table.
func exists(ctx context.Context, db *gorm.DB, model interface{}, id string) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
