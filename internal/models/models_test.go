package models

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
)

func newTestDB(t *testing.T, plugins ...gorm.Plugin) *gorm.DB {
	t.Helper()
	db, err := InitDB(":memory:", plugins...)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return db
}

func TestInitDB_InMemory(t *testing.T) {
	db, err := InitDB(":memory:")
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("getting sql.DB: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("database ping failed: %v", err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(DBConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if _, err := Open(DBConfig{Driver: DriverPostgres}); err == nil {
		t.Fatal("expected error for postgres without DSN")
	}
}

func TestInitDB_PerformanceIndexes(t *testing.T) {
	db := newTestDB(t)

	tables := map[string]interface{}{
		"tasks":        &Task{},
		"skills":       &Skill{},
		"achievements": &Achievement{},
		"projects":     &Project{},
	}
	for _, idx := range performanceIndexes {
		if !db.Migrator().HasIndex(tables[idx.Table], idx.Name) {
			t.Errorf("missing index %s on %s", idx.Name, idx.Table)
		}
	}

	// Running again must be a no-op.
	if err := EnsurePerformanceIndexes(db); err != nil {
		t.Fatalf("EnsurePerformanceIndexes second run: %v", err)
	}
}

func TestAgent_CRUD(t *testing.T) {
	db := newTestDB(t)

	agent := Agent{
		ID:     "agent-001",
		Name:   "Nova",
		Role:   "Researcher",
		Skills: []AgentSkill{{SkillName: "search", Proficiency: 4}},
		Meta:   map[string]interface{}{"color": "teal"},
	}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("creating agent: %v", err)
	}

	var found Agent
	if err := db.First(&found, "id = ?", "agent-001").Error; err != nil {
		t.Fatalf("finding agent: %v", err)
	}
	if len(found.Skills) != 1 || found.Skills[0].SkillName != "search" {
		t.Errorf("skills did not round-trip: %+v", found.Skills)
	}
	if found.Meta["color"] != "teal" {
		t.Errorf("meta did not round-trip: %+v", found.Meta)
	}
	if found.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestAgent_UniqueName(t *testing.T) {
	db := newTestDB(t)

	if err := db.Create(&Agent{ID: "a1", Name: "Nova", Role: "r"}).Error; err != nil {
		t.Fatalf("creating agent: %v", err)
	}
	err := db.Create(&Agent{ID: "a2", Name: "Nova", Role: "r"}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected ErrDuplicatedKey, got %v", err)
	}
}

func TestAgent_CascadeDelete(t *testing.T) {
	db := newTestDB(t)

	db.Create(&Agent{ID: "a1", Name: "Nova", Role: "r"})
	db.Create(&Task{ID: "t1", Title: "write", AgentID: "a1", Category: DefaultCategory, Priority: PriorityLow, Status: TaskStatusPending})
	db.Create(&Skill{ID: "s1", AgentID: "a1", SkillName: "go", Proficiency: 2, Status: SkillStatusLearning})
	db.Create(&Achievement{ID: "b1", AgentID: "a1", BadgeName: "first", Rarity: RarityCommon, EarnedAt: time.Now()})

	if err := db.Where("id = ?", "a1").Delete(&Agent{}).Error; err != nil {
		t.Fatalf("deleting agent: %v", err)
	}

	for name, model := range map[string]interface{}{"tasks": &Task{}, "skills": &Skill{}, "achievements": &Achievement{}} {
		var count int64
		db.Model(model).Where("agent_id = ?", "a1").Count(&count)
		if count != 0 {
			t.Errorf("expected 0 %s after cascade delete, got %d", name, count)
		}
	}
}

func TestProject_DeleteDetachesTasks(t *testing.T) {
	db := newTestDB(t)

	projectID := "p1"
	db.Create(&Agent{ID: "a1", Name: "Nova", Role: "r"})
	db.Create(&Project{ID: projectID, Name: "Apollo", Status: ProjectStatusActive, StartDate: time.Now()})
	db.Create(&Task{ID: "t1", Title: "write", AgentID: "a1", ProjectID: &projectID, Category: DefaultCategory, Priority: PriorityLow, Status: TaskStatusPending})

	if err := db.Where("id = ?", projectID).Delete(&Project{}).Error; err != nil {
		t.Fatalf("deleting project: %v", err)
	}

	var task Task
	if err := db.First(&task, "id = ?", "t1").Error; err != nil {
		t.Fatalf("task should survive project delete: %v", err)
	}
	if task.ProjectID != nil {
		t.Errorf("expected project_id to be cleared, got %q", *task.ProjectID)
	}
}

func TestTask_CheckConstraints(t *testing.T) {
	db := newTestDB(t)
	db.Create(&Agent{ID: "a1", Name: "Nova", Role: "r"})

	bad := Task{ID: "t1", Title: "x", AgentID: "a1", Category: DefaultCategory, Priority: "critical", Status: TaskStatusPending}
	if err := db.Create(&bad).Error; err == nil {
		t.Error("expected check constraint error for unknown priority")
	}

	orphan := Task{ID: "t2", Title: "x", AgentID: "missing", Category: DefaultCategory, Priority: PriorityLow, Status: TaskStatusPending}
	if err := db.Create(&orphan).Error; err == nil {
		t.Error("expected foreign key error for unknown agent")
	}
}

func TestQueryCounter(t *testing.T) {
	db := newTestDB(t, QueryCounter{})

	ctx, qc := WithQueryCount(context.Background())
	var agents []Agent
	db.WithContext(ctx).Find(&agents)
	var n int64
	db.WithContext(ctx).Model(&Task{}).Count(&n)
	db.WithContext(ctx).Create(&Agent{ID: "a1", Name: "Nova", Role: "r"})

	if got := qc.Load(); got != 3 {
		t.Errorf("query count: got %d, want 3", got)
	}

	// Statements without a counter in their context are not recorded.
	db.Find(&agents)
	if got := qc.Load(); got != 3 {
		t.Errorf("query count after untracked query: got %d, want 3", got)
	}
}

func TestOptional_Unmarshal(t *testing.T) {
	var body struct {
		Name    Optional[string]  `json:"name"`
		Avatar  Optional[string]  `json:"avatar"`
		Hours   Optional[float64] `json:"hours"`
		Missing Optional[string]  `json:"missing"`
	}
	if err := json.Unmarshal([]byte(`{"name":"Nova","avatar":null,"hours":2.5}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !body.Name.Present() || body.Name.Value != "Nova" {
		t.Errorf("name: got %+v", body.Name)
	}
	if !body.Avatar.Set || !body.Avatar.Null {
		t.Errorf("avatar: expected explicit null, got %+v", body.Avatar)
	}
	if !body.Hours.Present() || body.Hours.Value != 2.5 {
		t.Errorf("hours: got %+v", body.Hours)
	}
	if body.Missing.Set {
		t.Errorf("missing: expected absent, got %+v", body.Missing)
	}
}

func TestPriorityRank(t *testing.T) {
	if PriorityRank(PriorityUrgent) <= PriorityRank(PriorityHigh) {
		t.Error("urgent should outrank high")
	}
	if PriorityRank("whatever") != -1 {
		t.Error("unknown priority should rank -1")
	}
}
