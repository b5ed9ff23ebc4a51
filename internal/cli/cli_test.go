package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/helmcode/crewboard/internal/events"
	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/stats"
	"github.com/helmcode/crewboard/internal/store"
)

// runCmd executes the root command against a sqlite file in a temp dir.
func runCmd(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("NATS_URL", "")

	root := NewRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("version: got %q", root.Version)
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}

	want := map[string]bool{"serve": false, "migrate": false, "seed": false, "stats": false, "watch": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}

	serve, _, err := root.Find([]string{"serve"})
	if err != nil || serve.Flags().Lookup("addr") == nil {
		t.Error("serve should have an --addr flag")
	}
	watch, _, err := root.Find([]string{"watch"})
	if err != nil || watch.Flags().Lookup("type") == nil {
		t.Error("watch should have a --type flag")
	}
}

func TestNewRootCmd_DefaultVersion(t *testing.T) {
	if v := NewRootCmd("").Version; v != "dev" {
		t.Errorf("version: got %q, want dev", v)
	}
}

func TestMigrateCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crewboard.db")

	out, err := runCmd(t, dbPath, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var report stats.PerformanceReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding report: %v\n%s", err, out)
	}
	if report.Driver != "sqlite" || len(report.Tables) != len(models.All()) {
		t.Errorf("unexpected report: driver %q, %d tables", report.Driver, len(report.Tables))
	}
	for _, name := range models.PerformanceIndexNames() {
		if !strings.Contains(out, name) {
			t.Errorf("report is missing index %s", name)
		}
	}
}

func TestSeedAndStatsCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crewboard.db")

	out, err := runCmd(t, dbPath, "seed", "--days", "3")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "seeded 4 agents") {
		t.Errorf("unexpected seed output: %q", out)
	}

	out, err = runCmd(t, dbPath, "seed")
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(out, "skipping seed") {
		t.Errorf("second seed should skip, got %q", out)
	}

	out, err = runCmd(t, dbPath, "stats", "--detailed")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var ov stats.Overview
	if err := json.Unmarshal([]byte(out), &ov); err != nil {
		t.Fatalf("decoding overview: %v\n%s", err, out)
	}
	if ov.TotalAgents != 4 || ov.TotalTasks != 12 || len(ov.AgentStats) != 4 {
		t.Errorf("unexpected overview: %+v", ov.Summary)
	}
}

func TestWatchCmd_RequiresNATS(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crewboard.db")
	if _, err := runCmd(t, dbPath, "watch"); err == nil {
		t.Fatal("watch without a nats url should fail")
	}
}

func TestSeedDemo(t *testing.T) {
	db, err := models.InitDB(":memory:")
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { models.Close(db) })
	s := store.New(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	sum, err := seedDemo(ctx, s, now, 5)
	if err != nil {
		t.Fatalf("seedDemo: %v", err)
	}
	if sum.Agents != 4 || sum.Projects != 2 || sum.Tasks != 20 || sum.Achievements != 4 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	today, err := s.Tasks.Today(ctx, now)
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if len(today) != 4 {
		t.Errorf("today: got %d tasks, want one per agent", len(today))
	}

	res, err := s.Tasks.FindAll(ctx, store.TaskFilter{Status: models.TaskStatusCompleted}, store.Page{Number: 1, Size: 100})
	if err != nil {
		t.Fatalf("find completed: %v", err)
	}
	for _, task := range res.Items {
		if task.CompletedAt == nil {
			t.Errorf("completed task %s has no completed_at", task.ID)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	task, err := events.New(events.TaskCompleted, "t1", map[string]string{"title": "ship it", "status": "completed"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	task.Timestamp = at
	agent, _ := events.New(events.AgentCreated, "a1", map[string]string{"name": "Atlas"})
	agent.Timestamp = at
	deleted, _ := events.New(events.TaskDeleted, "t2", nil)
	deleted.Timestamp = at

	tests := []struct {
		ev   *events.Event
		want string
	}{
		{task, `2026-03-10T12:00:00Z task.completed t1 "ship it" [completed]`},
		{agent, `2026-03-10T12:00:00Z agent.created a1 "Atlas"`},
		{deleted, `2026-03-10T12:00:00Z task.deleted t2`},
	}
	for _, tt := range tests {
		if got := formatEvent(tt.ev); got != tt.want {
			t.Errorf("formatEvent(%s): got %q, want %q", tt.ev.Type, got, tt.want)
		}
	}
}

func TestWatchCmd_RejectsUnknownFormat(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crewboard.db")
	_, err := runCmd(t, dbPath, "watch", "--format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected format error, got %v", err)
	}
}
