package models

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DBConfig selects the database backend.
type DBConfig struct {
	Driver string
	// Path is the SQLite file path. ":memory:" opens an in-memory database.
	Path string
	// DSN is the Postgres connection string.
	DSN string
	// Plugins are registered before migrations run.
	Plugins []gorm.Plugin
}

// performanceIndexes are composite indexes that back the filtered list and
// stats queries. They are created with IF NOT EXISTS so repeated runs are
// harmless.
var performanceIndexes = []struct {
	Name    string
	Table   string
	Columns string
}{
	{"idx_tasks_agent_status", "tasks", "agent_id, status"},
	{"idx_tasks_agent_created", "tasks", "agent_id, created_at DESC"},
	{"idx_tasks_project_status", "tasks", "project_id, status"},
	{"idx_tasks_status_created", "tasks", "status, created_at DESC"},
	{"idx_skills_agent_status", "skills", "agent_id, status"},
	{"idx_skills_agent_proficiency", "skills", "agent_id, proficiency DESC"},
	{"idx_achievements_agent_earned", "achievements", "agent_id, earned_at DESC"},
	{"idx_projects_status_created", "projects", "status, created_at DESC"},
}

// InitDB opens an SQLite database at dbPath and auto-migrates all models.
// Pass ":memory:" for an in-memory database (useful for testing).
func InitDB(dbPath string, plugins ...gorm.Plugin) (*gorm.DB, error) {
	return Open(DBConfig{Driver: DriverSQLite, Path: dbPath, Plugins: plugins})
}

// Open connects to the configured backend, registers plugins and migrates the
// schema including the performance indexes.
func Open(cfg DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("postgres driver requires a DSN")
		}
		dialector = postgres.New(postgres.Config{DSN: cfg.DSN})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	if db.Dialector.Name() == DriverSQLite {
		// One shared connection: keeps ":memory:" databases alive and
		// serializes writers.
		sqlDB.SetMaxOpenConns(1)
		if cfg.Path != ":memory:" {
			if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
				slog.Warn("failed to enable WAL mode", "error", err)
			}
		}
		if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
			slog.Warn("failed to enable foreign keys", "error", err)
		}
	}

	for _, p := range cfg.Plugins {
		if p == nil {
			continue
		}
		if err := db.Use(p); err != nil {
			return nil, fmt.Errorf("registering plugin %s: %w", p.Name(), err)
		}
	}

	if err := db.AutoMigrate(All()...); err != nil {
		return nil, fmt.Errorf("auto-migrating models: %w", err)
	}
	if err := EnsurePerformanceIndexes(db); err != nil {
		return nil, err
	}

	slog.Info("database initialized", "driver", db.Dialector.Name(), "path", cfg.Path)
	return db, nil
}

// EnsurePerformanceIndexes creates the composite indexes used by list
// filters and aggregate stats.
func EnsurePerformanceIndexes(db *gorm.DB) error {
	for _, idx := range performanceIndexes {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.Name, idx.Table, idx.Columns)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("creating index %s: %w", idx.Name, err)
		}
	}
	return nil
}

// PerformanceIndexNames returns the names of the composite indexes.
func PerformanceIndexNames() []string {
	names := make([]string, 0, len(performanceIndexes))
	for _, idx := range performanceIndexes {
		names = append(names, idx.Name)
	}
	return names
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "crewboard.db"
	}
	if strings.Contains(path, "_foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=1"
}
