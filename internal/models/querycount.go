package models

import (
	"context"
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"
)

// QueryCount counts statements executed under a context.
type QueryCount struct {
	n atomic.Int64
}

// Load returns the number of statements recorded so far.
func (q *QueryCount) Load() int64 {
	if q == nil {
		return 0
	}
	return q.n.Load()
}

type queryCountKey struct{}

// WithQueryCount attaches a fresh counter to ctx. Statements run through a
// *gorm.DB with the QueryCounter plugin and WithContext(ctx) increment it.
func WithQueryCount(ctx context.Context) (context.Context, *QueryCount) {
	qc := &QueryCount{}
	return context.WithValue(ctx, queryCountKey{}, qc), qc
}

// QueryCountFrom returns the counter attached to ctx, or nil.
func QueryCountFrom(ctx context.Context) *QueryCount {
	if ctx == nil {
		return nil
	}
	qc, _ := ctx.Value(queryCountKey{}).(*QueryCount)
	return qc
}

// QueryCounter is a gorm.Plugin feeding the per-context counters.
type QueryCounter struct{}

func (QueryCounter) Name() string { return "crewboard:query_counter" }

func (QueryCounter) Initialize(db *gorm.DB) error {
	return RegisterStatementHook(db, "crewboard:query_count", func(_ string, tx *gorm.DB) {
		if qc := QueryCountFrom(tx.Statement.Context); qc != nil {
			qc.n.Add(1)
		}
	})
}

// RegisterStatementHook registers fn to run after every statement kind
// (create, query, update, delete, row, raw). The first argument passed to fn
// names the statement kind.
func RegisterStatementHook(db *gorm.DB, name string, fn func(op string, tx *gorm.DB)) error {
	cb := db.Callback()
	hooks := []struct {
		op       string
		register func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().After("gorm:create").Register},
		{"query", cb.Query().After("gorm:query").Register},
		{"update", cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		op := h.op
		if err := h.register(name+":"+op, func(tx *gorm.DB) { fn(op, tx) }); err != nil {
			return fmt.Errorf("registering %s hook: %w", op, err)
		}
	}
	return nil
}
