package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/helmcode/crewboard/internal/models"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/tasks", 200, 15*time.Millisecond)
	m.ObserveRequest("GET", "/api/tasks", 200, 5*time.Millisecond)
	m.ObserveRequest("POST", "/api/tasks", 400, time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/tasks", "200")); got != 2 {
		t.Errorf("GET 200 count: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/tasks", "400")); got != 1 {
		t.Errorf("POST 400 count: got %v, want 1", got)
	}
}

func TestRecordEvent(t *testing.T) {
	m := New()
	m.RecordEvent("task.created", nil)
	m.RecordEvent("task.created", errors.New("down"))

	if got := testutil.ToFloat64(m.events.WithLabelValues("task.created", "ok")); got != 1 {
		t.Errorf("ok count: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("task.created", "error")); got != 1 {
		t.Errorf("error count: got %v, want 1", got)
	}
}

func TestGormPlugin_CountsQueries(t *testing.T) {
	m := New()
	db, err := models.InitDB(":memory:", m)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer models.Close(db)

	before := testutil.ToFloat64(m.queries.WithLabelValues("query"))
	var agents []models.Agent
	db.Find(&agents)
	db.Find(&agents)

	if got := testutil.ToFloat64(m.queries.WithLabelValues("query")) - before; got != 2 {
		t.Errorf("query count delta: got %v, want 2", got)
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "crewboard_http_requests_total") {
		t.Errorf("expected crewboard_http_requests_total in exposition, got:\n%s", body)
	}
}
