package api

import (
	"fmt"
	"testing"

	"github.com/helmcode/crewboard/internal/events"
	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/stats"
	"github.com/helmcode/crewboard/internal/store"
)

func TestCreateAgent(t *testing.T) {
	srv, pub := setupTestServer(t)

	body := map[string]interface{}{
		"name": "  Ada  ",
		"role": "backend",
		"skills": []map[string]interface{}{
			{"skill_name": "Go", "proficiency": 7, "status": "practicing"},
		},
		"meta": map[string]interface{}{"team": "core"},
	}
	rec := doRequest(srv, "POST", "/api/agents", body)
	expectStatus(t, rec, 201)

	var agent models.Agent
	parseEnvelope(t, rec, &agent)
	if agent.ID == "" {
		t.Error("expected a generated id")
	}
	if agent.Name != "Ada" {
		t.Errorf("name: got %q, want trimmed 'Ada'", agent.Name)
	}
	if agent.Meta["team"] != "core" {
		t.Errorf("meta: got %v", agent.Meta)
	}

	// Skills round-trip through GET.
	rec = doRequest(srv, "GET", "/api/agents/"+agent.ID, nil)
	expectStatus(t, rec, 200)
	var fetched models.Agent
	parseEnvelope(t, rec, &fetched)
	want := models.AgentSkill{SkillName: "Go", Proficiency: 7, Status: "practicing"}
	if len(fetched.Skills) != 1 || fetched.Skills[0] != want {
		t.Errorf("skills: got %+v, want [%+v]", fetched.Skills, want)
	}

	if types := pub.types(); len(types) != 1 || types[0] != events.AgentCreated {
		t.Errorf("events: got %v", types)
	}
}

func TestCreateAgent_Validation(t *testing.T) {
	srv, _ := setupTestServer(t)

	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{"missing name", map[string]interface{}{"role": "dev"}, "name"},
		{"missing role", map[string]interface{}{"name": "x"}, "role"},
		{"bad proficiency", map[string]interface{}{"name": "x", "role": "dev", "skills": []map[string]interface{}{{"skill_name": "Go", "proficiency": 11}}}, "skills[0].proficiency"},
		{"bad skill status", map[string]interface{}{"name": "x", "role": "dev", "skills": []map[string]interface{}{{"skill_name": "Go", "status": "paused"}}}, "skills[0].status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv, "POST", "/api/agents", tt.body)
			env := expectError(t, rec, 400, CodeValidation)
			if env.Error.Details["field"] != tt.field {
				t.Errorf("field: got %v, want %q", env.Error.Details["field"], tt.field)
			}
		})
	}
}

func TestCreateAgent_DuplicateName(t *testing.T) {
	srv, _ := setupTestServer(t)
	createAgent(t, srv, "ada")

	rec := doRequest(srv, "POST", "/api/agents", store.AgentInput{Name: " ada ", Role: "dev"})
	expectError(t, rec, 409, CodeConflict)

	// Names compare case-sensitively.
	rec = doRequest(srv, "POST", "/api/agents", store.AgentInput{Name: "Ada", Role: "dev"})
	expectStatus(t, rec, 201)
}

func TestUpdateAgent(t *testing.T) {
	srv, pub := setupTestServer(t)
	agent := createAgent(t, srv, "ada")
	createAgent(t, srv, "grace")

	rec := doRequest(srv, "PUT", "/api/agents/"+agent.ID, map[string]interface{}{"role": "lead", "avatar": "a.png"})
	expectStatus(t, rec, 200)
	var updated models.Agent
	parseEnvelope(t, rec, &updated)
	if updated.Role != "lead" || updated.Avatar != "a.png" || updated.Name != "ada" {
		t.Errorf("unexpected agent: %+v", updated)
	}

	// Renaming onto another agent's name conflicts; keeping its own does not.
	rec = doRequest(srv, "PUT", "/api/agents/"+agent.ID, map[string]interface{}{"name": "grace"})
	expectError(t, rec, 409, CodeConflict)
	rec = doRequest(srv, "PUT", "/api/agents/"+agent.ID, map[string]interface{}{"name": "ada"})
	expectStatus(t, rec, 200)

	rec = doRequest(srv, "PUT", "/api/agents/"+agent.ID, map[string]interface{}{"name": nil})
	expectError(t, rec, 400, CodeValidation)

	rec = doRequest(srv, "PUT", "/api/agents/missing", map[string]interface{}{"role": "x"})
	expectError(t, rec, 404, CodeNotFound)

	updates := 0
	for _, typ := range pub.types() {
		if typ == events.AgentUpdated {
			updates++
		}
	}
	if updates != 2 {
		t.Errorf("agent.updated events: got %d, want 2", updates)
	}
}

func TestGetAgent_WithStats(t *testing.T) {
	srv, _ := setupTestServer(t)
	agent := createAgent(t, srv, "ada")
	createTask(t, srv, store.TaskInput{Title: "a", AgentID: agent.ID, Status: "completed"})
	createTask(t, srv, store.TaskInput{Title: "b", AgentID: agent.ID})

	rec := doRequest(srv, "GET", "/api/agents/"+agent.ID, nil)
	expectStatus(t, rec, 200)
	var resp struct {
		models.Agent
		Stats store.AgentStat `json:"stats"`
	}
	parseEnvelope(t, rec, &resp)
	if resp.Stats.TotalTasks != 2 || resp.Stats.CompletedTasks != 1 || resp.Stats.PendingTasks != 1 {
		t.Errorf("unexpected stats: %+v", resp.Stats)
	}

	rec = doRequest(srv, "GET", "/api/agents/"+agent.ID+"?withStats=false", nil)
	expectStatus(t, rec, 200)
	var bare map[string]interface{}
	parseEnvelope(t, rec, &bare)
	if _, ok := bare["stats"]; ok {
		t.Error("stats should be omitted when withStats=false")
	}

	rec = doRequest(srv, "GET", "/api/agents/missing", nil)
	expectError(t, rec, 404, CodeNotFound)
}

func TestListAgents_RoleFilterAndPagination(t *testing.T) {
	srv, _ := setupTestServer(t)
	for i := 0; i < 25; i++ {
		role := "Backend Developer"
		if i%5 == 0 {
			role = "designer"
		}
		rec := doRequest(srv, "POST", "/api/agents", store.AgentInput{Name: fmt.Sprintf("agent-%02d", i), Role: role})
		expectStatus(t, rec, 201)
	}

	rec := doRequest(srv, "GET", "/api/agents?page=2&pageSize=10", nil)
	expectStatus(t, rec, 200)
	var page []models.Agent
	env := parseEnvelope(t, rec, &page)
	if len(page) != 10 {
		t.Errorf("items: got %d, want 10", len(page))
	}
	if p := env.Meta.Pagination; p == nil || p.Total != 25 || p.TotalPages != 3 || p.Page != 2 {
		t.Errorf("unexpected pagination: %+v", p)
	}

	rec = doRequest(srv, "GET", "/api/agents?role=developer", nil)
	expectStatus(t, rec, 200)
	env = parseEnvelope(t, rec, &page)
	if env.Meta.Pagination.Total != 20 || len(page) != 20 {
		t.Errorf("role filter: total %d, items %d, want 20", env.Meta.Pagination.Total, len(page))
	}
}

func TestListAgents_WithStats(t *testing.T) {
	srv, _ := setupTestServer(t)
	agent := createAgent(t, srv, "ada")
	createAgent(t, srv, "grace")
	createTask(t, srv, store.TaskInput{Title: "a", AgentID: agent.ID, Status: "completed"})

	rec := doRequest(srv, "GET", "/api/agents?withStats=true", nil)
	expectStatus(t, rec, 200)
	var items []struct {
		ID    string           `json:"id"`
		Stats stats.AgentStats `json:"stats"`
	}
	parseEnvelope(t, rec, &items)
	if len(items) != 2 {
		t.Fatalf("items: got %d, want 2", len(items))
	}
	for _, it := range items {
		if it.ID == agent.ID && (it.Stats.TotalTasks != 1 || it.Stats.CompletionRate != 100) {
			t.Errorf("unexpected stats for %s: %+v", it.ID, it.Stats)
		}
	}

	rec = doRequest(srv, "GET", "/api/agents?withStats=maybe", nil)
	expectError(t, rec, 400, CodeValidation)
}

func TestDeleteAgent_Cascades(t *testing.T) {
	srv, pub := setupTestServer(t)
	agent := createAgent(t, srv, "ada")
	task := createTask(t, srv, store.TaskInput{Title: "a", AgentID: agent.ID})

	rec := doRequest(srv, "DELETE", "/api/agents/"+agent.ID, nil)
	expectStatus(t, rec, 200)

	rec = doRequest(srv, "GET", "/api/tasks/"+task.ID, nil)
	expectError(t, rec, 404, CodeNotFound)

	rec = doRequest(srv, "DELETE", "/api/agents/"+agent.ID, nil)
	expectError(t, rec, 404, CodeNotFound)

	types := pub.types()
	if types[len(types)-1] != events.AgentDeleted {
		t.Errorf("last event: got %v, want agent.deleted", types[len(types)-1])
	}
}

func TestAgentDetails(t *testing.T) {
	srv, _ := setupTestServer(t)
	agent := createAgent(t, srv, "ada")

	rec := doRequest(srv, "POST", "/api/projects", store.ProjectInput{Name: "apollo"})
	expectStatus(t, rec, 201)
	var project models.Project
	parseEnvelope(t, rec, &project)

	createTask(t, srv, store.TaskInput{Title: "a", AgentID: agent.ID, ProjectID: &project.ID, Status: "completed"})
	createTask(t, srv, store.TaskInput{Title: "b", AgentID: agent.ID})
	createTask(t, srv, store.TaskInput{Title: "c", AgentID: agent.ID})

	rec = doRequest(srv, "POST", "/api/agents/"+agent.ID+"/skills", store.SkillInput{SkillName: "Go", Proficiency: 9, Status: "mastered"})
	expectStatus(t, rec, 201)
	rec = doRequest(srv, "POST", "/api/agents/"+agent.ID+"/achievements", store.AchievementInput{BadgeName: "first", Rarity: "legendary"})
	expectStatus(t, rec, 201)

	rec = doRequest(srv, "GET", "/api/agents/"+agent.ID+"/details", nil)
	expectStatus(t, rec, 200)
	var details stats.AgentDetails
	parseEnvelope(t, rec, &details)
	if details.Name != "ada" || len(details.Tasks) != 3 || len(details.Skills) != 1 || len(details.Achievements) != 1 {
		t.Fatalf("unexpected details: %+v", details)
	}
	if len(details.Projects) != 1 || details.Projects[0].ID != project.ID {
		t.Errorf("projects: got %+v", details.Projects)
	}
	if details.Stats.CompletionRate != 33 || details.Stats.MasteredSkills != 1 || details.Stats.RareAchievements != 1 {
		t.Errorf("unexpected stats: %+v", details.Stats)
	}
}

func TestAgentDetails_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(srv, "GET", "/api/agents/does-not-exist/details", nil)
	expectError(t, rec, 404, CodeNotFound)
}

func TestAgentsDetails_Batch(t *testing.T) {
	srv, _ := setupTestServer(t)
	a := createAgent(t, srv, "ada")
	b := createAgent(t, srv, "grace")

	rec := doRequest(srv, "GET", "/api/agents/details?ids="+a.ID+","+b.ID+",unknown", nil)
	expectStatus(t, rec, 200)
	var details []stats.AgentDetails
	parseEnvelope(t, rec, &details)
	if len(details) != 2 {
		t.Errorf("details: got %d, want 2", len(details))
	}

	rec = doRequest(srv, "GET", "/api/agents/details", nil)
	expectError(t, rec, 400, CodeValidation)
}

func TestAgentSkillsAndAchievements(t *testing.T) {
	srv, _ := setupTestServer(t)
	agent := createAgent(t, srv, "ada")

	rec := doRequest(srv, "POST", "/api/agents/"+agent.ID+"/skills", store.SkillInput{SkillName: "Go", Proficiency: 12})
	expectError(t, rec, 400, CodeValidation)

	rec = doRequest(srv, "POST", "/api/agents/"+agent.ID+"/skills", store.SkillInput{SkillName: "SQL"})
	expectStatus(t, rec, 201)
	var skill models.Skill
	parseEnvelope(t, rec, &skill)
	if skill.Proficiency != models.DefaultProficiency || skill.Status != models.DefaultSkillStatus {
		t.Errorf("skill defaults not applied: %+v", skill)
	}

	rec = doRequest(srv, "GET", "/api/agents/"+agent.ID+"/skills", nil)
	expectStatus(t, rec, 200)
	var skills []models.Skill
	parseEnvelope(t, rec, &skills)
	if len(skills) != 1 {
		t.Errorf("skills: got %d, want 1", len(skills))
	}

	rec = doRequest(srv, "POST", "/api/agents/"+agent.ID+"/achievements", store.AchievementInput{BadgeName: "x", Rarity: "mythic"})
	env := expectError(t, rec, 400, CodeValidation)
	if env.Error.Details["field"] != "rarity" || env.Error.Details["validValues"] == nil {
		t.Errorf("unexpected details: %v", env.Error.Details)
	}

	rec = doRequest(srv, "GET", "/api/agents/missing/achievements", nil)
	expectError(t, rec, 404, CodeNotFound)
}
