package api

import (
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

func (s *Server) registerRoutes() {
	// Health check and metrics.
	s.App.Get("/health", s.HealthCheck)
	s.App.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := s.App.Group("/api")

	// Agents. Static segments are registered before /:id.
	agents := api.Group("/agents")
	agents.Get("/", s.ListAgents)
	agents.Post("/", s.CreateAgent)
	agents.Get("/details", s.GetAgentsDetails)
	agents.Get("/:id", s.GetAgent)
	agents.Get("/:id/details", s.GetAgentDetails)
	agents.Put("/:id", s.UpdateAgent)
	agents.Delete("/:id", s.DeleteAgent)
	agents.Get("/:id/skills", s.ListAgentSkills)
	agents.Post("/:id/skills", s.CreateAgentSkill)
	agents.Get("/:id/achievements", s.ListAgentAchievements)
	agents.Post("/:id/achievements", s.CreateAgentAchievement)

	// Tasks.
	tasks := api.Group("/tasks")
	tasks.Get("/", s.ListTasks)
	tasks.Post("/", s.CreateTask)
	tasks.Get("/today", s.TodayTasks)
	tasks.Post("/batch", s.BatchCreateTasks)
	tasks.Delete("/batch", s.BatchDeleteTasks)
	tasks.Put("/batch/status", s.BatchUpdateTaskStatus)
	tasks.Get("/:id", s.GetTask)
	tasks.Put("/:id", s.UpdateTask)
	tasks.Delete("/:id", s.DeleteTask)

	// Projects.
	projects := api.Group("/projects")
	projects.Get("/", s.ListProjects)
	projects.Post("/", s.CreateProject)
	projects.Get("/:id", s.GetProject)
	projects.Put("/:id", s.UpdateProject)
	projects.Delete("/:id", s.DeleteProject)

	// Skills.
	skills := api.Group("/skills")
	skills.Get("/:id", s.GetSkill)
	skills.Put("/:id", s.UpdateSkill)
	skills.Delete("/:id", s.DeleteSkill)

	// Achievements.
	achievements := api.Group("/achievements")
	achievements.Get("/", s.ListAchievements)
	achievements.Get("/:id", s.GetAchievement)
	achievements.Delete("/:id", s.DeleteAchievement)

	// Stats.
	api.Get("/stats", s.GetStats)
	api.Get("/stats/performance", s.GetPerformance)
}
