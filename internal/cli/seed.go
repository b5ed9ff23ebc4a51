package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/store"
)

// seedSummary counts what seedDemo inserted.
type seedSummary struct {
	Agents       int
	Projects     int
	Tasks        int
	Skills       int
	Achievements int
}

func newSeedCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo agents, projects and tasks into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(mustConfig(cmd))
			if err != nil {
				return err
			}
			defer models.Close(db)

			s := store.New(db)
			existing, err := s.Agents.FindAll(cmd.Context(), store.AgentFilter{}, store.Page{Number: 1, Size: 1})
			if err != nil {
				return err
			}
			if existing.Total > 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "database already has %d agents, skipping seed\n", existing.Total)
				return nil
			}

			sum, err := seedDemo(cmd.Context(), s, time.Now().UTC(), days)
			if err != nil {
				return err
			}
			slog.Info("seed complete", "agents", sum.Agents, "tasks", sum.Tasks)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d agents, %d projects, %d tasks, %d skills, %d achievements\n",
				sum.Agents, sum.Projects, sum.Tasks, sum.Skills, sum.Achievements)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 14, "Spread task history over this many days")
	return cmd
}

type demoAgent struct {
	name, avatar, role string
	skills             []models.AgentSkill
}

var demoAgents = []demoAgent{
	{"Atlas", "🛰️", "Platform engineer", []models.AgentSkill{
		{SkillName: "Kubernetes", Proficiency: 8, Status: models.SkillStatusMastered},
		{SkillName: "Terraform", Proficiency: 6, Status: models.SkillStatusPracticing},
	}},
	{"Nova", "🔭", "Researcher", []models.AgentSkill{
		{SkillName: "Statistics", Proficiency: 7, Status: models.SkillStatusPracticing},
	}},
	{"Quill", "🪶", "Technical writer", []models.AgentSkill{
		{SkillName: "Docs", Proficiency: 9, Status: models.SkillStatusMastered},
	}},
	{"Sentry", "🛡️", "Security reviewer", []models.AgentSkill{
		{SkillName: "Threat modeling", Proficiency: 5, Status: models.SkillStatusLearning},
	}},
}

var (
	demoCategories = []string{"development", "research", "documentation", "review"}
	demoPriorities = []string{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent}
	demoStatuses   = []string{models.TaskStatusCompleted, models.TaskStatusCompleted, models.TaskStatusInProgress, models.TaskStatusPending}
	demoRarities   = []string{models.RarityCommon, models.RarityRare, models.RarityEpic, models.RarityLegendary}
)

// seedDemo inserts a small deterministic data set. Tasks are backdated over
// the last days days, one per agent per day.
func seedDemo(ctx context.Context, s *store.Store, now time.Time, days int) (seedSummary, error) {
	var sum seedSummary
	if days < 1 {
		days = 1
	}

	agentIDs := make([]string, 0, len(demoAgents))
	for _, a := range demoAgents {
		agent, err := s.Agents.Create(ctx, store.AgentInput{Name: a.name, Avatar: a.avatar, Role: a.role, Skills: a.skills})
		if err != nil {
			return sum, fmt.Errorf("seeding agent %s: %w", a.name, err)
		}
		agentIDs = append(agentIDs, agent.ID)
		sum.Agents++
	}

	start := now.AddDate(0, 0, -days)
	end := now.AddDate(0, 1, 0)
	projects := []store.ProjectInput{
		{Name: "Control plane", Status: models.ProjectStatusActive, Progress: 45, StartDate: &start, EndDate: &end, TeamMembers: agentIDs[:2]},
		{Name: "Handbook", Status: models.ProjectStatusPlanning, StartDate: &start, TeamMembers: agentIDs[2:]},
	}
	projectIDs := make([]string, 0, len(projects))
	for _, in := range projects {
		p, err := s.Projects.Create(ctx, in)
		if err != nil {
			return sum, fmt.Errorf("seeding project %s: %w", in.Name, err)
		}
		projectIDs = append(projectIDs, p.ID)
		sum.Projects++
	}

	var tasks []store.TaskInput
	for d := days - 1; d >= 0; d-- {
		for i, agentID := range agentIDs {
			n := d + i
			hours := float64(1 + n%4)
			in := store.TaskInput{
				Title:          fmt.Sprintf("%s task %d", demoAgents[i].name, days-d),
				AgentID:        agentID,
				Category:       demoCategories[i%len(demoCategories)],
				Priority:       demoPriorities[n%len(demoPriorities)],
				Status:         demoStatuses[n%len(demoStatuses)],
				EstimatedHours: &hours,
				CreatedAt:      now.AddDate(0, 0, -d),
			}
			if in.Status == models.TaskStatusCompleted {
				actual := hours + 0.5
				in.ActualHours = &actual
			}
			pid := projectIDs[i%len(projectIDs)]
			in.ProjectID = &pid
			tasks = append(tasks, in)
		}
	}
	created, err := s.Tasks.BatchCreate(ctx, tasks)
	if err != nil {
		return sum, fmt.Errorf("seeding tasks: %w", err)
	}
	sum.Tasks = len(created)

	for i, a := range demoAgents {
		for _, sk := range a.skills {
			if _, err := s.Skills.Create(ctx, store.SkillInput{
				AgentID:     agentIDs[i],
				SkillName:   sk.SkillName,
				Proficiency: sk.Proficiency,
				Status:      sk.Status,
			}); err != nil {
				return sum, fmt.Errorf("seeding skill %s: %w", sk.SkillName, err)
			}
			sum.Skills++
		}

		earned := now.AddDate(0, 0, -i)
		if _, err := s.Achievements.Create(ctx, store.AchievementInput{
			AgentID:     agentIDs[i],
			BadgeName:   "First steps",
			Description: "Completed a first task",
			Rarity:      demoRarities[i%len(demoRarities)],
			EarnedAt:    &earned,
		}); err != nil {
			return sum, fmt.Errorf("seeding achievement: %w", err)
		}
		sum.Achievements++
	}

	return sum, nil
}
