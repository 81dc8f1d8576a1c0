// internal/services/curation_service.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"curator/internal/ai"
	"curator/internal/apperr"
	"curator/internal/curatable"
	"curator/internal/models"
	"curator/internal/repositories"
)

// CurationReport summarizes one per-user curation unit for logs and the CLI.
type CurationReport struct {
	UserID       int64
	WorkDate     time.Time
	Projects     int
	Suggestions  int
	CuratedTasks int
	UsedFallback bool
}

// CurationService runs the per-user curation unit and serves its read
// models.
type CurationService interface {
	RunForUser(ctx context.Context, userID int64, workDate time.Time) (*CurationReport, error)
	WeightMetricFor(ctx context.Context, userID int64, date time.Time) (*models.DailyWeightMetric, error)
	RankCurated(ctx context.Context, userID, curatedID int64, newIndex int) (*models.CuratedTask, error)
}

type curationService struct {
	users    repositories.UserRepository
	projects repositories.ProjectRepository
	tasks    repositories.TaskRepository
	curation repositories.CurationRepository
	adapter  ai.Adapter // nil: heuristics only
	registry *curatable.Registry
}

func NewCurationService(
	users repositories.UserRepository,
	projects repositories.ProjectRepository,
	tasks repositories.TaskRepository,
	curation repositories.CurationRepository,
	adapter ai.Adapter,
	registry *curatable.Registry,
) CurationService {
	return &curationService{
		users: users, projects: projects, tasks: tasks,
		curation: curation, adapter: adapter, registry: registry,
	}
}

// RunForUser executes one curation unit: per visible project, prompt →
// AI-or-fallback → curation row; then one weight metric row. All rows for
// the (user, date) land in a single transaction so a failing unit never
// leaves curation and metrics disagreeing.
func (s *curationService) RunForUser(ctx context.Context, userID int64, workDate time.Time) (*CurationReport, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user %d not found", userID)
	}

	projects, err := s.projects.ListVisibleActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	passID := uuid.NewString()
	report := &CurationReport{UserID: userID, WorkDate: workDate}

	var curations []*models.DailyCuration
	var curated []*models.CuratedTask
	tasksByProject := make(map[int64][]models.Task, len(projects))
	rank := 0

	for i := range projects {
		project := &projects[i]
		tasks, err := s.tasks.ListLeafIncomplete(ctx, project.ID)
		if err != nil {
			return nil, err
		}
		tasksByProject[project.ID] = tasks
		if len(tasks) == 0 {
			continue
		}

		prompt := ai.BuildCurationPrompt(project, tasks)
		if err := s.curation.StorePrompt(ctx, &models.CurationPrompt{
			PassID:    passID,
			UserID:    userID,
			ProjectID: project.ID,
			Prompt:    prompt,
		}); err != nil {
			return nil, err
		}

		result, generatedBy := s.generate(ctx, prompt, tasks, workDate)
		if generatedBy == "fallback" {
			report.UsedFallback = true
		}

		curations = append(curations, &models.DailyCuration{
			UserID:      userID,
			ProjectID:   project.ID,
			WorkDate:    workDate,
			Suggestions: result.Suggestions,
			Summary:     result.Summary,
			Problems:    result.Problems,
			FocusAreas:  result.FocusAreas,
			GeneratedBy: generatedBy,
		})
		report.Projects++
		report.Suggestions += len(result.Suggestions)

		for _, id := range rankedTaskIDs(result.Suggestions, tasks) {
			rank++
			curated = append(curated, &models.CuratedTask{
				UserID:       userID,
				Kind:         string(curatable.KindTask),
				CuratableID:  id,
				WorkDate:     workDate,
				InitialIndex: rank,
				CurrentIndex: rank,
			})
		}
	}

	velocity := 0
	for i := range projects {
		pts, err := s.tasks.SumCompletedPoints(ctx, projects[i].ID, workDate)
		if err != nil {
			return nil, err
		}
		velocity += pts
	}

	metric := ComputeWeightMetric(userID, workDate, projects, tasksByProject)
	metric.DailyVelocity = float64(velocity)

	if err := s.curation.SavePass(ctx, curations, metric, curated); err != nil {
		return nil, err
	}
	report.CuratedTasks = len(curated)

	log.Printf("[curation][ok] user=%d date=%s projects=%d suggestions=%d fallback=%v",
		userID, workDate.Format("2006-01-02"), report.Projects, report.Suggestions, report.UsedFallback)
	return report, nil
}

// generate invokes the adapter with the fallback contract: a slow, failing
// or unconfigured provider degrades to heuristics, never to an error.
func (s *curationService) generate(ctx context.Context, prompt string, tasks []models.Task, now time.Time) (*ai.CurationResult, string) {
	if s.adapter != nil {
		result, err := s.adapter.GenerateCuration(ctx, prompt)
		if err == nil {
			return result, "ai"
		}
		log.Printf("[curation][fallback] %v", err)
	}
	return ai.FallbackCuration(tasks, now), "fallback"
}

// rankedTaskIDs orders a project's tasks for curated ranking: tasks named
// by suggestions first, in suggestion order, then the rest in priority
// order. Each task appears once.
func rankedTaskIDs(suggestions []models.Suggestion, tasks []models.Task) []int64 {
	known := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	var out []int64
	seen := make(map[int64]bool)
	for _, sg := range suggestions {
		if sg.TaskID == nil || seen[*sg.TaskID] || !known[*sg.TaskID] {
			continue
		}
		seen[*sg.TaskID] = true
		out = append(out, *sg.TaskID)
	}
	for _, t := range tasks {
		if !seen[t.ID] {
			seen[t.ID] = true
			out = append(out, t.ID)
		}
	}
	return out
}

// ComputeWeightMetric aggregates incomplete leaf tasks into the per-user
// daily workload snapshot. Signed tasks (non-nil story points) feed the
// totals and size buckets; unsigned tasks are counted but contribute 0.
// The average is defined as 0 when no task is signed.
func ComputeWeightMetric(userID int64, date time.Time, projects []models.Project, tasksByProject map[int64][]models.Task) *models.DailyWeightMetric {
	m := &models.DailyWeightMetric{
		UserID:        userID,
		MetricDate:    date,
		SizeBreakdown: make(map[models.TaskSize]int, len(models.AllSizes)),
	}
	for _, size := range models.AllSizes {
		m.SizeBreakdown[size] = 0
	}

	for i := range projects {
		p := &projects[i]
		tasks := tasksByProject[p.ID]
		pw := models.ProjectWeight{ProjectID: p.ID, ProjectName: p.Name}
		for j := range tasks {
			t := &tasks[j]
			m.TotalTasksCount++
			pw.TasksCount++
			if t.CurrentStoryPoints == nil {
				m.UnsignedTasksCount++
				continue
			}
			m.SignedTasksCount++
			m.TotalStoryPoints += *t.CurrentStoryPoints
			pw.StoryPoints += *t.CurrentStoryPoints
			if t.Size != nil {
				m.SizeBreakdown[*t.Size] += *t.CurrentStoryPoints
			}
		}
		m.ProjectBreakdown = append(m.ProjectBreakdown, pw)
	}

	if m.SignedTasksCount > 0 {
		m.AveragePointsPerTask = float64(m.TotalStoryPoints) / float64(m.SignedTasksCount)
	}
	return m
}

func (s *curationService) WeightMetricFor(ctx context.Context, userID int64, date time.Time) (*models.DailyWeightMetric, error) {
	metric, err := s.curation.FindWeightMetric(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if metric == nil {
		return nil, apperr.NotFound("no weight metric for that date")
	}
	return metric, nil
}

func (s *curationService) RankCurated(ctx context.Context, userID, curatedID int64, newIndex int) (*models.CuratedTask, error) {
	if newIndex < 1 {
		return nil, apperr.Validation("current_index", "must be at least 1")
	}
	ct, err := s.curation.FindCuratedTask(ctx, curatedID)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, apperr.NotFound("curated task not found")
	}
	if ct.UserID != userID {
		return nil, apperr.Forbidden("not your curated task")
	}
	// resolving through the registry guards against dangling references
	if _, err := s.registry.Resolve(ctx, curatable.Ref{Kind: curatable.Kind(ct.Kind), ID: ct.CuratableID}); err != nil {
		return nil, apperr.NotFound("curated entity no longer exists")
	}
	updated, err := s.curation.Rank(ctx, curatedID, newIndex)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// row vanished between the read and the write
		return nil, apperr.NotFound("curated task not found")
	}
	return updated, nil
}
