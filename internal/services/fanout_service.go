// internal/services/fanout_service.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"curator/internal/models"
	"curator/internal/queue"
	"curator/internal/repositories"
)

// FanOutOptions narrows a daily run. Zero value = default mode: every
// eligible user plus every auto-iterating project.
type FanOutOptions struct {
	UserID    *int64
	ProjectID *int64
	DryRun    bool
}

// FanOutReport is what the CLI prints after a run.
type FanOutReport struct {
	WorkDate        time.Time `json:"work_date"`
	EligibleUsers   int       `json:"eligible_users"`
	EnqueuedUnits   int       `json:"enqueued_units"`
	IterationChecks int       `json:"iteration_checks"`
	DryRun          bool      `json:"dry_run"`
	Notes           []string  `json:"notes,omitempty"`
}

// FanOutService enumerates curation targets and dispatches one queue unit
// per target. It never runs curation itself: enumeration and execution
// stay decoupled so trigger cadence and processing scale independently.
type FanOutService struct {
	users    repositories.UserRepository
	projects repositories.ProjectRepository
	curation CurationService
	q        *queue.Queue
}

func NewFanOutService(users repositories.UserRepository, projects repositories.ProjectRepository, curation CurationService, q *queue.Queue) *FanOutService {
	return &FanOutService{users: users, projects: projects, curation: curation, q: q}
}

func (s *FanOutService) Run(ctx context.Context, opts FanOutOptions) (*FanOutReport, error) {
	workDate := Today()
	report := &FanOutReport{WorkDate: workDate, DryRun: opts.DryRun}

	switch {
	case opts.UserID != nil:
		// operator targeting bypasses the eligibility filter
		user, err := s.users.FindByID(ctx, *opts.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			report.Notes = append(report.Notes, fmt.Sprintf("user %d not found", *opts.UserID))
			log.Printf("[fanout][warn] user=%d not found", *opts.UserID)
			return report, nil
		}
		s.enqueueUser(report, user.ID, workDate)

	case opts.ProjectID != nil:
		project, err := s.projects.FindByID(ctx, *opts.ProjectID)
		if err != nil {
			return nil, err
		}
		if project == nil {
			report.Notes = append(report.Notes, fmt.Sprintf("project %d not found", *opts.ProjectID))
			log.Printf("[fanout][warn] project=%d not found", *opts.ProjectID)
			return report, nil
		}
		if project.NeedsIterationCheck() {
			s.enqueueIterationCheck(report, project)
		} else {
			report.Notes = append(report.Notes, fmt.Sprintf("project %d does not auto-iterate", project.ID))
		}

	default:
		users, err := s.users.ListCurationEligible(ctx)
		if err != nil {
			return nil, err
		}
		report.EligibleUsers = len(users)
		for _, u := range users {
			s.enqueueUser(report, u.ID, workDate)
		}

		projects, err := s.projects.ListAutoIterating(ctx)
		if err != nil {
			return nil, err
		}
		for i := range projects {
			s.enqueueIterationCheck(report, &projects[i])
		}
	}

	log.Printf("[fanout][ok] date=%s eligible=%d enqueued=%d iteration_checks=%d dry_run=%v",
		workDate.Format("2006-01-02"), report.EligibleUsers, report.EnqueuedUnits, report.IterationChecks, report.DryRun)
	return report, nil
}

func (s *FanOutService) enqueueUser(report *FanOutReport, userID int64, workDate time.Time) {
	if report.DryRun {
		report.EnqueuedUnits++
		return
	}
	job := queue.NewJob("curation:user", func(ctx context.Context) error {
		_, err := s.curation.RunForUser(ctx, userID, workDate)
		return err
	})
	if err := s.q.Enqueue(job); err != nil {
		report.Notes = append(report.Notes, fmt.Sprintf("user %d: %v", userID, err))
		log.Printf("[fanout][err] enqueue user=%d: %v", userID, err)
		return
	}
	report.EnqueuedUnits++
}

// enqueueIterationCheck dispatches the adjacent iteration-lifecycle
// subsystem's unit. Only the dispatch lives here; the check itself is an
// external collaborator and the job records the handoff.
func (s *FanOutService) enqueueIterationCheck(report *FanOutReport, project *models.Project) {
	if report.DryRun {
		report.IterationChecks++
		return
	}
	projectID := project.ID
	job := queue.NewJob("iteration:check", func(ctx context.Context) error {
		log.Printf("[iteration][check] project=%d dispatched", projectID)
		return nil
	})
	if err := s.q.Enqueue(job); err != nil {
		report.Notes = append(report.Notes, fmt.Sprintf("project %d: %v", projectID, err))
		return
	}
	report.IterationChecks++
}

// Today is the work date boundary: midnight UTC.
func Today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}
