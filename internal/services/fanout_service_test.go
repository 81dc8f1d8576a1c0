package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
	"curator/internal/queue"
)

// countingCuration records which users were curated, in any order.
type countingCuration struct {
	mu    sync.Mutex
	users []int64
}

func (c *countingCuration) RunForUser(_ context.Context, userID int64, _ time.Time) (*CurationReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, userID)
	return &CurationReport{UserID: userID}, nil
}

func (c *countingCuration) WeightMetricFor(context.Context, int64, time.Time) (*models.DailyWeightMetric, error) {
	return nil, nil
}

func (c *countingCuration) RankCurated(context.Context, int64, int64, int) (*models.CuratedTask, error) {
	return nil, nil
}

func (c *countingCuration) curatedUsers() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.users...)
}

func TestFanOutOneUnitPerEligibleUser(t *testing.T) {
	ineligible := models.User{ID: 3, Email: "u3@example.com", PendingApproval: true}
	users := newFakeUserRepo(eligibleUser(1), eligibleUser(2), ineligible)
	projects := newFakeProjectRepo()
	curation := &countingCuration{}
	q := queue.New(2, 16)

	svc := NewFanOutService(users, projects, curation, q)
	report, err := svc.Run(context.Background(), FanOutOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.EligibleUsers)
	assert.Equal(t, 2, report.EnqueuedUnits)

	require.NoError(t, q.Drain(context.Background()))
	assert.ElementsMatch(t, []int64{1, 2}, curation.curatedUsers())
}

func TestFanOutDryRun(t *testing.T) {
	users := newFakeUserRepo(eligibleUser(1), eligibleUser(2))
	iterative := models.Project{
		ID: 1, OwnerID: 1, Name: "Sprints", Status: models.ProjectActive,
		Type: models.ProjectTypeIterative, AutoCreateIterations: true,
	}
	projects := newFakeProjectRepo(iterative)
	curation := &countingCuration{}
	q := queue.New(1, 4)

	svc := NewFanOutService(users, projects, curation, q)
	report, err := svc.Run(context.Background(), FanOutOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.EnqueuedUnits)
	assert.Equal(t, 1, report.IterationChecks)

	require.NoError(t, q.Drain(context.Background()))
	assert.Empty(t, curation.curatedUsers(), "dry run must not dispatch work")
}

func TestFanOutTargetedUserBypassesEligibility(t *testing.T) {
	ineligible := models.User{ID: 5, Email: "u5@example.com", PendingApproval: true}
	users := newFakeUserRepo(ineligible)
	curation := &countingCuration{}
	q := queue.New(1, 4)

	svc := NewFanOutService(users, newFakeProjectRepo(), curation, q)
	report, err := svc.Run(context.Background(), FanOutOptions{UserID: int64Ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.EnqueuedUnits)

	require.NoError(t, q.Drain(context.Background()))
	assert.Equal(t, []int64{5}, curation.curatedUsers())
}

func TestFanOutUnknownUserIsANote(t *testing.T) {
	svc := NewFanOutService(newFakeUserRepo(), newFakeProjectRepo(), &countingCuration{}, queue.New(1, 4))

	report, err := svc.Run(context.Background(), FanOutOptions{UserID: int64Ptr(404)})
	require.NoError(t, err, "an unknown target is an operator typo, not a run failure")
	assert.Equal(t, 0, report.EnqueuedUnits)
	require.Len(t, report.Notes, 1)
	assert.Contains(t, report.Notes[0], "user 404 not found")
}

func TestFanOutTargetedProject(t *testing.T) {
	iterative := models.Project{
		ID: 7, OwnerID: 1, Name: "Sprints", Status: models.ProjectActive,
		Type: models.ProjectTypeIterative, AutoCreateIterations: true,
	}
	standard := activeProject(8, 1, "Flat")
	projects := newFakeProjectRepo(iterative, standard)
	q := queue.New(1, 4)
	svc := NewFanOutService(newFakeUserRepo(), projects, &countingCuration{}, q)
	ctx := context.Background()

	report, err := svc.Run(ctx, FanOutOptions{ProjectID: int64Ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.IterationChecks)
	assert.Equal(t, 0, report.EnqueuedUnits, "project targeting never curates users")

	report, err = svc.Run(ctx, FanOutOptions{ProjectID: int64Ptr(8)})
	require.NoError(t, err)
	assert.Equal(t, 0, report.IterationChecks)
	require.Len(t, report.Notes, 1)
	assert.Contains(t, report.Notes[0], "does not auto-iterate")
}

func TestFanOutSurfacesBackpressure(t *testing.T) {
	users := newFakeUserRepo(eligibleUser(1), eligibleUser(2), eligibleUser(3))
	q := queue.New(1, 1) // room for one unit only
	svc := NewFanOutService(users, newFakeProjectRepo(), &countingCuration{}, q)

	report, err := svc.Run(context.Background(), FanOutOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.EligibleUsers)
	assert.Equal(t, 1, report.EnqueuedUnits)
	assert.Len(t, report.Notes, 2, "rejected units are reported, not dropped silently")
}
