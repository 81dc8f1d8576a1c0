package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/ai"
	"curator/internal/apperr"
	"curator/internal/models"
)

// stubAdapter returns canned results, or errors when failing is set.
type stubAdapter struct {
	curation  *ai.CurationResult
	breakdown *ai.BreakdownResult
	sizes     map[string]models.TaskSize
	failing   bool
	calls     int
}

func (a *stubAdapter) GenerateCuration(_ context.Context, _ string) (*ai.CurationResult, error) {
	a.calls++
	if a.failing || a.curation == nil {
		return nil, ai.ErrUnavailable
	}
	return a.curation, nil
}

func (a *stubAdapter) GenerateBreakdown(_ context.Context, _ string) (*ai.BreakdownResult, error) {
	a.calls++
	if a.failing || a.breakdown == nil {
		return nil, ai.ErrUnavailable
	}
	return a.breakdown, nil
}

func (a *stubAdapter) ClassifySize(_ context.Context, title, _ string) (models.TaskSize, error) {
	a.calls++
	if a.failing {
		return "", ai.ErrUnavailable
	}
	if size, ok := a.sizes[title]; ok {
		return size, nil
	}
	return models.SizeM, nil
}

func TestBreakdownRejectsOnePointParent(t *testing.T) {
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo(activeProject(1, 10, "Alpha"))
	top := tasks.add(models.Task{ProjectID: 1, Title: "Epic", Priority: models.PriorityMedium, Position: 1})
	minimal := tasks.add(models.Task{
		ProjectID: 1, ParentID: &top.ID, Depth: 1, Title: "tiny",
		Priority: models.PriorityMedium, Position: 1, CurrentStoryPoints: intPtr(1),
	})

	svc := NewBreakdownService(tasks, projects, nil)
	_, err := svc.Breakdown(context.Background(), 10, 1, BreakdownRequest{
		Title:        "split it further",
		ParentTaskID: &minimal.ID,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDomainRule, apperr.KindOf(err))
	assert.Equal(t, "A 1-point task is already minimal and cannot be broken down further.", err.Error())
}

func TestBreakdownRejectsCrossProjectParent(t *testing.T) {
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo(activeProject(1, 10, "Alpha"), activeProject(2, 10, "Beta"))
	other := tasks.add(models.Task{ProjectID: 2, Title: "elsewhere", Priority: models.PriorityMedium, Position: 1})

	svc := NewBreakdownService(tasks, projects, nil)
	_, err := svc.Breakdown(context.Background(), 10, 1, BreakdownRequest{
		Title:        "work",
		ParentTaskID: &other.ID,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDomainRule, apperr.KindOf(err))
	assert.Equal(t, "Invalid parent task.", err.Error())
}

func TestBreakdownCapsFeedback(t *testing.T) {
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo(activeProject(1, 10, "Alpha"))

	svc := NewBreakdownService(tasks, projects, nil)
	_, err := svc.Breakdown(context.Background(), 10, 1, BreakdownRequest{
		Title:        "work",
		UserFeedback: strings.Repeat("x", MaxFeedbackLen+1),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "user_feedback", apperr.FieldOf(err))
}

func TestBreakdownFallsBackWithoutAdapter(t *testing.T) {
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo(activeProject(1, 10, "Alpha"))

	svc := NewBreakdownService(tasks, projects, nil)
	res, err := svc.Breakdown(context.Background(), 10, 1, BreakdownRequest{Title: "Build importer"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.NotEmpty(t, res.Subtasks)
	assert.Contains(t, res.Notes, ai.FallbackMarker)
	assert.Nil(t, res.PriorityAdjustments, "no parent, no adjustment")
}

func TestBreakdownFallsBackWhenAdapterFails(t *testing.T) {
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo(activeProject(1, 10, "Alpha"))
	adapter := &stubAdapter{failing: true}

	svc := NewBreakdownService(tasks, projects, adapter)
	res, err := svc.Breakdown(context.Background(), 10, 1, BreakdownRequest{Title: "Build importer"})
	require.NoError(t, err, "provider failure must degrade, not surface")
	assert.Contains(t, res.Notes, ai.FallbackMarker)
	assert.Equal(t, 1, adapter.calls)
}

func TestBreakdownSuggestsParentEscalation(t *testing.T) {
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo(activeProject(1, 10, "Alpha"))
	parent := tasks.add(models.Task{ProjectID: 1, Title: "low between highs", Priority: models.PriorityLow, Position: 2})
	tasks.add(models.Task{ProjectID: 1, Title: "a", Priority: models.PriorityHigh, Position: 1})
	tasks.add(models.Task{ProjectID: 1, Title: "b", Priority: models.PriorityHigh, Position: 3})

	svc := NewBreakdownService(tasks, projects, nil)
	res, err := svc.Breakdown(context.Background(), 10, 1, BreakdownRequest{
		Title:        "split",
		ParentTaskID: &parent.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, res.PriorityAdjustments)
	assert.Equal(t, parent.ID, res.PriorityAdjustments.TaskID)
	assert.Equal(t, models.PriorityLow, res.PriorityAdjustments.CurrentPriority)
	assert.Equal(t, models.PriorityHigh, res.PriorityAdjustments.SuggestedPriority)

	// speculative only: the stored task is untouched
	stored, _ := tasks.FindByID(context.Background(), parent.ID)
	assert.Equal(t, models.PriorityLow, stored.Priority)
}

func TestCreateSubtasksValidation(t *testing.T) {
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo(activeProject(1, 10, "Alpha"))
	parent := tasks.add(models.Task{ProjectID: 1, Title: "Epic", Priority: models.PriorityHigh, Position: 1})

	svc := NewBreakdownService(tasks, projects, nil)
	ctx := context.Background()

	_, err := svc.CreateSubtasks(ctx, 10, 1, parent.ID, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.CreateSubtasks(ctx, 10, 1, parent.ID, []SubtaskInput{{Title: ""}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	neg := -1
	_, err = svc.CreateSubtasks(ctx, 10, 1, parent.ID, []SubtaskInput{{Title: "ok", StoryPoints: &neg}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateSubtasksParentErrors(t *testing.T) {
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo(activeProject(1, 10, "Alpha"), activeProject(2, 10, "Beta"))
	top := tasks.add(models.Task{ProjectID: 1, Title: "Epic", Priority: models.PriorityMedium, Position: 1})
	other := tasks.add(models.Task{ProjectID: 2, Title: "elsewhere", Priority: models.PriorityMedium, Position: 1})
	minimal := tasks.add(models.Task{
		ProjectID: 1, ParentID: &top.ID, Depth: 1, Title: "tiny",
		Priority: models.PriorityMedium, Position: 1, CurrentStoryPoints: intPtr(1),
	})

	svc := NewBreakdownService(tasks, projects, nil)
	ctx := context.Background()
	inputs := []SubtaskInput{{Title: "child"}}

	// missing and cross-project parents are request-shape errors here
	_, err := svc.CreateSubtasks(ctx, 10, 1, 404, inputs)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "parent_task_id", apperr.FieldOf(err))

	_, err = svc.CreateSubtasks(ctx, 10, 1, other.ID, inputs)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "parent_task_id", apperr.FieldOf(err))

	// the 1-point floor stays a domain rule on both paths
	_, err = svc.CreateSubtasks(ctx, 10, 1, minimal.ID, inputs)
	assert.Equal(t, apperr.KindDomainRule, apperr.KindOf(err))
}

func TestCreateSubtasksInheritance(t *testing.T) {
	tasks := newFakeTaskRepo()
	projects := newFakeProjectRepo(activeProject(1, 10, "Alpha"))
	parent := tasks.add(models.Task{ProjectID: 1, Title: "Epic", Priority: models.PriorityHigh, Position: 1, Depth: 0})

	svc := NewBreakdownService(tasks, projects, nil)
	created, err := svc.CreateSubtasks(context.Background(), 10, 1, parent.ID, []SubtaskInput{
		{Title: "first", StoryPoints: intPtr(3)},
		{Title: "second", Priority: models.PriorityLow},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	first, second := created[0], created[1]
	assert.Equal(t, parent.ID, *first.ParentID)
	assert.Equal(t, 1, first.Depth)
	assert.Equal(t, models.PriorityHigh, first.Priority, "unset priority inherits the parent's")
	assert.Equal(t, 3, *first.CurrentStoryPoints)
	assert.Equal(t, 3, *first.InitialStoryPoints)
	assert.Nil(t, first.Size, "subtasks are never sized")

	assert.Equal(t, models.PriorityLow, second.Priority)
	assert.Nil(t, second.CurrentStoryPoints)

	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)
}

func TestSizeForSkipsSubtasks(t *testing.T) {
	svc := NewBreakdownService(newFakeTaskRepo(), newFakeProjectRepo(), nil)

	parentID := int64(7)
	sub := &models.Task{ProjectID: 1, ParentID: &parentID, Title: "Fix typo in docs"}
	assert.Nil(t, svc.SizeFor(context.Background(), sub))
}

func TestSizeForHeuristics(t *testing.T) {
	svc := NewBreakdownService(newFakeTaskRepo(), newFakeProjectRepo(), nil)
	ctx := context.Background()

	cases := map[string]models.TaskSize{
		"Fix typo in readme":           models.SizeXS,
		"Rewrite billing from scratch": models.SizeXL,
		"Integrate payments provider":  models.SizeL,
		"Fix login bug":                models.SizeS,
		"Quarterly report view":        models.SizeM,
	}
	for title, want := range cases {
		got := svc.SizeFor(ctx, &models.Task{ProjectID: 1, Title: title})
		require.NotNil(t, got, title)
		assert.Equal(t, want, *got, title)
	}
}

func TestSizeForPrefersAdapter(t *testing.T) {
	adapter := &stubAdapter{sizes: map[string]models.TaskSize{"Fix typo in readme": models.SizeL}}
	svc := NewBreakdownService(newFakeTaskRepo(), newFakeProjectRepo(), adapter)

	got := svc.SizeFor(context.Background(), &models.Task{ProjectID: 1, Title: "Fix typo in readme"})
	require.NotNil(t, got)
	assert.Equal(t, models.SizeL, *got, "adapter verdict wins over the heuristic")
}

func TestSizeBatchDegradesWholesale(t *testing.T) {
	adapter := &stubAdapter{failing: true}
	svc := NewBreakdownService(newFakeTaskRepo(), newFakeProjectRepo(), adapter)

	parentID := int64(9)
	batch := []models.Task{
		{ID: 1, ProjectID: 1, Title: "Rewrite search"},
		{ID: 2, ProjectID: 1, Title: "Fix login bug"},
		{ID: 3, ProjectID: 1, ParentID: &parentID, Title: "subtask stays unsized"},
	}
	out := svc.SizeBatch(context.Background(), batch)

	assert.Equal(t, models.SizeXL, out[1])
	assert.Equal(t, models.SizeS, out[2])
	_, sized := out[3]
	assert.False(t, sized)
}
