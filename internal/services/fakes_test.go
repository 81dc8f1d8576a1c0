package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"curator/internal/models"
	"curator/internal/repositories"
)

// in-memory repositories for service tests

type fakeTaskRepo struct {
	mu     sync.Mutex
	tasks  map[int64]*models.Task
	nextID int64
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[int64]*models.Task), nextID: 1}
}

func (r *fakeTaskRepo) add(t models.Task) *models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.nextID
	r.nextID++
	if t.Position == 0 {
		t.Position = r.tailPosition(t.ProjectID, t.ParentID) + 1
	}
	if t.Status == "" {
		t.Status = models.StatusPending
	}
	r.tasks[t.ID] = &t
	return &t
}

func (r *fakeTaskRepo) tailPosition(projectID int64, parentID *int64) int {
	max := 0
	for _, t := range r.tasks {
		if t.ProjectID == projectID && sameParent(t.ParentID, parentID) && t.Position > max {
			max = t.Position
		}
	}
	return max
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *fakeTaskRepo) Store(_ context.Context, task *models.Task) error {
	stored := r.add(*task)
	*task = *stored
	return nil
}

func (r *fakeTaskRepo) StoreBatch(_ context.Context, tasks []*models.Task) error {
	for _, t := range tasks {
		stored := r.add(*t)
		*t = *stored
	}
	return nil
}

func (r *fakeTaskRepo) FindByID(_ context.Context, id int64) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) FindInProject(_ context.Context, projectID, id int64) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.ProjectID != projectID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) ListSiblings(_ context.Context, projectID int64, parentID *int64) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if t.ProjectID == projectID && sameParent(t.ParentID, parentID) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *fakeTaskRepo) ListLeafIncomplete(_ context.Context, projectID int64) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hasChildren := make(map[int64]bool)
	for _, t := range r.tasks {
		if t.ParentID != nil {
			hasChildren[*t.ParentID] = true
		}
	}
	var out []models.Task
	for _, t := range r.tasks {
		if t.ProjectID == projectID && t.IsIncomplete() && !hasChildren[t.ID] {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Level() != out[j].Priority.Level() {
			return out[i].Priority.Level() > out[j].Priority.Level()
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r *fakeTaskRepo) HasChildren(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ParentID != nil && *t.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTaskRepo) SumCompletedPoints(_ context.Context, projectID int64, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, t := range r.tasks {
		if t.ProjectID == projectID && t.Status == models.StatusCompleted && t.CurrentStoryPoints != nil {
			total += *t.CurrentStoryPoints
		}
	}
	return total, nil
}

func (r *fakeTaskRepo) Reorder(_ context.Context, projectID int64, parentID *int64, orderedIDs []int64, prio *repositories.PriorityUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scopeCount := 0
	for _, t := range r.tasks {
		if t.ProjectID == projectID && sameParent(t.ParentID, parentID) {
			scopeCount++
		}
	}
	if scopeCount != len(orderedIDs) {
		return fmt.Errorf("reorder: sibling scope changed (%d tasks, reordering %d)", scopeCount, len(orderedIDs))
	}
	for i, id := range orderedIDs {
		t, ok := r.tasks[id]
		if !ok || t.ProjectID != projectID || !sameParent(t.ParentID, parentID) {
			return fmt.Errorf("reorder: task %d not in scope", id)
		}
		t.Position = i + 1
	}
	if prio != nil {
		if t, ok := r.tasks[prio.TaskID]; ok {
			t.Priority = prio.Priority
		}
	}
	return nil
}

func (r *fakeTaskRepo) UpdateStatus(_ context.Context, id int64, to models.TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.Status = to
	}
	return nil
}

func (r *fakeTaskRepo) UpdateSize(_ context.Context, id int64, size models.TaskSize) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		s := size
		t.Size = &s
	}
	return nil
}

func (r *fakeTaskRepo) UpdateStoryPoints(_ context.Context, id int64, points int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		p := points
		if t.CurrentStoryPoints == nil || *t.CurrentStoryPoints != points {
			t.StoryPointsChangeCount++
		}
		if t.InitialStoryPoints == nil {
			t.InitialStoryPoints = &p
		}
		t.CurrentStoryPoints = &p
	}
	return nil
}

type fakeProjectRepo struct {
	projects map[int64]*models.Project
}

func newFakeProjectRepo(projects ...models.Project) *fakeProjectRepo {
	r := &fakeProjectRepo{projects: make(map[int64]*models.Project)}
	for i := range projects {
		p := projects[i]
		r.projects[p.ID] = &p
	}
	return r
}

func (r *fakeProjectRepo) FindByID(_ context.Context, id int64) (*models.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProjectRepo) ListVisibleActive(_ context.Context, userID int64) ([]models.Project, error) {
	var out []models.Project
	for _, p := range r.projects {
		if p.OwnerID == userID && p.Status == models.ProjectActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeProjectRepo) ListAutoIterating(_ context.Context) ([]models.Project, error) {
	var out []models.Project
	for _, p := range r.projects {
		if p.NeedsIterationCheck() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeUserRepo struct {
	users map[int64]*models.User
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int64]*models.User)}
	for i := range users {
		u := users[i]
		r.users[u.ID] = &u
	}
	return r
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) ListCurationEligible(_ context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range r.users {
		if u.EligibleForCuration() {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type curatedKey struct {
	userID   int64
	kind     string
	id       int64
	workDate string
}

type fakeCurationRepo struct {
	mu       sync.Mutex
	nextID   int64
	prompts  []models.CurationPrompt
	curation map[string]*models.DailyCuration
	metrics  map[string]*models.DailyWeightMetric
	curated  map[curatedKey]*models.CuratedTask
	byID     map[int64]*models.CuratedTask
}

func newFakeCurationRepo() *fakeCurationRepo {
	return &fakeCurationRepo{
		nextID:   1,
		curation: make(map[string]*models.DailyCuration),
		metrics:  make(map[string]*models.DailyWeightMetric),
		curated:  make(map[curatedKey]*models.CuratedTask),
		byID:     make(map[int64]*models.CuratedTask),
	}
}

func dayKey(d time.Time) string { return d.Format("2006-01-02") }

func (r *fakeCurationRepo) StorePrompt(_ context.Context, p *models.CurationPrompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	r.prompts = append(r.prompts, *p)
	return nil
}

func (r *fakeCurationRepo) SavePass(_ context.Context, curations []*models.DailyCuration, metric *models.DailyWeightMetric, curated []*models.CuratedTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range curations {
		key := fmt.Sprintf("%d/%d/%s", c.UserID, c.ProjectID, dayKey(c.WorkDate))
		if prev, ok := r.curation[key]; ok {
			c.ID = prev.ID
		} else {
			c.ID = r.nextID
			r.nextID++
		}
		cp := *c
		r.curation[key] = &cp
	}
	if metric != nil {
		key := fmt.Sprintf("%d/%s", metric.UserID, dayKey(metric.MetricDate))
		if prev, ok := r.metrics[key]; ok {
			metric.ID = prev.ID
		} else {
			metric.ID = r.nextID
			r.nextID++
		}
		cp := *metric
		r.metrics[key] = &cp
	}
	for _, ct := range curated {
		key := curatedKey{ct.UserID, ct.Kind, ct.CuratableID, dayKey(ct.WorkDate)}
		if prev, ok := r.curated[key]; ok {
			ct.ID = prev.ID
			ct.MovedCount = prev.MovedCount // rank regeneration keeps the counter
		} else {
			ct.ID = r.nextID
			r.nextID++
		}
		cp := *ct
		r.curated[key] = &cp
		r.byID[cp.ID] = &cp
	}
	return nil
}

func (r *fakeCurationRepo) FindDailyCuration(_ context.Context, userID, projectID int64, workDate time.Time) (*models.DailyCuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.curation[fmt.Sprintf("%d/%d/%s", userID, projectID, dayKey(workDate))]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCurationRepo) FindWeightMetric(_ context.Context, userID int64, metricDate time.Time) (*models.DailyWeightMetric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[fmt.Sprintf("%d/%s", userID, dayKey(metricDate))]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *fakeCurationRepo) FindCuratedTask(_ context.Context, id int64) (*models.CuratedTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *ct
	return &cp, nil
}

func (r *fakeCurationRepo) ListCuratedTasks(_ context.Context, userID int64, workDate time.Time) ([]models.CuratedTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CuratedTask
	for _, ct := range r.curated {
		if ct.UserID == userID && dayKey(ct.WorkDate) == dayKey(workDate) {
			out = append(out, *ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentIndex < out[j].CurrentIndex })
	return out, nil
}

func (r *fakeCurationRepo) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.curated, curatedKey{ct.UserID, ct.Kind, ct.CuratableID, dayKey(ct.WorkDate)})
}

func (r *fakeCurationRepo) Rank(_ context.Context, id int64, newIndex int) (*models.CuratedTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	if ct.CurrentIndex != newIndex {
		ct.MovedCount++
	}
	ct.CurrentIndex = newIndex
	key := curatedKey{ct.UserID, ct.Kind, ct.CuratableID, dayKey(ct.WorkDate)}
	r.curated[key] = ct
	cp := *ct
	return &cp, nil
}

// helpers shared by the service tests

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func activeProject(id, ownerID int64, name string) models.Project {
	return models.Project{ID: id, OwnerID: ownerID, Name: name, Status: models.ProjectActive, Type: models.ProjectTypeStandard}
}

func eligibleUser(id int64) models.User {
	now := time.Now()
	return models.User{ID: id, Email: fmt.Sprintf("u%d@example.com", id), EmailVerifiedAt: &now, ApprovedAt: &now}
}
