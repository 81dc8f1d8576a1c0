// internal/ai/fallback.go
package ai

import (
	"fmt"
	"strings"
	"time"

	"curator/internal/models"
)

// FallbackMarker is appended to summaries produced without the AI provider,
// so degradation shows up in content rather than in an error channel.
const FallbackMarker = "(generated by fallback)"

// FallbackCuration builds deterministic suggestions when the AI capability
// is unconfigured or failing: overdue incomplete tasks become risks,
// unestimated leaves become optimization hints. An eligible task set never
// yields zero suggestions.
func FallbackCuration(tasks []models.Task, now time.Time) *CurationResult {
	res := &CurationResult{}

	overdue := 0
	unsized := 0
	for i := range tasks {
		t := &tasks[i]
		if t.IsOverdue(now) {
			overdue++
			id := t.ID
			res.Suggestions = append(res.Suggestions, models.Suggestion{
				Type:    models.SuggestionRisk,
				TaskID:  &id,
				Message: fmt.Sprintf("%q is past its due date", t.Title),
			})
		}
		if t.CurrentStoryPoints == nil || *t.CurrentStoryPoints == 0 {
			unsized++
			id := t.ID
			res.Suggestions = append(res.Suggestions, models.Suggestion{
				Type:    models.SuggestionOptimization,
				TaskID:  &id,
				Message: fmt.Sprintf("%q has no story point estimate", t.Title),
			})
		}
	}

	if len(res.Suggestions) == 0 && len(tasks) > 0 {
		// nothing overdue and everything estimated: point at the front of the queue
		id := tasks[0].ID
		res.Suggestions = append(res.Suggestions, models.Suggestion{
			Type:    models.SuggestionPriority,
			TaskID:  &id,
			Message: fmt.Sprintf("%q is first in line; start here", tasks[0].Title),
		})
	}

	res.Summary = fmt.Sprintf("%d open tasks, %d overdue, %d without estimates %s",
		len(tasks), overdue, unsized, FallbackMarker)
	if overdue > 0 {
		res.Problems = append(res.Problems, fmt.Sprintf("%d overdue tasks", overdue))
	}
	if unsized > 0 {
		res.FocusAreas = append(res.FocusAreas, "estimation")
	}
	return res
}

// FallbackBreakdown produces a conservative three-step decomposition.
func FallbackBreakdown(title string) *BreakdownResult {
	one, two := 1, 2
	return &BreakdownResult{
		Subtasks: []SubtaskDraft{
			{Title: "Plan: " + title, StoryPoints: &one},
			{Title: "Implement: " + title, StoryPoints: &two},
			{Title: "Verify: " + title, StoryPoints: &one},
		},
		Notes:   "Generic decomposition " + FallbackMarker,
		Summary: "Plan, implement, verify " + FallbackMarker,
	}
}

var (
	xsCues = []string{"typo", "rename", "tweak", "bump", "fix typo", "copy change"}
	xlCues = []string{"rewrite", "migrate", "migration", "overhaul", "redesign", "platform", "from scratch", "rearchitect"}
	lCues  = []string{"integrate", "integration", "refactor", "new service", "pipeline"}
	sCues  = []string{"fix", "bug", "update", "adjust", "small"}
)

// HeuristicSize maps keyword cues in a title to a T-shirt size. Used at
// creation time and whenever the AI classifier is unavailable.
func HeuristicSize(title string) models.TaskSize {
	t := strings.ToLower(title)
	for _, cue := range xlCues {
		if strings.Contains(t, cue) {
			return models.SizeXL
		}
	}
	for _, cue := range xsCues {
		if strings.Contains(t, cue) {
			return models.SizeXS
		}
	}
	for _, cue := range lCues {
		if strings.Contains(t, cue) {
			return models.SizeL
		}
	}
	for _, cue := range sCues {
		if strings.Contains(t, cue) {
			return models.SizeS
		}
	}
	return models.SizeM
}
