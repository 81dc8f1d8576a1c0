// internal/ai/adapter.go
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"curator/internal/models"
)

// ErrUnavailable signals that the adapter is unconfigured or the provider
// failed. Callers must degrade to the heuristic fallback, never surface it.
var ErrUnavailable = errors.New("ai adapter unavailable")

// CurationResult is the strict shape of a curation response. It is
// validated at the adapter boundary so nothing downstream deals with
// missing keys.
type CurationResult struct {
	Suggestions []models.Suggestion `json:"suggestions"`
	Summary     string              `json:"summary"`
	Problems    []string            `json:"problems,omitempty"`
	FocusAreas  []string            `json:"focus_areas,omitempty"`
}

// SubtaskDraft is one generated subtask before acceptance validation.
type SubtaskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StoryPoints *int   `json:"story_points,omitempty"`
}

// BreakdownResult is the strict shape of a breakdown response.
type BreakdownResult struct {
	Subtasks    []SubtaskDraft `json:"subtasks"`
	Notes       string         `json:"notes,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Problems    []string       `json:"problems,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

// Adapter is the single abstract AI capability: generate structured output
// from a prompt, or fail. The only component allowed to block on external
// I/O; every call site carries a fallback path.
type Adapter interface {
	GenerateCuration(ctx context.Context, prompt string) (*CurationResult, error)
	GenerateBreakdown(ctx context.Context, prompt string) (*BreakdownResult, error)
	ClassifySize(ctx context.Context, title, description string) (models.TaskSize, error)
}

// ParseCurationResult validates raw provider JSON into a CurationResult.
// A missing or empty suggestions array is a hard error: the fallback
// produces better output than an empty AI response.
func ParseCurationResult(raw []byte) (*CurationResult, error) {
	var res CurationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("curation response: %w", err)
	}
	if len(res.Suggestions) == 0 {
		return nil, fmt.Errorf("curation response: no suggestions")
	}
	for i, s := range res.Suggestions {
		if s.Type == "" {
			return nil, fmt.Errorf("curation response: suggestion %d missing type", i)
		}
		if s.Message == "" {
			return nil, fmt.Errorf("curation response: suggestion %d missing message", i)
		}
	}
	return &res, nil
}

// ParseBreakdownResult validates raw provider JSON into a BreakdownResult.
func ParseBreakdownResult(raw []byte) (*BreakdownResult, error) {
	var res BreakdownResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("breakdown response: %w", err)
	}
	if len(res.Subtasks) == 0 {
		return nil, fmt.Errorf("breakdown response: no subtasks")
	}
	for i, st := range res.Subtasks {
		if st.Title == "" {
			return nil, fmt.Errorf("breakdown response: subtask %d missing title", i)
		}
		if st.StoryPoints != nil && *st.StoryPoints < 0 {
			return nil, fmt.Errorf("breakdown response: subtask %d negative story points", i)
		}
	}
	return &res, nil
}
