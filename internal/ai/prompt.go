// internal/ai/prompt.go
package ai

import (
	"strconv"
	"strings"

	"curator/internal/models"
)

// BuildCurationPrompt assembles the per-project prompt from leaf tasks.
// The exact text is persisted as a CurationPrompt for audit.
func BuildCurationPrompt(project *models.Project, tasks []models.Task) string {
	var b strings.Builder

	b.WriteString("You are a project curation assistant. Review the open leaf tasks of the project\n")
	b.WriteString("and return ONLY a JSON object of the form:\n")
	b.WriteString(`{"suggestions":[{"type":"priority|risk|optimization","task_id":123,"message":"..."}],"summary":"...","problems":["..."],"focus_areas":["..."]}`)
	b.WriteString("\n\n")

	b.WriteString("project: ")
	b.WriteString(project.Name)
	b.WriteString("\n")
	b.WriteString("tasks:\n")

	for _, t := range tasks {
		b.WriteString("- id=")
		b.WriteString(strconv.FormatInt(t.ID, 10))
		b.WriteString(" title=")
		b.WriteString(strconv.Quote(t.Title))
		b.WriteString(" priority=")
		b.WriteString(string(t.Priority))
		if t.DueDate != nil {
			b.WriteString(" due=")
			b.WriteString(t.DueDate.Format("2006-01-02"))
		}
		if t.CurrentStoryPoints != nil {
			b.WriteString(" story_points=")
			b.WriteString(strconv.Itoa(*t.CurrentStoryPoints))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// BuildBreakdownPrompt assembles the decomposition prompt, including parent
// context and prior user feedback when present.
func BuildBreakdownPrompt(title, description string, parent *models.Task, feedback string) string {
	var b strings.Builder

	b.WriteString("Break the following task into concrete subtasks. Return ONLY a JSON object of the form:\n")
	b.WriteString(`{"subtasks":[{"title":"...","description":"...","story_points":3}],"notes":"...","summary":"...","problems":["..."],"suggestions":["..."]}`)
	b.WriteString("\nStory points must be non-negative integers.\n\n")

	b.WriteString("title: ")
	b.WriteString(title)
	b.WriteString("\n")
	if description != "" {
		b.WriteString("description: ")
		b.WriteString(description)
		b.WriteString("\n")
	}
	if parent != nil {
		b.WriteString("parent_task: ")
		b.WriteString(strconv.Quote(parent.Title))
		if parent.CurrentStoryPoints != nil {
			b.WriteString(" (current_story_points=")
			b.WriteString(strconv.Itoa(*parent.CurrentStoryPoints))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	if feedback != "" {
		b.WriteString("user_feedback: ")
		b.WriteString(feedback)
		b.WriteString("\n")
	}

	return b.String()
}
