// internal/models/project.go
package models

import "time"

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

type ProjectType string

const (
	ProjectTypeStandard  ProjectType = "standard"
	ProjectTypeIterative ProjectType = "iterative"
)

// Project is read-only here: ownership and visibility are decided by the
// identity collaborator, this system only consumes them.
type Project struct {
	ID                   int64         `json:"id"`
	OwnerID              int64         `json:"owner_id"`
	Name                 string        `json:"name"`
	Status               ProjectStatus `json:"status"`
	Type                 ProjectType   `json:"type"`
	AutoCreateIterations bool          `json:"auto_create_iterations"`
	CreatedAt            time.Time     `json:"created_at"`
}

// NeedsIterationCheck reports whether the daily run should dispatch an
// iteration-lifecycle check for this project.
func (p *Project) NeedsIterationCheck() bool {
	return p.Type == ProjectTypeIterative && p.AutoCreateIterations && p.Status == ProjectActive
}
