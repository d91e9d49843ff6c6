// Package tasksource provides the task-service boundary: wire types for
// Dida365 projects and tasks and the sources that fetch them.
package tasksource

// TaskStatus is the completion state reported by the task service.
type TaskStatus int

const (
	StatusNotDone TaskStatus = 0
	StatusDone    TaskStatus = 2
)

// TaskPriority is the task service's sparse priority scale.
// Only 0, 1, 3 and 5 are produced by the service; 2 and 4 are unused.
type TaskPriority int

const (
	PriorityNone   TaskPriority = 0
	PriorityLow    TaskPriority = 1
	PriorityMedium TaskPriority = 3
	PriorityHigh   TaskPriority = 5
)

// InboxProjectID is the pseudo project ID the service uses for the inbox.
const InboxProjectID = "inbox"

// SourceType identifies which backend a source reads from.
type SourceType string

const (
	SourceTypeDida SourceType = "dida" // Dida365 / TickTick open API
	SourceTypeFile SourceType = "file" // Local YAML/JSON snapshot
)

// Task is a raw task record as returned by the task service.
type Task struct {
	ID        string       `json:"id" yaml:"id"`
	ProjectID string       `json:"projectId" yaml:"projectId"`
	Title     string       `json:"title" yaml:"title"`
	Content   string       `json:"content,omitempty" yaml:"content,omitempty"`
	Status    TaskStatus   `json:"status" yaml:"status"`
	Priority  TaskPriority `json:"priority" yaml:"priority"`
	DueDate   string       `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`     // ISO-8601, may be empty
	StartDate string       `json:"startDate,omitempty" yaml:"startDate,omitempty"` // ISO-8601, may be empty
	TimeZone  string       `json:"timeZone,omitempty" yaml:"timeZone,omitempty"`
	IsAllDay  bool         `json:"isAllDay,omitempty" yaml:"isAllDay,omitempty"`
}

// Project is a task list in the task service.
type Project struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Closed bool   `json:"closed,omitempty" yaml:"closed,omitempty"`
	Kind   string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// ProjectData is the payload of GET /project/{id}/data.
type ProjectData struct {
	Project Project `json:"project"`
	Tasks   []Task  `json:"tasks"`
}

// SourceInfo provides metadata about a task source.
type SourceInfo struct {
	Type        SourceType `json:"type"`
	Name        string     `json:"name"`        // Display name
	Description string     `json:"description"` // What this source provides
}
