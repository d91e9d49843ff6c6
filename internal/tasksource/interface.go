package tasksource

import "context"

// TaskSource is the interface that all task sources must implement.
// The digest pipeline only reads: it lists projects, then fetches each
// project's tasks and finally the inbox.
type TaskSource interface {
	// Info returns metadata about this task source.
	Info() SourceInfo

	// ListProjects returns every project visible to the credential.
	ListProjects(ctx context.Context) ([]Project, error)

	// ProjectTasks returns the undone tasks of one project.
	ProjectTasks(ctx context.Context, projectID string) ([]Task, error)

	// InboxTasks returns the undone tasks of the inbox.
	InboxTasks(ctx context.Context) ([]Task, error)

	// Close cleans up any resources held by this source.
	Close() error
}
