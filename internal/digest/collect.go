package digest

import (
	"context"

	"github.com/Jayphen/dida-digest/internal/logging"
	"github.com/Jayphen/dida-digest/internal/tasksource"
)

// CollectStats summarizes what Collect fetched and what it had to skip.
type CollectStats struct {
	Projects       int  // projects listed
	FailedProjects int  // project fetches that errored
	ListFailed     bool // the project listing itself errored
	InboxFailed    bool
	InboxTasks     int
	Tasks          int // tasks returned, after de-duplication
	DuplicateTasks int
}

// Collect gathers every task from src into one ordered list: projects in
// listing order, closed ones included, then the inbox. Fetch failures are logged and skipped so a
// partial result is still usable. Tasks already seen under another project
// are dropped, keeping the first occurrence.
func Collect(ctx context.Context, src tasksource.TaskSource, log *logging.Logger) ([]EnrichedTask, CollectStats) {
	if log == nil {
		log = logging.Get()
	}

	var (
		stats CollectStats
		all   []EnrichedTask
		seen  = make(map[string]struct{})
	)

	add := func(tasks []tasksource.Task, projectName string) {
		for _, task := range tasks {
			if task.ID != "" {
				if _, dup := seen[task.ID]; dup {
					stats.DuplicateTasks++
					continue
				}
				seen[task.ID] = struct{}{}
			}
			all = append(all, Enrich(task, projectName))
		}
	}

	projects, err := src.ListProjects(ctx)
	if err != nil {
		stats.ListFailed = true
		log.WithError(err).Warn("could not list projects, continuing with inbox only")
	}
	stats.Projects = len(projects)

	for _, project := range projects {
		if ctx.Err() != nil {
			break
		}
		plog := log.WithProject(project.ID, project.Name)

		tasks, err := src.ProjectTasks(ctx, project.ID)
		if err != nil {
			stats.FailedProjects++
			plog.WithError(err).Warn("failed to fetch project tasks, skipping")
			continue
		}
		plog.Debugf("fetched %d tasks", len(tasks))
		add(tasks, project.Name)
	}

	inbox, err := src.InboxTasks(ctx)
	if err != nil {
		stats.InboxFailed = true
		log.WithError(err).Warn("failed to fetch inbox tasks")
	} else {
		stats.InboxTasks = len(inbox)
		log.Debugf("fetched %d inbox tasks", len(inbox))
		add(inbox, InboxLabel)
	}

	stats.Tasks = len(all)
	return all, stats
}
