package tasksource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk layout read by FileSource. JSON files work too,
// since the YAML decoder accepts JSON documents.
//
//	projects:
//	  - id: p1
//	    name: Work
//	    tasks:
//	      - id: t1
//	        title: Pay rent
//	        dueDate: "2024-05-01T09:00:00+08:00"
//	inbox:
//	  - id: t2
//	    title: Someday
//	    priority: 5
type Snapshot struct {
	Projects []SnapshotProject `yaml:"projects"`
	Inbox    []Task            `yaml:"inbox"`
}

// SnapshotProject is a project together with its tasks.
type SnapshotProject struct {
	Project `yaml:",inline"`
	Tasks   []Task `yaml:"tasks"`
}

// FileSource implements TaskSource over a local snapshot file.
// The file is re-read on every ListProjects so edits show up between runs.
type FileSource struct {
	filePath string
	mu       sync.RWMutex
	snap     *Snapshot
	info     SourceInfo
}

// NewFileSource creates a new snapshot source from a file.
func NewFileSource(filePath string) (*FileSource, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("snapshot file not found: %w", err)
	}

	return &FileSource{
		filePath: absPath,
		info: SourceInfo{
			Type:        SourceTypeFile,
			Name:        filepath.Base(absPath),
			Description: fmt.Sprintf("Task snapshot: %s", absPath),
		},
	}, nil
}

// Info returns metadata about this source.
func (f *FileSource) Info() SourceInfo {
	return f.info
}

// ListProjects loads the snapshot and returns its projects.
func (f *FileSource) ListProjects(ctx context.Context) ([]Project, error) {
	snap, err := f.load()
	if err != nil {
		return nil, err
	}

	projects := make([]Project, 0, len(snap.Projects))
	for _, p := range snap.Projects {
		projects = append(projects, p.Project)
	}
	return projects, nil
}

// ProjectTasks returns the tasks of one project in the snapshot.
func (f *FileSource) ProjectTasks(ctx context.Context, projectID string) ([]Task, error) {
	snap, err := f.cached()
	if err != nil {
		return nil, err
	}

	for _, p := range snap.Projects {
		if p.ID == projectID {
			return p.Tasks, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
}

// InboxTasks returns the inbox tasks in the snapshot.
func (f *FileSource) InboxTasks(ctx context.Context) ([]Task, error) {
	snap, err := f.cached()
	if err != nil {
		return nil, err
	}
	return snap.Inbox, nil
}

// Close cleans up resources.
func (f *FileSource) Close() error {
	return nil
}

func (f *FileSource) load() (*Snapshot, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", f.filePath, err)
	}

	f.mu.Lock()
	f.snap = &snap
	f.mu.Unlock()

	return &snap, nil
}

func (f *FileSource) cached() (*Snapshot, error) {
	f.mu.RLock()
	snap := f.snap
	f.mu.RUnlock()

	if snap != nil {
		return snap, nil
	}
	return f.load()
}
