package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	coreerrors "github.com/cortex-ide/core/internal/errors"
	"github.com/cortex-ide/core/internal/pathpolicy"
	"github.com/cortex-ide/core/internal/task"
)

// TaskFileSource is the production internal/task.TaskSource: it loads a
// tasks.json document (an array of task.Task records, §3 "Task") once
// and serves lookups from the parsed map.
type TaskFileSource struct {
	tasks map[string]task.Task
}

// LoadTaskSource reads and parses path (Path Policy checked). A .yaml or
// .yml extension is parsed as YAML; everything else as JSON.
func LoadTaskSource(policy *pathpolicy.Policy, path string) (*TaskFileSource, error) {
	canon, err := policy.ValidateForRead(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(canon)
	if err != nil {
		return nil, coreerrors.IOError(err, "failed to read task configuration at %q", path)
	}
	var tasks []task.Task
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &tasks); err != nil {
			return nil, coreerrors.InvalidInput("malformed task configuration at %q: %v", path, err)
		}
	default:
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, coreerrors.InvalidInput("malformed task configuration at %q: %v", path, err)
		}
	}
	byLabel := make(map[string]task.Task, len(tasks))
	for _, t := range tasks {
		byLabel[t.Label] = t
	}
	return &TaskFileSource{tasks: byLabel}, nil
}

// Task implements task.TaskSource.
func (s *TaskFileSource) Task(label string) (task.Task, error) {
	t, ok := s.tasks[label]
	if !ok {
		return task.Task{}, coreerrors.NotFound("task %q not found in task configuration", label)
	}
	return t, nil
}

// AllLabels implements task.TaskSource.
func (s *TaskFileSource) AllLabels() []string {
	labels := make([]string, 0, len(s.tasks))
	for l := range s.tasks {
		labels = append(labels, l)
	}
	return labels
}
