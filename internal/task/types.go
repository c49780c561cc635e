// Package task implements the Task Executor (a single task's run to
// completion, streaming output through the Problem Matcher into the
// Diagnostic Store) and the Task Scheduler (DAG dependency resolution
// across tasks), per the task configuration document.
package task

// Kind distinguishes a raw process invocation from a shell command line.
type Kind string

const (
	KindShell   Kind = "shell"
	KindProcess Kind = "process"
)

// DependsOrder controls how a task's direct dependencies run.
type DependsOrder string

const (
	DependsSequential DependsOrder = "sequential"
	DependsParallel   DependsOrder = "parallel"
)

// Presentation controls how the UI surfaces a task's output; the core
// only threads this value through, it has no behavior here.
type Presentation struct {
	Reveal string `json:"reveal,omitempty"`
	Panel  string `json:"panel,omitempty"`
}

// Task is a named, loadable unit of work.
type Task struct {
	Label           string            `json:"label"`
	Kind            Kind              `json:"kind"`
	Command         string            `json:"command,omitempty"`
	Args            []string          `json:"args,omitempty"`
	Cwd             string            `json:"cwd,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
	Group           string            `json:"group,omitempty"`
	ProblemMatchers []string          `json:"problem_matchers,omitempty"`
	DependsOn       []string          `json:"depends_on,omitempty"`
	DependsOrder    DependsOrder      `json:"depends_order,omitempty"`
	IsBackground    bool              `json:"is_background,omitempty"`
	Presentation    Presentation      `json:"presentation,omitempty"`
}

// Status is a Task Instance's lifecycle state.
type Status string

const (
	StatusStarted   Status = "started"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result is the terminal outcome of a foreground task run.
type Result struct {
	Success  bool `json:"success"`
	ExitCode int  `json:"exit_code"`
}
