package task

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel/trace"

	"github.com/cortex-ide/core/internal/diagnostics"
	coreerrors "github.com/cortex-ide/core/internal/errors"
	"github.com/cortex-ide/core/internal/events"
	"github.com/cortex-ide/core/internal/logging"
	"github.com/cortex-ide/core/internal/tracing"
	"github.com/cortex-ide/core/internal/vars"
)

// Instance is a running (or just-finished) task, tracked in the
// process-wide running-tasks map for the duration of its life.
type Instance struct {
	TaskID string
	Label  string

	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// Executor runs a single task's command to completion (or background),
// streaming stdout/stderr through the configured problem matchers into
// the Diagnostic Store and emitting task:* events as it goes.
type Executor struct {
	diagStore *diagnostics.Store
	bus       *events.Bus
	log       logging.Logger
	shell     string

	mu       sync.Mutex
	running  map[string]*Instance
}

// NewExecutor wires an Executor to its collaborators. shell overrides
// the default "sh -c" invocation used for kind=shell tasks.
func NewExecutor(diagStore *diagnostics.Store, bus *events.Bus, log logging.Logger, shell string) *Executor {
	if log == nil {
		log = logging.Nop()
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Executor{
		diagStore: diagStore,
		bus:       bus,
		log:       log,
		shell:     shell,
		running:   make(map[string]*Instance),
	}
}

// MatcherSet names which built-in matchers a task run should apply, by
// Pattern.Name (e.g. "tsc", "gcc", "eslint-stylish"). It holds only the pattern
// list, not an Engine: stdout and stderr are pumped by two concurrently
// running goroutines, and Engine carries mutable per-line state (the
// pending rustc context), so each stream needs its own Engine built
// from this shared, read-only pattern list.
type MatcherSet struct {
	patterns []diagnostics.Pattern
	set      bool
}

// NewMatcherSet builds a matcher set from the requested built-in
// matcher names, in the order given. Unrecognized names are ignored.
func NewMatcherSet(names []string) MatcherSet {
	all := map[string]diagnostics.Pattern{}
	for _, p := range diagnostics.BuiltinMatchers() {
		all[p.Name] = p
	}
	var patterns []diagnostics.Pattern
	for _, n := range names {
		if p, ok := all[n]; ok {
			patterns = append(patterns, p)
		}
	}
	return MatcherSet{patterns: patterns, set: true}
}

// newEngine builds a fresh Engine over this set's patterns, for the
// exclusive use of one output stream.
func (m MatcherSet) newEngine() *diagnostics.Engine {
	if !m.set {
		return nil
	}
	return diagnostics.NewEngine(m.patterns...)
}

// Run substitutes variables, spawns the task's command, and streams
// its output. Foreground tasks block until exit and return their
// Result; background tasks return immediately with a zero Result once
// the process has started, and a detached goroutine finishes the
// lifecycle.
func (e *Executor) Run(ctx context.Context, t Task, substCtx vars.Context, matchers MatcherSet) (string, Result, error) {
	taskID := uuid.NewString()
	ctx, span := tracing.StartTaskSpan(ctx, taskID, t.Label)

	command := vars.Substitute(t.Command, substCtx)
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = vars.Substitute(a, substCtx)
	}
	cwd := vars.Substitute(t.Cwd, substCtx)
	if cwd == "" {
		cwd = substCtx.WorkspaceFolder
	} else if !filepath.IsAbs(cwd) {
		cwd = filepath.Join(substCtx.WorkspaceFolder, cwd)
	}
	env := make(map[string]string, len(t.Env))
	for k, v := range t.Env {
		env[k] = vars.Substitute(v, substCtx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := e.buildCommand(runCtx, t.Kind, command, args, cwd, env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		err = coreerrors.IOError(err, "failed to open stdout pipe for task %q", t.Label)
		tracing.End(span, err)
		return "", Result{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		err = coreerrors.IOError(err, "failed to open stderr pipe for task %q", t.Label)
		tracing.End(span, err)
		return "", Result{}, err
	}

	if err := cmd.Start(); err != nil {
		cancel()
		err = coreerrors.IOError(err, "failed to start task %q", t.Label)
		tracing.End(span, err)
		return "", Result{}, err
	}

	inst := &Instance{TaskID: taskID, Label: t.Label, cmd: cmd, cancel: cancel}
	e.mu.Lock()
	e.running[taskID] = inst
	e.mu.Unlock()

	e.publish("task:status", map[string]any{"task_id": taskID, "label": t.Label, "status": StatusStarted})

	var wg sync.WaitGroup
	wg.Add(2)
	go e.pumpOutput(taskID, stdout, false, matchers, &wg)
	go e.pumpOutput(taskID, stderr, true, matchers, &wg)

	if t.IsBackground {
		e.publish("task:status", map[string]any{"task_id": taskID, "label": t.Label, "status": StatusRunning})
		go func() {
			wg.Wait()
			e.finish(taskID, t.Label, cmd.Wait(), span)
		}()
		return taskID, Result{}, nil
	}

	wg.Wait()
	waitErr := cmd.Wait()
	result := e.finish(taskID, t.Label, waitErr, span)
	return taskID, result, nil
}

func (e *Executor) buildCommand(ctx context.Context, kind Kind, command string, args []string, cwd string, env map[string]string) *exec.Cmd {
	var cmd *exec.Cmd
	if kind == KindShell {
		line := joinShellArgs(append([]string{command}, args...))
		cmd = exec.CommandContext(ctx, e.shell, "-c", line)
	} else {
		cmd = exec.CommandContext(ctx, command, args...)
	}
	cmd.Dir = cwd
	if len(env) > 0 {
		cmd.Env = cmd.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}
	return cmd
}

// joinShellArgs joins a command and its arguments into a single shell
// line, quoting any token containing whitespace or quote characters.
func joinShellArgs(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = quoteIfNeeded(t)
	}
	return strings.Join(quoted, " ")
}

func quoteIfNeeded(token string) string {
	if token == "" {
		return `""`
	}
	if !strings.ContainsAny(token, " \t\"'") {
		return token
	}
	escaped := strings.ReplaceAll(token, `"`, `\"`)
	return `"` + escaped + `"`
}

func (e *Executor) pumpOutput(taskID string, r io.Reader, isStderr bool, matchers MatcherSet, wg *sync.WaitGroup) {
	defer wg.Done()
	// Each stream gets its own Engine: stdout and stderr are pumped by
	// two goroutines running concurrently, and the spec notes they are
	// "not interleaved in a guaranteed way", so a shared Engine's
	// pending rustc context would race between them.
	engine := matchers.newEngine()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		e.publish("task:output", map[string]any{"task_id": taskID, "line": line, "is_stderr": isStderr})

		if engine == nil {
			continue
		}
		d, ok := engine.MatchLine(line)
		if !ok {
			continue
		}
		if e.diagStore != nil {
			e.diagStore.AddTask(taskID, d.URI, []diagnostics.Diagnostic{d})
		}
		e.publish("task:diagnostic", map[string]any{"task_id": taskID, "diagnostic": d})
	}
	if err := scanner.Err(); err != nil {
		e.log.Warn("task %s output pump ended with error: %v", taskID, err)
	}
}

func (e *Executor) finish(taskID, label string, waitErr error, span trace.Span) Result {
	e.mu.Lock()
	delete(e.running, taskID)
	e.mu.Unlock()

	exitCode := 0
	success := waitErr == nil
	if !success {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	status := StatusCompleted
	if !success {
		status = StatusFailed
	}
	e.publish("task:status", map[string]any{"task_id": taskID, "label": label, "status": status, "exit_code": exitCode})
	tracing.End(span, waitErr)
	return Result{Success: success, ExitCode: exitCode}
}

func (e *Executor) publish(name string, payload any) {
	if e.bus != nil {
		e.bus.Publish(name, payload)
	}
}

// Cancel aborts the child process for taskID, if it is still running.
func (e *Executor) Cancel(taskID string) error {
	e.mu.Lock()
	inst, ok := e.running[taskID]
	e.mu.Unlock()
	if !ok {
		return coreerrors.NotFound("no running task with id %q", taskID)
	}
	inst.cancel()
	return nil
}

// IsRunning reports whether taskID is still tracked as running.
func (e *Executor) IsRunning(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.running[taskID]
	return ok
}
