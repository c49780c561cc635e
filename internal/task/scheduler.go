package task

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cortex-ide/core/internal/depgraph"
	coreerrors "github.com/cortex-ide/core/internal/errors"
	"github.com/cortex-ide/core/internal/vars"
)

// TaskSource loads the task configuration document a label resolves
// against. internal/workspace provides the production implementation;
// tests supply a map-backed stub.
type TaskSource interface {
	Task(label string) (Task, error)
	AllLabels() []string
}

// Scheduler coordinates multi-task runs: resolving a task's full
// dependency chain, running dependencies sequentially or in parallel
// per their DependsOrder, then running the root through the Executor
// under the root's own IsBackground setting.
type Scheduler struct {
	source   TaskSource
	executor *Executor

	mu     sync.Mutex
	byTask map[string]string // task_id -> label, for Cancel bookkeeping
}

// NewScheduler wires a Scheduler to its task source and executor.
func NewScheduler(source TaskSource, executor *Executor) *Scheduler {
	return &Scheduler{source: source, executor: executor, byTask: make(map[string]string)}
}

// Run resolves taskLabel's dependency chain, runs its dependencies
// (respecting each task's own DependsOrder), then runs the root task
// and returns its task_id. A foreground root (IsBackground false) has
// already exited when Run returns; only a background root is still
// running.
func (s *Scheduler) Run(ctx context.Context, taskLabel string, substCtx vars.Context, matcherNames []string) (string, error) {
	root, err := s.source.Task(taskLabel)
	if err != nil {
		return "", err
	}

	dependsOn := make(map[string][]string)
	if err := s.collectDependsOn(taskLabel, dependsOn, make(map[string]bool)); err != nil {
		return "", err
	}
	if _, err := depgraph.TransitiveDependencies(taskLabel, dependsOn); err != nil {
		return "", err
	}

	if err := s.runDependencies(ctx, root, substCtx, matcherNames); err != nil {
		return "", err
	}

	matchers := NewMatcherSet(matcherNames)
	taskID, _, err := s.executor.Run(ctx, root, substCtx, matchers)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.byTask[taskID] = taskLabel
	s.mu.Unlock()
	return taskID, nil
}

func (s *Scheduler) collectDependsOn(label string, out map[string][]string, visiting map[string]bool) error {
	if _, ok := out[label]; ok {
		return nil
	}
	if visiting[label] {
		return coreerrors.CircularDependency("cycle detected at task %q", label)
	}
	visiting[label] = true
	t, err := s.source.Task(label)
	if err != nil {
		return err
	}
	out[label] = t.DependsOn
	for _, dep := range t.DependsOn {
		if err := s.collectDependsOn(dep, out, visiting); err != nil {
			return err
		}
	}
	visiting[label] = false
	return nil
}

// runDependencies runs root's direct dependencies (recursively honoring
// their own dependencies), sequentially or in parallel per
// root.DependsOrder. Any dependency failure aborts the whole chain.
func (s *Scheduler) runDependencies(ctx context.Context, root Task, substCtx vars.Context, matcherNames []string) error {
	if len(root.DependsOn) == 0 {
		return nil
	}
	if root.DependsOrder == DependsParallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, label := range root.DependsOn {
			label := label
			g.Go(func() error { return s.runToCompletion(gctx, label, substCtx, matcherNames) })
		}
		if err := g.Wait(); err != nil {
			return coreerrors.Conflict("dependency %q failed: %v", "parallel group", err)
		}
		return nil
	}
	for _, label := range root.DependsOn {
		if err := s.runToCompletion(ctx, label, substCtx, matcherNames); err != nil {
			return coreerrors.Conflict("dependency %q failed: %v", label, err)
		}
	}
	return nil
}

// runToCompletion runs label (and its own dependencies, recursively)
// to completion, foreground-style, regardless of the task's own
// IsBackground setting — a dependency must finish before its dependent
// starts.
func (s *Scheduler) runToCompletion(ctx context.Context, label string, substCtx vars.Context, matcherNames []string) error {
	t, err := s.source.Task(label)
	if err != nil {
		return err
	}
	if err := s.runDependencies(ctx, t, substCtx, matcherNames); err != nil {
		return err
	}
	matchers := NewMatcherSet(matcherNames)
	foreground := t
	foreground.IsBackground = false
	_, result, err := s.executor.Run(ctx, foreground, substCtx, matchers)
	if err != nil {
		return err
	}
	if !result.Success {
		return coreerrors.Conflict("task %q exited with code %d", label, result.ExitCode)
	}
	return nil
}

// Cancel aborts the running instance identified by taskID. Cancellation
// does not cascade to the task's dependencies (which, by the time the
// root is running, have already completed).
func (s *Scheduler) Cancel(taskID string) error {
	return s.executor.Cancel(taskID)
}
