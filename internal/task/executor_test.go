package task

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cortex-ide/core/internal/diagnostics"
	"github.com/cortex-ide/core/internal/events"
	"github.com/cortex-ide/core/internal/vars"
)

func TestRunForegroundSucceeds(t *testing.T) {
	store := diagnostics.NewStore(nil)
	bus := events.NewBus(32)
	ex := NewExecutor(store, bus, nil, "/bin/sh")

	tk := Task{Label: "echo", Kind: KindShell, Command: "echo", Args: []string{"hello"}}
	_, result, err := ex.Run(context.Background(), tk, vars.Context{WorkspaceFolder: "/tmp"}, MatcherSet{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.ExitCode != 0 {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestRunForegroundNonZeroExit(t *testing.T) {
	store := diagnostics.NewStore(nil)
	bus := events.NewBus(32)
	ex := NewExecutor(store, bus, nil, "/bin/sh")

	tk := Task{Label: "fail", Kind: KindShell, Command: "exit", Args: []string{"3"}}
	_, result, err := ex.Run(context.Background(), tk, vars.Context{WorkspaceFolder: "/tmp"}, MatcherSet{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || result.ExitCode != 3 {
		t.Fatalf("expected exit code 3 failure, got %+v", result)
	}
}

func TestRunEmitsTaskStatusEvents(t *testing.T) {
	store := diagnostics.NewStore(nil)
	bus := events.NewBus(32)
	ch, cancel := bus.Subscribe("task:status")
	defer cancel()
	ex := NewExecutor(store, bus, nil, "/bin/sh")

	tk := Task{Label: "echo", Kind: KindShell, Command: "echo", Args: []string{"hi"}}
	ex.Run(context.Background(), tk, vars.Context{WorkspaceFolder: "/tmp"}, MatcherSet{})

	started := false
	completed := false
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			payload := ev.Payload.(map[string]any)
			switch payload["status"] {
			case StatusStarted:
				started = true
			case StatusCompleted:
				completed = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for task status events")
		}
	}
	if !started || !completed {
		t.Fatalf("expected started and completed events, got started=%v completed=%v", started, completed)
	}
}

func TestRunWithMatcherPushesDiagnostic(t *testing.T) {
	store := diagnostics.NewStore(nil)
	bus := events.NewBus(32)
	ex := NewExecutor(store, bus, nil, "/bin/sh")
	matchers := NewMatcherSet([]string{"gcc"})

	tk := Task{Label: "build", Kind: KindShell, Command: "echo", Args: []string{"main.c:10:3: error: 'foo' undeclared"}}
	_, _, err := ex.Run(context.Background(), tk, vars.Context{WorkspaceFolder: "/tmp"}, matchers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 diagnostic pushed from task output, got %d", len(all))
	}
	if all[0].URI != "main.c" {
		t.Fatalf("unexpected diagnostic: %+v", all[0])
	}
}

// TestRunMatchesStdoutAndStderrConcurrentlyWithoutSharedState exercises
// the rustc two-line rolling context (Engine's one piece of mutable
// per-line state) on stdout and stderr at once. Before each stream got
// its own Engine, both pump goroutines mutated the same Engine's
// pending-context field concurrently; run under -race this caught it
// directly, and even without -race a shared, clobbered context would
// make one stream's location line pair with the other stream's pending
// message, corrupting the diagnostics below.
func TestRunMatchesStdoutAndStderrConcurrentlyWithoutSharedState(t *testing.T) {
	store := diagnostics.NewStore(nil)
	bus := events.NewBus(32)
	ex := NewExecutor(store, bus, nil, "/bin/sh")
	matchers := NewMatcherSet(nil) // empty pattern list; rustc context rule is structural

	// Each push keys on (task_id, uri), replacing rather than accumulating,
	// so every iteration uses a distinct file name to keep all 20 rows
	// rather than only the last one per stream.
	script := `for i in $(seq 1 20); do
  echo "error: mismatched types"
  echo "  --> out$i.rs:1:1"
done
for i in $(seq 1 20); do
  echo "error: borrow of moved value" 1>&2
  echo "  --> err$i.rs:2:2" 1>&2
done`
	tk := Task{Label: "rustc", Kind: KindProcess, Command: "/bin/sh", Args: []string{"-c", script}}
	_, result, err := ex.Run(context.Background(), tk, vars.Context{WorkspaceFolder: "/tmp"}, matchers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	all := store.GetAll()
	var outCount, errCount int
	for _, d := range all {
		switch {
		case strings.HasPrefix(d.URI, "out") && strings.HasSuffix(d.URI, ".rs"):
			if d.Message != "mismatched types" {
				t.Fatalf("stdout diagnostic corrupted by cross-stream context: %+v", d)
			}
			outCount++
		case strings.HasPrefix(d.URI, "err") && strings.HasSuffix(d.URI, ".rs"):
			if d.Message != "borrow of moved value" {
				t.Fatalf("stderr diagnostic corrupted by cross-stream context: %+v", d)
			}
			errCount++
		default:
			t.Fatalf("unexpected diagnostic URI: %+v", d)
		}
	}
	if outCount != 20 || errCount != 20 {
		t.Fatalf("expected 20 diagnostics per stream, got out=%d err=%d", outCount, errCount)
	}
}

func TestRunBackgroundReturnsImmediately(t *testing.T) {
	store := diagnostics.NewStore(nil)
	bus := events.NewBus(32)
	ex := NewExecutor(store, bus, nil, "/bin/sh")

	tk := Task{Label: "sleepy", Kind: KindShell, Command: "sleep", Args: []string{"0.2"}, IsBackground: true}
	taskID, result, err := ex.Run(context.Background(), tk, vars.Context{WorkspaceFolder: "/tmp"}, MatcherSet{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != (Result{}) {
		t.Fatalf("expected zero-value result for background task, got %+v", result)
	}
	if taskID == "" {
		t.Fatal("expected a task id")
	}
}

func TestCancelUnknownTaskReturnsNotFound(t *testing.T) {
	ex := NewExecutor(nil, nil, nil, "/bin/sh")
	err := ex.Cancel("nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown task id")
	}
}

func TestQuoteIfNeededQuotesWhitespace(t *testing.T) {
	if got := quoteIfNeeded("hello world"); got != `"hello world"` {
		t.Fatalf("unexpected: %q", got)
	}
	if got := quoteIfNeeded("plain"); got != "plain" {
		t.Fatalf("unexpected: %q", got)
	}
}
