package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	taskhistory "github.com/cortex-ide/core/internal/domain/task"
	"github.com/cortex-ide/core/internal/command"
	"github.com/cortex-ide/core/internal/config"
	"github.com/cortex-ide/core/internal/diagnostics"
	coreerrors "github.com/cortex-ide/core/internal/errors"
	"github.com/cortex-ide/core/internal/events"
	"github.com/cortex-ide/core/internal/extension/hostapi"
	"github.com/cortex-ide/core/internal/extension/runtime"
	"github.com/cortex-ide/core/internal/collab/broadcast"
	"github.com/cortex-ide/core/internal/collab/session"
	"github.com/cortex-ide/core/internal/logging"
	"github.com/cortex-ide/core/internal/metrics"
	"github.com/cortex-ide/core/internal/pathpolicy"
	"github.com/cortex-ide/core/internal/task"
	"github.com/cortex-ide/core/internal/vectorstore"
	"github.com/cortex-ide/core/internal/workspace"
)

// container holds every long-lived subsystem cortexd wires together.
// It exists so serve() has one place to build and one place to drain.
type container struct {
	cfg        config.Config
	log        logging.Logger
	bus        *events.Bus
	policy     *pathpolicy.Policy
	diagStore  *diagnostics.Store
	vecStore   *vectorstore.Store
	taskHist   taskhistory.Store
	executor   *task.Executor
	scheduler  *task.Scheduler
	extRuntime *runtime.Runtime
	sessions   *session.Manager
	collabSrv  *broadcast.Server
	dispatcher *command.Dispatcher
	httpSrv    *http.Server
	metrics    *metrics.Collector
}

func buildContainer(cfg config.Config) (*container, error) {
	log := logging.NewComponentLogger("cortexd")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w", cfg.DataDir, err)
	}

	bus := events.NewBus(256)
	policy := pathpolicy.New(cfg.ReadRoots, cfg.WriteRoots)

	metricsCollector, err := metrics.NewCollector(metrics.Config{Enabled: cfg.MetricsAddr != "", Addr: cfg.MetricsAddr})
	if err != nil {
		return nil, fmt.Errorf("start metrics collector: %w", err)
	}
	watchTaskMetrics(bus, metricsCollector)

	diagStore := diagnostics.NewStore(func(summary diagnostics.Summary) {
		bus.Publish("diagnostics:summary", summary)
	})

	vecStore, err := vectorstore.Open(filepath.Join(cfg.DataDir, "vectors.db"))
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	taskHist, err := taskhistory.Open(filepath.Join(cfg.DataDir, "task_history.db"))
	if err != nil {
		return nil, fmt.Errorf("open task history store: %w", err)
	}

	executor := task.NewExecutor(diagStore, bus, log.With("executor"), cfg.Shell)

	var taskSource task.TaskSource
	tasksPath := filepath.Join(cfg.DataDir, "tasks.json")
	if fileSource, err := workspace.LoadTaskSource(policy, tasksPath); err == nil {
		taskSource = fileSource
	} else {
		log.Warn("no task configuration at %q, task.run will reject every label: %v", tasksPath, err)
		taskSource = emptyTaskSource{}
	}
	scheduler := task.NewScheduler(taskSource, executor)

	hostAPI := hostapi.New(policy, nil, nil, bus, log.With("hostapi"))
	extRuntime := runtime.New(policy, hostAPI, cfg.ResourceLimits, log.With("extension"))

	sessions := session.NewManager(session.PermissionEditor)
	collabSrv := broadcast.NewServer(sessions, log.With("collab"))
	collabSrv.OnFanout(metricsCollector.RecordBroadcastMessage)

	dispatcher := buildDispatcher(scheduler, extRuntime, diagStore, taskHist, sessions, metricsCollector)

	mux := http.NewServeMux()
	mux.Handle("/collab", collabSrv)
	httpSrv := &http.Server{Addr: cfg.CollabListenAddr, Handler: mux}

	return &container{
		cfg:        cfg,
		log:        log,
		bus:        bus,
		policy:     policy,
		diagStore:  diagStore,
		vecStore:   vecStore,
		taskHist:   taskHist,
		executor:   executor,
		scheduler:  scheduler,
		extRuntime: extRuntime,
		sessions:   sessions,
		collabSrv:  collabSrv,
		dispatcher: dispatcher,
		httpSrv:    httpSrv,
		metrics:    metricsCollector,
	}, nil
}

// watchTaskMetrics subscribes to the task executor's own status and
// diagnostic events rather than threading a metrics dependency into
// internal/task, so the executor stays ignorant of how its events get
// consumed.
func watchTaskMetrics(bus *events.Bus, collector *metrics.Collector) {
	statusCh, _ := bus.Subscribe("task:status")
	go func() {
		for ev := range statusCh {
			payload, ok := ev.Payload.(map[string]any)
			if !ok {
				continue
			}
			status, _ := payload["status"].(task.Status)
			if status != task.StatusCompleted && status != task.StatusFailed {
				continue
			}
			label, _ := payload["label"].(string)
			collector.RecordTaskRun(label, string(status), 0)
		}
	}()

	diagCh, _ := bus.Subscribe("task:diagnostic")
	go func() {
		for ev := range diagCh {
			payload, ok := ev.Payload.(map[string]any)
			if !ok {
				continue
			}
			d, ok := payload["diagnostic"].(diagnostics.Diagnostic)
			if !ok {
				continue
			}
			collector.RecordDiagnosticsPush(string(d.Source))
		}
	}()
}

// emptyTaskSource is used when no tasks.json exists yet, so the Task
// Engine still comes up (dispatch on unknown labels returns NotFound
// rather than the whole process failing to start).
type emptyTaskSource struct{}

func (emptyTaskSource) Task(label string) (task.Task, error) {
	return task.Task{}, coreerrors.NotFound("no task configuration loaded, unknown label %q", label)
}
func (emptyTaskSource) AllLabels() []string { return nil }

func (c *container) drain(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(c.httpSrv.Shutdown(ctx))
	record(c.metrics.Shutdown(ctx))
	record(c.vecStore.Close())
	return firstErr
}

func runServe(configPath string) error {
	var opts []config.Option
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}
	cfg, meta, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	c, err := buildContainer(cfg)
	if err != nil {
		return err
	}
	c.log.Info("starting cortexd: data_dir=%s (%s), collab_listen_addr=%s (%s)",
		cfg.DataDir, meta.Source("data_dir"), cfg.CollabListenAddr, meta.Source("collab_listen_addr"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		if err := c.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-quit:
		c.log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("collaboration server exited: %w", err)
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.drain(drainCtx)
}
