package main

import (
	"context"
	"encoding/json"

	taskhistory "github.com/cortex-ide/core/internal/domain/task"
	"github.com/cortex-ide/core/internal/collab/session"
	"github.com/cortex-ide/core/internal/command"
	"github.com/cortex-ide/core/internal/diagnostics"
	"github.com/cortex-ide/core/internal/extension/runtime"
	"github.com/cortex-ide/core/internal/metrics"
	"github.com/cortex-ide/core/internal/task"
	"github.com/cortex-ide/core/internal/vars"
)

// buildDispatcher registers every operation the UI can issue through
// the command dispatcher's batched request/response protocol.
func buildDispatcher(scheduler *task.Scheduler, extRuntime *runtime.Runtime, diagStore *diagnostics.Store, taskHist taskhistory.Store, sessions *session.Manager, collector *metrics.Collector) *command.Dispatcher {
	d := command.New(8)

	d.Register("task.run", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			Label           string   `json:"label"`
			WorkspaceFolder string   `json:"workspace_folder"`
			File            string   `json:"file"`
			Matchers        []string `json:"matchers"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		substCtx := vars.Context{WorkspaceFolder: req.WorkspaceFolder, File: req.File}
		taskID, err := scheduler.Run(ctx, req.Label, substCtx, req.Matchers)
		if err != nil {
			return nil, err
		}
		_ = taskHist.Create(ctx, taskID, req.Label)
		return map[string]string{"task_id": taskID}, nil
	})

	d.Register("task.cancel", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			TaskID string `json:"task_id"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return nil, scheduler.Cancel(req.TaskID)
	})

	d.Register("task.history", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		if req.Limit <= 0 {
			req.Limit = 50
		}
		return taskHist.List(ctx, req.Limit, req.Offset)
	})

	d.Register("diagnostics.list", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return diagStore.GetAll(), nil
	})

	d.Register("diagnostics.filter", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			Severity diagnostics.Severity `json:"severity"`
			Source   diagnostics.Source   `json:"source"`
			URI      string               `json:"uri_substring"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return diagStore.Filter(req.Severity, req.Source, req.URI), nil
	})

	d.Register("diagnostics.summary", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return diagStore.Summary(), nil
	})

	d.Register("extension.load", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			ID            string           `json:"id"`
			Manifest      runtime.Manifest `json:"manifest"`
			WorkspaceRoot string           `json:"workspace_root"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return nil, extRuntime.Load(req.ID, req.Manifest, req.WorkspaceRoot)
	})

	d.Register("extension.activate", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		err := extRuntime.Activate(req.ID)
		outcome := "activated"
		if err != nil {
			outcome = "error"
		}
		collector.RecordExtensionActivation(req.ID, outcome)
		return nil, err
	})

	d.Register("extension.dispatch", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			ID   string               `json:"id"`
			Kind runtime.DispatchKind `json:"kind"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return nil, extRuntime.Dispatch(ctx, req.ID, req.Kind, "")
	})

	d.Register("extension.unload", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return nil, extRuntime.Unload(req.ID)
	})

	d.Register("extension.list", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return extRuntime.List(), nil
	})

	d.Register("collab.create", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"session_id"`
			Name      string `json:"name"`
			HostID    string `json:"host_id"`
			HostName  string `json:"host_name"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return sessions.Create(req.SessionID, req.Name, req.HostID, req.HostName), nil
	})

	return d
}
