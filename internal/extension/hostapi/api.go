package hostapi

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cortex-ide/core/internal/events"
	coreerrors "github.com/cortex-ide/core/internal/errors"
	"github.com/cortex-ide/core/internal/logging"
	"github.com/cortex-ide/core/internal/pathpolicy"
)

// API is the concrete implementation of the capability-gated host
// surface (§4.8). One API instance is shared across every loaded
// extension; gating is done per call against the HostContext the
// runtime passes in, never against global state.
type API struct {
	policy    *pathpolicy.Policy
	editor    EditorModel
	workspace WorkspaceModel
	bus       *events.Bus
	log       logging.Logger
}

// New constructs an API. editor and workspace may be nil in contexts
// where only filesystem/host capabilities are exercised (e.g. tests);
// calls into a nil model return an Internal error rather than panic.
func New(policy *pathpolicy.Policy, editor EditorModel, workspace WorkspaceModel, bus *events.Bus, log logging.Logger) *API {
	return &API{policy: policy, editor: editor, workspace: workspace, bus: bus, log: log}
}

// --- host namespace ---

// Log appends a line to the host log tagged with the calling extension.
func (a *API) Log(hc *HostContext, level, msg string) error {
	if err := hc.requirePermission(PermHost); err != nil {
		return err
	}
	if a.log != nil {
		a.log.Info("[ext:%s] %s: %s", hc.ExtensionID, level, msg)
	}
	return nil
}

// ShowMessage emits a UI notification event.
func (a *API) ShowMessage(hc *HostContext, level, msg string) error {
	if err := hc.requirePermission(PermHost); err != nil {
		return err
	}
	a.publish("extension:message", map[string]string{"extension_id": hc.ExtensionID, "level": level, "message": msg})
	return nil
}

// RegisterCommand records id in the extension's registered command set.
func (a *API) RegisterCommand(hc *HostContext, id string) error {
	if err := hc.requirePermission(PermHost); err != nil {
		return err
	}
	hc.mu.Lock()
	hc.RegisteredCommands[id] = true
	hc.mu.Unlock()
	return nil
}

// EmitEvent appends to the extension's own event queue.
func (a *API) EmitEvent(hc *HostContext, name, data string) error {
	if err := hc.requirePermission(PermHost); err != nil {
		return err
	}
	hc.mu.Lock()
	hc.EventQueue = append(hc.EventQueue, HostEvent{Name: name, Data: data, Timestamp: time.Now()})
	hc.mu.Unlock()
	a.publish("extension:event", map[string]string{"extension_id": hc.ExtensionID, "name": name})
	return nil
}

func (a *API) publish(name string, payload any) {
	if a.bus != nil {
		a.bus.Publish(name, payload)
	}
}

// --- filesystem namespace ---

func (a *API) validateRead(hc *HostContext, path string) (string, error) {
	if a.policy == nil {
		return "", coreerrors.Internal(nil, "no path policy configured")
	}
	return a.policy.ValidateForExtensionRead(path)
}

func (a *API) validateWrite(hc *HostContext, path string) (string, error) {
	if a.policy == nil {
		return "", coreerrors.Internal(nil, "no path policy configured")
	}
	return a.policy.ValidateForExtensionWrite(path)
}

// ReadFile returns the file's contents, policy-checked.
func (a *API) ReadFile(hc *HostContext, path string) ([]byte, error) {
	if err := hc.requirePermission(PermFilesystem); err != nil {
		return nil, err
	}
	canon, err := a.validateRead(hc, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(canon)
	if err != nil {
		return nil, coreerrors.IOError(err, "read-file %q", path)
	}
	return data, nil
}

// WriteFile writes data to path, policy-checked.
func (a *API) WriteFile(hc *HostContext, path string, data []byte) error {
	if err := hc.requirePermission(PermFilesystem); err != nil {
		return err
	}
	canon, err := a.validateWrite(hc, path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(canon, data, 0o644); err != nil {
		return coreerrors.IOError(err, "write-file %q", path)
	}
	return nil
}

// ListDirectory returns the names of path's immediate children.
func (a *API) ListDirectory(hc *HostContext, path string) ([]string, error) {
	if err := hc.requirePermission(PermFilesystem); err != nil {
		return nil, err
	}
	canon, err := a.validateRead(hc, path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(canon)
	if err != nil {
		return nil, coreerrors.IOError(err, "list-directory %q", path)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// StatResult is the JSON-friendly projection returned by Stat.
type StatResult struct {
	Size    int64  `json:"size"`
	IsDir   bool   `json:"is_dir"`
	ModTime int64  `json:"mod_time"`
	Name    string `json:"name"`
}

// Stat returns file metadata, policy-checked.
func (a *API) Stat(hc *HostContext, path string) (StatResult, error) {
	if err := hc.requirePermission(PermFilesystem); err != nil {
		return StatResult{}, err
	}
	canon, err := a.validateRead(hc, path)
	if err != nil {
		return StatResult{}, err
	}
	info, err := os.Stat(canon)
	if err != nil {
		return StatResult{}, coreerrors.IOError(err, "stat %q", path)
	}
	return StatResult{Size: info.Size(), IsDir: info.IsDir(), ModTime: info.ModTime().Unix(), Name: info.Name()}, nil
}

// Delete removes path, policy-checked against the write roots.
func (a *API) Delete(hc *HostContext, path string) error {
	if err := hc.requirePermission(PermFilesystem); err != nil {
		return err
	}
	canon, err := a.validateWrite(hc, path)
	if err != nil {
		return err
	}
	if err := os.Remove(canon); err != nil {
		return coreerrors.IOError(err, "delete %q", path)
	}
	return nil
}

// WatchFile records path in the extension's watch set
// (HostContext.WatchedFiles). No filesystem watch is started, and no
// component in this module reads the set or forwards change events.
func (a *API) WatchFile(hc *HostContext, path string) error {
	if err := hc.requirePermission(PermFilesystem); err != nil {
		return err
	}
	canon, err := a.validateRead(hc, path)
	if err != nil {
		return err
	}
	hc.mu.Lock()
	hc.WatchedFiles[canon] = true
	hc.mu.Unlock()
	return nil
}

// resolveRelative joins a possibly-relative path against the extension's
// workspace root, matching the Task Executor's cwd-resolution rule.
func resolveRelative(hc *HostContext, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(hc.WorkspaceRoot, path)
}
