// Package workspace implements the multi-root workspace model: the set
// of folders a window has open, and the layered settings document each
// folder and the workspace itself contribute to. It also supplies the
// production internal/task.TaskSource, loading task configuration
// documents from each folder via Path Policy.
package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	coreerrors "github.com/cortex-ide/core/internal/errors"
	"github.com/cortex-ide/core/internal/pathpolicy"
)

// Folder is one root of a multi-root workspace.
type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Workspace is the open set of folders plus their merged settings.
type Workspace struct {
	Folders  []Folder
	Settings map[string]any
}

// Load reads settings.json from each folder (if present) and the
// workspace-level settingsPath (if non-empty), merging them in order —
// later layers override earlier ones key-by-key, recursing into nested
// objects. Folder settings apply before the workspace-level override,
// matching "workspace settings win" the way most multi-root editors
// behave.
func Load(policy *pathpolicy.Policy, folders []Folder, settingsPath string) (*Workspace, error) {
	merged := viper.New()
	merged.SetConfigType("json")

	for _, f := range folders {
		if err := mergeSettingsFile(merged, policy, filepath.Join(f.Path, ".cortex", "settings.json")); err != nil {
			return nil, err
		}
	}
	if settingsPath != "" {
		if err := mergeSettingsFile(merged, policy, settingsPath); err != nil {
			return nil, err
		}
	}

	return &Workspace{Folders: folders, Settings: merged.AllSettings()}, nil
}

// mergeSettingsFile deep-merges one JSON settings document into acc,
// ignoring a missing file (workspaces need not configure every layer).
func mergeSettingsFile(acc *viper.Viper, policy *pathpolicy.Policy, path string) error {
	canon, err := policy.ValidateForRead(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(canon)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return coreerrors.IOError(err, "failed to read workspace settings at %q", path)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return coreerrors.InvalidInput("malformed settings document at %q: %v", path, err)
	}
	return acc.MergeConfigMap(m)
}

// FolderByName returns the folder named name, if the workspace has one.
func (w *Workspace) FolderByName(name string) (Folder, bool) {
	for _, f := range w.Folders {
		if f.Name == name {
			return f, true
		}
	}
	return Folder{}, false
}

// Root returns the first folder's path, used as the default cwd for
// relative task/extension paths in a single-root workspace.
func (w *Workspace) Root() string {
	if len(w.Folders) == 0 {
		return ""
	}
	return w.Folders[0].Path
}
