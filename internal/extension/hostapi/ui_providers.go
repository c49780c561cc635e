package hostapi

import (
	"fmt"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

// --- ui namespace ---

// RegisterTreeView registers a tree view contribution.
func (a *API) RegisterTreeView(hc *HostContext, id string) error {
	if err := hc.requirePermission(PermUI); err != nil {
		return err
	}
	hc.mu.Lock()
	hc.TreeViews[id] = TreeView{ID: id}
	hc.mu.Unlock()
	a.publish("extension:tree-view", map[string]string{"extension_id": hc.ExtensionID, "id": id})
	return nil
}

// RegisterStatusBarItem registers a status bar contribution.
func (a *API) RegisterStatusBarItem(hc *HostContext, id string) error {
	if err := hc.requirePermission(PermUI); err != nil {
		return err
	}
	hc.mu.Lock()
	hc.StatusBarItems[id] = StatusBarItem{ID: id}
	hc.mu.Unlock()
	return nil
}

// UpdateStatusBarItem updates a previously registered item's text.
func (a *API) UpdateStatusBarItem(hc *HostContext, id, text string) error {
	if err := hc.requirePermission(PermUI); err != nil {
		return err
	}
	hc.mu.Lock()
	item, ok := hc.StatusBarItems[id]
	if !ok {
		item = StatusBarItem{ID: id}
	}
	item.Text = text
	hc.StatusBarItems[id] = item
	hc.mu.Unlock()
	a.publish("extension:status-bar-update", map[string]string{"extension_id": hc.ExtensionID, "id": id, "text": text})
	return nil
}

// ShowQuickPick emits a quick-pick request event; the UI boundary owns
// actually presenting it and routing a response back via dispatch.
func (a *API) ShowQuickPick(hc *HostContext, itemsJSON string) error {
	if err := hc.requirePermission(PermUI); err != nil {
		return err
	}
	a.publish("extension:quick-pick", map[string]string{"extension_id": hc.ExtensionID, "items": itemsJSON})
	return nil
}

// ShowInputBox emits an input-box request event.
func (a *API) ShowInputBox(hc *HostContext, prompt string) error {
	if err := hc.requirePermission(PermUI); err != nil {
		return err
	}
	a.publish("extension:input-box", map[string]string{"extension_id": hc.ExtensionID, "prompt": prompt})
	return nil
}

// --- language namespace ---

func (a *API) registerProvider(hc *HostContext, kind string, perm Permission, target string) error {
	if err := hc.requirePermission(perm); err != nil {
		return err
	}
	hc.mu.Lock()
	hc.RegisteredProviders[kind] = append(hc.RegisteredProviders[kind], target)
	hc.mu.Unlock()
	return nil
}

func (a *API) RegisterCompletionProvider(hc *HostContext, languageID string) error {
	return a.registerProvider(hc, "completion", PermLanguage, languageID)
}

func (a *API) RegisterHoverProvider(hc *HostContext, languageID string) error {
	return a.registerProvider(hc, "hover", PermLanguage, languageID)
}

func (a *API) RegisterDefinitionProvider(hc *HostContext, languageID string) error {
	return a.registerProvider(hc, "definition", PermLanguage, languageID)
}

func (a *API) RegisterCodeActionsProvider(hc *HostContext, languageID string) error {
	return a.registerProvider(hc, "code-actions", PermLanguage, languageID)
}

func (a *API) RegisterCodeLensProvider(hc *HostContext, languageID string) error {
	return a.registerProvider(hc, "code-lens", PermLanguage, languageID)
}

func (a *API) RegisterDiagnostics(hc *HostContext, languageID string) error {
	return a.registerProvider(hc, "diagnostics", PermLanguage, languageID)
}

// --- scm namespace ---

func (a *API) RegisterSCMProvider(hc *HostContext, id string) error {
	if err := hc.requirePermission(PermSCM); err != nil {
		return err
	}
	hc.mu.Lock()
	hc.SCMProviders[id] = SCMProvider{ID: id}
	hc.mu.Unlock()
	return nil
}

// --- debug namespace ---

func (a *API) RegisterDebugAdapter(hc *HostContext, debugType string) error {
	if err := hc.requirePermission(PermDebug); err != nil {
		return err
	}
	hc.mu.Lock()
	hc.DebugAdapters[debugType] = DebugAdapter{Type: debugType}
	hc.mu.Unlock()
	return nil
}

// --- terminal namespace ---

// CreateTerminal allocates a terminal handle scoped to this extension.
func (a *API) CreateTerminal(hc *HostContext, name string) (string, error) {
	if err := hc.requirePermission(PermTerminal); err != nil {
		return "", err
	}
	hc.mu.Lock()
	hc.nextTerminalID++
	id := fmt.Sprintf("%s-term-%d", hc.ExtensionID, hc.nextTerminalID)
	hc.Terminals[id] = Terminal{ID: id, Name: name}
	hc.mu.Unlock()
	a.publish("extension:terminal-create", map[string]string{"extension_id": hc.ExtensionID, "id": id, "name": name})
	return id, nil
}

// TerminalSendText forwards text to a previously created terminal.
func (a *API) TerminalSendText(hc *HostContext, id, text string) error {
	if err := hc.requirePermission(PermTerminal); err != nil {
		return err
	}
	hc.mu.Lock()
	_, ok := hc.Terminals[id]
	hc.mu.Unlock()
	if !ok {
		return coreerrors.NotFound("unknown terminal %q", id)
	}
	a.publish("extension:terminal-input", map[string]string{"extension_id": hc.ExtensionID, "id": id, "text": text})
	return nil
}

// TerminalDispose releases a terminal handle.
func (a *API) TerminalDispose(hc *HostContext, id string) error {
	if err := hc.requirePermission(PermTerminal); err != nil {
		return err
	}
	hc.mu.Lock()
	delete(hc.Terminals, id)
	hc.mu.Unlock()
	a.publish("extension:terminal-dispose", map[string]string{"extension_id": hc.ExtensionID, "id": id})
	return nil
}
