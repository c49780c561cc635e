package hostapi

import coreerrors "github.com/cortex-ide/core/internal/errors"

// --- editor namespace ---

// GetActiveEditor returns the URI of the currently active document, if any.
func (a *API) GetActiveEditor(hc *HostContext) (string, bool, error) {
	if err := hc.requirePermission(PermEditor); err != nil {
		return "", false, err
	}
	if a.editor == nil {
		return "", false, coreerrors.Internal(nil, "no editor model configured")
	}
	uri, ok := a.editor.ActiveDocumentURI()
	return uri, ok, nil
}

// GetSelection returns the current selection within uri.
func (a *API) GetSelection(hc *HostContext, uri string) (Selection, error) {
	if err := hc.requirePermission(PermEditor); err != nil {
		return Selection{}, err
	}
	if a.editor == nil {
		return Selection{}, coreerrors.Internal(nil, "no editor model configured")
	}
	return a.editor.Selection(uri)
}

// InsertText inserts text at offset within uri.
func (a *API) InsertText(hc *HostContext, uri string, offset int, text string) error {
	if err := hc.requirePermission(PermEditor); err != nil {
		return err
	}
	if a.editor == nil {
		return coreerrors.Internal(nil, "no editor model configured")
	}
	return a.editor.InsertText(uri, offset, text)
}

// ReplaceRange replaces [start,end) within uri with text.
func (a *API) ReplaceRange(hc *HostContext, uri string, start, end int, text string) error {
	if err := hc.requirePermission(PermEditor); err != nil {
		return err
	}
	if a.editor == nil {
		return coreerrors.Internal(nil, "no editor model configured")
	}
	return a.editor.ReplaceRange(uri, start, end, text)
}

// SetDecorations pushes a JSON-encoded decoration set for uri.
func (a *API) SetDecorations(hc *HostContext, uri, decorations string) error {
	if err := hc.requirePermission(PermEditor); err != nil {
		return err
	}
	if a.editor == nil {
		return coreerrors.Internal(nil, "no editor model configured")
	}
	return a.editor.SetDecorations(uri, decorations)
}

// GetDocumentText returns the full text of uri.
func (a *API) GetDocumentText(hc *HostContext, uri string) (string, error) {
	if err := hc.requirePermission(PermEditor); err != nil {
		return "", err
	}
	if a.editor == nil {
		return "", coreerrors.Internal(nil, "no editor model configured")
	}
	return a.editor.DocumentText(uri)
}

// --- workspace namespace ---

// GetWorkspaceFolders returns the configured workspace roots.
func (a *API) GetWorkspaceFolders(hc *HostContext) ([]string, error) {
	if err := hc.requirePermission(PermWorkspace); err != nil {
		return nil, err
	}
	if a.workspace == nil {
		return nil, coreerrors.Internal(nil, "no workspace model configured")
	}
	return a.workspace.Folders(), nil
}

// FindFiles matches glob against the workspace, capped at max results.
func (a *API) FindFiles(hc *HostContext, glob string, max int) ([]string, error) {
	if err := hc.requirePermission(PermWorkspace); err != nil {
		return nil, err
	}
	if a.workspace == nil {
		return nil, coreerrors.Internal(nil, "no workspace model configured")
	}
	return a.workspace.FindFiles(glob, max)
}

// GetConfiguration returns a workspace configuration value by key.
func (a *API) GetConfiguration(hc *HostContext, key string) (string, bool, error) {
	if err := hc.requirePermission(PermWorkspace); err != nil {
		return "", false, err
	}
	hc.mu.Lock()
	if v, ok := hc.Configuration[key]; ok {
		hc.mu.Unlock()
		return v, true, nil
	}
	hc.mu.Unlock()
	if a.workspace == nil {
		return "", false, nil
	}
	v, ok := a.workspace.Configuration(key)
	return v, ok, nil
}

// SetConfiguration sets a configuration value, scoped to this extension
// first and mirrored to the workspace model if one is configured.
func (a *API) SetConfiguration(hc *HostContext, key, value string) error {
	if err := hc.requirePermission(PermWorkspace); err != nil {
		return err
	}
	hc.mu.Lock()
	hc.Configuration[key] = value
	hc.mu.Unlock()
	if a.workspace != nil {
		return a.workspace.SetConfiguration(key, value)
	}
	return nil
}
