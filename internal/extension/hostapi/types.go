// Package hostapi implements the capability-gated surface of host
// functions the extension runtime exposes to sandboxed WASM modules
// (§4.8). Every call here is a pure Go method; the runtime's linker
// (internal/extension/runtime) is what marshals WASM linear-memory
// (ptr,len) pairs into the string/byte arguments these methods expect.
package hostapi

import (
	"sync"
	"time"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

// Permission names one capability namespace an extension may declare in
// its manifest. A declared permission unlocks every function under that
// namespace; the spec does not define finer-grained sub-permissions.
type Permission string

const (
	PermHost       Permission = "host"
	PermFilesystem Permission = "filesystem"
	PermEditor     Permission = "editor"
	PermWorkspace  Permission = "workspace"
	PermUI         Permission = "ui"
	PermLanguage   Permission = "language"
	PermSCM        Permission = "scm"
	PermDebug      Permission = "debug"
	PermTerminal   Permission = "terminal"
)

// TreeView, StatusBarItem, SCMProvider, DebugAdapter, and Terminal are
// the registration records a Host Context accumulates; they carry just
// enough to let the UI boundary enumerate what an extension contributed.
type TreeView struct{ ID string }
type StatusBarItem struct {
	ID   string
	Text string
}
type SCMProvider struct{ ID string }
type DebugAdapter struct{ Type string }
type Terminal struct {
	ID   string
	Name string
}

// HostContext is the per-extension capability record (§3 "Host
// Context"). Every host-API call that registers something writes into
// this struct; nothing here is shared across extensions.
type HostContext struct {
	mu sync.Mutex

	ExtensionID  string
	WorkspaceRoot string
	Permissions  map[Permission]bool

	RegisteredCommands   map[string]bool
	RegisteredProviders  map[string][]string // provider kind -> language/id list
	TreeViews            map[string]TreeView
	StatusBarItems       map[string]StatusBarItem
	SCMProviders         map[string]SCMProvider
	DebugAdapters        map[string]DebugAdapter
	Terminals            map[string]Terminal
	WatchedFiles         map[string]bool
	Configuration        map[string]string
	EventQueue           []HostEvent

	nextTerminalID int
}

// HostEvent is an entry in an extension's outbound event queue, queued
// by emit-event. No component in this module drains the queue.
type HostEvent struct {
	Name      string
	Data      string
	Timestamp time.Time
}

// NewHostContext builds a Host Context for extensionID with the given
// declared permissions and workspace root.
func NewHostContext(extensionID, workspaceRoot string, permissions []Permission) *HostContext {
	perms := make(map[Permission]bool, len(permissions))
	for _, p := range permissions {
		perms[p] = true
	}
	return &HostContext{
		ExtensionID:         extensionID,
		WorkspaceRoot:       workspaceRoot,
		Permissions:         perms,
		RegisteredCommands:  make(map[string]bool),
		RegisteredProviders: make(map[string][]string),
		TreeViews:           make(map[string]TreeView),
		StatusBarItems:      make(map[string]StatusBarItem),
		SCMProviders:        make(map[string]SCMProvider),
		DebugAdapters:       make(map[string]DebugAdapter),
		Terminals:           make(map[string]Terminal),
		WatchedFiles:        make(map[string]bool),
		Configuration:       make(map[string]string),
	}
}

// Has reports whether the extension declared perm.
func (hc *HostContext) Has(perm Permission) bool {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.Permissions[perm]
}

// requirePermission gates a host call: PolicyDenied if the extension
// never declared the namespace in its manifest.
func (hc *HostContext) requirePermission(perm Permission) error {
	if !hc.Has(perm) {
		return coreerrors.PolicyDenied("extension %q has not declared permission %q", hc.ExtensionID, perm)
	}
	return nil
}

// Selection and Cursor mirror the collaboration package's shapes so the
// editor surface can describe a selection without importing collab
// (which is session-scoped, not extension-scoped).
type Cursor struct {
	Line      int
	Character int
}

type Selection struct {
	Anchor Cursor
	Head   Cursor
}

// EditorModel is the document-model surface the host wires an API to.
// The runtime does not implement this itself — it is supplied by
// whatever owns the open documents (outside this module's scope, per
// the spec's "text-document model" external contract).
type EditorModel interface {
	ActiveDocumentURI() (string, bool)
	Selection(uri string) (Selection, error)
	InsertText(uri string, offset int, text string) error
	ReplaceRange(uri string, start, end int, text string) error
	SetDecorations(uri string, decorations string) error
	DocumentText(uri string) (string, error)
}

// WorkspaceModel is the workspace-scoped surface: folders, file search,
// and configuration. Also supplied externally.
type WorkspaceModel interface {
	Folders() []string
	FindFiles(glob string, max int) ([]string, error)
	Configuration(key string) (string, bool)
	SetConfiguration(key, value string) error
}
