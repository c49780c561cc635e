// Package runtime implements the WASM extension lifecycle (§4.9):
// loading a compiled module under resource limits, activating it,
// dispatching host-originated events into it, and unloading it. The
// host functions it links in are supplied by
// github.com/cortex-ide/core/internal/extension/hostapi.
package runtime

import (
	"regexp"

	coreerrors "github.com/cortex-ide/core/internal/errors"
	"github.com/cortex-ide/core/internal/extension/hostapi"
)

var (
	nameRe    = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	versionRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

	activationSchemeRe = regexp.MustCompile(`^(onStartupFinished|onDebug|\*|onLanguage:.+|onCommand:.+|onView:.+|workspaceContains:.+|onFileSystem:.+|onUri:.+)$`)
)

// Contributes mirrors the manifest's contribution block. The runtime
// does not interpret these beyond storing them for the UI boundary;
// only activation_events and permissions drive runtime behavior.
type Contributes struct {
	Commands []string `json:"commands,omitempty"`
	Views    []string `json:"views,omitempty"`
	Themes   []string `json:"themes,omitempty"`
	Settings []string `json:"settings,omitempty"`
}

// Manifest is an extension's extension.json (§3 "Extension Manifest").
type Manifest struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Description      string            `json:"description"`
	Author           string            `json:"author"`
	WASM             string            `json:"wasm"`
	Main             string            `json:"main,omitempty"`
	WITWorld         string            `json:"wit_world,omitempty"`
	ActivationEvents []string          `json:"activationEvents"`
	Contributes      Contributes       `json:"contributes,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	Permissions      []string          `json:"permissions,omitempty"`
}

// Validate checks the manifest's invariants (§3). It does not check
// that the referenced .wasm file exists — that is Load's job, since it
// requires Path Policy.
func (m Manifest) Validate() error {
	if !nameRe.MatchString(m.Name) {
		return coreerrors.InvalidInputDetail(map[string]any{"field": "name"}, "extension name %q must match %s", m.Name, nameRe.String())
	}
	if !versionRe.MatchString(m.Version) {
		return coreerrors.InvalidInputDetail(map[string]any{"field": "version"}, "extension version %q must be semver X.Y.Z", m.Version)
	}
	if m.WASM == "" {
		return coreerrors.InvalidInputDetail(map[string]any{"field": "wasm"}, "extension %q declares no wasm entry point", m.Name)
	}
	for _, ev := range m.ActivationEvents {
		if !activationSchemeRe.MatchString(ev) {
			return coreerrors.InvalidInputDetail(map[string]any{"field": "activationEvents", "value": ev}, "unrecognized activation event %q", ev)
		}
	}
	for _, p := range m.Permissions {
		if !isKnownPermission(p) {
			return coreerrors.InvalidInputDetail(map[string]any{"field": "permissions", "value": p}, "unrecognized permission %q", p)
		}
	}
	return nil
}

func isKnownPermission(p string) bool {
	switch hostapi.Permission(p) {
	case hostapi.PermHost, hostapi.PermFilesystem, hostapi.PermEditor, hostapi.PermWorkspace,
		hostapi.PermUI, hostapi.PermLanguage, hostapi.PermSCM, hostapi.PermDebug, hostapi.PermTerminal:
		return true
	default:
		return false
	}
}

// permissions converts the manifest's declared permission strings into
// the hostapi.Permission set a HostContext is built from.
func (m Manifest) permissions() []hostapi.Permission {
	out := make([]hostapi.Permission, 0, len(m.Permissions))
	for _, p := range m.Permissions {
		out = append(out, hostapi.Permission(p))
	}
	return out
}

// DependencyNames returns the extension's declared dependency names, for
// feeding into the dependency resolver (C10) ahead of activation.
func (m Manifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	return names
}
