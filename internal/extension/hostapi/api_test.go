package hostapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cortex-ide/core/internal/events"
	coreerrors "github.com/cortex-ide/core/internal/errors"
	"github.com/cortex-ide/core/internal/pathpolicy"
)

func newTestAPI(t *testing.T) (*API, string) {
	t.Helper()
	dir := t.TempDir()
	policy := pathpolicy.New([]string{dir}, []string{dir})
	return New(policy, nil, nil, events.NewBus(16), nil), dir
}

func TestCallWithoutPermissionIsPolicyDenied(t *testing.T) {
	api, dir := newTestAPI(t)
	hc := NewHostContext("ext1", dir, nil)
	_, err := api.ReadFile(hc, filepath.Join(dir, "x.txt"))
	if !coreerrors.IsPolicyDenied(err) {
		t.Fatalf("expected PolicyDenied, got %v", err)
	}
}

func TestReadWriteFileRoundTrip(t *testing.T) {
	api, dir := newTestAPI(t)
	hc := NewHostContext("ext1", dir, []Permission{PermFilesystem})
	path := filepath.Join(dir, "a.txt")
	if err := api.WriteFile(hc, path, []byte("hello")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := api.ReadFile(hc, path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected contents: %q", got)
	}
}

func TestWriteFileOutsideRootsIsDenied(t *testing.T) {
	api, dir := newTestAPI(t)
	hc := NewHostContext("ext1", dir, []Permission{PermFilesystem})
	if err := api.WriteFile(hc, "/etc/passwd", []byte("x")); !coreerrors.IsPolicyDenied(err) {
		t.Fatalf("expected PolicyDenied, got %v", err)
	}
}

func TestListDirectoryAndStat(t *testing.T) {
	api, dir := newTestAPI(t)
	hc := NewHostContext("ext1", dir, []Permission{PermFilesystem})
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	names, err := api.ListDirectory(hc, dir)
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(names) != 1 || names[0] != "f.txt" {
		t.Fatalf("unexpected listing: %v", names)
	}
	st, err := api.Stat(hc, filepath.Join(dir, "f.txt"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.IsDir || st.Size != 1 {
		t.Fatalf("unexpected stat: %+v", st)
	}
}

func TestRegisterCommandAndEmitEvent(t *testing.T) {
	api, dir := newTestAPI(t)
	hc := NewHostContext("ext1", dir, []Permission{PermHost})
	if err := api.RegisterCommand(hc, "cortex.doThing"); err != nil {
		t.Fatalf("RegisterCommand: %v", err)
	}
	if !hc.RegisteredCommands["cortex.doThing"] {
		t.Fatal("expected command to be registered")
	}
	if err := api.EmitEvent(hc, "progress", "50"); err != nil {
		t.Fatalf("EmitEvent: %v", err)
	}
	if len(hc.EventQueue) != 1 || hc.EventQueue[0].Name != "progress" {
		t.Fatalf("unexpected event queue: %+v", hc.EventQueue)
	}
}

func TestRegisterProviderAppendsToSameKind(t *testing.T) {
	api, dir := newTestAPI(t)
	hc := NewHostContext("ext1", dir, []Permission{PermLanguage})
	api.RegisterCompletionProvider(hc, "go")
	api.RegisterCompletionProvider(hc, "rust")
	if len(hc.RegisteredProviders["completion"]) != 2 {
		t.Fatalf("expected two completion providers, got %v", hc.RegisteredProviders["completion"])
	}
}

func TestCreateTerminalAndSendTextAndDispose(t *testing.T) {
	api, dir := newTestAPI(t)
	hc := NewHostContext("ext1", dir, []Permission{PermTerminal})
	id, err := api.CreateTerminal(hc, "shell")
	if err != nil {
		t.Fatalf("CreateTerminal: %v", err)
	}
	if err := api.TerminalSendText(hc, id, "ls\n"); err != nil {
		t.Fatalf("TerminalSendText: %v", err)
	}
	if err := api.TerminalDispose(hc, id); err != nil {
		t.Fatalf("TerminalDispose: %v", err)
	}
	if _, ok := hc.Terminals[id]; ok {
		t.Fatal("expected terminal to be disposed")
	}
	if err := api.TerminalSendText(hc, id, "x"); !coreerrors.IsNotFound(err) {
		t.Fatalf("expected NotFound for disposed terminal, got %v", err)
	}
}

func TestSetAndGetConfigurationIsExtensionScoped(t *testing.T) {
	api, dir := newTestAPI(t)
	hc := NewHostContext("ext1", dir, []Permission{PermWorkspace})
	if err := api.SetConfiguration(hc, "font-size", "14"); err != nil {
		t.Fatalf("SetConfiguration: %v", err)
	}
	v, ok, err := api.GetConfiguration(hc, "font-size")
	if err != nil || !ok || v != "14" {
		t.Fatalf("unexpected configuration read: %q %v %v", v, ok, err)
	}
}
