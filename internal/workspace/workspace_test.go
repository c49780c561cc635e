package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cortex-ide/core/internal/pathpolicy"
)

func writeJSON(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMergesFolderAndWorkspaceSettings(t *testing.T) {
	dir := t.TempDir()
	folderA := filepath.Join(dir, "a")
	writeJSON(t, filepath.Join(folderA, ".cortex", "settings.json"), `{"editor":{"fontSize":12,"tabSize":4}}`)
	wsSettings := filepath.Join(dir, "workspace.json")
	writeJSON(t, wsSettings, `{"editor":{"fontSize":14}}`)

	policy := pathpolicy.New([]string{dir}, []string{dir})
	ws, err := Load(policy, []Folder{{Name: "a", Path: folderA}}, wsSettings)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	editor, ok := ws.Settings["editor"].(map[string]any)
	if !ok {
		t.Fatalf("expected editor settings map, got %v", ws.Settings["editor"])
	}
	if editor["fontsize"].(float64) != 14 {
		t.Fatalf("expected workspace-level fontSize to win, got %v", editor["fontsize"])
	}
	if editor["tabsize"].(float64) != 4 {
		t.Fatalf("expected folder-level tabSize to survive the merge, got %v", editor["tabsize"])
	}
}

func TestLoadToleratesMissingSettingsFiles(t *testing.T) {
	dir := t.TempDir()
	policy := pathpolicy.New([]string{dir}, []string{dir})
	ws, err := Load(policy, []Folder{{Name: "a", Path: filepath.Join(dir, "a")}}, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ws.Root() != filepath.Join(dir, "a") {
		t.Fatalf("unexpected root: %q", ws.Root())
	}
}

func TestFolderByName(t *testing.T) {
	ws := &Workspace{Folders: []Folder{{Name: "a", Path: "/x/a"}}}
	f, ok := ws.FolderByName("a")
	if !ok || f.Path != "/x/a" {
		t.Fatalf("unexpected lookup result: %+v %v", f, ok)
	}
	if _, ok := ws.FolderByName("missing"); ok {
		t.Fatal("expected missing folder lookup to fail")
	}
}

func TestLoadTaskSourceAndLookup(t *testing.T) {
	dir := t.TempDir()
	tasksPath := filepath.Join(dir, "tasks.json")
	writeJSON(t, tasksPath, `[
		{"label":"build","kind":"shell","command":"echo","args":["building"]},
		{"label":"test","kind":"shell","command":"echo","args":["testing"],"depends_on":["build"]}
	]`)
	policy := pathpolicy.New([]string{dir}, []string{dir})
	source, err := LoadTaskSource(policy, tasksPath)
	if err != nil {
		t.Fatalf("LoadTaskSource: %v", err)
	}
	tsk, err := source.Task("test")
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if len(tsk.DependsOn) != 1 || tsk.DependsOn[0] != "build" {
		t.Fatalf("unexpected depends_on: %v", tsk.DependsOn)
	}
	labels := source.AllLabels()
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels, got %v", labels)
	}
}

func TestLoadTaskSourceUnknownLabel(t *testing.T) {
	dir := t.TempDir()
	tasksPath := filepath.Join(dir, "tasks.json")
	writeJSON(t, tasksPath, `[]`)
	policy := pathpolicy.New([]string{dir}, []string{dir})
	source, err := LoadTaskSource(policy, tasksPath)
	if err != nil {
		t.Fatalf("LoadTaskSource: %v", err)
	}
	if _, err := source.Task("missing"); err == nil {
		t.Fatal("expected NotFound for unknown label")
	}
}

func TestLoadTaskSourceAcceptsYAML(t *testing.T) {
	dir := t.TempDir()
	tasksPath := filepath.Join(dir, "tasks.yaml")
	writeJSON(t, tasksPath, "- label: build\n  kind: shell\n  command: echo\n  args: [\"building\"]\n")
	policy := pathpolicy.New([]string{dir}, []string{dir})
	source, err := LoadTaskSource(policy, tasksPath)
	if err != nil {
		t.Fatalf("LoadTaskSource: %v", err)
	}
	tsk, err := source.Task("build")
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if tsk.Command != "echo" {
		t.Fatalf("unexpected command: %q", tsk.Command)
	}
}
