// Package vars implements `${name}` substitution against a task or
// command's execution context. Unknown variables are left verbatim —
// round-tripping through Substitute twice on a string with no
// recognized variables is a no-op, which tasks rely on when chaining
// configuration through multiple layers.
package vars

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Context supplies the values Substitute draws variables from. Any
// field left at its zero value simply yields an empty substitution for
// variables that need it (file, line, selection).
type Context struct {
	WorkspaceFolder string
	File            string
	Line            int
	Selection       string
	ExecPath        string
}

var pattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute replaces every `${name}` in input using ctx, plus process
// environment lookups for `${env:NAME}`. Names it doesn't recognize
// are left exactly as written.
func Substitute(input string, ctx Context) string {
	return pattern.ReplaceAllStringFunc(input, func(token string) string {
		name := token[2 : len(token)-1]
		if v, ok := resolve(name, ctx); ok {
			return v
		}
		return token
	})
}

func resolve(name string, ctx Context) (string, bool) {
	if strings.HasPrefix(name, "env:") {
		key := strings.TrimPrefix(name, "env:")
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		return "", false
	}

	switch name {
	case "workspaceFolder":
		return ctx.WorkspaceFolder, true
	case "workspaceFolderBasename":
		return filepath.Base(ctx.WorkspaceFolder), true
	case "cwd":
		return ctx.WorkspaceFolder, true
	case "file":
		return ctx.File, true
	case "fileBasename":
		return filepath.Base(ctx.File), true
	case "fileDirname":
		return filepath.Dir(ctx.File), true
	case "fileExtname":
		return filepath.Ext(ctx.File), true
	case "fileBasenameNoExtension":
		base := filepath.Base(ctx.File)
		return strings.TrimSuffix(base, filepath.Ext(base)), true
	case "relativeFile":
		rel, err := filepath.Rel(ctx.WorkspaceFolder, ctx.File)
		if err != nil {
			return ctx.File, true
		}
		return rel, true
	case "relativeFileDirname":
		rel, err := filepath.Rel(ctx.WorkspaceFolder, filepath.Dir(ctx.File))
		if err != nil {
			return filepath.Dir(ctx.File), true
		}
		return rel, true
	case "lineNumber":
		if ctx.Line == 0 {
			return "", true
		}
		return strconv.Itoa(ctx.Line), true
	case "selectedText":
		return ctx.Selection, true
	case "execPath":
		return ctx.ExecPath, true
	case "pathSeparator":
		return string(filepath.Separator), true
	default:
		return "", false
	}
}
