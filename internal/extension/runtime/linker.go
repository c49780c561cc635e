package runtime

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/cortex-ide/core/internal/extension/hostapi"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// Every host function shares one ABI: up to two (ptr,len) string
// arguments and an (out_ptr,out_cap) output buffer, returning a single
// i32 status. 0 means success and the output (if any) fit in out_cap;
// a positive value is the number of bytes the output actually needed
// (the first out_cap bytes were still written, so the caller can retry
// with a bigger buffer); a negative value is a failure. Collapsing the
// namespace's ~30 distinct signatures (§4.8) onto one shape keeps the
// linker a single table instead of thirty bespoke wasmer.Function
// builders, at the cost of unused argument slots on simpler calls.
type hostFunc func(hc *hostapi.HostContext, arg1, arg2 string) (out []byte, err error)

// memoryHolder defers memory access until after instantiation: host
// functions are registered on the ImportObject before NewInstance
// exists, but need live access to its exported "memory" once calls
// start arriving.
type memoryHolder struct {
	mem *wasmer.Memory
}

func (h *memoryHolder) readString(ptr, length int32) string {
	if h.mem == nil || length <= 0 {
		return ""
	}
	data := h.mem.Data()
	start, end := int(ptr), int(ptr)+int(length)
	if start < 0 || end > len(data) || start > end {
		return ""
	}
	b := make([]byte, length)
	copy(b, data[start:end])
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(b)
}

// writeOut writes data into the guest buffer [outPtr, outPtr+outCap) and
// returns the status per the convention above.
func (h *memoryHolder) writeOut(outPtr, outCap int32, data []byte) int32 {
	if h.mem == nil {
		return -1
	}
	mem := h.mem.Data()
	start := int(outPtr)
	cap := int(outCap)
	if start < 0 || cap < 0 || start+cap > len(mem) {
		return -1
	}
	n := copy(mem[start:start+cap], data)
	if len(data) > cap {
		return int32(len(data))
	}
	_ = n
	return 0
}

// buildHostFuncs returns the namespaced dispatch table §4.8 describes,
// each entry bound against a shared *hostapi.API.
func buildHostFuncs(api *hostapi.API) map[string]hostFunc {
	return map[string]hostFunc{
		"host.log": func(hc *hostapi.HostContext, level, msg string) ([]byte, error) {
			return nil, api.Log(hc, level, msg)
		},
		"host.show-message": func(hc *hostapi.HostContext, level, msg string) ([]byte, error) {
			return nil, api.ShowMessage(hc, level, msg)
		},
		"host.register-command": func(hc *hostapi.HostContext, id, _ string) ([]byte, error) {
			return nil, api.RegisterCommand(hc, id)
		},
		"host.emit-event": func(hc *hostapi.HostContext, name, data string) ([]byte, error) {
			return nil, api.EmitEvent(hc, name, data)
		},

		"filesystem.read-file": func(hc *hostapi.HostContext, path, _ string) ([]byte, error) {
			return api.ReadFile(hc, path)
		},
		"filesystem.write-file": func(hc *hostapi.HostContext, path, data string) ([]byte, error) {
			return nil, api.WriteFile(hc, path, []byte(data))
		},
		"filesystem.list-directory": func(hc *hostapi.HostContext, path, _ string) ([]byte, error) {
			names, err := api.ListDirectory(hc, path)
			if err != nil {
				return nil, err
			}
			return json.Marshal(names)
		},
		"filesystem.stat": func(hc *hostapi.HostContext, path, _ string) ([]byte, error) {
			st, err := api.Stat(hc, path)
			if err != nil {
				return nil, err
			}
			return json.Marshal(st)
		},
		"filesystem.delete": func(hc *hostapi.HostContext, path, _ string) ([]byte, error) {
			return nil, api.Delete(hc, path)
		},
		"filesystem.watch-file": func(hc *hostapi.HostContext, path, _ string) ([]byte, error) {
			return nil, api.WatchFile(hc, path)
		},

		"editor.get-active-editor": func(hc *hostapi.HostContext, _, _ string) ([]byte, error) {
			uri, ok, err := api.GetActiveEditor(hc)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return []byte(uri), nil
		},
		"editor.get-selection": func(hc *hostapi.HostContext, uri, _ string) ([]byte, error) {
			sel, err := api.GetSelection(hc, uri)
			if err != nil {
				return nil, err
			}
			return json.Marshal(sel)
		},
		"editor.get-document-text": func(hc *hostapi.HostContext, uri, _ string) ([]byte, error) {
			text, err := api.GetDocumentText(hc, uri)
			if err != nil {
				return nil, err
			}
			return []byte(text), nil
		},
		"editor.set-decorations": func(hc *hostapi.HostContext, uri, decorations string) ([]byte, error) {
			return nil, api.SetDecorations(hc, uri, decorations)
		},

		"workspace.get-workspace-folders": func(hc *hostapi.HostContext, _, _ string) ([]byte, error) {
			folders, err := api.GetWorkspaceFolders(hc)
			if err != nil {
				return nil, err
			}
			return json.Marshal(folders)
		},
		"workspace.get-configuration": func(hc *hostapi.HostContext, key, _ string) ([]byte, error) {
			v, ok, err := api.GetConfiguration(hc, key)
			if err != nil || !ok {
				return nil, err
			}
			return []byte(v), nil
		},
		"workspace.set-configuration": func(hc *hostapi.HostContext, key, value string) ([]byte, error) {
			return nil, api.SetConfiguration(hc, key, value)
		},

		"ui.register-tree-view": func(hc *hostapi.HostContext, id, _ string) ([]byte, error) {
			return nil, api.RegisterTreeView(hc, id)
		},
		"ui.register-status-bar-item": func(hc *hostapi.HostContext, id, _ string) ([]byte, error) {
			return nil, api.RegisterStatusBarItem(hc, id)
		},
		"ui.update-status-bar-item": func(hc *hostapi.HostContext, id, text string) ([]byte, error) {
			return nil, api.UpdateStatusBarItem(hc, id, text)
		},
		"ui.show-quick-pick": func(hc *hostapi.HostContext, itemsJSON, _ string) ([]byte, error) {
			return nil, api.ShowQuickPick(hc, itemsJSON)
		},
		"ui.show-input-box": func(hc *hostapi.HostContext, prompt, _ string) ([]byte, error) {
			return nil, api.ShowInputBox(hc, prompt)
		},

		"language.register-completion-provider": func(hc *hostapi.HostContext, lang, _ string) ([]byte, error) {
			return nil, api.RegisterCompletionProvider(hc, lang)
		},
		"language.register-hover-provider": func(hc *hostapi.HostContext, lang, _ string) ([]byte, error) {
			return nil, api.RegisterHoverProvider(hc, lang)
		},
		"language.register-definition-provider": func(hc *hostapi.HostContext, lang, _ string) ([]byte, error) {
			return nil, api.RegisterDefinitionProvider(hc, lang)
		},
		"language.register-code-actions-provider": func(hc *hostapi.HostContext, lang, _ string) ([]byte, error) {
			return nil, api.RegisterCodeActionsProvider(hc, lang)
		},
		"language.register-code-lens-provider": func(hc *hostapi.HostContext, lang, _ string) ([]byte, error) {
			return nil, api.RegisterCodeLensProvider(hc, lang)
		},
		"language.register-diagnostics": func(hc *hostapi.HostContext, lang, _ string) ([]byte, error) {
			return nil, api.RegisterDiagnostics(hc, lang)
		},

		"scm.register-scm-provider": func(hc *hostapi.HostContext, id, _ string) ([]byte, error) {
			return nil, api.RegisterSCMProvider(hc, id)
		},
		"debug.register-debug-adapter": func(hc *hostapi.HostContext, debugType, _ string) ([]byte, error) {
			return nil, api.RegisterDebugAdapter(hc, debugType)
		},

		"terminal.create": func(hc *hostapi.HostContext, name, _ string) ([]byte, error) {
			id, err := api.CreateTerminal(hc, name)
			if err != nil {
				return nil, err
			}
			return []byte(id), nil
		},
		"terminal.terminal-send-text": func(hc *hostapi.HostContext, id, text string) ([]byte, error) {
			return nil, api.TerminalSendText(hc, id, text)
		},
		"terminal.terminal-dispose": func(hc *hostapi.HostContext, id, _ string) ([]byte, error) {
			return nil, api.TerminalDispose(hc, id)
		},
	}
}

// wasmFuncType is the shared 6xI32 -> I32 signature every host import uses.
func wasmFuncType() *wasmer.FunctionType {
	return wasmer.NewFunctionType(
		wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32),
		wasmer.NewValueTypes(wasmer.I32),
	)
}

// buildImportObject wires every entry of funcs into a wasmer
// ImportObject under a single "cortex" module namespace, keyed by
// "namespace.function" (e.g. "filesystem.read-file"). hold is filled in
// with the instance's memory once it exists.
func buildImportObject(store *wasmer.Store, funcs map[string]hostFunc, hc *hostapi.HostContext, hold *memoryHolder) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()
	exports := make(map[string]wasmer.IntoExtern, len(funcs))
	for name, fn := range funcs {
		fn := fn
		wasmerFn := wasmer.NewFunction(store, wasmFuncType(), func(args []wasmer.Value) ([]wasmer.Value, error) {
			a1ptr, a1len := args[0].I32(), args[1].I32()
			a2ptr, a2len := args[2].I32(), args[3].I32()
			outPtr, outCap := args[4].I32(), args[5].I32()

			arg1 := hold.readString(a1ptr, a1len)
			arg2 := hold.readString(a2ptr, a2len)

			out, err := fn(hc, arg1, arg2)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			status := hold.writeOut(outPtr, outCap, out)
			return []wasmer.Value{wasmer.NewI32(status)}, nil
		})
		exports[name] = wasmerFn
	}
	imports.Register("cortex", exports)
	return imports
}
