package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/cortex-ide/core/internal/config"
	"github.com/cortex-ide/core/internal/depgraph"
	coreerrors "github.com/cortex-ide/core/internal/errors"
	"github.com/cortex-ide/core/internal/extension/hostapi"
	"github.com/cortex-ide/core/internal/logging"
	"github.com/cortex-ide/core/internal/pathpolicy"
	"github.com/cortex-ide/core/internal/tracing"
)

// DispatchKind names the event kinds Dispatch routes to an exported
// WASM function (§4.9 step 3).
type DispatchKind string

const (
	DispatchCommand          DispatchKind = "execute-command"
	DispatchFileSave         DispatchKind = "on-file-save"
	DispatchFileOpen         DispatchKind = "on-file-open"
	DispatchWorkspaceChange  DispatchKind = "on-workspace-change"
	DispatchSelectionChange  DispatchKind = "on-selection-change"
	DispatchCompletionRequest DispatchKind = "on-completion-request"
	DispatchHoverRequest     DispatchKind = "on-hover-request"
	DispatchDefinitionRequest DispatchKind = "on-definition-request"
)

// minFuelBudget and maxFuelBudget bound the wall-clock approximation
// Activate/Dispatch use to stand in for wasmer-go's lack of an exposed
// fuel-metering knob in this binding (see callWithBudget).
const (
	fuelUnitsPerSecond           = 2_000_000_000
	minFuelBudget                = 50 * time.Millisecond
	maxFuelBudget                = 30 * time.Second
)

// Runtime owns every loaded extension instance. One Runtime exists per
// host process; extension instances are never shared across Runtimes.
type Runtime struct {
	mu        sync.Mutex
	instances map[string]*Instance

	policy *pathpolicy.Policy
	api    *hostapi.API
	limits config.ResourceLimits
	log    logging.Logger
}

// New constructs a Runtime. limits is applied to every extension loaded
// through it; a caller wanting per-extension limits constructs multiple
// Runtimes.
func New(policy *pathpolicy.Policy, api *hostapi.API, limits config.ResourceLimits, log logging.Logger) *Runtime {
	return &Runtime{instances: make(map[string]*Instance), policy: policy, api: api, limits: limits, log: log}
}

func fuelBudget(units uint64) time.Duration {
	if units == 0 {
		units = config.DefaultResourceLimits().FuelUnits
	}
	d := time.Duration(units/fuelUnitsPerSecond) * time.Second
	if d < minFuelBudget {
		return minFuelBudget
	}
	if d > maxFuelBudget {
		return maxFuelBudget
	}
	return d
}

// Load reads id's .wasm module (Path Policy checked), compiles it under
// this Runtime's resource limits, injects the host API, and instantiates
// it. Loading the same id twice is rejected — the spec calls this an
// idempotency violation; it surfaces here as a Conflict.
func (r *Runtime) Load(id string, manifest Manifest, workspaceRoot string) error {
	if err := manifest.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.instances[id]; exists {
		r.mu.Unlock()
		return coreerrors.Conflict("extension %q is already loaded", id)
	}
	r.mu.Unlock()

	wasmPath, err := r.policy.ValidateForExtensionRead(manifest.WASM)
	if err != nil {
		return err
	}
	wasmBytes, err := readWASMFile(wasmPath)
	if err != nil {
		return err
	}

	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	module, err := wasmer.NewModule(store, wasmBytes)
	if err != nil {
		return coreerrors.RuntimeTrap(err, "failed to compile extension %q", id)
	}

	hc := hostapi.NewHostContext(id, workspaceRoot, manifest.permissions())
	hold := &memoryHolder{}
	imports := buildImportObject(store, buildHostFuncs(r.api), hc, hold)

	inst, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return coreerrors.RuntimeTrap(err, "failed to instantiate extension %q", id)
	}
	if mem, memErr := inst.Exports.GetMemory("memory"); memErr == nil {
		hold.mem = mem
		capPages := uint32(r.limits.MemoryCapBytes / wasmPageSize)
		if mem.Size() > wasmer.Pages(capPages) && capPages > 0 {
			r.log.Warn("extension %q exports memory larger than its configured cap (%d bytes); wasmer-go does not expose a post-hoc shrink, relying on the module's own growth limit", id, r.limits.MemoryCapBytes)
		}
	} else if r.log != nil {
		r.log.Warn("extension %q exports no linear memory; (ptr,len) host calls will read as empty strings", id)
	}

	instance := &Instance{
		ID:          id,
		Manifest:    manifest,
		Status:      StatusInactive,
		HostContext: hc,
		engine:      engine,
		store:       store,
		module:      module,
		instance:    inst,
	}

	r.mu.Lock()
	r.instances[id] = instance
	r.mu.Unlock()
	return nil
}

const wasmPageSize = 64 * 1024

// Activate calls the extension's exported "activate" function if
// present, recording activation_time_ms and transitioning Inactive ->
// Activating -> (Active|Error).
func (r *Runtime) Activate(id string) error {
	inst, err := r.get(id)
	if err != nil {
		return err
	}
	inst.Status = StatusActivating

	fn, lookupErr := inst.instance.Exports.GetFunction("activate")
	start := time.Now()
	if lookupErr != nil {
		// No exported activate function is not an error — the extension
		// simply has no startup work.
		inst.Status = StatusActive
		inst.ActivationTimeMS = 0
		return nil
	}

	callErr := callWithBudget(fn, fuelBudget(r.limits.FuelUnits))
	inst.ActivationTimeMS = time.Since(start).Milliseconds()
	if callErr != nil {
		inst.Status = StatusError
		inst.Err = coreerrors.RuntimeTrap(callErr, "extension %q activate() trapped", id)
		if r.log != nil {
			r.log.Error("extension %q failed to activate: %v", id, inst.Err)
		}
		return inst.Err
	}
	inst.Status = StatusActive
	return nil
}

// Dispatch routes kind to the extension's matching exported function, if
// the instance is Active. Inactive/Error instances silently no-op,
// matching "an Error instance remains queryable but is inert".
func (r *Runtime) Dispatch(ctx context.Context, id string, kind DispatchKind, _ string) error {
	_, span := tracing.StartExtensionSpan(ctx, id, string(kind))
	var dispatchErr error
	defer func() { tracing.End(span, dispatchErr) }()

	inst, err := r.get(id)
	if err != nil {
		dispatchErr = err
		return err
	}
	if inst.Status != StatusActive {
		return nil
	}
	fn, lookupErr := inst.instance.Exports.GetFunction(string(kind))
	if lookupErr != nil {
		return nil
	}
	inst.LastActivity = time.Now()
	if callErr := callWithBudget(fn, fuelBudget(r.limits.FuelUnits)); callErr != nil {
		inst.Status = StatusError
		inst.Err = coreerrors.RuntimeTrap(callErr, "extension %q dispatch %q trapped", id, kind)
		if r.log != nil {
			r.log.Error("extension %q dispatch %q trapped: %v", id, kind, inst.Err)
		}
		dispatchErr = inst.Err
		return inst.Err
	}
	return nil
}

// Unload calls "deactivate" if present (best effort — its error is
// logged, never returned) and removes the instance regardless.
func (r *Runtime) Unload(id string) error {
	inst, err := r.get(id)
	if err != nil {
		return err
	}
	inst.Status = StatusDeactivating
	if fn, lookupErr := inst.instance.Exports.GetFunction("deactivate"); lookupErr == nil {
		if callErr := callWithBudget(fn, fuelBudget(r.limits.FuelUnits)); callErr != nil && r.log != nil {
			r.log.Error("extension %q deactivate() failed, unloading anyway: %v", id, callErr)
		}
	}
	r.mu.Lock()
	delete(r.instances, id)
	r.mu.Unlock()
	return nil
}

// Info returns a read-only projection of id's current state.
func (r *Runtime) Info(id string) (Info, error) {
	inst, err := r.get(id)
	if err != nil {
		return Info{}, err
	}
	return inst.info(), nil
}

// List returns every loaded instance's projection.
func (r *Runtime) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst.info())
	}
	return out
}

func (r *Runtime) get(id string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, coreerrors.NotFound("extension %q is not loaded", id)
	}
	return inst, nil
}

// ActivationOrder runs the dependency resolver (C10) over the declared
// manifests, returning an order where every extension precedes its
// dependents. Manifests with dependencies naming an extension outside
// manifests are treated as having no such dependency (best-effort:
// the spec does not define cross-install dependency resolution).
func ActivationOrder(manifests map[string]Manifest) ([]string, error) {
	names := make([]string, 0, len(manifests))
	dependsOn := make(map[string][]string, len(manifests))
	for name, m := range manifests {
		names = append(names, name)
		var deps []string
		for _, dep := range m.DependencyNames() {
			if _, ok := manifests[dep]; ok {
				deps = append(deps, dep)
			}
		}
		dependsOn[name] = deps
	}
	return depgraph.TopologicalSort(names, depgraph.DependsOnGraph(dependsOn))
}

// callWithBudget invokes fn and enforces an approximate fuel budget as a
// wall-clock deadline: this wasmer-go binding does not expose fuel
// metering, so a trap from exceeding real resource limits (memory,
// table growth) surfaces directly from fn's own error, while a runaway
// loop is caught only by this timeout. The call itself is not
// preemptible — a timed-out goroutine keeps running detached, matching
// the non-preemptive reality of calling into native code synchronously.
func callWithBudget(fn wasmer.NativeFunction, budget time.Duration) error {
	done := make(chan error, 1)
	go func() {
		_, err := fn()
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(budget):
		return coreerrors.Timeout("extension call exceeded its fuel budget (%s)", budget)
	}
}

func readWASMFile(path string) ([]byte, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, coreerrors.IOError(err, "failed to read wasm module at %q", path)
	}
	return data, nil
}
