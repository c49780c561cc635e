package runtime

import (
	"time"

	"github.com/cortex-ide/core/internal/extension/hostapi"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// Status is an extension instance's lifecycle state (§3 "Extension
// Instance"). Transitions: Inactive->Activating->(Active|Error);
// Active->Deactivating->Inactive; any->Error on fault.
type Status string

const (
	StatusInactive    Status = "Inactive"
	StatusActivating  Status = "Activating"
	StatusActive      Status = "Active"
	StatusDeactivating Status = "Deactivating"
	StatusError       Status = "Error"
)

// Instance is one loaded extension's runtime state. The module and
// store are private to this package; callers observe an instance
// through Runtime's query methods.
type Instance struct {
	ID               string
	Manifest         Manifest
	Status           Status
	HostContext      *hostapi.HostContext
	ActivationTimeMS int64
	LastActivity     time.Time
	Err              error

	engine   *wasmer.Engine
	store    *wasmer.Store
	module   *wasmer.Module
	instance *wasmer.Instance
}

// Info is the read-only projection exposed to callers (the command
// dispatcher, UI boundary) instead of the raw Instance.
type Info struct {
	ID               string
	Name             string
	Version          string
	Status           Status
	ActivationTimeMS int64
	LastActivity     time.Time
	Error            string
}

func (inst *Instance) info() Info {
	errMsg := ""
	if inst.Err != nil {
		errMsg = inst.Err.Error()
	}
	return Info{
		ID:               inst.ID,
		Name:             inst.Manifest.Name,
		Version:          inst.Manifest.Version,
		Status:           inst.Status,
		ActivationTimeMS: inst.ActivationTimeMS,
		LastActivity:     inst.LastActivity,
		Error:            errMsg,
	}
}
