package archive

import (
	"time"

	"github.com/aretw0/introspection"
)

// DriverState exposes internal state for observability.
type DriverState struct {
	Running     bool   `json:"running"`
	Current     string `json:"current,omitempty"`
	StoreType   string `json:"store_type"`
	HasProducer bool   `json:"has_producer"`
	Kinds       int    `json:"kinds"`
	LastRun     string `json:"last_run,omitempty"`
	LastHead    string `json:"last_head,omitempty"`
	Committed   int    `json:"committed"`
	Retagged    int    `json:"retagged"`
}

// State implements introspection.Introspectable.
func (d *Driver) State() any {
	d.mu.Lock()
	defer d.mu.Unlock()

	storeType := "store"
	if comp, ok := d.store.(introspection.Component); ok {
		storeType = comp.ComponentType()
	}

	state := DriverState{
		Running:     d.running,
		Current:     d.current,
		StoreType:   storeType,
		HasProducer: d.producer != nil,
		Kinds:       len(d.schema.Kinds()),
	}
	if d.last != nil {
		state.LastRun = d.last.Finished.Format(time.RFC3339)
		state.LastHead = d.last.Head.String()
		state.Committed = d.last.Count(StateCommitted)
		state.Retagged = d.last.Count(StateRetagged)
	}
	return state
}

// ComponentType implements introspection.Component.
func (d *Driver) ComponentType() string {
	return "driver"
}

var _ introspection.Introspectable = (*Driver)(nil)
var _ introspection.Component = (*Driver)(nil)
