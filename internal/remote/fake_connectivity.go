package remote

import "sync"

// FakeConnectivity is a manually driven Connectivity double letting tests
// control connectivity edges deterministically (SPEC_FULL.md section 8,
// "connectivity flap during a drain").
type FakeConnectivity struct {
	mu        sync.Mutex
	connected bool
	ch        chan bool
}

// NewFakeConnectivity returns a FakeConnectivity starting in the given state.
func NewFakeConnectivity(connected bool) *FakeConnectivity {
	return &FakeConnectivity{connected: connected, ch: make(chan bool, 16)}
}

func (f *FakeConnectivity) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected
}

func (f *FakeConnectivity) Changes() <-chan bool { return f.ch }

// Set transitions the fake to the given state, emitting on Changes() only
// if the state actually changed.
func (f *FakeConnectivity) Set(connected bool) {
	f.mu.Lock()

	changed := f.connected != connected
	f.connected = connected

	f.mu.Unlock()

	if changed {
		f.ch <- connected
	}
}
