package main

import (
	"testing"

	"github.com/focusquest-dev/focusquest/pkg/store"
)

// The binary must link every driver the config documents, including the
// firestore driver that registers itself on import.
func TestAllConfigurableDriversRegistered(t *testing.T) {
	registered := make(map[string]bool)
	for _, d := range store.ListDrivers() {
		registered[d] = true
	}
	for _, want := range []string{"memory", "file", "redis", "firestore"} {
		if !registered[want] {
			t.Errorf("driver %q not registered (have %v)", want, store.ListDrivers())
		}
	}
}
