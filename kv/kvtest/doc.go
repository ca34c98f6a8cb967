// Package kvtest provides a backend-agnostic contract suite for kv.Store
// implementations. Driver tests call RunStoreContract against a live store.
package kvtest
