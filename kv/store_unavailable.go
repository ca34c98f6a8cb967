package kv

import (
	"context"
	"fmt"
)

// unavailableStore is returned when a driver fails to initialize; it keeps the
// driver identity while surfacing the construction error on every call.
type unavailableStore struct {
	driver Driver
	err    error
}

func newUnavailableStore(driver Driver, cause error) Store {
	return &unavailableStore{driver: driver, err: fmt.Errorf("%w: %s: %v", ErrUnavailable, driver, cause)}
}

func (e *unavailableStore) Driver() Driver              { return e.driver }
func (e *unavailableStore) Ready(context.Context) error { return e.err }
func (e *unavailableStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, e.err
}
func (e *unavailableStore) Set(context.Context, string, []byte) error { return e.err }
func (e *unavailableStore) Increment(context.Context, string, int64) (int64, error) {
	return 0, e.err
}
func (e *unavailableStore) Delete(context.Context, string) error           { return e.err }
func (e *unavailableStore) DeleteMany(context.Context, ...string) error    { return e.err }
func (e *unavailableStore) Keys(context.Context, string) ([]string, error) { return nil, e.err }
func (e *unavailableStore) Flush(context.Context) error                    { return e.err }
