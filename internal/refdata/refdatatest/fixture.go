// Package refdatatest exposes the shared reference-data fixture to tests in
// other packages.
package refdatatest

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/noah-isme/atoll-quote/internal/refdata"
)

// Path returns the absolute path of the fixture catalogue.
func Path() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "testdata", "catalog.json")
}

// Store loads and validates the fixture catalogue.
func Store(tb testing.TB) *refdata.Store {
	tb.Helper()
	store, err := refdata.LoadFile(Path())
	if err != nil {
		tb.Fatalf("load refdata fixture: %v", err)
	}
	return store
}
