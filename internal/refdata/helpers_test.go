package refdata

import (
	"io"
	"os"
	"testing"
)

func mustOpen(t *testing.T) io.Reader {
	t.Helper()
	f, err := os.Open("testdata/catalog.json")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}
