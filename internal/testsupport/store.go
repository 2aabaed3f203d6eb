package testsupport

import (
	"path/filepath"
	"testing"

	"hikfetch/internal/catalog"
)

// MustOpenCatalog opens a catalog.Store in a temp directory and registers cleanup.
func MustOpenCatalog(t testing.TB) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
