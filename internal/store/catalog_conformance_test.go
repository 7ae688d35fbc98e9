package store_test

import (
	"path/filepath"
	"testing"

	"fstore/internal/store"
	"fstore/internal/store/storetest"
)

func TestSQLiteCatalogConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Catalog {
		st, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
		if err != nil {
			t.Fatalf("open test store: %v", err)
		}
		return st
	})
}
