package badgerstore

import (
	"context"
	"testing"

	"fstore/internal/store"
	"fstore/internal/store/storetest"
)

func TestBadgerCatalogConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Catalog {
		st, err := OpenInMemory()
		if err != nil {
			t.Fatalf("open in-memory badger: %v", err)
		}
		return st
	})
}

func TestBadgerCatalogPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := storetest.Record("alice", "kept.txt", "h-kept")
	if err := st.CreateFile(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, err := st.GetFileByToken(ctx, rec.PublicToken)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.Filename != "kept.txt" {
		t.Fatalf("unexpected record after reopen: %#v", got)
	}
}
