package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"foodwaste/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "exports/abc/total_quantity.csv", bytes.NewReader([]byte("Total\n42\n")),
		core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"report": "total_quantity"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 9 || info.ETag == "" || info.Metadata["report"] != "total_quantity" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "exports/abc/total_quantity.csv", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	head, err := store.Head(ctx, "exports/abc/total_quantity.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	got, rc, err := store.Get(ctx, "exports/abc/total_quantity.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "Total\n42\n" || got.ETag != head.ETag || got.ContentType != "text/csv" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}

	list, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "exports/abc/total_quantity.csv" {
		t.Fatalf("unexpected list %+v", list)
	}

	ok, err := store.Delete(ctx, "exports/abc/total_quantity.csv")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "exports/abc/total_quantity.csv")
	if err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, err := store.Head(ctx, "exports/abc/total_quantity.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreServesPlainFiles(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if err := os.MkdirAll(filepath.Join(store.Root(), "input"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(store.Root(), "input", "providers_data.csv"), []byte("Provider_ID\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, rc, err := store.Get(ctx, "input/providers_data.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	if info.Size != 14 || info.ETag != "" {
		t.Fatalf("unexpected info %+v", info)
	}
	list, err := store.List(ctx, "")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %+v %v", list, err)
	}
}

func TestStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "  ", "/etc/passwd", "../escape", "a/../../b", "x.meta"} {
		if _, err := store.Put(ctx, key, bytes.NewReader(nil), core.PutOptions{}); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
	if _, err := store.PresignURL(ctx, "../x", core.SignedURLOptions{}); err == nil {
		t.Fatalf("expected presign to reject traversal")
	}
}

func TestPresignURL(t *testing.T) {
	store := newTempStore(t)
	u, err := store.PresignURL(context.Background(), "exports/a.json", core.SignedURLOptions{})
	if err != nil || u != "file://blob.local/exports/a.json" {
		t.Fatalf("unexpected url %q %v", u, err)
	}
	if _, err := store.PresignURL(context.Background(), "exports/a.json", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver")
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	{ // t.Chdir equivalent (testing.T.Chdir needs Go 1.24)
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(t.TempDir()); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Root() != DefaultRoot {
		t.Fatalf("unexpected root %s", store.Root())
	}
	if st, err := os.Stat(DefaultRoot); err != nil || !st.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}
