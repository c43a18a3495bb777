package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func storeFactories(t *testing.T) map[string]Store {
	t.Helper()
	filesystem, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("filesystem: %v", err)
	}
	return map[string]Store{
		"fs":     filesystem,
		"memory": NewMemory(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			opts := PutOptions{
				ContentType: "application/json",
				Metadata:    map[string]string{"owner": "1"},
			}
			info, err := store.Put(ctx, "snapshots/user-1/a.json", strings.NewReader(`{"ok":true}`), opts)
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Key != "snapshots/user-1/a.json" || info.Size != 11 || info.ContentType != "application/json" {
				t.Fatalf("unexpected info %+v", info)
			}

			got, body, err := store.Get(ctx, "snapshots/user-1/a.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, err := io.ReadAll(body)
			_ = body.Close()
			if err != nil || string(data) != `{"ok":true}` {
				t.Fatalf("unexpected payload %q %v", data, err)
			}
			if got.Metadata["owner"] != "1" {
				t.Fatalf("metadata lost: %+v", got)
			}

			if err := store.Delete(ctx, "snapshots/user-1/a.json"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, _, err := store.Get(ctx, "snapshots/user-1/a.json"); !errors.Is(err, ErrNotExist) {
				t.Fatalf("expected ErrNotExist, got %v", err)
			}
			if err := store.Delete(ctx, "snapshots/user-1/a.json"); !errors.Is(err, ErrNotExist) {
				t.Fatalf("double delete: %v", err)
			}
		})
	}
}

func TestStoreListByPrefix(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{
				"snapshots/user-1/b.json",
				"snapshots/user-1/a.json",
				"snapshots/user-2/c.json",
			} {
				if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
					t.Fatalf("put %s: %v", key, err)
				}
			}
			infos, err := store.List(ctx, "snapshots/user-1/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 2 || infos[0].Key != "snapshots/user-1/a.json" || infos[1].Key != "snapshots/user-1/b.json" {
				t.Fatalf("unexpected listing %+v", infos)
			}
			all, err := store.List(ctx, "")
			if err != nil || len(all) != 3 {
				t.Fatalf("full listing: %+v %v", all, err)
			}
		})
	}
}

func TestKeySanitization(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"", "  ", "../escape", "a/../../b", "/absolute"} {
				if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
					t.Fatalf("key %q accepted", key)
				}
			}
		})
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Setenv("JASPYNOTES_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	t.Setenv("JASPYNOTES_BLOB_DRIVER", "fs")
	t.Setenv("JASPYNOTES_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(context.Background())
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	t.Setenv("JASPYNOTES_BLOB_DRIVER", "carrier-pigeon")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
