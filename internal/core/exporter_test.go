package core

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"jaspynotes/internal/blob"
	"jaspynotes/internal/infra/persistence/memory"
	"jaspynotes/pkg/domain"
)

func TestSnapshotExporter(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	owner := newTestOwner(t, store)
	ctx := context.Background()

	noteID, err := service.CreateNote(ctx, owner, domain.NewNote{
		Title: "Groceries",
		Type:  domain.NoteTypeSubitems,
		Subitems: []domain.NewSubitem{
			{Text: "milk"},
			{Text: "bread", IsChecked: true},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	blobs := blob.NewMemory()
	taken := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	exporter := NewSnapshotExporter(service, blobs).
		WithExportClock(ClockFunc(func() time.Time { return taken }))

	key, err := exporter.Export(ctx, owner)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	wantPrefix := "snapshots/user-1/20260301T123000Z-"
	if !strings.HasPrefix(key, wantPrefix) || !strings.HasSuffix(key, ".json") {
		t.Fatalf("unexpected key %q", key)
	}

	info, body, err := blobs.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = body.Close() }()
	if info.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", info.ContentType)
	}
	if info.Metadata["owner"] != "1" || info.Metadata["notes"] != "1" {
		t.Fatalf("unexpected metadata %v", info.Metadata)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.FormatName != snapshotFormat || snapshot.OwnerID != owner || snapshot.NoteCount != 1 {
		t.Fatalf("unexpected snapshot header %+v", snapshot)
	}
	if len(snapshot.Notes) != 1 || snapshot.Notes[0].NoteID != noteID || len(snapshot.Notes[0].Subitems) != 2 {
		t.Fatalf("unexpected snapshot body %+v", snapshot.Notes)
	}
	if !snapshot.TakenAt.Equal(taken) {
		t.Fatalf("unexpected timestamp %v", snapshot.TakenAt)
	}

	// Consecutive exports never collide even within one clock tick.
	second, err := exporter.Export(ctx, owner)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if second == key {
		t.Fatal("snapshot keys collide")
	}
	infos, err := blobs.List(ctx, "snapshots/user-1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(infos))
	}
}
