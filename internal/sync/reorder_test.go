package sync_test

import (
	"context"
	"sync/atomic"
	"testing"

	notesync "jaspynotes/internal/sync"
)

func TestDragLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("a", "b", "c")
	controller := notesync.NewReorderController(f.engine)

	if _, ok := controller.Dragging(); ok {
		t.Fatal("drag reported before start")
	}

	controller.DragStart(ids[0])
	lifted, ok := controller.Dragging()
	if !ok || lifted.NoteID != ids[0] || lifted.Title != "a" {
		t.Fatalf("unexpected lifted note %+v %v", lifted, ok)
	}

	// Hovering over the last note drags the lifted one to its position.
	controller.DragOver(ids[2])
	assertOrder(t, f.engine.NoteIDs(), []int64{ids[1], ids[2], ids[0]})

	// The drop commits the final order server-side.
	if err := controller.DragEnd(context.Background()); err != nil {
		t.Fatalf("drag end: %v", err)
	}
	assertOrder(t, f.serverOrder(), []int64{ids[1], ids[2], ids[0]})
	if _, ok := controller.Dragging(); ok {
		t.Fatal("drag still active after drop")
	}
}

func TestDragOverNoops(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("a", "b", "c")
	controller := notesync.NewReorderController(f.engine)

	// No drag active.
	controller.DragOver(ids[2])
	assertOrder(t, f.engine.NoteIDs(), ids)

	controller.DragStart(ids[0])
	// Hovering over the lifted note itself.
	controller.DragOver(ids[0])
	assertOrder(t, f.engine.NoteIDs(), ids)
	// Hovering over an id that is not in the collection.
	controller.DragOver(99999)
	assertOrder(t, f.engine.NoteIDs(), ids)

	// A drop without movement still reconfirms the order; the server keeps it.
	if err := controller.DragEnd(context.Background()); err != nil {
		t.Fatalf("drag end: %v", err)
	}
	assertOrder(t, f.serverOrder(), ids)
}

func TestDragEndWithoutDrag(t *testing.T) {
	f := newEngineFixture(t)
	f.seedNotes("a")
	controller := notesync.NewReorderController(f.engine)

	before := atomic.LoadInt32(&f.transport.count)
	if err := controller.DragEnd(context.Background()); err != nil {
		t.Fatalf("idle drag end: %v", err)
	}
	if atomic.LoadInt32(&f.transport.count) != before {
		t.Fatal("idle drag end reached the wire")
	}
}

func TestDragEndDoesNotRevertLocally(t *testing.T) {
	f := newEngineFixture(t)
	ids := f.seedNotes("a", "b", "c")
	controller := notesync.NewReorderController(f.engine)

	controller.DragStart(ids[0])
	controller.DragOver(ids[2])
	moved := f.engine.NoteIDs()

	// The commit fails but the session is expired, so no refetch happens and
	// the local permutation sticks.
	f.token = "revoked"
	err := controller.DragEnd(context.Background())
	if err == nil {
		t.Fatal("expected commit failure")
	}
	assertOrder(t, f.engine.NoteIDs(), moved)
}
