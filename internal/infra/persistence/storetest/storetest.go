// Package storetest runs the behavioral contract every persistence backend
// must satisfy. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"jaspynotes/pkg/domain"
)

// Factory builds a fresh empty store for one test.
type Factory func(t *testing.T) domain.Store

// Run exercises the full Store contract against stores built by factory.
func Run(t *testing.T, factory Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, factory) })
	t.Run("CreateAndList", func(t *testing.T) { testCreateAndList(t, factory) })
	t.Run("DisplayOrderContiguity", func(t *testing.T) { testContiguity(t, factory) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, factory) })
	t.Run("FieldUpdates", func(t *testing.T) { testFieldUpdates(t, factory) })
	t.Run("OwnershipMerged", func(t *testing.T) { testOwnership(t, factory) })
	t.Run("Subitems", func(t *testing.T) { testSubitems(t, factory) })
	t.Run("Reorder", func(t *testing.T) { testReorder(t, factory) })
	t.Run("ChecklistScenario", func(t *testing.T) { testChecklistScenario(t, factory) })
}

func newOwner(t *testing.T, store domain.Store, name string) int64 {
	t.Helper()
	id, err := store.CreateUser(context.Background(), name, "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return id
}

func addNote(t *testing.T, store domain.Store, ownerID int64, title string) int64 {
	t.Helper()
	id, err := store.CreateNote(context.Background(), ownerID, domain.NewNote{
		Title:        title,
		Type:         domain.NoteTypeFreetext,
		DisplayOrder: 1 << 20, // clamped to append
	})
	if err != nil {
		t.Fatalf("create note %s: %v", title, err)
	}
	return id
}

func listNotes(t *testing.T, store domain.Store, ownerID int64) []domain.Note {
	t.Helper()
	notes, err := store.ListNotes(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	return notes
}

func assertContiguous(t *testing.T, notes []domain.Note) {
	t.Helper()
	for i, n := range notes {
		if n.DisplayOrder != i {
			t.Fatalf("display order gap: position %d has order %d", i, n.DisplayOrder)
		}
	}
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	var notFound domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testUsers(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()

	id, err := store.CreateUser(ctx, "ada", "hash-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateUser(ctx, "ada", "hash-b"); err == nil {
		t.Fatal("duplicate username accepted")
	} else {
		var taken domain.ErrUsernameTaken
		if !errors.As(err, &taken) {
			t.Fatalf("expected ErrUsernameTaken, got %v", err)
		}
	}
	user, err := store.UserByName(ctx, "ada")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if user.UserID != id || user.PasswordHash != "hash-a" {
		t.Fatalf("unexpected user %+v", user)
	}
	if _, err := store.UserByName(ctx, "nobody"); err == nil {
		t.Fatal("missing user lookup succeeded")
	}
}

func testCreateAndList(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	owner := newOwner(t, store, "ada")

	noteID, err := store.CreateNote(ctx, owner, domain.NewNote{
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

	notes := listNotes(t, store, owner)
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	n := notes[0]
	if n.NoteID != noteID || n.Title != "Groceries" || n.Type != domain.NoteTypeSubitems || n.DisplayOrder != 0 {
		t.Fatalf("unexpected note %+v", n)
	}
	if len(n.Subitems) != 2 {
		t.Fatalf("expected 2 subitems, got %d", len(n.Subitems))
	}
	if n.Subitems[0].Text != "milk" || n.Subitems[0].IsChecked {
		t.Fatalf("unexpected first subitem %+v", n.Subitems[0])
	}
	if n.Subitems[1].Text != "bread" || !n.Subitems[1].IsChecked {
		t.Fatalf("unexpected second subitem %+v", n.Subitems[1])
	}
	if n.Subitems[0].SubitemID >= n.Subitems[1].SubitemID {
		t.Fatal("subitems not ordered by creation id")
	}
}

func testContiguity(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	owner := newOwner(t, store, "ada")

	var ids []int64
	for _, title := range []string{"a", "b", "c", "d"} {
		ids = append(ids, addNote(t, store, owner, title))
		assertContiguous(t, listNotes(t, store, owner))
	}

	// Remove from the middle, the head, and the tail.
	for _, victim := range []int64{ids[1], ids[0], ids[3]} {
		if err := store.DeleteNote(ctx, owner, victim); err != nil {
			t.Fatalf("delete %d: %v", victim, err)
		}
		assertContiguous(t, listNotes(t, store, owner))
	}
	remaining := listNotes(t, store, owner)
	if len(remaining) != 1 || remaining[0].NoteID != ids[2] {
		t.Fatalf("unexpected survivors %+v", remaining)
	}
}

func testDeleteCascades(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	owner := newOwner(t, store, "ada")

	first := addNote(t, store, owner, "first")
	second := addNote(t, store, owner, "second")
	if _, err := store.CreateSubitem(ctx, owner, first, "gone"); err != nil {
		t.Fatalf("create subitem: %v", err)
	}
	keptID, err := store.CreateSubitem(ctx, owner, second, "kept")
	if err != nil {
		t.Fatalf("create subitem: %v", err)
	}

	if err := store.DeleteNote(ctx, owner, first); err != nil {
		t.Fatalf("delete: %v", err)
	}
	notes := listNotes(t, store, owner)
	if len(notes) != 1 || notes[0].NoteID != second {
		t.Fatalf("unexpected notes %+v", notes)
	}
	if len(notes[0].Subitems) != 1 || notes[0].Subitems[0].SubitemID != keptID {
		t.Fatalf("sibling subitems affected: %+v", notes[0].Subitems)
	}
}

func testFieldUpdates(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	owner := newOwner(t, store, "ada")
	noteID := addNote(t, store, owner, "before")

	if err := store.UpdateNoteTitle(ctx, owner, noteID, "after"); err != nil {
		t.Fatalf("update title: %v", err)
	}
	if err := store.UpdateNoteBody(ctx, owner, noteID, "new body"); err != nil {
		t.Fatalf("update body: %v", err)
	}
	notes := listNotes(t, store, owner)
	if notes[0].Title != "after" || notes[0].Body != "new body" {
		t.Fatalf("updates not applied: %+v", notes[0])
	}
	assertNotFound(t, store.UpdateNoteTitle(ctx, owner, noteID+999, "x"))
}

func testOwnership(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	owner := newOwner(t, store, "ada")
	intruder := newOwner(t, store, "eve")
	noteID := addNote(t, store, owner, "private")
	subitemID, err := store.CreateSubitem(ctx, owner, noteID, "secret")
	if err != nil {
		t.Fatalf("create subitem: %v", err)
	}

	assertNotFound(t, store.UpdateNoteTitle(ctx, intruder, noteID, "stolen"))
	assertNotFound(t, store.UpdateNoteBody(ctx, intruder, noteID, "stolen"))
	assertNotFound(t, store.DeleteNote(ctx, intruder, noteID))
	if _, err := store.CreateSubitem(ctx, intruder, noteID, "planted"); err == nil {
		t.Fatal("foreign subitem creation succeeded")
	}
	assertNotFound(t, store.UpdateSubitemChecked(ctx, intruder, subitemID, true))
	assertNotFound(t, store.UpdateSubitemText(ctx, intruder, subitemID, "stolen"))
	assertNotFound(t, store.DeleteSubitem(ctx, intruder, subitemID))

	// Nothing leaked through.
	notes := listNotes(t, store, owner)
	if notes[0].Title != "private" || notes[0].Subitems[0].Text != "secret" {
		t.Fatalf("foreign mutation applied: %+v", notes[0])
	}
	if got := listNotes(t, store, intruder); len(got) != 0 {
		t.Fatalf("intruder sees notes: %+v", got)
	}
}

func testSubitems(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	owner := newOwner(t, store, "ada")
	noteID := addNote(t, store, owner, "list")

	itemID, err := store.CreateSubitem(ctx, owner, noteID, "first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.UpdateSubitemChecked(ctx, owner, itemID, true); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := store.UpdateSubitemText(ctx, owner, itemID, "renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	notes := listNotes(t, store, owner)
	item := notes[0].Subitems[0]
	if !item.IsChecked || item.Text != "renamed" || item.NoteID != noteID {
		t.Fatalf("unexpected subitem %+v", item)
	}
	if err := store.DeleteSubitem(ctx, owner, itemID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(listNotes(t, store, owner)[0].Subitems) != 0 {
		t.Fatal("subitem not deleted")
	}
	assertNotFound(t, store.DeleteSubitem(ctx, owner, itemID))
}

func testReorder(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	owner := newOwner(t, store, "ada")
	intruder := newOwner(t, store, "eve")
	a := addNote(t, store, owner, "a")
	b := addNote(t, store, owner, "b")
	c := addNote(t, store, owner, "c")
	foreign := addNote(t, store, intruder, "foreign")

	if err := store.ReorderNotes(ctx, owner, []int64{c, a, b}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	notes := listNotes(t, store, owner)
	want := []int64{c, a, b}
	for i, n := range notes {
		if n.NoteID != want[i] || n.DisplayOrder != i {
			t.Fatalf("round trip mismatch at %d: %+v", i, n)
		}
	}

	// A foreign, missing, duplicated or short id list aborts wholesale.
	for _, bad := range [][]int64{
		{c, a, foreign},
		{c, a, b + 999},
		{c, a, a},
		{c, a},
		{c, a, b, foreign},
	} {
		if err := store.ReorderNotes(ctx, owner, bad); err == nil {
			t.Fatalf("reorder %v accepted", bad)
		}
		after := listNotes(t, store, owner)
		for i, n := range after {
			if n.NoteID != want[i] {
				t.Fatalf("partial reorder applied by %v: %+v", bad, after)
			}
		}
	}
}

func testChecklistScenario(t *testing.T, factory Factory) {
	store := factory(t)
	ctx := context.Background()
	owner := newOwner(t, store, "ada")

	noteID, err := store.CreateNote(ctx, owner, domain.NewNote{
		Title: "Groceries",
		Type:  domain.NoteTypeSubitems,
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	itemID, err := store.CreateSubitem(ctx, owner, noteID, "milk")
	if err != nil {
		t.Fatalf("create subitem: %v", err)
	}
	if err := store.UpdateSubitemChecked(ctx, owner, itemID, true); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	notes := listNotes(t, store, owner)
	if len(notes) != 1 || len(notes[0].Subitems) != 1 {
		t.Fatalf("unexpected shape %+v", notes)
	}
	item := notes[0].Subitems[0]
	if item.Text != "milk" || !item.IsChecked {
		t.Fatalf("unexpected subitem %+v", item)
	}
}
