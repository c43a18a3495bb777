package domain

import "context"

// Store is the persistence contract shared by the sqlite, postgres and memory
// backends. Every note and subitem mutation is ownership-scoped: the store
// applies it only when the target row belongs to ownerID and reports
// ErrNotFound otherwise, without distinguishing absence from foreign ownership.
//
// CreateNote and ReorderNotes are atomic: either the whole mutation is
// persisted or none of it. DeleteNote renumbers the surviving notes' display
// order within the same transaction so that per-owner orders stay a contiguous
// permutation of 0..n-1.
type Store interface {
	// ListNotes returns the owner's notes ordered by display order, each with
	// its subitems ordered by creation id.
	ListNotes(ctx context.Context, ownerID int64) ([]Note, error)

	// CreateNote inserts the note row and all provided subitems in one
	// transaction and returns the new note id. The requested display order is
	// clamped to the owner's current note count.
	CreateNote(ctx context.Context, ownerID int64, note NewNote) (int64, error)

	// DeleteNote removes the note if owned, cascading to its subitems, and
	// closes the display-order gap left behind.
	DeleteNote(ctx context.Context, ownerID, noteID int64) error

	UpdateNoteTitle(ctx context.Context, ownerID, noteID int64, title string) error
	UpdateNoteBody(ctx context.Context, ownerID, noteID int64, body string) error

	// CreateSubitem appends an unchecked subitem to an owned note and returns
	// the new subitem id.
	CreateSubitem(ctx context.Context, ownerID, noteID int64, text string) (int64, error)

	UpdateSubitemChecked(ctx context.Context, ownerID, subitemID int64, checked bool) error
	UpdateSubitemText(ctx context.Context, ownerID, subitemID int64, text string) error
	DeleteSubitem(ctx context.Context, ownerID, subitemID int64) error

	// ReorderNotes assigns display order by position in noteIDs. The whole
	// operation aborts if the id set is not exactly the owner's note set.
	ReorderNotes(ctx context.Context, ownerID int64, noteIDs []int64) error

	// CreateUser registers an account and returns its id.
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	// UserByName fetches an account by username.
	UserByName(ctx context.Context, username string) (User, error)

	Close() error
}
