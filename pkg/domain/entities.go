// Package domain defines the persistent entities of the note collection and
// the contract every persistence backend fulfils.
package domain

// NoteType selects which payload of a note is active. It is fixed at creation.
type NoteType string

const (
	// NoteTypeFreetext marks a note whose payload is the Body field.
	NoteTypeFreetext NoteType = "freetext"
	// NoteTypeSubitems marks a checklist note whose payload is Subitems.
	NoteTypeSubitems NoteType = "subitems"
)

// Valid reports whether t is one of the known note types.
func (t NoteType) Valid() bool {
	return t == NoteTypeFreetext || t == NoteTypeSubitems
}

// Note is a top-level user-owned item, either free text or a checklist.
// DisplayOrder values among one owner's notes form a contiguous permutation of
// 0..n-1; the store re-establishes this after every insert, delete and reorder.
type Note struct {
	NoteID       int64     `json:"noteId"`
	OwnerID      int64     `json:"-"`
	Title        string    `json:"title"`
	Type         NoteType  `json:"noteType"`
	Body         string    `json:"body"`
	Subitems     []Subitem `json:"subitems"`
	DisplayOrder int       `json:"displayOrder"`
}

// Subitem is one checklist line belonging to a subitems-type note.
// SubitemID is zero for a client-local item not yet persisted.
type Subitem struct {
	SubitemID int64  `json:"subitemId,omitempty"`
	NoteID    int64  `json:"noteId"`
	Text      string `json:"text"`
	IsChecked bool   `json:"isChecked"`
}

// NewNote carries the client-supplied fields of a note creation. The server
// assigns NoteID and clamps DisplayOrder to the owner's current note count.
type NewNote struct {
	Title        string       `json:"title"`
	Type         NoteType     `json:"noteType"`
	Body         string       `json:"body"`
	Subitems     []NewSubitem `json:"subitems,omitempty"`
	DisplayOrder int          `json:"displayOrder"`
}

// NewSubitem carries the client-supplied fields of a subitem creation.
type NewSubitem struct {
	Text      string `json:"text"`
	IsChecked bool   `json:"isChecked"`
}

// User identifies an account owning notes.
type User struct {
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
