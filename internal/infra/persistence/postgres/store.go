// Package postgres provides the Store contract on a Postgres database using
// the pgx driver through database/sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"jaspynotes/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/jaspynotes?sslmode=disable"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id       BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS notes (
	note_id       BIGSERIAL PRIMARY KEY,
	user_id       BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	title         TEXT NOT NULL,
	note_type     TEXT NOT NULL,
	body          TEXT NOT NULL DEFAULT '',
	display_order INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS subitems (
	subitem_id    BIGSERIAL PRIMARY KEY,
	note_id       BIGINT NOT NULL REFERENCES notes(note_id) ON DELETE CASCADE,
	text          TEXT NOT NULL,
	is_checked    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_notes_owner_order ON notes(user_id, display_order);
CREATE INDEX IF NOT EXISTS idx_subitems_note ON subitems(note_id);
`

// Store persists notes, subitems and users as relational rows in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN), verifies connectivity, and applies the schema.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// ListNotes returns the owner's notes in display order with nested subitems.
func (s *Store) ListNotes(ctx context.Context, ownerID int64) ([]domain.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT note_id, title, note_type, body, display_order
		 FROM notes WHERE user_id = $1 ORDER BY display_order`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notes := make([]domain.Note, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.NoteID, &n.Title, &n.Type, &n.Body, &n.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.OwnerID = ownerID
		n.Subitems = make([]domain.Subitem, 0)
		index[n.NoteID] = len(notes)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}

	itemRows, err := s.db.QueryContext(ctx,
		`SELECT s.subitem_id, s.note_id, s.text, s.is_checked
		 FROM subitems s JOIN notes n ON s.note_id = n.note_id
		 WHERE n.user_id = $1 ORDER BY s.subitem_id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select subitems: %w", err)
	}
	defer func() { _ = itemRows.Close() }()
	for itemRows.Next() {
		var it domain.Subitem
		if err := itemRows.Scan(&it.SubitemID, &it.NoteID, &it.Text, &it.IsChecked); err != nil {
			return nil, fmt.Errorf("scan subitem: %w", err)
		}
		if i, ok := index[it.NoteID]; ok {
			notes[i].Subitems = append(notes[i].Subitems, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subitems: %w", err)
	}
	return notes, nil
}

// CreateNote inserts the note row and its subitems in one transaction.
func (s *Store) CreateNote(ctx context.Context, ownerID int64, note domain.NewNote) (noteID int64, retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE user_id = $1`, ownerID).Scan(&count); err != nil {
		retErr = fmt.Errorf("count notes: %w", err)
		return 0, retErr
	}
	order := note.DisplayOrder
	if order < 0 || order > count {
		order = count
	}
	if order < count {
		if _, err := tx.ExecContext(ctx,
			`UPDATE notes SET display_order = display_order + 1
			 WHERE user_id = $1 AND display_order >= $2`, ownerID, order); err != nil {
			retErr = fmt.Errorf("shift orders: %w", err)
			return 0, retErr
		}
	}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO notes (user_id, title, note_type, body, display_order)
		 VALUES ($1, $2, $3, $4, $5) RETURNING note_id`,
		ownerID, note.Title, string(note.Type), note.Body, order).Scan(&noteID); err != nil {
		retErr = fmt.Errorf("insert note: %w", err)
		return 0, retErr
	}
	for _, item := range note.Subitems {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subitems (note_id, text, is_checked) VALUES ($1, $2, $3)`,
			noteID, item.Text, item.IsChecked); err != nil {
			retErr = fmt.Errorf("insert subitem: %w", err)
			return 0, retErr
		}
	}
	if err := tx.Commit(); err != nil {
		retErr = err
		return 0, retErr
	}
	return noteID, nil
}

// DeleteNote removes an owned note and renumbers the survivors in one transaction.
func (s *Store) DeleteNote(ctx context.Context, ownerID, noteID int64) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var removedOrder int
	err = tx.QueryRowContext(ctx,
		`DELETE FROM notes WHERE note_id = $1 AND user_id = $2 RETURNING display_order`,
		noteID, ownerID).Scan(&removedOrder)
	if errors.Is(err, sql.ErrNoRows) {
		retErr = domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
		return retErr
	}
	if err != nil {
		retErr = fmt.Errorf("delete note: %w", err)
		return retErr
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE notes SET display_order = display_order - 1
		 WHERE user_id = $1 AND display_order > $2`, ownerID, removedOrder); err != nil {
		retErr = fmt.Errorf("renumber notes: %w", err)
		return retErr
	}
	retErr = tx.Commit()
	return retErr
}

// UpdateNoteTitle sets the title through a single conditional update.
func (s *Store) UpdateNoteTitle(ctx context.Context, ownerID, noteID int64, title string) error {
	return s.updateNoteField(ctx, ownerID, noteID,
		`UPDATE notes SET title = $1 WHERE note_id = $2 AND user_id = $3`, title)
}

// UpdateNoteBody sets the body through a single conditional update.
func (s *Store) UpdateNoteBody(ctx context.Context, ownerID, noteID int64, body string) error {
	return s.updateNoteField(ctx, ownerID, noteID,
		`UPDATE notes SET body = $1 WHERE note_id = $2 AND user_id = $3`, body)
}

func (s *Store) updateNoteField(ctx context.Context, ownerID, noteID int64, query, value string) error {
	res, err := s.db.ExecContext(ctx, query, value, noteID, ownerID)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
	}
	return nil
}

// CreateSubitem appends an unchecked subitem to an owned note.
func (s *Store) CreateSubitem(ctx context.Context, ownerID, noteID int64, text string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO subitems (note_id, text, is_checked)
		 SELECT note_id, $1, FALSE FROM notes WHERE note_id = $2 AND user_id = $3
		 RETURNING subitem_id`,
		text, noteID, ownerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound{Entity: domain.EntityNote, ID: noteID}
	}
	if err != nil {
		return 0, fmt.Errorf("insert subitem: %w", err)
	}
	return id, nil
}

// UpdateSubitemChecked sets the checked state of an owned subitem.
func (s *Store) UpdateSubitemChecked(ctx context.Context, ownerID, subitemID int64, checked bool) error {
	return s.updateSubitemField(ctx, ownerID, subitemID,
		`UPDATE subitems SET is_checked = $1
		 WHERE subitem_id = $2
		 AND note_id IN (SELECT note_id FROM notes WHERE user_id = $3)`, checked)
}

// UpdateSubitemText sets the text of an owned subitem.
func (s *Store) UpdateSubitemText(ctx context.Context, ownerID, subitemID int64, text string) error {
	return s.updateSubitemField(ctx, ownerID, subitemID,
		`UPDATE subitems SET text = $1
		 WHERE subitem_id = $2
		 AND note_id IN (SELECT note_id FROM notes WHERE user_id = $3)`, text)
}

func (s *Store) updateSubitemField(ctx context.Context, ownerID, subitemID int64, query string, value any) error {
	res, err := s.db.ExecContext(ctx, query, value, subitemID, ownerID)
	if err != nil {
		return fmt.Errorf("update subitem: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound{Entity: domain.EntitySubitem, ID: subitemID}
	}
	return nil
}

// DeleteSubitem removes an owned subitem.
func (s *Store) DeleteSubitem(ctx context.Context, ownerID, subitemID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subitems WHERE subitem_id = $1
		 AND note_id IN (SELECT note_id FROM notes WHERE user_id = $2)`,
		subitemID, ownerID)
	if err != nil {
		return fmt.Errorf("delete subitem: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound{Entity: domain.EntitySubitem, ID: subitemID}
	}
	return nil
}

// ReorderNotes verifies the id set covers exactly the owner's notes, then
// assigns display order by list position, all within one transaction.
func (s *Store) ReorderNotes(ctx context.Context, ownerID int64, noteIDs []int64) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE user_id = $1`, ownerID).Scan(&total); err != nil {
		retErr = fmt.Errorf("count notes: %w", err)
		return retErr
	}
	seen := make(map[int64]bool, len(noteIDs))
	for _, id := range noteIDs {
		if seen[id] {
			retErr = domain.ErrNotFound{Entity: domain.EntityNote, ID: id}
			return retErr
		}
		seen[id] = true
	}
	if total != len(noteIDs) {
		retErr = domain.ErrNotFound{Entity: domain.EntityNote, ID: 0}
		return retErr
	}
	for pos, id := range noteIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE notes SET display_order = $1 WHERE note_id = $2 AND user_id = $3`,
			pos, id, ownerID)
		if err != nil {
			retErr = fmt.Errorf("assign order: %w", err)
			return retErr
		}
		affected, err := res.RowsAffected()
		if err != nil {
			retErr = fmt.Errorf("rows affected: %w", err)
			return retErr
		}
		if affected == 0 {
			retErr = domain.ErrNotFound{Entity: domain.EntityNote, ID: id}
			return retErr
		}
	}
	retErr = tx.Commit()
	return retErr
}

// CreateUser registers an account with a unique username.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = $1`, username).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check username: %w", err)
	}
	if exists > 0 {
		return 0, domain.ErrUsernameTaken{Username: username}
	}
	var id int64
	if err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING user_id`,
		username, passwordHash).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// UserByName fetches an account by exact username.
func (s *Store) UserByName(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, password_hash FROM users WHERE username = $1`,
		username).Scan(&u.UserID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound{Entity: domain.EntityUser, ID: 0}
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}
