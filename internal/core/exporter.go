package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"jaspynotes/internal/blob"
	"jaspynotes/pkg/domain"
)

// Snapshot is the serialized form of one owner's full note collection.
type Snapshot struct {
	OwnerID    int64         `json:"ownerId"`
	TakenAt    time.Time     `json:"takenAt"`
	NoteCount  int           `json:"noteCount"`
	Notes      []domain.Note `json:"notes"`
	FormatName string        `json:"format"`
}

const snapshotFormat = "jaspynotes/snapshot.v1"

// SnapshotExporter writes point-in-time JSON exports of a user's notes to a
// blob store, giving operators a backup path independent of the database.
type SnapshotExporter struct {
	service *Service
	blobs   blob.Store
	clock   Clock
}

// NewSnapshotExporter constructs an exporter over the given service and blob store.
func NewSnapshotExporter(service *Service, blobs blob.Store) *SnapshotExporter {
	return &SnapshotExporter{service: service, blobs: blobs, clock: ClockFunc(time.Now)}
}

// WithExportClock overrides the exporter time source, for tests.
func (e *SnapshotExporter) WithExportClock(c Clock) *SnapshotExporter {
	if c != nil {
		e.clock = c
	}
	return e
}

// Export serializes the owner's notes in display order and stores them under
// snapshots/user-<id>/<timestamp>-<uuid>.json, returning the blob key.
func (e *SnapshotExporter) Export(ctx context.Context, ownerID int64) (string, error) {
	notes, err := e.service.ListNotes(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("list notes: %w", err)
	}
	now := e.clock.Now().UTC()
	snapshot := Snapshot{
		OwnerID:    ownerID,
		TakenAt:    now,
		NoteCount:  len(notes),
		Notes:      notes,
		FormatName: snapshotFormat,
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := fmt.Sprintf("snapshots/user-%d/%s-%s.json",
		ownerID, now.Format("20060102T150405Z"), uuid.NewString())
	if _, err := e.blobs.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"owner": strconv.FormatInt(ownerID, 10),
			"notes": strconv.Itoa(len(notes)),
		},
	}); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return key, nil
}
