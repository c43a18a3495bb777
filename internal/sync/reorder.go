package sync

import (
	"context"

	"jaspynotes/pkg/domain"
)

// ReorderController translates a drag gesture into engine calls: live local
// permutations while the pointer moves, one trailing order commit on drop.
// Reordering is optimistic and sticky; the controller never reverts the local
// order itself (the engine refetches if the commit fails).
type ReorderController struct {
	engine *Engine

	dragging   bool
	draggingID int64
}

// NewReorderController wraps the given engine.
func NewReorderController(engine *Engine) *ReorderController {
	return &ReorderController{engine: engine}
}

// DragStart records which note is being lifted. No state change; the id is
// kept only so the rendering layer can draw the drag overlay.
func (c *ReorderController) DragStart(noteID int64) {
	c.dragging = true
	c.draggingID = noteID
}

// Dragging returns the lifted note, if a drag is in progress.
func (c *ReorderController) Dragging() (domain.Note, bool) {
	if !c.dragging {
		return domain.Note{}, false
	}
	for _, n := range c.engine.Notes() {
		if n.NoteID == c.draggingID {
			return n, true
		}
	}
	return domain.Note{}, false
}

// DragOver moves the lifted note next to the hovered one. A no-op when no drag
// is active, when either id is unknown, or when the indices already match.
func (c *ReorderController) DragOver(overNoteID int64) {
	if !c.dragging || overNoteID == c.draggingID {
		return
	}
	fromIndex, toIndex := -1, -1
	for i, id := range c.engine.NoteIDs() {
		switch id {
		case c.draggingID:
			fromIndex = i
		case overNoteID:
			toIndex = i
		}
	}
	if fromIndex == -1 || toIndex == -1 || fromIndex == toIndex {
		return
	}
	c.engine.SwapNotesLocally(fromIndex, toIndex)
}

// DragEnd clears the lift and commits the final order to the server.
func (c *ReorderController) DragEnd(ctx context.Context) error {
	if !c.dragging {
		return nil
	}
	c.dragging = false
	c.draggingID = 0
	return c.engine.CommitOrder(ctx, c.engine.NoteIDs())
}
