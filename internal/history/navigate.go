package history

import (
	"github.com/roach88/snapstore/internal/mutation"
	"github.com/roach88/snapstore/internal/record"
)

// Undo steps the log cursor back by one logical step, replaying entries
// backward until every group bracket it entered is closed again.
//
// Returns false once the cursor has reached the tail (-1). Undo is
// InvalidOperation while a group is open, or when a group reaches past the
// retained history; in both cases nothing changes.
func (h *History) Undo() (bool, error) {
	const op = "history.Undo"

	if h.openGroups > 0 {
		return false, record.NewError(record.ErrCodeInvalidOperation, op,
			"cannot undo with %d open groups", h.openGroups)
	}
	if h.cursor < 0 {
		return false, nil
	}
	if err := h.scanBackward(op); err != nil {
		return false, err
	}

	delta := 0
	for {
		// Leaving a Commit whose chain is at its first version takes the
		// entity out of scope.
		if h.cursor < len(h.log) {
			if c, ok := h.log[h.cursor].(*mutation.Commit); ok {
				if info := h.chains[c.EntityID]; info != nil && info.CurrentVersion == 0 {
					if err := h.detach(info); err != nil {
						return false, err
					}
				}
			}
		}

		h.cursor--
		if h.cursor >= 0 {
			entry := h.log[h.cursor]
			delta -= mutation.GroupDelta(entry)
			if err := h.undoEntry(entry); err != nil {
				return false, err
			}
		}
		if delta == 0 || h.cursor < 0 {
			break
		}
	}
	return h.cursor >= 0, nil
}

// UndoN calls Undo up to n times and returns the last result.
func (h *History) UndoN(n int) (bool, error) {
	ok := h.cursor >= 0
	for i := 0; i < n; i++ {
		var err error
		if ok, err = h.Undo(); err != nil || !ok {
			return ok, err
		}
	}
	return ok, nil
}

// Redo replays the next logical step forward.
//
// From the tail (-1) the first call only moves the cursor to 0 and reports
// true without touching any record. Returns false when nothing remains to
// replay.
func (h *History) Redo() (bool, error) {
	const op = "history.Redo"

	if h.openGroups > 0 {
		return false, record.NewError(record.ErrCodeInvalidOperation, op,
			"cannot redo with %d open groups", h.openGroups)
	}
	if len(h.log) == 0 {
		h.cursor = 0
		return false, nil
	}
	if h.cursor < 0 {
		h.cursor = 0
		return true, nil
	}
	if h.cursor >= len(h.log) {
		return false, nil
	}
	if err := h.scanForward(op); err != nil {
		return false, err
	}

	delta := 0
	for {
		entry := h.log[h.cursor]
		delta += mutation.GroupDelta(entry)
		if err := h.redoEntry(entry); err != nil {
			return false, err
		}
		h.cursor++
		if delta == 0 || h.cursor >= len(h.log) {
			break
		}
	}
	return true, nil
}

// RedoN calls Redo up to n times and returns the last result.
func (h *History) RedoN(n int) (bool, error) {
	ok := h.cursor < len(h.log)
	for i := 0; i < n; i++ {
		var err error
		if ok, err = h.Redo(); err != nil || !ok {
			return ok, err
		}
	}
	return ok, nil
}

func (h *History) undoEntry(entry mutation.Entry) error {
	m := mutation.AsMutate(entry)
	if m == nil {
		return nil
	}
	info := h.chains[m.EntityID]
	if info == nil {
		return nil
	}
	head := h.headOf(info)
	if head == nil {
		return nil
	}
	// Replaying backward shows the entry's snapshot, so the entity is in
	// scope unless its chain runs out.
	if err := h.attach(info, head); err != nil {
		return err
	}
	info.Undo(head)
	if info.CurrentVersion < 0 {
		return h.detach(info)
	}
	return nil
}

func (h *History) redoEntry(entry mutation.Entry) error {
	m := mutation.AsMutate(entry)
	if m == nil {
		return nil
	}
	info := h.chains[m.EntityID]
	if info == nil {
		return nil
	}
	head := h.headOf(info)
	if head == nil {
		return nil
	}
	switch entry.(type) {
	case *mutation.Commit:
		if err := h.attach(info, head); err != nil {
			return err
		}
		info.Redo(head)
	case *mutation.Deregister:
		info.Redo(head)
		if h.reg.Contains(head) {
			return h.detach(info)
		}
		head.SetID(record.NoID)
	}
	return nil
}

// scanBackward checks that an Undo from the cursor closes every bracket it
// enters before reaching the tail.
func (h *History) scanBackward(op string) error {
	delta := 0
	for c := h.cursor; ; {
		c--
		if c >= 0 {
			delta -= mutation.GroupDelta(h.log[c])
		}
		if delta == 0 || c < 0 {
			break
		}
	}
	if delta != 0 {
		return record.NewError(record.ErrCodeInvalidOperation, op,
			"group is larger than the retained history")
	}
	return nil
}

// scanForward checks that a Redo from the cursor finds the EndGroup of
// every bracket it enters.
func (h *History) scanForward(op string) error {
	delta := 0
	for c := h.cursor; c < len(h.log); {
		delta += mutation.GroupDelta(h.log[c])
		c++
		if delta == 0 {
			break
		}
	}
	if delta != 0 {
		return record.NewError(record.ErrCodeInvalidOperation, op,
			"group has no matching end in the log")
	}
	return nil
}
