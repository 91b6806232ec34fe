package main

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Open file table: tracks every open file with a copy of its FCB and the
// current byte offset. The slot index is the file descriptor handed back to
// callers; it stays stable until the file is closed.

type oftEntry struct {
	fcb    FCB
	offset int
}

type OpenFileTable struct {
	slots []*oftEntry
	count int
}

// NewOpenFileTable builds a table with a fixed number of slots; the capacity
// bounds how many files can be open at once.
func NewOpenFileTable(capacity int) *OpenFileTable {
	return &OpenFileTable{
		slots: make([]*oftEntry, capacity),
	}
}

func (t *OpenFileTable) Capacity() int {
	return len(t.slots)
}

func (t *OpenFileTable) IsFull() bool {
	return t.count >= len(t.slots)
}

func (t *OpenFileTable) IsEmpty() bool {
	return t.count == 0
}

// Add opens a file: installs a copy of fcb with the given offset into the
// first empty slot and returns the slot index as the file descriptor.
func (t *OpenFileTable) Add(fcb FCB, offset int) (int, error) {
	if offset < 0 || offset > int(fcb.Size) {
		return -1, ErrBadHandle
	}
	if t.IsFull() {
		return -1, ErrOftFull
	}
	for i := range t.slots {
		if t.slots[i] == nil {
			t.slots[i] = &oftEntry{fcb: fcb, offset: offset}
			t.count++
			log.Debugf("opened %q at fd %d", fcb.StrName(), i)
			return i, nil
		}
	}
	return -1, ErrOftFull
}

func (t *OpenFileTable) slot(fd int) (*oftEntry, error) {
	if fd < 0 || fd >= len(t.slots) || t.slots[fd] == nil {
		return nil, ErrBadHandle
	}
	return t.slots[fd], nil
}

func (t *OpenFileTable) IsOpen(fd int) bool {
	_, err := t.slot(fd)
	return err == nil
}

// FCB returns a copy of the control block stored for fd.
func (t *OpenFileTable) FCB(fd int) (FCB, error) {
	e, err := t.slot(fd)
	if err != nil {
		return FCB{}, err
	}
	return e.fcb, nil
}

func (t *OpenFileTable) Offset(fd int) (int, error) {
	e, err := t.slot(fd)
	if err != nil {
		return -1, err
	}
	return e.offset, nil
}

func (t *OpenFileTable) Location(fd int) (int, error) {
	e, err := t.slot(fd)
	if err != nil {
		return -1, err
	}
	return int(e.fcb.Location), nil
}

// Handle finds the descriptor of an open file by matching name, kind and
// starting block against fcb. Returns -1 when the file is not open.
func (t *OpenFileTable) Handle(fcb FCB) int {
	for i, e := range t.slots {
		if e == nil {
			continue
		}
		if e.fcb.Matches(fcb) && e.fcb.Location == fcb.Location {
			return i
		}
	}
	return -1
}

// UpdateOffset moves the file pointer for fd; the offset is bounded by the
// stored FCB's size.
func (t *OpenFileTable) UpdateOffset(fd int, offset int) error {
	e, err := t.slot(fd)
	if err != nil {
		return err
	}
	if offset < 0 || offset > int(e.fcb.Size) {
		return ErrBadHandle
	}
	e.offset = offset
	return nil
}

// UpdateFCB replaces the control block stored for fd; rename and size
// changes go through here so the open handle stays coherent.
func (t *OpenFileTable) UpdateFCB(fd int, fcb FCB) error {
	e, err := t.slot(fd)
	if err != nil {
		return err
	}
	e.fcb = fcb
	return nil
}

// Remove closes fd and clears its slot.
func (t *OpenFileTable) Remove(fd int) error {
	e, err := t.slot(fd)
	if err != nil {
		return err
	}
	log.Debugf("closed %q at fd %d", e.fcb.StrName(), fd)
	t.slots[fd] = nil
	t.count--
	return nil
}

func (t *OpenFileTable) String() string {
	var sb strings.Builder
	sb.WriteString("File Descriptor Table:\n")
	for i, e := range t.slots {
		if e == nil {
			fmt.Fprintf(&sb, "%d. Empty cell\n", i)
			continue
		}
		fmt.Fprintf(&sb, "%d. %s\nOffset within file: %d\n\n", i, e.fcb.String(), e.offset)
	}
	return sb.String()
}
