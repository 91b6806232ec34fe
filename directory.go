package main

import (
	"fmt"
	"strings"
)

// Directory is an ordered list of FCB entries held in memory. On disk a
// directory is the plain concatenation of its 24-byte entries; its byte size
// is tracked by the parent's entry for it (the root tracks its own size in
// its first entry, see RootName).
type Directory struct {
	entries []FCB
}

// RootName is the reserved name of the root directory's self entry.
const RootName = "ROOT"

func NewDirectory() *Directory {
	return &Directory{}
}

func (d *Directory) NumEntries() int {
	return len(d.entries)
}

func (d *Directory) ByteSize() int {
	return len(d.entries) * FCBSize
}

// Find returns the index of the entry matching (name, isDir), or -1.
func (d *Directory) Find(name string, isDir bool) int {
	for i, e := range d.entries {
		if e.SameEntry(name, isDir) {
			return i
		}
	}
	return -1
}

func (d *Directory) Contains(name string, isDir bool) bool {
	return d.Find(name, isDir) >= 0
}

// Get returns a copy of the entry matching (name, isDir), or nil.
func (d *Directory) Get(name string, isDir bool) *FCB {
	i := d.Find(name, isDir)
	if i < 0 {
		return nil
	}
	e := d.entries[i]
	return &e
}

// Entry returns a copy of the entry at index i.
func (d *Directory) Entry(i int) FCB {
	return d.entries[i]
}

// Add appends a new entry. Adding an entry that already exists (by name and
// kind) is an error; Update is the way to change an existing entry.
func (d *Directory) Add(entry FCB) error {
	if d.Contains(entry.StrName(), entry.Dir()) {
		return ErrDuplicateEntry
	}
	d.entries = append(d.entries, entry)
	return nil
}

// Update overwrites the existing entry matching updated's name and kind.
func (d *Directory) Update(updated FCB) error {
	i := d.Find(updated.StrName(), updated.Dir())
	if i < 0 {
		return ErrNotFound
	}
	d.entries[i] = updated
	return nil
}

func (d *Directory) UpdateName(original string, updated string, isDir bool) error {
	i := d.Find(original, isDir)
	if i < 0 {
		return ErrNotFound
	}
	var name [15]byte
	copy(name[:], updated)
	d.entries[i].Name = name
	return nil
}

func (d *Directory) UpdateLocation(name string, location int, isDir bool) error {
	i := d.Find(name, isDir)
	if i < 0 {
		return ErrNotFound
	}
	d.entries[i].Location = int32(location)
	return nil
}

func (d *Directory) UpdateSize(name string, size int, isDir bool) error {
	i := d.Find(name, isDir)
	if i < 0 {
		return ErrNotFound
	}
	d.entries[i].Size = int32(size)
	return nil
}

// Remove deletes the entry matching victim and returns it.
func (d *Directory) Remove(victim FCB) (FCB, error) {
	return d.RemoveByName(victim.StrName(), victim.Dir())
}

func (d *Directory) RemoveByName(name string, isDir bool) (FCB, error) {
	i := d.Find(name, isDir)
	if i < 0 {
		return FCB{}, ErrNotFound
	}
	removed := d.entries[i]
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	return removed, nil
}

// ToBytes serializes the directory as the concatenation of its entries, in
// list order. An empty directory serializes to nil.
func (d *Directory) ToBytes() ([]byte, error) {
	if len(d.entries) == 0 {
		return nil, nil
	}
	out := make([]byte, 0, d.ByteSize())
	for _, e := range d.entries {
		b, err := e.Bytes()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// DirectoryFromBytes rebuilds a directory of the given byte size from buf.
// buf may be longer than size (reads come back in block multiples); size
// must be a non-negative multiple of FCBSize.
func DirectoryFromBytes(buf []byte, size int) (*Directory, error) {
	if size < 0 || size%FCBSize != 0 {
		return nil, ErrInvalidDirBytes
	}
	if len(buf) < size {
		return nil, ErrInvalidDirBytes
	}
	dir := NewDirectory()
	for off := 0; off < size; off += FCBSize {
		fcb, err := FCBFromBytes(buf[off : off+FCBSize])
		if err != nil {
			return nil, err
		}
		if err := dir.Add(fcb); err != nil {
			return nil, err
		}
	}
	return dir, nil
}

// ListContents renders the directory the way ls shows it: one stanza per
// entry with its kind, name, and size (entry count for subdirectories).
func (d *Directory) ListContents() string {
	if len(d.entries) == 0 {
		return "Empty directory"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Directory with %d entries contains:\n", len(d.entries))
	for _, f := range d.entries {
		kind := "File"
		if f.Dir() {
			kind = "Directory"
		}
		fmt.Fprintf(&sb, "\n\tType (File or directory): %s\n\tName: %s\n", kind, f.StrName())
		if f.Dir() {
			fmt.Fprintf(&sb, "\tNumber of entries: %d\n\n", f.Size/FCBSize)
		} else {
			fmt.Fprintf(&sb, "\tSize: %d Bytes\n\n", f.Size)
		}
	}
	return sb.String()
}

func (d *Directory) String() string {
	var sb strings.Builder
	for _, f := range d.entries {
		sb.WriteString(f.String())
		sb.WriteString("\n\n")
	}
	return sb.String()
}
