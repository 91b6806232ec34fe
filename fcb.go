package main

import (
	"bytes"
	"fmt"
	"strings"
)

// FCBSize is the fixed size of a serialized file control block.
const FCBSize = 24

// MaxNameLen is the widest file or directory name stored on disk; longer
// names are truncated at creation time.
const MaxNameLen = 15

// FCB is a file control block: one directory entry. Serialized layout is
// name, isDir flag, starting block, byte size, in that order.
type FCB struct {
	Name     [15]byte `struct:"[15]byte"`
	IsDir    byte     `struct:"uint8"`
	Location int32    `struct:"int32"`
	Size     int32    `struct:"int32"`
}

// NewFCB builds an entry. The name is stored as UTF-8 bytes, truncated to
// MaxNameLen and zero-padded on the right.
func NewFCB(name string, isDir bool, location int, size int) FCB {
	if location < 0 {
		panic(fmt.Sprintf("negative starting block %d", location))
	}
	if size < 0 {
		panic(fmt.Sprintf("negative entry size %d", size))
	}
	fcb := FCB{
		Location: int32(location),
		Size:     int32(size),
	}
	if isDir {
		fcb.IsDir = 1
	}
	copy(fcb.Name[:], name)
	return fcb
}

func (f FCB) Dir() bool {
	return f.IsDir == 1
}

// StrName decodes the stored name, dropping the zero padding.
func (f FCB) StrName() string {
	return string(bytes.TrimRight(f.Name[:], "\x00"))
}

// SameEntry reports whether f names the same directory entry as the given
// (name, isDir) pair. Names compare case-insensitively.
func (f FCB) SameEntry(name string, isDir bool) bool {
	return strings.EqualFold(f.StrName(), name) && f.Dir() == isDir
}

// Matches is SameEntry against another FCB.
func (f FCB) Matches(other FCB) bool {
	return f.SameEntry(other.StrName(), other.Dir())
}

func (f FCB) Bytes() ([]byte, error) {
	return BytesOf(&f)
}

func FCBFromBytes(data []byte) (FCB, error) {
	var fcb FCB
	if len(data) < FCBSize {
		return fcb, ErrInvalidDirBytes
	}
	if err := StructOf(data[:FCBSize], &fcb); err != nil {
		return fcb, err
	}
	return fcb, nil
}

func (f FCB) String() string {
	return fmt.Sprintf("Name: %s\nisDirectory: %d\nStarting Block (location): %d\nSize in bytes: %d",
		f.StrName(), f.IsDir, f.Location, f.Size)
}
