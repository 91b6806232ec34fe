package main

// FsErr is a coded filesystem error. The code is what the shell boundary
// translates into the legacy integer status protocol; the message is for
// humans and logs.
type FsErr struct {
	Code int
	Msg  string
}

func (e FsErr) Error() string {
	return e.Msg
}

func (e FsErr) GetCode() int {
	return e.Code
}

func NewFsErr(code int, msg string) FsErr {
	return FsErr{
		Code: code,
		Msg:  msg,
	}
}

var ErrInvalidPath = NewFsErr(1, "invalid path")
var ErrNotMounted = NewFsErr(2, "file system not mounted")
var ErrAlreadyMounted = NewFsErr(3, "file system already mounted")
var ErrPathNotFound = NewFsErr(4, "directory not in path")
var ErrNotFound = NewFsErr(5, "entry not found in directory")
var ErrDuplicateEntry = NewFsErr(6, "directory already contains entry")
var ErrDirNotEmpty = NewFsErr(7, "directory not empty")
var ErrOutOfSpace = NewFsErr(8, "insufficient space available on disk")
var ErrFatGuard = NewFsErr(9, "illegal FAT modification")
var ErrBadHandle = NewFsErr(10, "file descriptor invalid or not open")
var ErrOftFull = NewFsErr(11, "open file table full")
var ErrInvalidRead = NewFsErr(12, "invalid read")
var ErrInvalidWrite = NewFsErr(13, "invalid write")
var ErrIo = NewFsErr(14, "disk I/O failure")
var ErrIoBounds = NewFsErr(15, "block number not in file system")
var ErrInvalidDirBytes = NewFsErr(16, "invalid directory bytes")

// StatusOf maps an engine error to the integer wire protocol consumed by the
// shell: 0 success, -1 general failure, -2 the per-operation domain signal,
// -3 for cp's destination-exists case.
func StatusOf(op string, err error) int {
	if err == nil {
		return 0
	}
	switch op {
	case "create", "rename":
		if err == ErrDuplicateEntry {
			return -2
		}
	case "rm", "append":
		if err == ErrNotFound {
			return -2
		}
	case "rmdir":
		if err == ErrDirNotEmpty {
			return -2
		}
	case "cp":
		if err == ErrNotFound {
			return -2
		}
		if err == ErrDuplicateEntry {
			return -3
		}
	}
	return -1
}
