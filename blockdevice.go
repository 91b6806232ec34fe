package main

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FileBlockDevice emulates a fixed-capacity disk partition on top of a
// single host file. The file is preallocated to its full length at creation
// time and addressed as blockCount blocks of blockSize bytes.
type FileBlockDevice struct {
	file       *os.File
	blockSize  int
	blockCount int
}

// CreateBlockDevice creates the container file, destroying any existing file
// of the same name, and preallocates totalBytes.
func CreateBlockDevice(path string, totalBytes int, blockSize int) error {
	if totalBytes < blockSize || blockSize <= 0 {
		return ErrIoBounds
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove old container")
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrap(err, "create container")
	}
	defer file.Close()
	if err := file.Truncate(int64(totalBytes)); err != nil {
		return errors.Wrap(err, "preallocate container")
	}
	log.Debugf("created container %s: %d bytes, block size %d", path, totalBytes, blockSize)
	return nil
}

// OpenBlockDevice opens an existing container and forces its length to
// totalBytes.
func OpenBlockDevice(path string, totalBytes int, blockSize int) (*FileBlockDevice, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "container does not exist")
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open container")
	}
	if err := file.Truncate(int64(totalBytes)); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "set container length")
	}
	return &FileBlockDevice{
		file:       file,
		blockSize:  blockSize,
		blockCount: totalBytes / blockSize,
	}, nil
}

// OpenExistingBlockDevice opens a container without changing its length; the
// block count is learned from the file size.
func OpenExistingBlockDevice(path string, blockSize int) (*FileBlockDevice, error) {
	size, err := GetFileSize(path)
	if err != nil {
		return nil, errors.Wrap(err, "container does not exist")
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open container")
	}
	return &FileBlockDevice{
		file:       file,
		blockSize:  blockSize,
		blockCount: int(size) / blockSize,
	}, nil
}

func (f *FileBlockDevice) BlockSize() int {
	return f.blockSize
}

func (f *FileBlockDevice) BlockCount() int {
	return f.blockCount
}

// ReadBlock fills buf with the contents of block blockno. buf must hold at
// least one block.
func (f *FileBlockDevice) ReadBlock(blockno int, buf []byte) error {
	if len(buf) < f.blockSize {
		return ErrIoBounds
	}
	if blockno < 0 || blockno >= f.blockCount {
		return ErrIoBounds
	}
	nbytes, err := f.file.ReadAt(buf[:f.blockSize], int64(blockno)*int64(f.blockSize))
	if err != nil {
		return errors.Wrapf(err, "read block %d", blockno)
	}
	if nbytes != f.blockSize {
		return errors.Errorf("short read at block %d", blockno)
	}
	return nil
}

// WriteBlock writes up to one block from buf at block blockno. A nil buf is
// a no-op (an empty block needs no bytes on disk).
func (f *FileBlockDevice) WriteBlock(blockno int, buf []byte) error {
	if buf == nil {
		return nil
	}
	if len(buf) > f.blockSize {
		return ErrIoBounds
	}
	if blockno < 0 || blockno >= f.blockCount {
		return ErrIoBounds
	}
	nbytes, err := f.file.WriteAt(buf, int64(blockno)*int64(f.blockSize))
	if err != nil {
		return errors.Wrapf(err, "write block %d", blockno)
	}
	if nbytes != len(buf) {
		return errors.Errorf("short write at block %d", blockno)
	}
	return nil
}

func (f *FileBlockDevice) Close() error {
	return f.file.Close()
}
