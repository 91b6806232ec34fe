package main

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// TFS is the filesystem engine. A mounted engine keeps the PCB (with FAT),
// the root directory and the open file table in memory; every mutation is
// pushed to disk before the operation returns. The engine is not reentrant:
// callers serialize requests.
type TFS struct {
	dev     *FileBlockDevice
	pcb     *PCB
	root    *Directory
	oft     *OpenFileTable
	mounted bool
}

func NewTFS() *TFS {
	return &TFS{}
}

func (t *TFS) IsMounted() bool {
	return t.mounted
}

// SplitPath validates an absolute path and returns its components. The bare
// root path "/" is not accepted here; listing handles it separately.
func SplitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || len(path) < 2 {
		return nil, ErrInvalidPath
	}
	comps := strings.Split(path[1:], "/")
	for _, c := range comps {
		if c == "" || strings.ContainsAny(c, " \t") {
			return nil, ErrInvalidPath
		}
	}
	return comps, nil
}

// Mkfs creates a fresh file system in the named container: block device,
// PCB+FAT with the reserved region pre-linked, and an empty root directory
// holding only its self entry.
func (t *TFS) Mkfs(name string, totalBytes int, blockSize int) error {
	if t.mounted {
		return ErrAlreadyMounted
	}
	if err := CreateBlockDevice(name, totalBytes, blockSize); err != nil {
		return err
	}
	dev, err := OpenBlockDevice(name, totalBytes, blockSize)
	if err != nil {
		return err
	}
	if t.dev != nil {
		t.dev.Close()
	}
	t.dev = dev

	pcb := NewPCB(blockSize, dev.BlockCount())
	rootBlock := pcb.RootDirBlock()
	// Link the blocks holding the PCB itself into one frozen chain.
	for i := 0; i < rootBlock; i++ {
		next := i + 1
		if i == rootBlock-1 {
			next = -1
		}
		if err := pcb.UpdateFAT(i, next); err != nil {
			return err
		}
	}
	t.pcb = pcb

	root := NewDirectory()
	if err := root.Add(NewFCB(RootName, true, rootBlock, FCBSize)); err != nil {
		return err
	}
	t.root = root
	if err := t.storeDir(root, rootBlock); err != nil {
		return err
	}
	// Keep one extra free block in reserve as the allocation pivot.
	if err := pcb.SetFirstFreeBlock(pcb.FirstFreeBlock() + 1); err != nil {
		return err
	}
	log.Infof("mkfs %s: %d blocks of %d bytes, root at block %d", name, pcb.NumBlocks(), blockSize, rootBlock)
	return t.Sync()
}

// Mount loads PCB, FAT and root directory from an existing container. The
// root's size is only knowable from its own first entry, so it is loaded in
// two passes.
func (t *TFS) Mount(name string, totalBytes int, blockSize int) error {
	if t.mounted {
		return ErrAlreadyMounted
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	dev, err := OpenExistingBlockDevice(name, blockSize)
	if err != nil {
		return err
	}
	t.dev = dev
	pcb, err := t.readPCB()
	if err != nil {
		return err
	}
	t.pcb = pcb

	boot, err := t.loadDir(pcb.RootDirBlock(), FCBSize)
	if err != nil {
		return err
	}
	self := boot.Get(RootName, true)
	if self == nil {
		return ErrInvalidDirBytes
	}
	root, err := t.loadDir(pcb.RootDirBlock(), int(self.Size))
	if err != nil {
		return err
	}
	t.root = root
	t.oft = NewOpenFileTable(totalBytes / blockSize)
	t.mounted = true
	log.Infof("mounted %s: %d entries in root", name, root.NumEntries()-1)
	return nil
}

// Unmount syncs metadata, refreshes the root's self entry, writes the root
// out and drops all in-memory state. The container stays open.
func (t *TFS) Unmount() error {
	if !t.mounted {
		return ErrNotMounted
	}
	if err := t.Sync(); err != nil {
		return err
	}
	if err := t.root.UpdateSize(RootName, t.root.ByteSize(), true); err != nil {
		return err
	}
	if err := t.storeDir(t.root, t.pcb.RootDirBlock()); err != nil {
		return err
	}
	t.pcb = nil
	t.root = nil
	t.oft = nil
	t.mounted = false
	return nil
}

// Exit unmounts if needed and releases the container file.
func (t *TFS) Exit() error {
	if t.mounted {
		if err := t.Unmount(); err != nil {
			return err
		}
	}
	if t.dev != nil {
		err := t.dev.Close()
		t.dev = nil
		return err
	}
	return nil
}

// Sync writes the in-memory PCB+FAT over the blocks they occupy on disk.
func (t *TFS) Sync() error {
	if t.pcb == nil {
		return ErrNotMounted
	}
	raw, err := t.pcb.Bytes()
	if err != nil {
		return err
	}
	bs := t.pcb.BlockSize()
	for i := 0; i < t.pcb.Blocks(); i++ {
		if err := t.dev.WriteBlock(i, raw[i*bs:(i+1)*bs]); err != nil {
			return err
		}
	}
	return nil
}

// readPCB reads the PCB blocks back and rebuilds the in-memory PCB. Block
// size and block count come from the device, not from the stored header.
func (t *TFS) readPCB() (*PCB, error) {
	if t.dev == nil {
		return nil, ErrNotMounted
	}
	bs := t.dev.BlockSize()
	numBlocks := t.dev.BlockCount()
	pcbBlocks := (PCBHeaderSize + 4*numBlocks + bs - 1) / bs
	raw := make([]byte, pcbBlocks*bs)
	for i := 0; i < pcbBlocks; i++ {
		if err := t.dev.ReadBlock(i, raw[i*bs:(i+1)*bs]); err != nil {
			return nil, err
		}
	}
	return PCBFromBytes(raw, bs, numBlocks)
}

// MemoryState renders the mounted PCB, FAT and open file table.
func (t *TFS) MemoryState() (string, error) {
	if !t.mounted {
		return "", ErrNotMounted
	}
	return t.pcb.String() + "\n" + t.oft.String(), nil
}

// DiskState renders the PCB and FAT as currently stored on disk.
func (t *TFS) DiskState() (string, error) {
	pcb, err := t.readPCB()
	if err != nil {
		return "", err
	}
	return pcb.String(), nil
}

// ---- directory tree traversal ----

// walk carries the state of one path descent: the directory that contains
// the terminal component, its on-disk entry (nil when the parent is the
// root), and the parent's own container for size propagation.
type walk struct {
	comps       []string
	parent      *Directory
	parentFCB   *FCB
	ancestor    *Directory
	ancestorFCB *FCB
}

func (w *walk) name() string {
	return w.comps[len(w.comps)-1]
}

// walkToParent descends from the in-memory root along the interior
// components. Every interior component must be a directory.
func (t *TFS) walkToParent(comps []string) (*walk, error) {
	w := &walk{comps: comps, parent: t.root}
	for i := 0; i < len(comps)-1; i++ {
		next := w.parent.Get(comps[i], true)
		if next == nil {
			log.Debugf("directory %s not in path", comps[i])
			return nil, ErrPathNotFound
		}
		if len(comps) > 2 {
			w.ancestor = w.parent
			w.ancestorFCB = w.parentFCB
		}
		w.parentFCB = next
		parent, err := t.loadDir(int(next.Location), int(next.Size))
		if err != nil {
			return nil, err
		}
		w.parent = parent
	}
	return w, nil
}

// storeParentChain persists a mutated parent and propagates its new byte
// size one level up. Directories never move, so only the immediate
// container's entry needs the update; deeper ancestors keep their sizes.
func (t *TFS) storeParentChain(w *walk) error {
	n := len(w.comps)
	if n == 1 {
		// The parent is the root itself; its size lives in its own
		// first entry.
		if err := t.root.UpdateSize(RootName, t.root.ByteSize(), true); err != nil {
			return err
		}
		return t.storeDir(t.root, t.pcb.RootDirBlock())
	}
	if err := t.storeDir(w.parent, int(w.parentFCB.Location)); err != nil {
		return err
	}
	if n == 2 {
		if err := t.root.UpdateSize(w.comps[0], w.parent.ByteSize(), true); err != nil {
			return err
		}
		return t.storeDir(t.root, t.pcb.RootDirBlock())
	}
	if err := w.ancestor.UpdateSize(w.comps[n-2], w.parent.ByteSize(), true); err != nil {
		return err
	}
	return t.storeDir(w.ancestor, int(w.ancestorFCB.Location))
}

func (t *TFS) loadDir(location int, size int) (*Directory, error) {
	buf, err := t.readBlocks(location)
	if err != nil {
		return nil, err
	}
	return DirectoryFromBytes(buf, size)
}

func (t *TFS) storeDir(dir *Directory, location int) error {
	raw, err := dir.ToBytes()
	if err != nil {
		return err
	}
	return t.writeBlocks(raw, location)
}

// ---- directory operations ----

// Mkdir creates an empty directory at the terminal path component.
func (t *TFS) Mkdir(path string) error {
	if !t.mounted {
		return ErrNotMounted
	}
	comps, err := SplitPath(path)
	if err != nil {
		return err
	}
	w, err := t.walkToParent(comps)
	if err != nil {
		return err
	}
	if w.parent.Contains(w.name(), true) {
		return ErrDuplicateEntry
	}
	location := t.pcb.FirstFreeBlock()
	if err := t.storeDir(NewDirectory(), location); err != nil {
		return err
	}
	if err := w.parent.Add(NewFCB(w.name(), true, location, 0)); err != nil {
		return err
	}
	return t.storeParentChain(w)
}

// Rmdir removes an empty directory. The root's own metadata is never
// removable.
func (t *TFS) Rmdir(path string) error {
	if !t.mounted {
		return ErrNotMounted
	}
	comps, err := SplitPath(path)
	if err != nil {
		return err
	}
	if len(comps) == 1 && strings.EqualFold(comps[0], RootName) {
		return ErrInvalidPath
	}
	w, err := t.walkToParent(comps)
	if err != nil {
		return err
	}
	target := w.parent.Get(w.name(), true)
	if target == nil {
		return ErrNotFound
	}
	if target.Size != 0 {
		return ErrDirNotEmpty
	}
	if err := t.pcb.ClearChain(int(target.Location)); err != nil {
		return err
	}
	if _, err := w.parent.Remove(*target); err != nil {
		return err
	}
	return t.storeParentChain(w)
}

// Ls renders the contents of the directory named by path; "/" lists the
// root.
func (t *TFS) Ls(path string) (string, error) {
	if !t.mounted {
		return "", ErrNotMounted
	}
	if path == "/" {
		return t.root.ListContents(), nil
	}
	comps, err := SplitPath(path)
	if err != nil {
		return "", err
	}
	w, err := t.walkToParent(comps)
	if err != nil {
		return "", err
	}
	target := w.parent.Get(w.name(), true)
	if target == nil {
		return "", ErrNotFound
	}
	dir, err := t.loadDir(int(target.Location), int(target.Size))
	if err != nil {
		return "", err
	}
	return dir.ListContents(), nil
}

// ---- file operations ----

// Create makes a file of the given size, zero-filled. Even an empty file
// reserves one block. Returns the starting block.
func (t *TFS) Create(path string, size int) (int, error) {
	if !t.mounted {
		return -1, ErrNotMounted
	}
	if size < 0 {
		return -1, ErrInvalidWrite
	}
	comps, err := SplitPath(path)
	if err != nil {
		return -1, err
	}
	w, err := t.walkToParent(comps)
	if err != nil {
		return -1, err
	}
	if w.parent.Contains(w.name(), false) {
		return -1, ErrDuplicateEntry
	}
	bs := t.pcb.BlockSize()
	writeSize := size
	if size < bs {
		writeSize = bs
	} else if size%bs != 0 {
		writeSize = (size/bs)*bs + bs
	}
	location := t.pcb.FirstFreeBlock()
	if err := t.writeBlocks(make([]byte, writeSize), location); err != nil {
		return -1, err
	}
	if err := w.parent.Add(NewFCB(w.name(), false, location, size)); err != nil {
		return -1, err
	}
	if err := t.storeParentChain(w); err != nil {
		return -1, err
	}
	return location, nil
}

// Rm removes a file, closing it first if it is open, and frees its chain.
func (t *TFS) Rm(path string) error {
	if !t.mounted {
		return ErrNotMounted
	}
	comps, err := SplitPath(path)
	if err != nil {
		return err
	}
	w, err := t.walkToParent(comps)
	if err != nil {
		return err
	}
	target := w.parent.Get(w.name(), false)
	if target == nil {
		return ErrNotFound
	}
	if fd := t.oft.Handle(*target); fd >= 0 {
		if err := t.oft.Remove(fd); err != nil {
			return err
		}
	}
	if err := t.pcb.ClearChain(int(target.Location)); err != nil {
		return err
	}
	if _, err := w.parent.Remove(*target); err != nil {
		return err
	}
	return t.storeParentChain(w)
}

// Append writes data at the end of the file, extending its chain as needed,
// and records the grown size in the parent entry and any open handle. The
// parent's own byte size does not change, so no propagation past it is
// needed.
func (t *TFS) Append(path string, data []byte) error {
	if !t.mounted {
		return ErrNotMounted
	}
	if len(data) == 0 {
		return ErrInvalidWrite
	}
	comps, err := SplitPath(path)
	if err != nil {
		return err
	}
	w, err := t.walkToParent(comps)
	if err != nil {
		return err
	}
	target := w.parent.Get(w.name(), false)
	if target == nil {
		return ErrNotFound
	}
	fd := t.oft.Handle(*target)
	if fd < 0 {
		fd, err = t.oft.Add(*target, 0)
		if err != nil {
			return err
		}
	}
	if err := t.oft.UpdateOffset(fd, int(target.Size)); err != nil {
		return err
	}
	if _, err := t.writeBytes(fd, data, len(data)); err != nil {
		return err
	}
	updated := *target
	updated.Size += int32(len(data))
	if err := t.oft.UpdateFCB(fd, updated); err != nil {
		return err
	}
	if err := w.parent.Update(updated); err != nil {
		return err
	}
	if len(comps) == 1 {
		return t.storeDir(t.root, t.pcb.RootDirBlock())
	}
	return t.storeDir(w.parent, int(w.parentFCB.Location))
}

// Print reads n bytes starting at position from the file and decodes them as
// UTF-8 text.
func (t *TFS) Print(path string, position int, n int) (string, error) {
	if !t.mounted {
		return "", ErrNotMounted
	}
	comps, err := SplitPath(path)
	if err != nil {
		return "", err
	}
	w, err := t.walkToParent(comps)
	if err != nil {
		return "", err
	}
	target := w.parent.Get(w.name(), false)
	if target == nil {
		return "", ErrNotFound
	}
	if position < 0 || position > int(target.Size) {
		return "", ErrInvalidRead
	}
	if n < 0 || int(target.Size)-position-n < 0 {
		return "", ErrInvalidRead
	}
	fd := t.oft.Handle(*target)
	if fd < 0 {
		fd, err = t.oft.Add(*target, 0)
		if err != nil {
			return "", err
		}
	}
	if err := t.oft.UpdateOffset(fd, position); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	read, err := t.readBytes(fd, buf, n)
	if err != nil {
		return "", err
	}
	return string(buf[:read]), nil
}

// Rename changes a file's name within its directory. A rename to a name the
// directory already holds fails, including renaming a file to its own name.
func (t *TFS) Rename(path string, newName string) error {
	if !t.mounted {
		return ErrNotMounted
	}
	comps, err := SplitPath(path)
	if err != nil {
		return err
	}
	w, err := t.walkToParent(comps)
	if err != nil {
		return err
	}
	if !w.parent.Contains(w.name(), false) {
		return ErrNotFound
	}
	if w.parent.Contains(newName, false) {
		return ErrDuplicateEntry
	}
	old := w.parent.Get(w.name(), false)
	fd := t.oft.Handle(*old)
	if err := w.parent.UpdateName(w.name(), newName, false); err != nil {
		return err
	}
	updated := w.parent.Get(newName, false)
	if fd >= 0 {
		if err := t.oft.UpdateFCB(fd, *updated); err != nil {
			return err
		}
	}
	if len(comps) == 1 {
		return t.storeDir(t.root, t.pcb.RootDirBlock())
	}
	return t.storeDir(w.parent, int(w.parentFCB.Location))
}

// Cp copies a non-empty source file to a new destination file of the same
// size: the whole source chain is read into memory and written verbatim over
// the freshly created destination chain.
func (t *TFS) Cp(srcPath string, dstPath string) error {
	if !t.mounted {
		return ErrNotMounted
	}
	srcComps, err := SplitPath(srcPath)
	if err != nil {
		return err
	}
	if _, err := SplitPath(dstPath); err != nil {
		return err
	}
	w, err := t.walkToParent(srcComps)
	if err != nil {
		return err
	}
	src := w.parent.Get(w.name(), false)
	if src == nil {
		return ErrNotFound
	}
	if src.Size == 0 {
		return ErrInvalidRead
	}
	dstLocation, err := t.Create(dstPath, int(src.Size))
	if err != nil {
		return err
	}
	srcBytes, err := t.readBlocks(int(src.Location))
	if err != nil {
		return err
	}
	return t.writeBlocks(srcBytes, dstLocation)
}

// ---- block chain I/O ----

// blocksNeeded is the chain length required for a payload of n bytes; an
// empty payload still takes one block.
func (t *TFS) blocksNeeded(n int) int {
	if n == 0 {
		return 1
	}
	bs := t.pcb.BlockSize()
	return (n + bs - 1) / bs
}

func blockSlice(buf []byte, pos int, bs int) []byte {
	if buf == nil || pos >= len(buf) {
		return nil
	}
	return buf[pos:Min(pos+bs, len(buf))]
}

// writeBlocks writes buf as a block chain starting at location. A free
// starting block begins a new chain; an occupied one means its existing
// chain is overwritten, shrinking or growing it to fit. FAT updates are
// synced to disk before returning.
func (t *TFS) writeBlocks(buf []byte, location int) error {
	if location < 0 || location >= t.pcb.NumBlocks() {
		return ErrInvalidWrite
	}
	bs := t.pcb.BlockSize()
	needed := t.blocksNeeded(len(buf))

	if t.pcb.FATEntry(location) == 0 {
		// Fresh chain.
		if needed == 1 {
			if err := t.dev.WriteBlock(location, buf); err != nil {
				return err
			}
			if err := t.pcb.UpdateFAT(location, -1); err != nil {
				return err
			}
		} else {
			queue, err := t.pcb.FreeBlocks(needed - 1)
			if err != nil {
				return err
			}
			writeLoc := location
			for pos := 0; pos < len(buf); pos += bs {
				if err := t.dev.WriteBlock(writeLoc, blockSlice(buf, pos, bs)); err != nil {
					return err
				}
				if len(queue) > 0 {
					if err := t.pcb.UpdateFAT(writeLoc, queue[0]); err != nil {
						return err
					}
					writeLoc = queue[0]
					queue = queue[1:]
				}
			}
			if err := t.pcb.UpdateFAT(writeLoc, -1); err != nil {
				return err
			}
		}
		if location == t.pcb.FirstFreeBlock() {
			// The pivot was consumed; nominate a new one.
			if next := t.pcb.OneFreeBlock(); next >= 0 {
				if err := t.pcb.SetFirstFreeBlock(next); err != nil {
					return err
				}
			}
		}
		return t.Sync()
	}

	// Overwrite an existing chain.
	cur := location
	pos := 0
	written := 0
	last := location
	for {
		next := t.pcb.FATEntry(cur)
		if written < needed {
			if err := t.dev.WriteBlock(cur, blockSlice(buf, pos, bs)); err != nil {
				return err
			}
			written++
			pos += bs
			last = cur
		} else {
			if err := t.pcb.UpdateFAT(cur, 0); err != nil {
				return err
			}
		}
		if next == -1 {
			break
		}
		cur = next
	}
	if written < needed {
		// The old chain was too short; extend it.
		queue, err := t.pcb.FreeBlocks(needed - written)
		if err != nil {
			return err
		}
		if err := t.pcb.UpdateFAT(last, queue[0]); err != nil {
			return err
		}
		for i, blk := range queue {
			if err := t.dev.WriteBlock(blk, blockSlice(buf, pos, bs)); err != nil {
				return err
			}
			pos += bs
			if i+1 < len(queue) {
				if err := t.pcb.UpdateFAT(blk, queue[i+1]); err != nil {
					return err
				}
			}
		}
		if err := t.pcb.UpdateFAT(queue[len(queue)-1], -1); err != nil {
			return err
		}
	} else if t.pcb.FATEntry(last) != -1 {
		// The chain shrank; terminate the kept prefix.
		if err := t.pcb.UpdateFAT(last, -1); err != nil {
			return err
		}
	}
	return t.Sync()
}

// readBlocks reads the whole chain entered at location into one buffer of
// blockSize times chain length bytes.
func (t *TFS) readBlocks(location int) ([]byte, error) {
	if location < 0 || location >= t.pcb.NumBlocks() {
		return nil, ErrInvalidRead
	}
	if t.pcb.FATEntry(location) == 0 {
		return nil, ErrInvalidRead
	}
	chain, err := t.pcb.WalkChain(location)
	if err != nil {
		return nil, err
	}
	bs := t.pcb.BlockSize()
	out := make([]byte, bs*len(chain))
	for i, blk := range chain {
		if err := t.dev.ReadBlock(blk, out[i*bs:(i+1)*bs]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ---- positional file I/O ----

// seekChain walks the file chain from its starting block to the block that
// contains offset, returning that block and the byte skip within it. An
// offset sitting exactly at the end of a block-aligned chain lands on the
// last block with a full-block skip, so a write there extends the chain.
func (t *TFS) seekChain(location int, offset int) (int, int) {
	bs := t.pcb.BlockSize()
	cur := location
	taken := 0
	for taken < offset/bs {
		next := t.pcb.FATEntry(cur)
		if next == -1 {
			break
		}
		cur = next
		taken++
	}
	return cur, offset - taken*bs
}

// readBytes copies up to length bytes from the open file fd into buf,
// starting at the handle's current offset. Returns the number of bytes
// copied, which falls short of length only at end of chain.
func (t *TFS) readBytes(fd int, buf []byte, length int) (int, error) {
	if length <= 0 || len(buf) < length {
		return -1, ErrInvalidRead
	}
	offset, err := t.oft.Offset(fd)
	if err != nil {
		return -1, err
	}
	location, err := t.oft.Location(fd)
	if err != nil {
		return -1, err
	}
	bs := t.pcb.BlockSize()
	readLoc, discard := t.seekChain(location, offset)

	tmp := make([]byte, bs)
	if err := t.dev.ReadBlock(readLoc, tmp); err != nil {
		return -1, err
	}
	copied := 0
	for copied < length && discard < bs {
		buf[copied] = tmp[discard]
		copied++
		discard++
	}
	for cur := t.pcb.FATEntry(readLoc); cur > 0 && copied < length; cur = t.pcb.FATEntry(cur) {
		if err := t.dev.ReadBlock(cur, tmp); err != nil {
			return -1, err
		}
		for inner := 0; inner < bs && copied < length; inner++ {
			buf[copied] = tmp[inner]
			copied++
		}
	}
	return copied, nil
}

// writeBytes writes length bytes from buf into the open file fd at its
// current offset. The tail of the file from the offset's block onward is
// read into memory, patched, and written back; writeBlocks grows the chain
// when the patched view runs past it.
func (t *TFS) writeBytes(fd int, buf []byte, length int) (int, error) {
	if length < 0 || len(buf) < length {
		return -1, ErrInvalidWrite
	}
	offset, err := t.oft.Offset(fd)
	if err != nil {
		return -1, err
	}
	location, err := t.oft.Location(fd)
	if err != nil {
		return -1, err
	}
	readLoc, skip := t.seekChain(location, offset)
	filePart, err := t.readBlocks(readLoc)
	if err != nil {
		return -1, err
	}
	if length > len(filePart)-skip {
		filePart = append(filePart, make([]byte, length+skip-len(filePart))...)
	}
	copy(filePart[skip:], buf[:length])
	log.Debugf("write %d bytes at offset %d (block %d skip %d): %s",
		length, offset, readLoc, skip, PreviewBuffer(buf, Min(length, 16)))
	if err := t.writeBlocks(filePart, readLoc); err != nil {
		return -1, err
	}
	return length, nil
}
