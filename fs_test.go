package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testDiskSize = 65535
const testBlockSize = 128

func newTestFS(t *testing.T) *TFS {
	t.Helper()
	fs := NewTFS()
	disk := filepath.Join(t.TempDir(), "TFSDiskFile")
	require.NoError(t, fs.Mkfs(disk, testDiskSize, testBlockSize))
	require.NoError(t, fs.Mount(disk, testDiskSize, testBlockSize))
	t.Cleanup(func() { fs.Exit() })
	return fs
}

func TestSplitPath(t *testing.T) {
	r := require.New(t)

	comps, err := SplitPath("/a/b/c")
	r.NoError(err)
	r.Equal([]string{"a", "b", "c"}, comps)

	comps, err = SplitPath("/f")
	r.NoError(err)
	r.Equal([]string{"f"}, comps)

	for _, bad := range []string{"", "/", "a/b", "/a/", "//", "/a//b", "/a b"} {
		_, err := SplitPath(bad)
		r.Equal(ErrInvalidPath, err, "path %q", bad)
	}
}

func TestMkfsGeometry(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	// 65535/128 = 511 blocks; PCB+FAT take ceil(2060/128) = 17 blocks, the
	// root sits right after them, and one extra block past the root stays
	// reserved as the allocation pivot.
	r.Equal(511, fs.pcb.NumBlocks())
	r.Equal(128, fs.pcb.BlockSize())
	r.Equal(17, fs.pcb.RootDirBlock())
	r.Equal(19, fs.pcb.FirstFreeBlock())

	// Reserved region and root are marked; everything past the root free.
	for i := 0; i < 17; i++ {
		r.NotEqual(0, fs.pcb.FATEntry(i), "block %d", i)
	}
	r.Equal(-1, fs.pcb.FATEntry(16))
	r.Equal(-1, fs.pcb.FATEntry(17))
	r.Equal(0, fs.pcb.FATEntry(18))

	// The root holds only its self entry.
	r.Equal(1, fs.root.NumEntries())
	self := fs.root.Get(RootName, true)
	r.NotNil(self)
	r.Equal(int32(17), self.Location)
	r.Equal(int32(FCBSize), self.Size)

	state, err := fs.MemoryState()
	r.NoError(err)
	r.Contains(state, "Block Size: 128")
	r.Contains(state, "Number of Blocks: 511")
	r.Contains(state, "First Free Block after PCB: Block 19")
	r.Contains(state, "Block (location) of root directory: Block 17")
}

func TestBlocksNeeded(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	// An empty payload still takes one block; exact multiples take exactly
	// their quotient.
	r.Equal(1, fs.blocksNeeded(0))
	r.Equal(1, fs.blocksNeeded(1))
	r.Equal(1, fs.blocksNeeded(128))
	r.Equal(2, fs.blocksNeeded(129))
	r.Equal(2, fs.blocksNeeded(256))
	r.Equal(3, fs.blocksNeeded(257))
}

func TestMkdirTree(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	r.NoError(fs.Mkdir("/a"))
	r.NoError(fs.Mkdir("/a/b"))
	r.NoError(fs.Mkdir("/a/b/c"))

	listing, err := fs.Ls("/a/b")
	r.NoError(err)
	r.Contains(listing, "Name: c")
	r.Contains(listing, "Number of entries: 0")
	r.NotContains(listing, "Name: a")

	r.Equal(ErrDuplicateEntry, fs.Mkdir("/a"))
	r.Equal(ErrPathNotFound, fs.Mkdir("/missing/d"))

	// Sizes propagate: root's entry for a reflects a's one entry, the
	// root's self entry reflects the root's own two entries.
	r.Equal(int32(24), fs.root.Get("a", true).Size)
	r.Equal(int32(48), fs.root.Get(RootName, true).Size)
}

func TestCreateAppendPrint(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	loc, err := fs.Create("/f", 0)
	r.NoError(err)
	r.Equal(19, loc)
	// An empty file still reserves a block.
	r.Equal(-1, fs.pcb.FATEntry(loc))

	r.NoError(fs.Append("/f", []byte("hello")))
	text, err := fs.Print("/f", 0, 5)
	r.NoError(err)
	r.Equal("hello", text)
	r.Equal(int32(5), fs.root.Get("f", false).Size)

	r.NoError(fs.Append("/f", []byte(" world")))
	text, err = fs.Print("/f", 0, 11)
	r.NoError(err)
	r.Equal("hello world", text)
	text, err = fs.Print("/f", 6, 5)
	r.NoError(err)
	r.Equal("world", text)

	// Reads outside the file fail.
	_, err = fs.Print("/f", 0, 12)
	r.Equal(ErrInvalidRead, err)
	_, err = fs.Print("/f", 12, 1)
	r.Equal(ErrInvalidRead, err)
	_, err = fs.Print("/f", -1, 1)
	r.Equal(ErrInvalidRead, err)

	_, err = fs.Create("/f", 0)
	r.Equal(ErrDuplicateEntry, err)
	r.Equal(ErrNotFound, fs.Append("/missing", []byte("x")))
	r.Equal(ErrInvalidWrite, fs.Append("/f", nil))
}

func TestAppendAcrossBlocks(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	_, err := fs.Create("/big", 0)
	r.NoError(err)

	data := strings.Repeat("0123456789", 30) // 300 bytes, three blocks
	r.NoError(fs.Append("/big", []byte(data)))
	r.Equal(int32(300), fs.root.Get("big", false).Size)

	chain, err := fs.pcb.WalkChain(int(fs.root.Get("big", false).Location))
	r.NoError(err)
	r.Len(chain, 3)

	text, err := fs.Print("/big", 0, 300)
	r.NoError(err)
	r.Equal(data, text)
	text, err = fs.Print("/big", 250, 50)
	r.NoError(err)
	r.Equal(data[250:], text)
}

func TestAppendBlockAligned(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	_, err := fs.Create("/f", 0)
	r.NoError(err)

	// Fill exactly one block, then append past it: the chain grows.
	block := strings.Repeat("x", 128)
	r.NoError(fs.Append("/f", []byte(block)))
	r.NoError(fs.Append("/f", []byte("tail!")))
	r.Equal(int32(133), fs.root.Get("f", false).Size)

	chain, err := fs.pcb.WalkChain(int(fs.root.Get("f", false).Location))
	r.NoError(err)
	r.Len(chain, 2)

	text, err := fs.Print("/f", 0, 133)
	r.NoError(err)
	r.Equal(block+"tail!", text)
}

func TestFileInSubdirectory(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	r.NoError(fs.Mkdir("/docs"))
	r.NoError(fs.Mkdir("/docs/old"))
	_, err := fs.Create("/docs/old/notes", 0)
	r.NoError(err)
	r.NoError(fs.Append("/docs/old/notes", []byte("remember")))

	text, err := fs.Print("/docs/old/notes", 0, 8)
	r.NoError(err)
	r.Equal("remember", text)

	// The entry sizes along the path agree with the directories they
	// describe.
	docs := fs.root.Get("docs", true)
	r.Equal(int32(24), docs.Size)
	docsDir, err := fs.loadDir(int(docs.Location), int(docs.Size))
	r.NoError(err)
	old := docsDir.Get("old", true)
	r.Equal(int32(24), old.Size)
	oldDir, err := fs.loadDir(int(old.Location), int(old.Size))
	r.NoError(err)
	r.Equal(int32(8), oldDir.Get("notes", false).Size)
}

func TestRename(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	_, err := fs.Create("/x", 0)
	r.NoError(err)
	r.NoError(fs.Rename("/x", "y"))

	listing, err := fs.Ls("/")
	r.NoError(err)
	r.Contains(listing, "Name: y")
	r.NotContains(listing, "Name: x")

	// Renaming to a name the directory already holds fails; a file's own
	// name counts.
	r.Equal(ErrDuplicateEntry, fs.Rename("/y", "y"))
	r.Equal(-2, StatusOf("rename", fs.Rename("/y", "y")))
	r.Equal(ErrNotFound, fs.Rename("/x", "z"))

	// A rename reaches any open handle.
	r.NoError(fs.Append("/y", []byte("data")))
	r.NoError(fs.Rename("/y", "z"))
	fcb := fs.root.Get("z", false)
	r.NotNil(fcb)
	r.GreaterOrEqual(fs.oft.Handle(*fcb), 0)
}

func TestCp(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	_, err := fs.Create("/src", 0)
	r.NoError(err)
	r.NoError(fs.Append("/src", []byte("ABC")))

	r.NoError(fs.Cp("/src", "/dst"))
	text, err := fs.Print("/dst", 0, 3)
	r.NoError(err)
	r.Equal("ABC", text)

	listing, err := fs.Ls("/")
	r.NoError(err)
	r.Contains(listing, "Name: src")
	r.Contains(listing, "Name: dst")

	// Source and destination hold separate chains.
	r.NoError(fs.Append("/src", []byte("D")))
	text, err = fs.Print("/dst", 0, 3)
	r.NoError(err)
	r.Equal("ABC", text)

	r.Equal(-2, StatusOf("cp", fs.Cp("/missing", "/other")))
	r.Equal(-3, StatusOf("cp", fs.Cp("/src", "/dst")))

	// An empty source cannot be copied.
	_, err = fs.Create("/empty", 0)
	r.NoError(err)
	r.Equal(-1, StatusOf("cp", fs.Cp("/empty", "/copy")))
}

func TestCpLargeFile(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	data := strings.Repeat("abcdefgh", 64) // 512 bytes, four blocks
	_, err := fs.Create("/src", 0)
	r.NoError(err)
	r.NoError(fs.Append("/src", []byte(data)))

	r.NoError(fs.Cp("/src", "/dst"))
	text, err := fs.Print("/dst", 0, len(data))
	r.NoError(err)
	r.Equal(data, text)
}

func TestRmAndRmdir(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	r.NoError(fs.Mkdir("/d"))
	_, err := fs.Create("/d/f", 0)
	r.NoError(err)

	r.Equal(ErrDirNotEmpty, fs.Rmdir("/d"))
	r.Equal(-2, StatusOf("rmdir", fs.Rmdir("/d")))

	r.NoError(fs.Rm("/d/f"))
	r.NoError(fs.Rmdir("/d"))

	listing, err := fs.Ls("/")
	r.NoError(err)
	r.NotContains(listing, "Name: d")

	r.Equal(ErrPathNotFound, fs.Rm("/d/f"))
	r.Equal(ErrNotFound, fs.Rmdir("/d"))
	r.Equal(ErrInvalidPath, fs.Rmdir("/ROOT"))
}

func TestRmFreesChainAndClosesHandle(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	_, err := fs.Create("/f", 0)
	r.NoError(err)
	r.NoError(fs.Append("/f", []byte(strings.Repeat("z", 300))))

	fcb := fs.root.Get("f", false)
	chain, err := fs.pcb.WalkChain(int(fcb.Location))
	r.NoError(err)
	r.Len(chain, 3)
	r.GreaterOrEqual(fs.oft.Handle(*fcb), 0)

	r.NoError(fs.Rm("/f"))
	for _, blk := range chain {
		r.Equal(0, fs.pcb.FATEntry(blk), "block %d", blk)
	}
	r.True(fs.oft.IsEmpty())
}

func TestWriteReadBlocksRoundTrip(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	buf := []byte(strings.Repeat("payload!", 40)) // 320 bytes
	loc := fs.pcb.FirstFreeBlock()
	r.NoError(fs.writeBlocks(buf, loc))

	back, err := fs.readBlocks(loc)
	r.NoError(err)
	r.Equal(buf, back[:len(buf)])
	r.Equal(0, len(back)%testBlockSize)

	// Reading a free block is refused.
	_, err = fs.readBlocks(fs.pcb.OneFreeBlock())
	r.Equal(ErrInvalidRead, err)
	_, err = fs.readBlocks(600)
	r.Equal(ErrInvalidRead, err)
}

func TestWriteBlocksShrinkAndGrow(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	loc := fs.pcb.FirstFreeBlock()
	r.NoError(fs.writeBlocks(make([]byte, 384), loc))
	chain, err := fs.pcb.WalkChain(loc)
	r.NoError(err)
	r.Len(chain, 3)

	// Overwriting with a shorter payload frees the tail and terminates
	// the kept prefix.
	r.NoError(fs.writeBlocks([]byte("short"), loc))
	r.Equal(-1, fs.pcb.FATEntry(loc))
	r.Equal(0, fs.pcb.FATEntry(chain[1]))
	r.Equal(0, fs.pcb.FATEntry(chain[2]))

	// Overwriting with a longer payload extends the chain again.
	big := []byte(strings.Repeat("grow", 160)) // 640 bytes, five blocks
	r.NoError(fs.writeBlocks(big, loc))
	chain, err = fs.pcb.WalkChain(loc)
	r.NoError(err)
	r.Len(chain, 5)
	back, err := fs.readBlocks(loc)
	r.NoError(err)
	r.Equal(big, back[:len(big)])
}

func TestSyncReadPCBIdentity(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	r.NoError(fs.Mkdir("/a"))
	_, err := fs.Create("/f", 200)
	r.NoError(err)
	r.NoError(fs.Sync())

	disk, err := fs.readPCB()
	r.NoError(err)
	r.Equal(fs.pcb.FirstFreeBlock(), disk.FirstFreeBlock())
	r.Equal(fs.pcb.RootDirBlock(), disk.RootDirBlock())
	for i := 0; i < fs.pcb.NumBlocks(); i++ {
		r.Equal(fs.pcb.FATEntry(i), disk.FATEntry(i), "FAT[%d]", i)
	}
}

func TestPersistenceAcrossMount(t *testing.T) {
	r := require.New(t)
	fs := NewTFS()
	disk := filepath.Join(t.TempDir(), "TFSDiskFile")
	r.NoError(fs.Mkfs(disk, testDiskSize, testBlockSize))
	r.NoError(fs.Mount(disk, testDiskSize, testBlockSize))

	r.NoError(fs.Mkdir("/a"))
	_, err := fs.Create("/a/f", 0)
	r.NoError(err)
	r.NoError(fs.Append("/a/f", []byte("persist me")))
	r.NoError(fs.Unmount())
	r.False(fs.IsMounted())

	r.NoError(fs.Mount(disk, testDiskSize, testBlockSize))
	text, err := fs.Print("/a/f", 0, 10)
	r.NoError(err)
	r.Equal("persist me", text)

	listing, err := fs.Ls("/")
	r.NoError(err)
	r.Contains(listing, "Name: a")
	r.NoError(fs.Exit())
}

func TestMountStateGuards(t *testing.T) {
	r := require.New(t)
	fs := NewTFS()

	r.Equal(ErrNotMounted, fs.Mkdir("/a"))
	r.Equal(ErrNotMounted, fs.Unmount())
	_, err := fs.Create("/f", 0)
	r.Equal(ErrNotMounted, err)
	_, err = fs.Ls("/")
	r.Equal(ErrNotMounted, err)

	disk := filepath.Join(t.TempDir(), "TFSDiskFile")
	r.NoError(fs.Mkfs(disk, testDiskSize, testBlockSize))
	r.NoError(fs.Mount(disk, testDiskSize, testBlockSize))
	defer fs.Exit()

	r.Equal(ErrAlreadyMounted, fs.Mount(disk, testDiskSize, testBlockSize))
	r.Equal(ErrAlreadyMounted, fs.Mkfs(disk, testDiskSize, testBlockSize))
}

// Every live chain must terminate, every directory entry must agree with the
// directory it describes, and together with the PCB chain the live chains
// must account for every non-free block.
func TestTreeInvariants(t *testing.T) {
	r := require.New(t)
	fs := newTestFS(t)

	r.NoError(fs.Mkdir("/a"))
	r.NoError(fs.Mkdir("/a/b"))
	_, err := fs.Create("/a/b/f", 0)
	r.NoError(err)
	r.NoError(fs.Append("/a/b/f", []byte(strings.Repeat("q", 200))))
	_, err = fs.Create("/top", 0)
	r.NoError(err)

	reachable := fs.pcb.Blocks()

	var walkTree func(dir *Directory, selfLocation int)
	walkTree = func(dir *Directory, selfLocation int) {
		chain, err := fs.pcb.WalkChain(selfLocation)
		r.NoError(err)
		reachable += len(chain)
		for i := 0; i < dir.NumEntries(); i++ {
			e := dir.Entry(i)
			if e.SameEntry(RootName, true) {
				r.Equal(int32(fs.pcb.RootDirBlock()), e.Location)
				r.Equal(int32(dir.ByteSize()), e.Size)
				continue
			}
			if e.Dir() {
				child, err := fs.loadDir(int(e.Location), int(e.Size))
				r.NoError(err)
				r.Equal(int(e.Size), child.ByteSize())
				walkTree(child, int(e.Location))
			} else {
				chain, err := fs.pcb.WalkChain(int(e.Location))
				r.NoError(err)
				reachable += len(chain)
			}
		}
	}
	walkTree(fs.root, fs.pcb.RootDirBlock())

	free := 0
	for i := 0; i < fs.pcb.NumBlocks(); i++ {
		if fs.pcb.FATEntry(i) == 0 {
			free++
		}
	}
	r.Equal(fs.pcb.NumBlocks()-free, reachable)
}

func TestStatusOf(t *testing.T) {
	r := require.New(t)

	r.Equal(0, StatusOf("create", nil))
	r.Equal(-2, StatusOf("create", ErrDuplicateEntry))
	r.Equal(-2, StatusOf("rm", ErrNotFound))
	r.Equal(-2, StatusOf("append", ErrNotFound))
	r.Equal(-2, StatusOf("rmdir", ErrDirNotEmpty))
	r.Equal(-2, StatusOf("rename", ErrDuplicateEntry))
	r.Equal(-2, StatusOf("cp", ErrNotFound))
	r.Equal(-3, StatusOf("cp", ErrDuplicateEntry))
	r.Equal(-1, StatusOf("create", ErrNotMounted))
	r.Equal(-1, StatusOf("rmdir", ErrNotFound))
	r.Equal(-1, StatusOf("mkdir", ErrDuplicateEntry))
}
