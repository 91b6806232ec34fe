package main

import (
	"fmt"
	"strings"
)

// PCBHeaderSize is the serialized size of the PCB header that precedes the
// FAT on disk: four int32 fields.
const PCBHeaderSize = 16

// diskPCB is the on-disk layout of the partition control block: a 16-byte
// header followed by the whole FAT, packed big-endian starting at block 0.
type diskPCB struct {
	BlockSize int32   `struct:"int32"`
	NumBlocks int32   `struct:"int32,sizeof=Table"`
	FirstFree int32   `struct:"int32"`
	RootDir   int32   `struct:"int32"`
	Table     []int32 `struct:"[]int32"`
}

// PCB is the partition control block held in memory while mounted. It owns
// the FAT and the allocation state (first free block, root directory block).
type PCB struct {
	blockSize int
	numBlocks int
	firstFree int32
	rootDir   int32
	table     []int32
}

// NewPCB builds a PCB for a fresh partition: all FAT entries free, first
// free block and root directory both defaulting to the block just past the
// PCB's own blocks.
func NewPCB(blockSize int, numBlocks int) *PCB {
	p := &PCB{
		blockSize: blockSize,
		numBlocks: numBlocks,
		table:     make([]int32, numBlocks),
	}
	p.firstFree = int32(p.Blocks())
	p.rootDir = p.firstFree
	return p
}

// Blocks returns how many blocks the serialized PCB+FAT occupies.
func (p *PCB) Blocks() int {
	pcbBytes := PCBHeaderSize + 4*p.numBlocks
	return (pcbBytes + p.blockSize - 1) / p.blockSize
}

func (p *PCB) BlockSize() int {
	return p.blockSize
}

func (p *PCB) NumBlocks() int {
	return p.numBlocks
}

// Size is the number of blocks the FAT describes.
func (p *PCB) Size() int {
	return len(p.table)
}

func (p *PCB) FirstFreeBlock() int {
	return int(p.firstFree)
}

func (p *PCB) SetFirstFreeBlock(b int) error {
	if b < 0 || b >= p.numBlocks {
		return ErrFatGuard
	}
	p.firstFree = int32(b)
	return nil
}

func (p *PCB) RootDirBlock() int {
	return int(p.rootDir)
}

func (p *PCB) SetRootDirBlock(b int) error {
	if b < 0 || b >= p.numBlocks {
		return ErrFatGuard
	}
	p.rootDir = int32(b)
	return nil
}

// Bytes serializes header plus FAT, padded to a block multiple.
func (p *PCB) Bytes() ([]byte, error) {
	d := &diskPCB{
		BlockSize: int32(p.blockSize),
		NumBlocks: int32(p.numBlocks),
		FirstFree: p.firstFree,
		RootDir:   p.rootDir,
		Table:     p.table,
	}
	raw, err := BytesOf(d)
	if err != nil {
		return nil, err
	}
	return Pad(raw, p.Blocks()*p.blockSize), nil
}

// PCBFromBytes rebuilds a PCB from the serialized form. The stored block
// size and block count are discarded in favor of the mount arguments; first
// free block and root directory block are taken from disk.
func PCBFromBytes(raw []byte, blockSize int, numBlocks int) (*PCB, error) {
	var d diskPCB
	if len(raw) < PCBHeaderSize+4*numBlocks {
		return nil, ErrInvalidDirBytes
	}
	if err := StructOf(raw[:PCBHeaderSize+4*numBlocks], &d); err != nil {
		return nil, err
	}
	p := NewPCB(blockSize, numBlocks)
	if err := p.SetFirstFreeBlock(int(d.FirstFree)); err != nil {
		return nil, err
	}
	if err := p.SetRootDirBlock(int(d.RootDir)); err != nil {
		return nil, err
	}
	copy(p.table, d.Table)
	return p, nil
}

func (p *PCB) String() string {
	var sb strings.Builder
	sb.WriteString("**Partition Control Block (PCB)**\n")
	fmt.Fprintf(&sb, "\nBlock Size: %d\nNumber of Blocks: %d", p.blockSize, p.numBlocks)
	fmt.Fprintf(&sb, "\nFirst Free Block after PCB: Block %d", p.firstFree)
	fmt.Fprintf(&sb, "\nBlock (location) of root directory: Block %d", p.rootDir)
	sb.WriteString("\nFile Access Table")
	for i, v := range p.table {
		fmt.Fprintf(&sb, "\n%d. %d", i, v)
	}
	return sb.String()
}
