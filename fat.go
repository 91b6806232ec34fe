package main

import (
	log "github.com/sirupsen/logrus"
)

// FAT entry values: 0 marks a free block, -1 the terminal block of a chain,
// and any other value the next block in the chain.
const (
	fatFree = int32(0)
	fatEOF  = int32(-1)
)

// UpdateFAT sets the entry for block index. Entries covering the PCB's own
// blocks are frozen once initialized; touching them again fails.
func (p *PCB) UpdateFAT(index int, value int) error {
	if index < 0 || index >= p.numBlocks {
		return ErrFatGuard
	}
	if value < -1 || value >= p.numBlocks {
		return ErrFatGuard
	}
	if index < int(p.rootDir) && p.table[index] != fatFree {
		log.Debugf("refused FAT update of reserved block %d", index)
		return ErrFatGuard
	}
	p.table[index] = int32(value)
	return nil
}

// FATEntry returns the entry for block index, or -2 if index is out of
// range.
func (p *PCB) FATEntry(index int) int {
	if index < 0 || index >= len(p.table) {
		return -2
	}
	return int(p.table[index])
}

// WalkChain returns the block chain entered at head, in order, ending at the
// block whose entry is -1. A chain longer than the partition means the FAT
// is corrupt.
func (p *PCB) WalkChain(head int) ([]int, error) {
	if head < 0 || head >= p.numBlocks {
		return nil, ErrInvalidRead
	}
	chain := make([]int, 0, 4)
	for cur := int32(head); ; cur = p.table[cur] {
		chain = append(chain, int(cur))
		if len(chain) > p.numBlocks {
			return nil, ErrInvalidRead
		}
		if p.table[cur] == fatEOF {
			return chain, nil
		}
		if p.table[cur] == fatFree {
			return nil, ErrInvalidRead
		}
	}
}

// ClearChain frees every block in the chain entered at head. Only data
// blocks may be cleared; head must sit at or past the root directory block.
func (p *PCB) ClearChain(head int) error {
	if head < int(p.rootDir) || head >= p.numBlocks {
		return ErrFatGuard
	}
	cur := head
	for {
		next := p.table[cur]
		if err := p.UpdateFAT(cur, 0); err != nil {
			return err
		}
		if next <= 0 {
			return nil
		}
		cur = int(next)
	}
}

// FreeBlocks finds n free blocks and returns them in ascending order as a
// FIFO allocation queue. The scan starts past the root directory block and
// never hands out the first-free-block pivot.
func (p *PCB) FreeBlocks(n int) ([]int, error) {
	free := make([]int, 0, n)
	for i := int(p.rootDir) + 1; len(free) < n && i < p.numBlocks; i++ {
		if p.table[i] == fatFree && i != int(p.firstFree) {
			free = append(free, i)
		}
	}
	if len(free) < n {
		return nil, ErrOutOfSpace
	}
	return free, nil
}

// OneFreeBlock returns any free block other than the current pivot, or -1.
func (p *PCB) OneFreeBlock() int {
	for i := int(p.rootDir) + 1; i < p.numBlocks; i++ {
		if p.table[i] == fatFree && i != int(p.firstFree) {
			return i
		}
	}
	return -1
}
