// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"fmt"

	"git.lukeshu.com/go/cbs/lib/textui"
)

// An Arena supplies the backing storage that a CBS's block-record
// pool carves records out of.  An Arena must not call back into the
// CBS that draws from it.
type Arena interface {
	// AllocSlab returns zeroed storage for n block records.  It
	// may fail with an error wrapping ErrOutOfMemory.
	AllocSlab(n int) ([]Block, error)
}

// HeapArena draws slabs from the ordinary Go heap; it never fails.
type HeapArena struct{}

var _ Arena = HeapArena{}

func (HeapArena) AllocSlab(n int) ([]Block, error) {
	return make([]Block, n), nil
}

// LimitedArena is a HeapArena that refuses to hand out more than
// Limit block records in total.  Useful for bounding an index's
// memory use, and for forcing allocation failures in tests.
type LimitedArena struct {
	Limit int

	allocated int
}

var _ Arena = (*LimitedArena)(nil)

func (a *LimitedArena) AllocSlab(n int) ([]Block, error) {
	if a.allocated+n > a.Limit {
		return nil, fmt.Errorf("arena limit of %d records reached: %w", a.Limit, ErrOutOfMemory)
	}
	a.allocated += n
	return make([]Block, n), nil
}

// blockPoolBatch is how many records a pool asks its Arena for at a
// time.
var blockPoolBatch = textui.Tunable(64)

// blockPool is a fixed-size slab allocator for Block records.  It
// keeps reclaimed records on an intrusive free list (threaded through
// Block.nextFree) and grows by whole slabs.
type blockPool struct {
	arena Arena
	batch int

	free  *Block
	inUse int
	slabs int
}

// newBlockPool eagerly allocates the first slab, so that a hopeless
// Arena is caught at Init time rather than on the first Insert.
func newBlockPool(arena Arena, batch int) (*blockPool, error) {
	p := &blockPool{
		arena: arena,
		batch: batch,
	}
	if err := p.grow(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *blockPool) grow() error {
	slab, err := p.arena.AllocSlab(p.batch)
	if err != nil {
		return err
	}
	for i := range slab {
		blk := &slab[i]
		blk.nextFree = p.free
		p.free = blk
	}
	p.slabs++
	return nil
}

func (p *blockPool) Alloc() (*Block, error) {
	if p.free == nil {
		if err := p.grow(); err != nil {
			return nil, err
		}
	}
	blk := p.free
	p.free = blk.nextFree
	blk.nextFree = nil
	p.inUse++
	return blk, nil
}

func (p *blockPool) Free(blk *Block) {
	*blk = Block{nextFree: p.free}
	p.free = blk
	p.inUse--
}
