// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cbs implements a coalescing block structure: an index over
// a potentially unbounded collection of disjoint [base,limit)
// address ranges that merges adjacent ranges on insert and splits
// ranges on partial delete.
//
// A CBS is the free-list index of a memory manager: pools insert
// regions they have released, and query for a region big enough to
// satisfy a new allocation (FindFirst, FindLast, FindLargest).
// Clients that want to react to large regions appearing and
// disappearing register Callbacks, which fire whenever a block
// crosses the configured minSize threshold.
//
// A CBS performs no synchronization; if blocks are inserted or
// deleted from multiple goroutines, that locking is the caller's to
// supply.
package cbs

import (
	"fmt"

	"git.lukeshu.com/go/cbs/lib/containers"
)

// A ChangeFn is notified that blk went from oldSize to newSize; see
// Callbacks for when each fires.  The CBS is locked against mutation
// for the duration of the call: a ChangeFn may use the simple
// queries (Block.Size, Block.Check, CBS.Check), but must not Insert,
// Delete, Find, or SetMinSize.
type ChangeFn func(cbs *CBS, blk *Block, oldSize, newSize Size)

// Callbacks reports blocks crossing the minSize threshold
// ("interesting" blocks).  Every field is optional; a nil field is a
// no-op.
type Callbacks struct {
	// OnNew fires when a block becomes interesting: either it was
	// created with at least minSize, or growth carried it across
	// minSize.  oldSize is 0 for a fresh block.
	OnNew ChangeFn

	// OnDelete fires when an interesting block stops being so:
	// destroyed outright (newSize 0), or shrunk below minSize.
	// A destroyed block is already invalidated (base == limit)
	// when OnDelete sees it; take the old extent from oldSize.
	OnDelete ChangeFn

	// OnGrow fires when an already-interesting block grew.
	OnGrow ChangeFn

	// OnShrink fires when an already-interesting block shrank but
	// is still interesting.
	OnShrink ChangeFn
}

// CBS is a coalescing block structure.  The zero value is not
// usable; call Init first, and Finish when done.
type CBS struct {
	owner     any
	callbacks Callbacks
	minSize   Size
	alignment Align
	fastFind  bool

	tree     containers.RBTree[containers.NativeOrdered[Addr], *Block]
	pool     *blockPool
	searches searchMeter

	// inCBS is the re-entrance lock; see enter/leave.
	inCBS    bool
	finished bool
}

// Init readies the CBS.
//
//   - arena supplies storage for block records (HeapArena if in
//     doubt).
//   - owner is an opaque client value, echoed by Describe and
//     readable via Owner; callbacks typically use it to find their
//     state.
//   - minSize is the threshold at or above which blocks are
//     "interesting" and worth a callback.
//   - alignment must be a power of two; every range endpoint later
//     handed to the CBS must be a multiple of it.
//   - fastFind enables the maxSize subtree augmentation, which the
//     Find operations require.
//
// Init fails only if the arena cannot supply the first slab of
// records.
func (cbs *CBS) Init(arena Arena, owner any, callbacks Callbacks, minSize Size, alignment Align, fastFind bool) error {
	if !alignment.isPowerOf2() {
		panic(fmt.Errorf("cbs: Init: alignment %d is not a power of two", alignment))
	}
	if cbs.pool != nil || cbs.finished {
		panic(fmt.Errorf("cbs: Init: already initialized"))
	}

	// Hold the structure entered for the whole of Init, so that
	// nothing can observe it half-built.
	cbs.inCBS = true
	defer cbs.leave()

	pool, err := newBlockPool(arena, blockPoolBatch)
	if err != nil {
		return fmt.Errorf("cbs: Init: %w", err)
	}

	cbs.owner = owner
	cbs.callbacks = callbacks
	cbs.minSize = minSize
	cbs.alignment = alignment
	cbs.fastFind = fastFind
	cbs.tree = containers.RBTree[containers.NativeOrdered[Addr], *Block]{
		KeyFn: blockKey,
	}
	if fastFind {
		cbs.tree.AttrFn = maxSizeAttr
	}
	cbs.pool = pool
	return nil
}

// Finish tears the CBS down, returning every block record to the
// pool.  Any use after Finish (including a second Finish) is a
// programming error and panics.
func (cbs *CBS) Finish() {
	cbs.enter()
	defer cbs.leave()

	_ = cbs.tree.Walk(func(node *containers.RBNode[*Block]) error {
		blk := node.Value
		blk.limit = blk.base
		cbs.pool.Free(blk)
		return nil
	})
	cbs.tree = containers.RBTree[containers.NativeOrdered[Addr], *Block]{}
	if n := cbs.pool.inUse; n != 0 {
		panic(fmt.Errorf("cbs: Finish: %d block records leaked", n))
	}
	cbs.pool = nil
	cbs.finished = true
}

// Owner returns the opaque client value given to Init.  Safe to call
// from callbacks.
func (cbs *CBS) Owner() any { return cbs.owner }

// MinSize returns the current interesting-size threshold.  Safe to
// call from callbacks.
func (cbs *CBS) MinSize() Size { return cbs.minSize }

// enter/leave bracket every public mutating operation.  Callbacks
// run with inCBS held, so a callback that tries to mutate the
// structure trips the re-entrance panic instead of corrupting the
// index.
func (cbs *CBS) enter() {
	switch {
	case cbs.finished:
		panic(fmt.Errorf("cbs: use of finished CBS"))
	case cbs.pool == nil:
		panic(fmt.Errorf("cbs: use of un-Init'd CBS"))
	case cbs.inCBS:
		panic(fmt.Errorf("cbs: re-entrant call; callbacks may only use the simple queries"))
	}
	cbs.inCBS = true
}

func (cbs *CBS) leave() {
	if !cbs.inCBS {
		panic(fmt.Errorf("cbs: leave without enter"))
	}
	cbs.inCBS = false
}

func (cbs *CBS) assertRange(base, limit Addr) {
	if base >= limit {
		panic(fmt.Errorf("cbs: empty or inverted range [%v,%v)", base, limit))
	}
	if !base.IsAligned(cbs.alignment) || !limit.IsAligned(cbs.alignment) {
		panic(fmt.Errorf("cbs: range [%v,%v) is not aligned to %d", base, limit, cbs.alignment))
	}
}

func blockKey(blk *Block) containers.NativeOrdered[Addr] {
	return containers.NativeOrdered[Addr]{Val: blk.base}
}

// searchContaining compares an address against a block per the
// index's comparison contract: an address inside [base,limit)
// compares equal to the block.
func searchContaining(addr Addr) func(*Block) int {
	return func(blk *Block) int {
		switch {
		case addr < blk.base:
			return -1
		case addr >= blk.limit:
			return 1
		default:
			return 0
		}
	}
}

// maxSizeAttr maintains Block.maxSize; it is the tree's AttrFn when
// fastFind is on.
func maxSizeAttr(node *containers.RBNode[*Block]) {
	max := node.Value.Size()
	if node.Left != nil && node.Left.Value.maxSize > max {
		max = node.Left.Value.maxSize
	}
	if node.Right != nil && node.Right.Value.maxSize > max {
		max = node.Right.Value.maxSize
	}
	node.Value.maxSize = max
}
