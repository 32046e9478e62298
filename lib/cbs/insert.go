// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"fmt"
)

// blockNew, blockDelete, blockGrow, and blockShrink are the four
// block change operators.  They do the record management and the
// client-notification dispatch; every mutation of a block's
// [base,limit) goes through exactly one of them.

func (cbs *CBS) blockNew(base, limit Addr) error {
	blk, err := cbs.pool.Alloc()
	if err != nil {
		return fmt.Errorf("cbs: new block [%v,%v): %w", base, limit, err)
	}
	blk.base = base
	blk.limit = limit
	blk.maxSize = blk.Size()

	cbs.searches.acc(cbs.tree.Len())
	cbs.tree.Insert(blk)

	if newSize := blk.Size(); cbs.callbacks.OnNew != nil && newSize >= cbs.minSize {
		cbs.callbacks.OnNew(cbs, blk, 0, newSize)
	}
	return nil
}

func (cbs *CBS) blockDelete(blk *Block) {
	oldSize := blk.Size()

	cbs.searches.acc(cbs.tree.Len())
	cbs.tree.Delete(blockKey(blk))

	// Invalidate before notifying; the callback sees a dead block
	// and must take the old extent from its arguments.
	blk.limit = blk.base

	if cbs.callbacks.OnDelete != nil && oldSize >= cbs.minSize {
		cbs.callbacks.OnDelete(cbs, blk, oldSize, 0)
	}
	cbs.pool.Free(blk)
}

func (cbs *CBS) blockGrow(blk *Block, oldSize Size) {
	newSize := blk.Size()
	if newSize <= oldSize {
		panic(fmt.Errorf("cbs: blockGrow: %d -> %d is not growth", oldSize, newSize))
	}
	if cbs.fastFind {
		cbs.tree.Refresh(blockKey(blk))
	}

	switch {
	case cbs.callbacks.OnNew != nil && oldSize < cbs.minSize && newSize >= cbs.minSize:
		cbs.callbacks.OnNew(cbs, blk, oldSize, newSize)
	case cbs.callbacks.OnGrow != nil && oldSize >= cbs.minSize:
		cbs.callbacks.OnGrow(cbs, blk, oldSize, newSize)
	}
}

func (cbs *CBS) blockShrink(blk *Block, oldSize Size) {
	newSize := blk.Size()
	if newSize >= oldSize {
		panic(fmt.Errorf("cbs: blockShrink: %d -> %d is not shrinkage", oldSize, newSize))
	}
	if cbs.fastFind {
		cbs.tree.Refresh(blockKey(blk))
	}

	switch {
	case cbs.callbacks.OnDelete != nil && oldSize >= cbs.minSize && newSize < cbs.minSize:
		cbs.callbacks.OnDelete(cbs, blk, oldSize, newSize)
	case cbs.callbacks.OnShrink != nil && newSize >= cbs.minSize:
		cbs.callbacks.OnShrink(cbs, blk, oldSize, newSize)
	}
}

func (cbs *CBS) insertIntoTree(base, limit Addr) (Addr, Addr, error) {
	cbs.searches.acc(cbs.tree.Len())
	exact, prevNode, nextNode := cbs.tree.SearchAround(searchContaining(base))
	if exact != nil {
		return 0, 0, fmt.Errorf("cbs: insert [%v,%v): %w: %v", base, limit, ErrOverlap, exact.Value)
	}

	var left, right *Block
	var leftMerge, rightMerge bool
	if prevNode != nil {
		left = prevNode.Value
		// left.limit <= base, by the comparison contract.
		leftMerge = left.limit == base
	}
	if nextNode != nil {
		right = nextNode.Value
		if limit > right.base {
			return 0, 0, fmt.Errorf("cbs: insert [%v,%v): %w: %v", base, limit, ErrOverlap, right)
		}
		rightMerge = right.base == limit
	}

	newBase, newLimit := base, limit
	if leftMerge {
		newBase = left.base
	}
	if rightMerge {
		newLimit = right.limit
	}

	switch {
	case leftMerge && rightMerge:
		// Both neighbors and the inserted range coalesce into
		// one interval.  Retain the larger neighbor (ties go
		// left) and destroy the smaller, so that the bigger
		// of the two keeps its identity across the merge and
		// the client sees the fewest state transitions.
		oldLeftSize := left.Size()
		oldRightSize := right.Size()
		if oldLeftSize >= oldRightSize {
			rightLimit := right.limit
			cbs.blockDelete(right)
			left.limit = rightLimit
			cbs.blockGrow(left, oldLeftSize)
		} else {
			leftBase := left.base
			cbs.blockDelete(left)
			right.base = leftBase
			cbs.blockGrow(right, oldRightSize)
		}
	case leftMerge:
		oldSize := left.Size()
		left.limit = limit
		cbs.blockGrow(left, oldSize)
	case rightMerge:
		oldSize := right.Size()
		right.base = base
		cbs.blockGrow(right, oldSize)
	default:
		if err := cbs.blockNew(base, limit); err != nil {
			return 0, 0, err
		}
	}

	return newBase, newLimit, nil
}

// InsertReturningRange records that the client is no longer using
// [base,limit), merging it with any blocks it abuts.  It returns the
// full extent of the block that now covers the inserted range, which
// is [base,limit) itself if nothing got merged.
//
// The range must be non-empty, aligned, and must not overlap any
// block already in the structure (ErrOverlap).  Fails with
// ErrOutOfMemory if a record was needed and the pool could not
// supply one; the structure is unchanged in that case.
func (cbs *CBS) InsertReturningRange(base, limit Addr) (Addr, Addr, error) {
	cbs.assertRange(base, limit)
	cbs.enter()
	defer cbs.leave()

	newBase, newLimit, err := cbs.insertIntoTree(base, limit)
	if err != nil {
		return 0, 0, err
	}
	if newBase > base || newLimit < limit {
		panic(fmt.Errorf("cbs: insert [%v,%v): coalesced to [%v,%v), which does not cover it",
			base, limit, newBase, newLimit))
	}
	return newBase, newLimit, nil
}

// Insert is InsertReturningRange for callers that don't care about
// the coalesced extent.
func (cbs *CBS) Insert(base, limit Addr) error {
	_, _, err := cbs.InsertReturningRange(base, limit)
	return err
}
