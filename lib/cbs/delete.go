// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"fmt"
)

func (cbs *CBS) deleteFromTree(base, limit Addr) error {
	cbs.searches.acc(cbs.tree.Len())
	node := cbs.tree.Search(searchContaining(base))
	if node == nil {
		return fmt.Errorf("cbs: delete [%v,%v): %w", base, limit, ErrNotFound)
	}
	blk := node.Value
	if limit > blk.limit {
		return fmt.Errorf("cbs: delete [%v,%v): %w: %v", base, limit, ErrNotContained, blk)
	}

	switch {
	case base == blk.base && limit == blk.limit:
		cbs.blockDelete(blk)
	case base == blk.base:
		// Remaining fragment is at the right.
		oldSize := blk.Size()
		blk.base = limit
		cbs.blockShrink(blk, oldSize)
	case limit == blk.limit:
		// Remaining fragment is at the left.
		oldSize := blk.Size()
		blk.limit = base
		cbs.blockShrink(blk, oldSize)
	default:
		// Two remaining fragments.  Shrink the block down to
		// the larger fragment (ties go left) and allocate a
		// fresh record for the smaller, so the bigger
		// fragment keeps its identity and the client sees the
		// fewest state transitions.
		leftSize := base.Sub(blk.base)
		rightSize := blk.limit.Sub(limit)
		if leftSize >= rightSize {
			oldLimit := blk.limit
			oldSize := blk.Size()
			blk.limit = base
			cbs.blockShrink(blk, oldSize)
			if err := cbs.blockNew(limit, oldLimit); err != nil {
				// The in-place shrink has already
				// happened and is not rolled back:
				// [limit,oldLimit) is gone from the
				// index.
				return err
			}
		} else {
			oldBase := blk.base
			oldSize := blk.Size()
			blk.base = limit
			cbs.blockShrink(blk, oldSize)
			if err := cbs.blockNew(oldBase, base); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete records that the client has taken [base,limit) back out of
// the structure.  The range must be non-empty, aligned, and must lie
// entirely within a single block (ErrNotFound if its base is in no
// block, ErrNotContained if it spills past the block holding its
// base).
//
// Deleting an interior range splits the block and needs a record for
// the second fragment; if the pool cannot supply one, Delete fails
// with ErrOutOfMemory *after* the first fragment has been shrunk in
// place — the deletion took effect for the retained fragment, and
// the other fragment's addresses are no longer indexed.
func (cbs *CBS) Delete(base, limit Addr) error {
	cbs.assertRange(base, limit)
	cbs.enter()
	defer cbs.leave()

	return cbs.deleteFromTree(base, limit)
}
