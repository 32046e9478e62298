// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"errors"
	"fmt"
)

// Block records one contiguous [base,limit) range currently held by a
// CBS.  Blocks are owned by the CBS's record pool; clients see them
// in callbacks and iteration, and may hold on to one only for the
// duration of the call that handed it over.
type Block struct {
	base, limit Addr

	// maxSize is the maximum Size of this block and of every
	// block below it in the index tree.  Only maintained when the
	// owning CBS has fastFind enabled.
	maxSize Size

	// nextFree chains the block into its pool's free list while
	// the record is not in use.
	nextFree *Block
}

func (blk *Block) Base() Addr { return blk.base }

func (blk *Block) Limit() Addr { return blk.limit }

// Size returns limit-base.  Size is safe to call from callbacks.
func (blk *Block) Size() Size { return blk.limit.Sub(blk.base) }

// Check verifies the block's local invariants.  Check is safe to call
// from callbacks; note that a block that is in the middle of being
// destroyed has base == limit, which Check tolerates.
func (blk *Block) Check() error {
	if blk == nil {
		return errors.New("cbs: nil block")
	}
	if blk.limit < blk.base {
		return fmt.Errorf("cbs: block has limit %v below base %v", blk.limit, blk.base)
	}
	// maxSize can't be checked here; it may legitimately be stale
	// until the enclosing operation refreshes the tree.
	return nil
}

// String renders like "[0x0,0x1000) {4096}".
func (blk *Block) String() string {
	if blk == nil {
		return "<nil>"
	}
	return fmt.Sprintf("[%v,%v) {%d}", blk.base, blk.limit, blk.Size())
}
