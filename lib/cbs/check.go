// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"fmt"

	"github.com/datawire/dlib/derror"

	"git.lukeshu.com/go/cbs/lib/containers"
)

// Check audits every structural invariant in O(n): blocks sorted by
// base, pairwise disjoint, never adjacent, aligned, non-empty, and
// (under fastFind) every maxSize matching its subtree.  It returns
// all violations it finds, not just the first.
//
// Check is read-only; it is one of the simple queries that callbacks
// are allowed to make.
func (cbs *CBS) Check() error {
	if cbs.pool == nil {
		return fmt.Errorf("cbs: Check: not initialized")
	}

	var errs derror.MultiError
	var prev *Block
	_ = cbs.tree.Walk(func(node *containers.RBNode[*Block]) error {
		blk := node.Value
		if err := blk.Check(); err != nil {
			errs = append(errs, err)
		}
		if blk.base >= blk.limit {
			errs = append(errs, fmt.Errorf("cbs: empty block %v", blk))
		}
		if !blk.base.IsAligned(cbs.alignment) || !blk.limit.IsAligned(cbs.alignment) {
			errs = append(errs, fmt.Errorf("cbs: block %v is not aligned to %d", blk, cbs.alignment))
		}
		if prev != nil {
			switch {
			case blk.base < prev.limit:
				errs = append(errs, fmt.Errorf("cbs: blocks %v and %v overlap or are mis-sorted", prev, blk))
			case blk.base == prev.limit:
				errs = append(errs, fmt.Errorf("cbs: blocks %v and %v are adjacent but not coalesced", prev, blk))
			}
		}
		prev = blk
		return nil
	})

	if cbs.fastFind {
		checkMaxSizes(cbs.tree.Root(), &errs)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// checkMaxSizes re-derives the subtree max bottom-up and compares it
// to the stored augmentation.
func checkMaxSizes(node *containers.RBNode[*Block], errs *derror.MultiError) Size {
	if node == nil {
		return 0
	}
	max := node.Value.Size()
	if l := checkMaxSizes(node.Left, errs); l > max {
		max = l
	}
	if r := checkMaxSizes(node.Right, errs); r > max {
		max = r
	}
	if node.Value.maxSize != max {
		*errs = append(*errs, fmt.Errorf("cbs: block %v: maxSize is %d, want %d",
			node.Value, node.Value.maxSize, max))
	}
	return max
}
