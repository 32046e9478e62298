// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"fmt"

	"git.lukeshu.com/go/cbs/lib/containers"
)

// FindDelete is the policy for what a Find operation removes from
// the block it finds, before returning.
type FindDelete int

const (
	// FindDeleteNone leaves the found block alone and returns its
	// whole extent.
	FindDeleteNone FindDelete = iota
	// FindDeleteLow deletes the requested size off the low end of
	// the found block, and returns the deleted sub-range.
	FindDeleteLow
	// FindDeleteHigh deletes the requested size off the high end
	// of the found block, and returns the deleted sub-range.
	FindDeleteHigh
	// FindDeleteEntire deletes the whole found block and returns
	// its extent.
	FindDeleteEntire
)

func (fd FindDelete) String() string {
	switch fd {
	case FindDeleteNone:
		return "none"
	case FindDeleteLow:
		return "low"
	case FindDeleteHigh:
		return "high"
	case FindDeleteEntire:
		return "entire"
	default:
		return fmt.Sprintf("FindDelete(%d)", int(fd))
	}
}

func assertFindDelete(fd FindDelete) {
	if fd < FindDeleteNone || fd > FindDeleteEntire {
		panic(fmt.Errorf("cbs: invalid FindDelete policy %d", int(fd)))
	}
}

func (cbs *CBS) assertFind(findDelete FindDelete) {
	if !cbs.fastFind {
		panic(fmt.Errorf("cbs: size queries need fastFind enabled at Init"))
	}
	assertFindDelete(findDelete)
}

// findTests builds the node test and the subtree-pruning test for a
// size query.  The pruning test is exact (maxSize really is the
// subtree max), which is what makes the finds O(log n).
func (cbs *CBS) findTests(size Size) (nodeFn func(*Block) bool, treeFn func(*containers.RBNode[*Block]) bool) {
	nodeFn = func(blk *Block) bool { return blk.Size() >= size }
	treeFn = func(node *containers.RBNode[*Block]) bool { return node.Value.maxSize >= size }
	return nodeFn, treeFn
}

// findDeleteRange applies the policy to the found block [base,limit),
// and narrows the pair down to the range that the caller ends up
// owning.
func (cbs *CBS) findDeleteRange(base, limit Addr, size Size, findDelete FindDelete) (Addr, Addr) {
	callDelete := true
	switch findDelete {
	case FindDeleteNone:
		callDelete = false
	case FindDeleteLow:
		limit = base.Add(size)
	case FindDeleteHigh:
		base = limit.Add(-size)
	case FindDeleteEntire:
		// take the whole block
	}

	if callDelete {
		// The found block contains [base,limit) by
		// construction, and edge deletions never split, so
		// this cannot fail.
		if err := cbs.deleteFromTree(base, limit); err != nil {
			panic(fmt.Errorf("cbs: find-delete [%v,%v): %v", base, limit, err))
		}
	}
	return base, limit
}

// FindFirst returns the lowest-addressed block with at least the
// given size, applying the findDelete policy to it.  Needs fastFind;
// size must be positive and aligned.
//
// ok is false if no block is big enough.
func (cbs *CBS) FindFirst(size Size, findDelete FindDelete) (base, limit Addr, ok bool) {
	if size <= 0 || !size.IsAligned(cbs.alignment) {
		panic(fmt.Errorf("cbs: FindFirst: bad size %d", size))
	}
	cbs.assertFind(findDelete)
	cbs.enter()
	defer cbs.leave()

	cbs.searches.acc(cbs.tree.Len())
	node := cbs.tree.FindFirst(cbs.findTests(size))
	if node == nil {
		return 0, 0, false
	}
	blk := node.Value
	base, limit = cbs.findDeleteRange(blk.base, blk.limit, size, findDelete)
	return base, limit, true
}

// FindLast is FindFirst from the other end: the highest-addressed
// block with at least the given size.
func (cbs *CBS) FindLast(size Size, findDelete FindDelete) (base, limit Addr, ok bool) {
	if size <= 0 || !size.IsAligned(cbs.alignment) {
		panic(fmt.Errorf("cbs: FindLast: bad size %d", size))
	}
	cbs.assertFind(findDelete)
	cbs.enter()
	defer cbs.leave()

	cbs.searches.acc(cbs.tree.Len())
	node := cbs.tree.FindLast(cbs.findTests(size))
	if node == nil {
		return 0, 0, false
	}
	blk := node.Value
	base, limit = cbs.findDeleteRange(blk.base, blk.limit, size, findDelete)
	return base, limit, true
}

// FindLargest returns the largest block in the structure (the
// lowest-addressed one, if several tie), applying the findDelete
// policy to it.  Needs fastFind.
//
// ok is false if the structure is empty.
func (cbs *CBS) FindLargest(findDelete FindDelete) (base, limit Addr, ok bool) {
	cbs.assertFind(findDelete)
	cbs.enter()
	defer cbs.leave()

	root := cbs.tree.Root()
	if root == nil {
		return 0, 0, false
	}
	size := root.Value.maxSize

	cbs.searches.acc(cbs.tree.Len())
	node := cbs.tree.FindFirst(cbs.findTests(size))
	if node == nil {
		// maxSize is exact, so the find cannot miss.
		panic(fmt.Errorf("cbs: FindLargest: no block of the root's maxSize %d", size))
	}
	blk := node.Value
	base, limit = cbs.findDeleteRange(blk.base, blk.limit, size, findDelete)
	return base, limit, true
}
