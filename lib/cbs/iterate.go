// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

// An IterateFn visits one block; return false to stop the
// iteration.
type IterateFn func(cbs *CBS, blk *Block) bool

// iterate is the internal version without the re-entrance bracket,
// for operations that are already inside the structure.
func (cbs *CBS) iterate(fn IterateFn) {
	cbs.searches.acc(cbs.tree.Len())
	for node := cbs.tree.Min(); node != nil; node = cbs.tree.Next(node) {
		if !fn(cbs, node.Value) {
			break
		}
	}
}

// Iterate visits every block, in address order.  This is not
// necessarily efficient; it is for clients that need an occasional
// full view, not for hot paths.
func (cbs *CBS) Iterate(fn IterateFn) {
	cbs.enter()
	defer cbs.leave()
	cbs.iterate(fn)
}

// IterateLarge is Iterate restricted to interesting blocks (size at
// least minSize).
func (cbs *CBS) IterateLarge(fn IterateFn) {
	cbs.enter()
	defer cbs.leave()
	cbs.iterate(func(cbs *CBS, blk *Block) bool {
		if blk.Size() < cbs.minSize {
			return true
		}
		return fn(cbs, blk)
	})
}

// SetMinSize moves the interesting-size threshold, reporting every
// block whose interesting-ness that changes: lowering the threshold
// fires OnNew for each block that is now big enough, raising it
// fires OnDelete for each block that no longer is.  Those callbacks
// get oldSize == newSize == the block's size; only the threshold
// moved, not the block.
func (cbs *CBS) SetMinSize(minSize Size) {
	cbs.enter()
	defer cbs.leave()

	oldMin, newMin := cbs.minSize, minSize
	switch {
	case newMin < oldMin:
		cbs.iterate(func(cbs *CBS, blk *Block) bool {
			if cbs.callbacks.OnNew != nil {
				if size := blk.Size(); size >= newMin && size < oldMin {
					cbs.callbacks.OnNew(cbs, blk, size, size)
				}
			}
			return true
		})
	case newMin > oldMin:
		cbs.iterate(func(cbs *CBS, blk *Block) bool {
			if cbs.callbacks.OnDelete != nil {
				if size := blk.Size(); size >= oldMin && size < newMin {
					cbs.callbacks.OnDelete(cbs, blk, size, size)
				}
			}
			return true
		})
	}
	cbs.minSize = minSize
}
