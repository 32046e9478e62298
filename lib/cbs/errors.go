// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"errors"
)

// These are the recoverable failures; check for them with errors.Is.
// Contract violations (misaligned or empty ranges, re-entrant calls,
// size queries without fastFind) are bugs in the caller and panic
// instead.
var (
	// ErrOutOfMemory: the block-record pool could not supply a
	// record.  Returned by Insert when the inserted range has no
	// neighbor to merge with, and by Delete when removing an
	// interior range has to split a block in two.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrOverlap: the inserted range overlaps a block already in
	// the structure.
	ErrOverlap = errors.New("overlaps an existing block")

	// ErrNotFound: the deleted range's base is not inside any
	// block.
	ErrNotFound = errors.New("not in any block")

	// ErrNotContained: the deleted range starts inside a block
	// but extends past that block's limit.
	ErrNotContained = errors.New("extends past the enclosing block")
)
