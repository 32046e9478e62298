// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockPool(t *testing.T) {
	t.Parallel()
	pool, err := newBlockPool(HeapArena{}, 4)
	require.NoError(t, err)
	require.Equal(t, 1, pool.slabs)

	var got []*Block
	for i := 0; i < 5; i++ {
		blk, err := pool.Alloc()
		require.NoError(t, err)
		require.Nil(t, blk.nextFree)
		got = append(got, blk)
	}
	assert.Equal(t, 2, pool.slabs) // the 5th Alloc grew the pool
	assert.Equal(t, 5, pool.inUse)

	got[2].base, got[2].limit = 100, 200
	pool.Free(got[2])
	assert.Equal(t, 4, pool.inUse)

	// LIFO reuse, and the record comes back clean.
	blk, err := pool.Alloc()
	require.NoError(t, err)
	assert.Same(t, got[2], blk)
	assert.Equal(t, Addr(0), blk.base)
	assert.Equal(t, Addr(0), blk.limit)
}

func TestBlockPoolOutOfMemory(t *testing.T) {
	t.Parallel()

	_, err := newBlockPool(&LimitedArena{Limit: 3}, 4)
	require.ErrorIs(t, err, ErrOutOfMemory)

	pool, err := newBlockPool(&LimitedArena{Limit: 4}, 4)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := pool.Alloc()
		require.NoError(t, err)
	}
	_, err = pool.Alloc()
	require.ErrorIs(t, err, ErrOutOfMemory)

	// Freed records keep the pool usable even at the arena
	// limit.
	blk, err := newBlockPool(&LimitedArena{Limit: 1}, 1)
	require.NoError(t, err)
	rec, err := blk.Alloc()
	require.NoError(t, err)
	blk.Free(rec)
	rec2, err := blk.Alloc()
	require.NoError(t, err)
	assert.Same(t, rec, rec2)
}

// TestInsertOutOfMemory: a fresh insert that needs a record fails
// cleanly when the arena is exhausted.
func TestInsertOutOfMemory(t *testing.T) {
	t.Parallel()
	var structure CBS
	require.NoError(t, structure.Init(&LimitedArena{Limit: blockPoolBatch}, nil, Callbacks{}, 8, 1, true))
	defer structure.Finish()

	for i := 0; i < blockPoolBatch; i++ {
		base := Addr(i * 16)
		require.NoError(t, structure.Insert(base, base.Add(8)))
	}

	err := structure.Insert(Addr(blockPoolBatch*16), Addr(blockPoolBatch*16+8))
	require.ErrorIs(t, err, ErrOutOfMemory)

	// The failed insert left no trace.
	require.NoError(t, structure.Check())
	assert.Equal(t, blockPoolBatch, structure.tree.Len())

	// A merging insert needs no record and still works.
	require.NoError(t, structure.Insert(8, 12))
	require.NoError(t, structure.Check())
	assert.Equal(t, blockPoolBatch, structure.tree.Len())
}

// TestSplitOutOfMemory: when the record for the second fragment of a
// split cannot be allocated, the first fragment's shrink has already
// happened and is deliberately not rolled back.
func TestSplitOutOfMemory(t *testing.T) {
	t.Parallel()
	var structure CBS
	require.NoError(t, structure.Init(&LimitedArena{Limit: blockPoolBatch}, nil, Callbacks{}, 8, 1, true))
	defer structure.Finish()

	for i := 0; i < blockPoolBatch; i++ {
		base := Addr(i * 16)
		require.NoError(t, structure.Insert(base, base.Add(8)))
	}

	// Splitting [0,8) by deleting [2,4) needs a record for the
	// smaller fragment [0,2); the pool can't supply one.  The
	// larger fragment [4,8) has already been shrunk in place, so
	// [0,2) is simply gone.
	err := structure.Delete(2, 4)
	require.ErrorIs(t, err, ErrOutOfMemory)

	require.NoError(t, structure.Check())
	assert.Equal(t, blockPoolBatch, structure.tree.Len())
	first := structure.tree.Min()
	require.NotNil(t, first)
	assert.Equal(t, Addr(4), first.Value.base)
	assert.Equal(t, Addr(8), first.Value.limit)
}
