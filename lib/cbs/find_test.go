// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/go/cbs/lib/cbs"
)

func TestFindEmpty(t *testing.T) {
	t.Parallel()
	structure := newTestCBS(t, nil)

	_, _, ok := structure.FindFirst(8, cbs.FindDeleteNone)
	assert.False(t, ok)
	_, _, ok = structure.FindLast(8, cbs.FindDeleteNone)
	assert.False(t, ok)
	_, _, ok = structure.FindLargest(cbs.FindDeleteNone)
	assert.False(t, ok)
}

func TestFindFirstLastLargest(t *testing.T) {
	t.Parallel()
	structure := newTestCBS(t, nil)

	// sizes: 10, 30, 20, 30, 5
	for _, r := range [][2]cbs.Addr{
		{0, 10}, {20, 50}, {60, 80}, {90, 120}, {130, 135},
	} {
		require.NoError(t, structure.Insert(r[0], r[1]))
	}

	base, limit, ok := structure.FindFirst(20, cbs.FindDeleteNone)
	require.True(t, ok)
	assert.Equal(t, [2]cbs.Addr{20, 50}, [2]cbs.Addr{base, limit})

	base, limit, ok = structure.FindLast(20, cbs.FindDeleteNone)
	require.True(t, ok)
	assert.Equal(t, [2]cbs.Addr{90, 120}, [2]cbs.Addr{base, limit})

	// Largest is ambiguous between [20,50) and [90,120); the
	// lowest-addressed one wins.
	base, limit, ok = structure.FindLargest(cbs.FindDeleteNone)
	require.True(t, ok)
	assert.Equal(t, [2]cbs.Addr{20, 50}, [2]cbs.Addr{base, limit})

	_, _, ok = structure.FindFirst(31, cbs.FindDeleteNone)
	assert.False(t, ok)

	// FindDeleteNone really didn't touch anything.
	require.NoError(t, structure.Check())
	assert.Len(t, blocks(structure), 5)
}

func TestFindDeletePolicies(t *testing.T) {
	t.Parallel()

	type result struct {
		found  [2]cbs.Addr
		blocks [][2]cbs.Addr
	}
	testcases := map[cbs.FindDelete]result{
		cbs.FindDeleteNone: {
			found:  [2]cbs.Addr{20, 50},
			blocks: [][2]cbs.Addr{{0, 10}, {20, 50}},
		},
		cbs.FindDeleteLow: {
			found:  [2]cbs.Addr{20, 36},
			blocks: [][2]cbs.Addr{{0, 10}, {36, 50}},
		},
		cbs.FindDeleteHigh: {
			found:  [2]cbs.Addr{34, 50},
			blocks: [][2]cbs.Addr{{0, 10}, {20, 34}},
		},
		cbs.FindDeleteEntire: {
			found:  [2]cbs.Addr{20, 50},
			blocks: [][2]cbs.Addr{{0, 10}},
		},
	}

	for policy, want := range testcases {
		policy, want := policy, want
		t.Run(policy.String(), func(t *testing.T) {
			t.Parallel()
			structure := newTestCBS(t, nil)
			require.NoError(t, structure.Insert(0, 10))
			require.NoError(t, structure.Insert(20, 50))

			base, limit, ok := structure.FindFirst(16, policy)
			require.True(t, ok)
			assert.Equal(t, want.found, [2]cbs.Addr{base, limit})
			assert.Equal(t, want.blocks, blocks(structure))
			require.NoError(t, structure.Check())
		})
	}
}

func TestFindDeleteExactFit(t *testing.T) {
	t.Parallel()
	structure := newTestCBS(t, nil)
	require.NoError(t, structure.Insert(20, 36))

	// Low-deleting an exact-fit block consumes it entirely.
	base, limit, ok := structure.FindFirst(16, cbs.FindDeleteLow)
	require.True(t, ok)
	assert.Equal(t, [2]cbs.Addr{20, 36}, [2]cbs.Addr{base, limit})
	assert.Empty(t, blocks(structure))
	require.NoError(t, structure.Check())
}

func TestFindAgreementAtScale(t *testing.T) {
	t.Parallel()
	structure := newTestCBS(t, nil)

	// 1000 disjoint, non-adjacent ranges with sizes cycling
	// 8,16,...,128.
	const n = 1000
	var addr cbs.Addr
	var maxSize cbs.Size
	for i := 0; i < n; i++ {
		size := cbs.Size(8 * (1 + i%16))
		require.NoError(t, structure.Insert(addr, addr.Add(size)))
		if size > maxSize {
			maxSize = size
		}
		addr = addr.Add(size + 8) // gap so nothing coalesces
	}
	require.NoError(t, structure.Check())
	require.Len(t, blocks(structure), n)

	for _, size := range []cbs.Size{8, 64, 128} {
		firstBase, firstLimit, ok := structure.FindFirst(size, cbs.FindDeleteNone)
		require.True(t, ok, "size %v", size)
		lastBase, lastLimit, ok := structure.FindLast(size, cbs.FindDeleteNone)
		require.True(t, ok, "size %v", size)

		assert.GreaterOrEqual(t, firstLimit.Sub(firstBase), size)
		assert.GreaterOrEqual(t, lastLimit.Sub(lastBase), size)
		assert.LessOrEqual(t, firstBase, lastBase)

		// The finds agree with a plain scan.
		var wantFirst, wantLast [2]cbs.Addr
		var haveFirst bool
		structure.Iterate(func(_ *cbs.CBS, blk *cbs.Block) bool {
			if blk.Size() >= size {
				if !haveFirst {
					wantFirst = [2]cbs.Addr{blk.Base(), blk.Limit()}
					haveFirst = true
				}
				wantLast = [2]cbs.Addr{blk.Base(), blk.Limit()}
			}
			return true
		})
		assert.Equal(t, wantFirst, [2]cbs.Addr{firstBase, firstLimit})
		assert.Equal(t, wantLast, [2]cbs.Addr{lastBase, lastLimit})
	}

	largestBase, largestLimit, ok := structure.FindLargest(cbs.FindDeleteNone)
	require.True(t, ok)
	assert.Equal(t, maxSize, largestLimit.Sub(largestBase))

	// And FindLargest agrees with FindFirst at the largest size.
	firstBase, firstLimit, ok := structure.FindFirst(maxSize, cbs.FindDeleteNone)
	require.True(t, ok)
	assert.Equal(t, [2]cbs.Addr{firstBase, firstLimit}, [2]cbs.Addr{largestBase, largestLimit})
}

func TestFindLargestDrain(t *testing.T) {
	t.Parallel()
	structure := newTestCBS(t, nil)

	for _, r := range [][2]cbs.Addr{
		{0, 10}, {20, 50}, {60, 80},
	} {
		require.NoError(t, structure.Insert(r[0], r[1]))
	}

	// Repeatedly deleting the largest block drains the structure
	// in size order.
	var sizes []cbs.Size
	for {
		base, limit, ok := structure.FindLargest(cbs.FindDeleteEntire)
		if !ok {
			break
		}
		sizes = append(sizes, limit.Sub(base))
		require.NoError(t, structure.Check())
	}
	assert.Equal(t, []cbs.Size{30, 20, 10}, sizes)
	assert.Empty(t, blocks(structure))
}
