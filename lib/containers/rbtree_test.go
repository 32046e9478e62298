// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package containers

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/constraints"
)

func (t *RBTree[K, V]) ASCIIArt() string {
	var out strings.Builder
	t.root.asciiArt(&out, "", "", "")
	return out.String()
}

func (node *RBNode[V]) String() string {
	switch {
	case node == nil:
		return "nil"
	case node.Color == Red:
		return fmt.Sprintf("R(%v)", node.Value)
	default:
		return fmt.Sprintf("B(%v)", node.Value)
	}
}

func (node *RBNode[V]) asciiArt(w io.Writer, u, m, l string) {
	if node == nil {
		fmt.Fprintf(w, "%snil\n", m)
		return
	}

	node.Right.asciiArt(w, u+"     ", u+"  ,--", u+"  |  ")
	fmt.Fprintf(w, "%s%v\n", m, node)
	node.Left.asciiArt(w, l+"  |  ", l+"  `--", l+"     ")
}

func checkRBTree[K constraints.Ordered, V any](t *testing.T, expectedSet Set[K], tree *RBTree[NativeOrdered[K], V]) {
	// 1. Every node is either red or black

	// 2. The root is black.
	require.Equal(t, Black, tree.root.getColor())

	// 3. Every nil is black.

	// 4. If a node is red, then both its children are black.
	require.NoError(t, tree.Walk(func(node *RBNode[V]) error {
		if node.getColor() == Red {
			require.Equal(t, Black, node.Left.getColor())
			require.Equal(t, Black, node.Right.getColor())
		}
		return nil
	}))

	// 5. For each node, all simple paths from the node to
	//    descendent leaves contain the same number of black
	//    nodes.
	var walkCnt func(node *RBNode[V], cnt int, leafFn func(int))
	walkCnt = func(node *RBNode[V], cnt int, leafFn func(int)) {
		if node.getColor() == Black {
			cnt++
		}
		if node == nil {
			leafFn(cnt)
			return
		}
		walkCnt(node.Left, cnt, leafFn)
		walkCnt(node.Right, cnt, leafFn)
	}
	require.NoError(t, tree.Walk(func(node *RBNode[V]) error {
		var cnts []int
		walkCnt(node, 0, func(cnt int) {
			cnts = append(cnts, cnt)
		})
		for i := range cnts {
			if cnts[0] != cnts[i] {
				require.Truef(t, false, "node %v: not all leafs have same black-count: %v", node.Value, cnts)
				break
			}
		}
		return nil
	}))

	// expected contents
	expectedOrder := make([]K, 0, len(expectedSet))
	for k := range expectedSet {
		expectedOrder = append(expectedOrder, k)
		node := tree.Lookup(NativeOrdered[K]{Val: k})
		require.NotNil(t, tree, node)
		require.Equal(t, k, tree.KeyFn(node.Value).Val)
	}
	sort.Slice(expectedOrder, func(i, j int) bool {
		return expectedOrder[i] < expectedOrder[j]
	})
	actOrder := make([]K, 0, len(expectedSet))
	require.NoError(t, tree.Walk(func(node *RBNode[V]) error {
		actOrder = append(actOrder, tree.KeyFn(node.Value).Val)
		return nil
	}))
	require.Equal(t, expectedOrder, actOrder)
	require.Equal(t, len(expectedSet), tree.Len())
}

func FuzzRBTree(f *testing.F) {
	Ins := uint8(0b0100_0000)
	Del := uint8(0)

	f.Add([]uint8{})
	f.Add([]uint8{Ins | 5, Del | 5})
	f.Add([]uint8{Ins | 5, Del | 6})
	f.Add([]uint8{Del | 6})

	f.Add([]uint8{ // CLRS Figure 14.4
		Ins | 1,
		Ins | 2,
		Ins | 5,
		Ins | 7,
		Ins | 8,
		Ins | 11,
		Ins | 14,
		Ins | 15,

		Ins | 4,
	})

	f.Fuzz(func(t *testing.T, dat []uint8) {
		tree := &RBTree[NativeOrdered[uint8], uint8]{
			KeyFn: func(x uint8) NativeOrdered[uint8] {
				return NativeOrdered[uint8]{Val: x}
			},
		}
		set := make(Set[uint8])
		checkRBTree(t, set, tree)
		t.Logf("\n%s\n", tree.ASCIIArt())
		for _, b := range dat {
			ins := (b & 0b0100_0000) != 0
			val := (b & 0b0011_1111)
			if ins {
				t.Logf("Insert(%v)", val)
				tree.Insert(val)
				set.Insert(val)
				t.Logf("\n%s\n", tree.ASCIIArt())
				node := tree.Lookup(NativeOrdered[uint8]{Val: val})
				require.NotNil(t, node)
				require.Equal(t, val, node.Value)
			} else {
				t.Logf("Delete(%v)", val)
				tree.Delete(NativeOrdered[uint8]{Val: val})
				set.Delete(val)
				t.Logf("\n%s\n", tree.ASCIIArt())
				require.Nil(t, tree.Lookup(NativeOrdered[uint8]{Val: val}))
			}
			checkRBTree(t, set, tree)
		}
	})
}

func TestRBTreeSearchAround(t *testing.T) {
	t.Parallel()
	tree := &RBTree[NativeOrdered[int], int]{
		KeyFn: func(x int) NativeOrdered[int] {
			return NativeOrdered[int]{Val: x}
		},
	}
	for _, val := range []int{10, 20, 30, 40, 50} {
		tree.Insert(val)
	}

	searchFor := func(tgt int) func(int) int {
		return func(val int) int {
			return NativeOrdered[int]{Val: tgt}.Cmp(NativeOrdered[int]{Val: val})
		}
	}

	// exact hit: neighbors are the in-order neighbors
	exact, prev, next := tree.SearchAround(searchFor(30))
	require.NotNil(t, exact)
	require.Equal(t, 30, exact.Value)
	require.Equal(t, 20, prev.Value)
	require.Equal(t, 40, next.Value)

	// miss in the middle: (prev, next) straddle the gap
	exact, prev, next = tree.SearchAround(searchFor(35))
	require.Nil(t, exact)
	require.Equal(t, 30, prev.Value)
	require.Equal(t, 40, next.Value)

	// miss below the minimum
	exact, prev, next = tree.SearchAround(searchFor(5))
	require.Nil(t, exact)
	require.Nil(t, prev)
	require.Equal(t, 10, next.Value)

	// miss above the maximum
	exact, prev, next = tree.SearchAround(searchFor(55))
	require.Nil(t, exact)
	require.Equal(t, 50, prev.Value)
	require.Nil(t, next)

	// empty tree
	empty := &RBTree[NativeOrdered[int], int]{
		KeyFn: func(x int) NativeOrdered[int] {
			return NativeOrdered[int]{Val: x}
		},
	}
	exact, prev, next = empty.SearchAround(searchFor(1))
	require.Nil(t, exact)
	require.Nil(t, prev)
	require.Nil(t, next)
}

// sizedVal is a mutable value with a subtree-max augmented attribute,
// exercising AttrFn/Refresh/FindFirst/FindLast the same way the cbs
// package uses them.
type sizedVal struct {
	Key     int
	Size    int
	MaxSize int // subtree max, maintained by AttrFn
}

func newSizedTree() *RBTree[NativeOrdered[int], *sizedVal] {
	return &RBTree[NativeOrdered[int], *sizedVal]{
		KeyFn: func(v *sizedVal) NativeOrdered[int] {
			return NativeOrdered[int]{Val: v.Key}
		},
		AttrFn: func(node *RBNode[*sizedVal]) {
			max := node.Value.Size
			if node.Left != nil && node.Left.Value.MaxSize > max {
				max = node.Left.Value.MaxSize
			}
			if node.Right != nil && node.Right.Value.MaxSize > max {
				max = node.Right.Value.MaxSize
			}
			node.Value.MaxSize = max
		},
	}
}

func checkMaxAttr(t *testing.T, tree *RBTree[NativeOrdered[int], *sizedVal]) {
	var walk func(node *RBNode[*sizedVal]) int
	walk = func(node *RBNode[*sizedVal]) int {
		if node == nil {
			return 0
		}
		max := node.Value.Size
		if l := walk(node.Left); l > max {
			max = l
		}
		if r := walk(node.Right); r > max {
			max = r
		}
		require.Equal(t, max, node.Value.MaxSize,
			"node key=%v", node.Value.Key)
		return max
	}
	walk(tree.Root())
}

func TestRBTreeAugmentedFind(t *testing.T) {
	t.Parallel()
	tree := newSizedTree()

	sizes := map[int]int{
		10: 4,
		20: 16,
		30: 2,
		40: 16,
		50: 8,
		60: 1,
	}
	for key, size := range sizes {
		tree.Insert(&sizedVal{Key: key, Size: size})
	}
	checkMaxAttr(t, tree)

	nodeFn := func(want int) func(*sizedVal) bool {
		return func(v *sizedVal) bool { return v.Size >= want }
	}
	treeFn := func(want int) func(*RBNode[*sizedVal]) bool {
		return func(node *RBNode[*sizedVal]) bool { return node.Value.MaxSize >= want }
	}

	first := tree.FindFirst(nodeFn(16), treeFn(16))
	require.NotNil(t, first)
	require.Equal(t, 20, first.Value.Key)

	last := tree.FindLast(nodeFn(16), treeFn(16))
	require.NotNil(t, last)
	require.Equal(t, 40, last.Value.Key)

	require.Equal(t, 10, tree.FindFirst(nodeFn(3), treeFn(3)).Value.Key)
	require.Equal(t, 50, tree.FindLast(nodeFn(5), treeFn(5)).Value.Key)
	require.Nil(t, tree.FindFirst(nodeFn(17), treeFn(17)))
	require.Nil(t, tree.FindLast(nodeFn(17), treeFn(17)))

	// Mutate a value in place, then Refresh; the finds must see
	// the new size.
	tree.Lookup(NativeOrdered[int]{Val: 30}).Value.Size = 100
	tree.Refresh(NativeOrdered[int]{Val: 30})
	checkMaxAttr(t, tree)
	require.Equal(t, 30, tree.FindFirst(nodeFn(17), treeFn(17)).Value.Key)

	// Delete the maximum; the root attribute must shrink back.
	tree.Delete(NativeOrdered[int]{Val: 30})
	checkMaxAttr(t, tree)
	require.Equal(t, 16, tree.Root().Value.MaxSize)
	require.Nil(t, tree.FindFirst(nodeFn(17), treeFn(17)))
}

func FuzzRBTreeAugmented(f *testing.F) {
	f.Add([]uint8{0x45, 0x23, 0x01})
	f.Add([]uint8{0x45, 0xc5, 0x45})
	f.Fuzz(func(t *testing.T, dat []uint8) {
		tree := newSizedTree()
		set := make(Set[int])
		for _, b := range dat {
			key := int(b & 0b0011_1111)
			switch {
			case b&0b1000_0000 != 0: // delete
				tree.Delete(NativeOrdered[int]{Val: key})
				set.Delete(key)
			case b&0b0100_0000 != 0: // insert
				tree.Insert(&sizedVal{Key: key, Size: key * 3})
				set.Insert(key)
			default: // mutate in place
				if node := tree.Lookup(NativeOrdered[int]{Val: key}); node != nil {
					node.Value.Size = key*7 + 1
					tree.Refresh(NativeOrdered[int]{Val: key})
				}
			}
			require.Equal(t, set.Len(), tree.Len())
			checkMaxAttr(t, tree)
		}
	})
}
