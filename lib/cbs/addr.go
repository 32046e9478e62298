// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"fmt"

	"git.lukeshu.com/go/cbs/lib/fmtutil"
)

// Addr is an address in whatever address space the client is
// managing.  A CBS only ever does arithmetic and comparisons on
// Addrs; it never dereferences one, and it does not validate that an
// Addr refers to real memory.
type Addr int64

// Size is the length of a range of Addrs.
type Size int64

// Align is a power-of-two alignment that every range endpoint handed
// to a CBS must be a multiple of.
type Align int64

// Format formats %v, %s and %q like "%#x" (unpadded hex, e.g.
// "0x1493"), for parity with how addresses get printed everywhere
// else; other verbs format the plain integer.
func (a Addr) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v', 's', 'q':
		str := fmt.Sprintf("%#x", int64(a))
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), str)
	default:
		fmt.Fprintf(f, fmtutil.FmtStateString(f, verb), int64(a))
	}
}

func (a Addr) Sub(b Addr) Size { return Size(a - b) }

func (a Addr) Add(s Size) Addr { return a + Addr(s) }

func (a Addr) IsAligned(align Align) bool { return int64(a)&(int64(align)-1) == 0 }

func (s Size) IsAligned(align Align) bool { return int64(s)&(int64(align)-1) == 0 }

func (align Align) isPowerOf2() bool { return align > 0 && align&(align-1) == 0 }
