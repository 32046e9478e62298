// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"git.lukeshu.com/go/cbs/lib/textui"
)

// searchMeter records how big the index was each time it got
// searched; Describe renders it.  It exists to answer "is this CBS
// actually being used at the scale we sized it for" without dragging
// in a metrics system.
type searchMeter struct {
	count uint64
	total uint64
	max   int
}

func (m *searchMeter) acc(treeLen int) {
	m.count++
	m.total += uint64(treeLen)
	if treeLen > m.max {
		m.max = treeLen
	}
}

func (m searchMeter) String() string {
	if m.count == 0 {
		return "no searches"
	}
	return textui.Sprintf("%v searches, mean tree size %.1f, max %v",
		m.count, float64(m.total)/float64(m.count), m.max)
}
