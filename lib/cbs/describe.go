// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"fmt"
	"io"

	"git.lukeshu.com/go/cbs/lib/containers"
	"git.lukeshu.com/go/cbs/lib/textui"
)

// Describe writes a human-readable dump of the CBS, for diagnostics.
// Read-only.
func (cbs *CBS) Describe(w io.Writer) (err error) {
	if cbs.pool == nil {
		return fmt.Errorf("cbs: Describe: not initialized")
	}
	p := func(format string, args ...any) {
		if err == nil {
			_, err = textui.Fprintf(w, format, args...)
		}
	}

	p("CBS %p {\n", cbs)
	p("\towner: %v\n", cbs.owner)
	p("\tminSize: %v  alignment: %v  fastFind: %v\n", cbs.minSize, cbs.alignment, cbs.fastFind)
	p("\tpool: %v records in use, %v slabs of %v\n", cbs.pool.inUse, cbs.pool.slabs, cbs.pool.batch)
	p("\tblocks (%v):\n", cbs.tree.Len())
	_ = cbs.tree.Walk(func(node *containers.RBNode[*Block]) error {
		p("\t\t%v\n", node.Value)
		return nil
	})
	p("\tsearches: %v\n", cbs.searches)
	p("}\n")
	return err
}
