// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package jsonutil

import (
	"bufio"
	"io"

	"git.lukeshu.com/go/lowmemjson"

	"git.lukeshu.com/go/cbs/lib/textui"
)

// Encode writes obj to w as indented JSON, compacting small values
// on to one line, with a trailing newline.
func Encode(w io.Writer, obj any) (err error) {
	buffer := bufio.NewWriter(w)
	defer func() {
		if _err := buffer.Flush(); err == nil && _err != nil {
			err = _err
		}
	}()
	return lowmemjson.NewEncoder(lowmemjson.NewReEncoder(buffer, lowmemjson.ReEncoderConfig{
		Indent:                "\t",
		ForceTrailingNewlines: true,
		CompactIfUnder:        textui.Tunable(120),
	})).Encode(obj)
}
