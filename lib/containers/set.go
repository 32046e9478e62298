// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package containers

// Set[T] is an unordered set of T.
type Set[T comparable] map[T]struct{}

func (o Set[T]) Insert(v T) {
	o[v] = struct{}{}
}

func (o Set[T]) Delete(v T) {
	if o == nil {
		return
	}
	delete(o, v)
}

func (o Set[T]) Has(v T) bool {
	_, has := o[v]
	return has
}

func (o Set[T]) Len() int {
	return len(o)
}
