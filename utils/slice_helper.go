// Copyright (c) 2024 The Sprite Programming Language
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package utils

import "github.com/samber/lo"

func InsertAt[T any](slice []T, index int, e T) []T {
	if index == len(slice) {
		return append(slice, e)
	}

	res := make([]T, len(slice)+1)
	copy(res[:index], slice[:index])
	res[index] = e
	copy(res[index+1:], slice[index:])

	return res
}

// Filter keeps the elements of slice for which keep returns true.
func Filter[T any](slice []T, keep func(T) bool) []T {
	return lo.Filter(slice, func(item T, _ int) bool { return keep(item) })
}

// Map transforms every element of slice with fn.
func Map[T, R any](slice []T, fn func(T) R) []R {
	return lo.Map(slice, func(item T, _ int) R { return fn(item) })
}

// ContainsBy reports whether any element of slice satisfies pred.
func ContainsBy[T any](slice []T, pred func(T) bool) bool {
	return lo.ContainsBy(slice, pred)
}

// Uniq returns slice with duplicate elements removed, order preserved.
func Uniq[T comparable](slice []T) []T {
	return lo.Uniq(slice)
}

// MaxBy returns the element of slice for which key is greatest; on an empty
// slice it returns the zero value of T, as lo.MaxBy does.
func MaxBy[T any](slice []T, key func(T) int) T {
	return lo.MaxBy(slice, func(a, b T) bool { return key(a) > key(b) })
}
