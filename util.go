package docstore

import (
	"iter"
)

// Collect drains a single-pass sequence into a slice.
func Collect[T any](seq iter.Seq[T]) []T {
	var items []T
	if seq == nil {
		return items
	}
	for item := range seq {
		items = append(items, item)
	}
	return items
}

func Map[In any, Out any](list []In, mapFn func(val In) Out) []Out {
	var newSlice = make([]Out, len(list))
	for i, val := range list {
		newSlice[i] = mapFn(val)
	}

	return newSlice
}

func SliceContains[T comparable](list []T, val T) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}

	return false
}
