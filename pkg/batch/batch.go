// Package batch drains a work queue with a bounded number of units in flight.
//
// Every unit runs to a terminal outcome. A failing or panicking unit is
// recorded in its Result and never cancels its siblings; Process returns only
// after all units have settled.
package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ErrPanic wraps a value recovered from a panicking unit.
var ErrPanic = errors.New("batch: unit panicked")

// Result is the terminal outcome of one unit. Index is the position of the
// item in the input sequence.
type Result[T, R any] struct {
	Index int
	Item  T
	Value R
	Err   error
}

// Failed reports whether the unit ended in an isolated failure.
func (r Result[T, R]) Failed() bool { return r.Err != nil }

// Process runs fn for every item of items with at most limit units in flight.
// A limit <= 0 means no bound. The sequence is consumed lazily: the next item
// is pulled only once a slot is free. Results are returned in input order.
//
// Process does not stop early when ctx is cancelled; ctx is handed to fn as-is.
func Process[T, R any](ctx context.Context, items iter.Seq[T], limit int, fn func(context.Context, T) (R, error)) []Result[T, R] {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	settled := make(chan Result[T, R])
	collected := make(chan []Result[T, R], 1)
	go func() {
		var results []Result[T, R]
		for res := range settled {
			results = append(results, res)
		}
		sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
		collected <- results
	}()

	idx := 0
	for item := range items {
		unit := idx
		idx++
		g.Go(func() error {
			settled <- run(ctx, unit, item, fn)
			return nil
		})
	}
	_ = g.Wait()
	close(settled)

	return <-collected
}

// Values is a convenience wrapper around Process for a slice.
func Values[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []Result[T, R] {
	return Process(ctx, slices.Values(items), limit, fn)
}

// Failures counts the results that ended in an error.
func Failures[T, R any](results []Result[T, R]) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}

func run[T, R any](ctx context.Context, idx int, item T, fn func(context.Context, T) (R, error)) (res Result[T, R]) {
	res = Result[T, R]{Index: idx, Item: item}
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	res.Value, res.Err = fn(ctx, item)
	return res
}
