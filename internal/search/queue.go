// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package search

import (
	"container/heap"

	"github.com/locus-dev/locus/internal/store"
)

// Compile-time check to ensure topK satisfies the heap interface.
var _ heap.Interface = (*topK)(nil)

// topK keeps the best k matches seen so far. The heap root is the worst
// kept match, so a better candidate replaces it in O(log k).
type topK struct {
	k     int
	items []store.Match
}

func newTopK(k int) *topK {
	return &topK{k: k, items: make([]store.Match, 0, min(k, 256))}
}

// worse orders matches by similarity ascending, then id descending.
func worse(a, b store.Match) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity < b.Similarity
	}
	return a.ID > b.ID
}

func (q *topK) Len() int           { return len(q.items) }
func (q *topK) Less(i, j int) bool { return worse(q.items[i], q.items[j]) }
func (q *topK) Swap(i, j int)      { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *topK) Push(x any) {
	q.items = append(q.items, x.(store.Match))
}

func (q *topK) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// offer inserts m if fewer than k matches are kept or m beats the worst.
func (q *topK) offer(m store.Match) {
	if len(q.items) < q.k {
		heap.Push(q, m)
		return
	}
	if worse(q.items[0], m) {
		q.items[0] = m
		heap.Fix(q, 0)
	}
}

// sorted drains the queue best first.
func (q *topK) sorted() []store.Match {
	out := make([]store.Match, len(q.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(q).(store.Match)
	}
	return out
}
