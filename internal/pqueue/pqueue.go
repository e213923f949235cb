// Package pqueue implements the priority queue the scheduler uses for its
// global reaction queue, executing queue, and per-worker ready queues.
//
// It wraps the standard library's container/heap, the idiomatic Go
// substitute for the pqueue_support.h the original scheduler linked
// against: a caller-supplied key extractor replaces the custom comparator
// argument, and Remove (by identity) replaces pqueue_remove's by-pointer
// lookup.
package pqueue

import "container/heap"

// Item is anything the queue can order and remove by identity.
type Item interface {
	// Key returns the ordering key. Smaller keys pop first.
	Key() uint64
}

// Queue is a binary min-heap ordered by Item.Key(), with O(n)
// removal-by-identity (linear scan + heap.Remove), matching the access
// pattern the scheduler needs: frequent Pop/Insert/Peek, occasional
// Remove of a specific, already-known element out of the executing queue.
type Queue struct {
	items itemHeap
}

// New creates an empty Queue with the given initial capacity hint.
func New(capacityHint int) *Queue {
	return &Queue{items: make(itemHeap, 0, capacityHint)}
}

// Insert adds x to the queue.
func (q *Queue) Insert(x Item) {
	heap.Push(&q.items, x)
}

// Pop removes and returns the minimum-key item, or (nil, false) if empty.
func (q *Queue) Pop() (Item, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(Item), true
}

// Peek returns the minimum-key item without removing it, or (nil, false)
// if empty.
func (q *Queue) Peek() (Item, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Remove removes x by identity (pointer equality via ==), returning true
// if it was found and removed. Fatal-worthy failure is the caller's
// concern: the scheduler treats "not found" here as an invariant
// violation when it expects the item to be present.
func (q *Queue) Remove(x Item) bool {
	for i, it := range q.items {
		if it == x {
			heap.Remove(&q.items, i)
			return true
		}
	}
	return false
}

// Len returns the number of items in the queue.
func (q *Queue) Len() int {
	return len(q.items)
}

// Each calls fn for every item currently held, in no particular order.
// Used by the precedence oracle's linear scan over the executing queue.
func (q *Queue) Each(fn func(Item)) {
	for _, it := range q.items {
		fn(it)
	}
}

type itemHeap []Item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].Key() < h[j].Key() }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(Item)) }

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
