package flow

import (
	"container/heap"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// workItem is one ready node queued for dispatch. OrderKey fixes the
// pop order among simultaneously-ready nodes so scheduling decisions
// are reproducible across runs of the same graph.
type workItem struct {
	NodeID   string
	OrderKey uint64
}

// orderKey derives a deterministic sort key from a node id. The first
// eight bytes of the sha256 digest give a uniform uint64 with no
// meaningful collision risk at graph sizes.
func orderKey(nodeID string) uint64 {
	h := sha256.Sum256([]byte(nodeID))
	return binary.BigEndian.Uint64(h[:8])
}

type workHeap []workItem

func (h workHeap) Len() int            { return len(h) }
func (h workHeap) Less(i, j int) bool  { return h[i].OrderKey < h[j].OrderKey }
func (h workHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *workHeap) Push(x interface{}) { *h = append(*h, x.(workItem)) }
func (h *workHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// frontier is the priority queue of Ready nodes awaiting dispatch.
// The run coordinator is the only goroutine that pops, but readiness
// can be discovered while completions are applied, so pushes are
// mutex-protected.
type frontier struct {
	mu   sync.Mutex
	heap workHeap
}

func newFrontier() *frontier {
	f := &frontier{heap: make(workHeap, 0)}
	heap.Init(&f.heap)
	return f
}

// push queues a node for dispatch.
func (f *frontier) push(nodeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	heap.Push(&f.heap, workItem{NodeID: nodeID, OrderKey: orderKey(nodeID)})
}

// pop removes the queued node with the smallest order key. The second
// return is false when the frontier is empty.
func (f *frontier) pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heap.Len() == 0 {
		return "", false
	}
	item := heap.Pop(&f.heap).(workItem)
	return item.NodeID, true
}

func (f *frontier) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heap.Len()
}
