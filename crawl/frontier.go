package crawl

import (
	"container/heap"
	"sync"

	"github.com/fwojciec/kura"
	"github.com/fwojciec/kura/bloom"
)

// Compile-time interface verification.
var _ kura.URLFrontier = (*Frontier)(nil)

// Frontier is an in-memory queue of crawl tasks ordered breadth-first by
// depth, with insertion order breaking ties. It owns the visited set.
//
// A Bloom filter answers most "never seen" lookups; the key maps are the
// source of truth, so false positives never drop a page.
type Frontier struct {
	mu      sync.Mutex
	filter  *bloom.Filter
	queued  map[string]struct{}
	visited map[string]struct{}
	queue   *taskHeap
	seq     uint64
}

// NewFrontier creates a new Frontier sized for n expected URLs
// with the given false positive rate for the Bloom filter.
func NewFrontier(n uint, fpRate float64) *Frontier {
	h := &taskHeap{}
	heap.Init(h)
	return &Frontier{
		filter:  bloom.NewFilter(n, fpRate),
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
		queue:   h,
	}
}

// Push queues a task.
// Returns false if the task's key has been dispatched or is already queued.
func (f *Frontier) Push(task kura.Task) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen(task.Key) {
		return false
	}
	f.filter.Add(task.Key)
	f.queued[task.Key] = struct{}{}

	heap.Push(f.queue, queuedTask{task: task, seq: f.seq})
	f.seq++
	return true
}

// Next returns the shallowest queued task and marks its key visited.
// The bool result is false if the frontier is empty.
func (f *Frontier) Next() (kura.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue.Len() == 0 {
		return kura.Task{}, false
	}
	qt, _ := heap.Pop(f.queue).(queuedTask)
	delete(f.queued, qt.task.Key)
	f.visited[qt.task.Key] = struct{}{}
	return qt.task, true
}

// Peek returns the task Next would return without removing it.
func (f *Frontier) Peek() (kura.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue.Len() == 0 {
		return kura.Task{}, false
	}
	return (*f.queue)[0].task, true
}

// Len returns the number of queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// Visited returns the number of dispatched keys.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Seen returns true if key has been dispatched or is queued.
func (f *Frontier) Seen(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen(key)
}

func (f *Frontier) seen(key string) bool {
	if !f.filter.Test(key) {
		return false
	}
	if _, ok := f.visited[key]; ok {
		return true
	}
	_, ok := f.queued[key]
	return ok
}

type queuedTask struct {
	task kura.Task
	seq  uint64
}

// taskHeap implements heap.Interface as a min-heap on (depth, seq).
type taskHeap []queuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Depth != h[j].task.Depth {
		return h[i].task.Depth < h[j].task.Depth
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	qt, _ := x.(queuedTask)
	*h = append(*h, qt)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
