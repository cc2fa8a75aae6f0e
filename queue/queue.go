// Package queue implements the bounded priority FIFO request queue that sits
// between the IPC handlers and the worker pool.
package queue

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/wire"
)

// Result is delivered to a Request's sink exactly once, either with a
// response or an error.
type Result struct {
	Response wire.InferenceResponse
	Err      error
}

// Request is a single admitted item of work.
type Request struct {
	ID        uint64
	ModelID   string
	Prompt    string
	Params    wire.SamplingParams
	Priority  int
	EnqueuedAt time.Time
	Expiry     time.Time // zero means no expiry

	sink    chan Result
	resolve sync.Once
}

// Sink returns the channel the request's result is delivered on, closed
// after exactly one send.
func (r *Request) Sink() <-chan Result { return r.sink }

type entry struct {
	req       *Request
	seq       uint64
	cancelled atomic.Bool
	index     int
}

// priorityHeap orders entries by priority descending, then by sequence
// ascending (FIFO within equal priority).
type priorityHeap []*entry

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *priorityHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Queue is a bounded priority FIFO with admission control and per-request
// expiry.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond
	h    priorityHeap
	byID map[uint64]*entry

	maxPending       int
	maxContextTokens int

	nextID  uint64
	nextSeq uint64
	closed  bool
}

// New builds a Queue admitting at most maxPending outstanding requests and
// rejecting prompts estimated to exceed maxContextTokens.
func New(maxPending, maxContextTokens int) *Queue {
	q := &Queue{
		byID:             make(map[uint64]*entry),
		maxPending:       maxPending,
		maxContextTokens: maxContextTokens,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// estimatedTokens is a conservative token estimate for admission control:
// ceil(len_bytes / 4).
func estimatedTokens(prompt string) int {
	n := len(prompt)
	return (n + 3) / 4
}

// Enqueue performs tier-1 admission (queue-full, context-length checks),
// assigns a monotonic id, and returns the admitted Request.
func (q *Queue) Enqueue(modelID, prompt string, params wire.SamplingParams, priority int) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, liberr.New(liberr.MinPkgQueue+1, liberr.KindShuttingDown, "queue is shutting down")
	}

	if len(q.h) >= q.maxPending {
		return nil, liberr.New(liberr.MinPkgQueue+2, liberr.KindResourceExhausted, "queue full")
	}

	if q.maxContextTokens > 0 && estimatedTokens(prompt) > q.maxContextTokens {
		return nil, liberr.New(liberr.MinPkgQueue+3, liberr.KindInvalidInput, "prompt exceeds maximum context length")
	}

	q.nextID++
	id := q.nextID
	q.nextSeq++

	now := time.Now()
	var expiry time.Time
	if params.TimeoutMs > 0 {
		expiry = now.Add(time.Duration(params.TimeoutMs) * time.Millisecond)
	}

	req := &Request{
		ID:         id,
		ModelID:    modelID,
		Prompt:     prompt,
		Params:     params,
		Priority:   priority,
		EnqueuedAt: now,
		Expiry:     expiry,
		sink:       make(chan Result, 1),
	}

	e := &entry{req: req, seq: q.nextSeq}
	heap.Push(&q.h, e)
	q.byID[id] = e

	q.cond.Signal()
	return req, nil
}

// Dequeue blocks until a non-cancelled, non-expired request is available or
// the queue is closed, discarding cancelled/expired entries as it scans.
func (q *Queue) Dequeue() (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		for len(q.h) > 0 {
			e := heap.Pop(&q.h).(*entry)
			delete(q.byID, e.req.ID)

			if e.cancelled.Load() {
				e.req.Resolve(Result{Err: liberr.New(liberr.MinPkgQueue+4, liberr.KindCancelled, "request cancelled")})
				continue
			}
			if !e.req.Expiry.IsZero() && time.Now().After(e.req.Expiry) {
				e.req.Resolve(Result{Err: liberr.New(liberr.MinPkgQueue+5, liberr.KindDeadlineExceeded, "request expired before dispatch")})
				continue
			}
			return e.req, nil
		}

		if q.closed {
			return nil, liberr.New(liberr.MinPkgQueue+6, liberr.KindShuttingDown, "queue is shutting down")
		}

		q.cond.Wait()
	}
}

// Cancel marks id's entry cancelled; the next Dequeue that reaches it
// discards it and resolves its sink with a Cancelled error.
func (q *Queue) Cancel(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return false
	}
	e.cancelled.Store(true)
	return true
}

// Wake releases any goroutine blocked in Dequeue; used by shutdown.
func (q *Queue) Wake() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cond.Broadcast()
}

// Close marks the queue closed and wakes every waiter. Remaining entries
// are left for the caller to drain via repeated Dequeue calls, which will
// now return the ShuttingDown error once the heap empties.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len returns the current number of pending (not yet dequeued) entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Resolve delivers res to the request's sink and closes it. Only the first
// call wins; the queue resolves cancelled/expired entries and the worker
// resolves dispatched ones, and a cancel can race the dispatch.
func (r *Request) Resolve(res Result) {
	r.resolve.Do(func() {
		r.sink <- res
		close(r.sink)
	})
}
