package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/logger"
)

type deque struct {
	mu    sync.Mutex
	items []*prioritizedTask
}

func (d *deque) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// insert places t at the position that keeps items priority-descending,
// FIFO-within-priority by sequence; returns false if the deque is at cap.
func (d *deque) insert(t *prioritizedTask, cap int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.items) >= cap {
		return false
	}

	pos := len(d.items)
	for i, cur := range d.items {
		if cur.priority < t.priority || (cur.priority == t.priority && cur.sequence > t.sequence) {
			pos = i
			break
		}
	}

	d.items = append(d.items, nil)
	copy(d.items[pos+1:], d.items[pos:])
	d.items[pos] = t
	return true
}

func (d *deque) popFront() *prioritizedTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil
	}
	t := d.items[0]
	d.items = d.items[1:]
	return t
}

func (d *deque) popBack() *prioritizedTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items)
	if n == 0 {
		return nil
	}
	t := d.items[n-1]
	d.items = d.items[:n-1]
	return t
}

// Pool is a work-stealing thread pool of goroutine workers, each with its
// own bounded priority deque plus a shared overflow deque.
type Pool struct {
	cfg    Config
	log    logger.Logger
	queues []*deque
	global *deque
	active []atomic.Bool

	seq      atomic.Uint64
	shutdown atomic.Bool

	wakeMu sync.Mutex
	wakeCh chan struct{}

	statsMu sync.RWMutex
	stats   Stats

	wg sync.WaitGroup
}

// New builds and starts a Pool per cfg. log may be nil; a nil logger
// discards diagnostic messages.
func New(cfg Config, log logger.Logger) *Pool {
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = runtime.GOMAXPROCS(0)
		if cfg.NumThreads < 1 {
			cfg.NumThreads = 1
		}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	p := &Pool{
		cfg:    cfg,
		log:    log,
		queues: make([]*deque, cfg.NumThreads),
		global: &deque{},
		active: make([]atomic.Bool, cfg.NumThreads),
		wakeCh: make(chan struct{}),
	}

	for i := range p.queues {
		p.queues[i] = &deque{}
	}

	for id := 0; id < cfg.NumThreads; id++ {
		p.wg.Add(1)
		go p.workerLoop(id)
	}

	return p
}

// Submit enqueues task at PriorityNormal.
func (p *Pool) Submit(task Task) error {
	return p.SubmitWithPriority(task, PriorityNormal)
}

// SubmitWithPriority enqueues task onto the least-loaded worker's deque,
// falling back to the global overflow deque when every worker is at cap.
func (p *Pool) SubmitWithPriority(task Task, priority Priority) error {
	if p.shutdown.Load() {
		return liberr.New(liberr.MinPkgWorkerPool+1, liberr.KindShuttingDown, "pool is shut down")
	}

	pt := &prioritizedTask{task: task, priority: priority, sequence: p.seq.Add(1)}

	id := p.leastLoadedWorker()
	target := p.queues[id]
	if !target.insert(pt, p.cfg.QueueSize) {
		if !p.global.insert(pt, p.cfg.QueueSize) {
			p.statsMu.Lock()
			p.stats.QueueOverflows++
			p.statsMu.Unlock()
			return liberr.New(liberr.MinPkgWorkerPool+2, liberr.KindResourceExhausted, "task queue is full")
		}
	}

	p.broadcastWake()
	return nil
}

// broadcastWake wakes every worker parked in the idle wait by closing and
// replacing the shared wake channel.
func (p *Pool) broadcastWake() {
	p.wakeMu.Lock()
	close(p.wakeCh)
	p.wakeCh = make(chan struct{})
	p.wakeMu.Unlock()
}

func (p *Pool) wakeChan() chan struct{} {
	p.wakeMu.Lock()
	defer p.wakeMu.Unlock()
	return p.wakeCh
}

func (p *Pool) leastLoadedWorker() int {
	best, bestLen := 0, p.queues[0].len()
	for i := 1; i < len(p.queues); i++ {
		if n := p.queues[i].len(); n < bestLen {
			best, bestLen = i, n
		}
	}
	return best
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for !p.shutdown.Load() {
		pt := own.popFront()
		if pt == nil {
			pt = p.global.popFront()
		}
		if pt == nil && p.cfg.EnableWorkStealing {
			pt = p.trySteal(id)
		}

		if pt != nil {
			p.active[id].Store(true)
			p.run(pt)
			p.active[id].Store(false)
			continue
		}

		select {
		case <-p.wakeChan():
		case <-time.After(p.cfg.IdleTimeout):
		}
	}
}

func (p *Pool) trySteal(selfID int) *prioritizedTask {
	for id, q := range p.queues {
		if id == selfID {
			continue
		}
		if pt := q.popBack(); pt != nil {
			p.statsMu.Lock()
			p.stats.WorkSteals++
			p.statsMu.Unlock()
			return pt
		}
	}
	return nil
}

func (p *Pool) run(pt *prioritizedTask) {
	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil && p.log != nil {
				p.log.Entry(logger.WarnLevel, "worker task panicked, recovering").
					FieldAdd("recover", r).Log()
			}
		}()
		pt.task()
	}()
	execUs := uint64(time.Since(start).Microseconds())

	p.statsMu.Lock()
	p.stats.TotalTasksExecuted++
	if pt.priority >= PriorityHigh {
		p.stats.HighPriorityTasks++
	}
	if p.stats.AvgExecTimeUs == 0 {
		p.stats.AvgExecTimeUs = execUs
	} else {
		p.stats.AvgExecTimeUs = (p.stats.AvgExecTimeUs*9 + execUs) / 10
	}
	p.statsMu.Unlock()
}

// Stats returns a snapshot of pool activity.
func (p *Pool) Stats() Stats {
	p.statsMu.RLock()
	s := p.stats
	p.statsMu.RUnlock()

	for i := range p.active {
		if p.active[i].Load() {
			s.ThreadsActive++
		}
	}
	s.ThreadsIdle = len(p.queues) - s.ThreadsActive
	return s
}

// NumThreads returns the number of worker goroutines.
func (p *Pool) NumThreads() int { return len(p.queues) }

// IsShutdown reports whether Shutdown has been called.
func (p *Pool) IsShutdown() bool { return p.shutdown.Load() }

// Shutdown flags the pool closed and wakes every idle worker; it does not
// wait for in-flight or queued tasks.
func (p *Pool) Shutdown() {
	p.shutdown.Store(true)
	p.broadcastWake()
}

// Join calls Shutdown and blocks until every worker goroutine has exited.
func (p *Pool) Join() {
	p.Shutdown()
	p.wg.Wait()
}
