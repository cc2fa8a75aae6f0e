// Package worker implements the single long-running async worker that
// drains the request queue and invokes a model to produce results.
package worker

import (
	"context"
	"sync"

	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/logger"
	"github.com/mythologiq/gg-core/queue"
	"github.com/mythologiq/gg-core/wire"
)

// Model is the capability the worker invokes for each dequeued request. A
// real implementation dispatches into the model pool and the loaded
// runtime; tests supply a stub.
type Model interface {
	Infer(ctx context.Context, modelID, prompt string, params wire.SamplingParams) (wire.InferenceResponse, error)
}

// Worker drains q, invoking model for every dequeued request and delivering
// the result back through the request's own sink.
type Worker struct {
	q     *queue.Queue
	model Model
	log   logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Worker bound to q and model. log may be nil.
func New(q *queue.Queue, model Model, log logger.Logger) *Worker {
	return &Worker{q: q, model: model, log: log, done: make(chan struct{})}
}

// Run drains the queue until ctx is cancelled, invoking model for each
// request and delivering its result. Run blocks until it returns; callers
// typically run it in its own goroutine and call Stop to end it.
func (w *Worker) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer close(w.done)

	for {
		req, err := w.dequeue(ctx)
		if err != nil {
			return
		}
		if req != nil {
			w.handle(ctx, req)
		}
	}
}

func (w *Worker) dequeue(ctx context.Context) (*queue.Request, error) {
	type result struct {
		req *queue.Request
		err error
	}
	ch := make(chan result, 1)
	go func() {
		req, err := w.q.Dequeue()
		ch <- result{req, err}
	}()

	select {
	case <-ctx.Done():
		w.q.Wake()
		// The dequeue goroutine may have already claimed a request before
		// the wake landed; resolve it so its client is not left waiting.
		go func() {
			if r := <-ch; r.req != nil {
				r.req.Resolve(queue.Result{Err: liberr.New(liberr.MinPkgWorker+2, liberr.KindShuttingDown, "worker shutting down")})
			}
		}()
		return nil, liberr.New(liberr.MinPkgWorker+1, liberr.KindCancelled, "worker shutting down")
	case r := <-ch:
		return r.req, r.err
	}
}

func (w *Worker) handle(ctx context.Context, req *queue.Request) {
	resp, err := w.model.Infer(ctx, req.ModelID, req.Prompt, req.Params)
	if err != nil && w.log != nil {
		w.log.Entry(logger.WarnLevel, "inference failed").
			FieldAdd("model_id", req.ModelID).
			ErrorAdd(true, err).Log()
	}
	req.Resolve(queue.Result{Response: resp, Err: err})
}

// Stop signals Run to exit and blocks until it has returned. Stop is a
// no-op if Run was never started.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-w.done
}
