package smartloader

import (
	"context"
	"os"
	"sync"
	"time"

	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/modelregistry"
)

// Loader registers candidate models by name and tier, loads them on
// demand through a caller-supplied LoadFunc, and predicts which one to
// preload next from semantic hints.
type Loader struct {
	cfg      Config
	registry *modelregistry.Registry
	load     LoadFunc

	mu     sync.Mutex
	models map[string]*modelEntry

	predictedNext string
	activeTier    *Tier

	loadSem chan struct{}

	metricsMu sync.Mutex
	metrics   Metrics

	stop chan struct{}
	once sync.Once
}

// New builds a Loader that loads models via load and registers them in registry.
func New(cfg Config, registry *modelregistry.Registry, load LoadFunc) *Loader {
	sem := cfg.MaxConcurrentLoads
	if sem < 1 {
		sem = 1
	}
	return &Loader{
		cfg:      cfg,
		registry: registry,
		load:     load,
		models:   make(map[string]*modelEntry),
		loadSem:  make(chan struct{}, sem),
		stop:     make(chan struct{}),
	}
}

// Register records a candidate model at path under name and tier without
// loading it. Registration has zero loading overhead.
func (l *Loader) Register(name, path string, tier Tier) error {
	info, err := os.Stat(path)
	if err != nil {
		return liberr.Newf(smartLoaderErr(1), liberr.KindInvalidInput, "stat model path: %v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.models[name]; ok {
		return liberr.Newf(smartLoaderErr(2), liberr.KindInvalidInput, "model already registered: %s", name)
	}

	l.models[name] = &modelEntry{
		path:      path,
		tier:      tier,
		sizeBytes: uint64(info.Size()),
		state:     StateRegistered,
	}
	return nil
}

// Hint feeds a semantic signal forward, updating the predicted next model
// and, for UserIdle, opportunistically preloading it in the background.
func (l *Loader) Hint(h Hint) {
	if !l.cfg.EnablePrediction {
		return
	}

	switch h.kind {
	case hintQuickQuery:
		l.predict(TierLight)
	case hintComplexTask:
		l.predict(TierQuality)
	case hintPreferModel:
		l.predict(h.tier)
	case hintBatchIncoming:
		if h.count > 4 {
			l.predict(TierQuality)
		} else {
			l.predict(TierBalanced)
		}
	case hintUserIdle:
		l.mu.Lock()
		name := l.predictedNext
		l.mu.Unlock()
		if name != "" {
			go l.Get(name) //nolint:errcheck
		}
	}
}

// predict records the best registered model matching tier as the
// predicted next load, preferring an already-loaded one of that tier.
func (l *Loader) predict(tier Tier) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var candidate string
	for name, e := range l.models {
		if e.tier != tier {
			continue
		}
		if candidate == "" || (e.state == StateReady && l.models[candidate].state != StateReady) {
			candidate = name
		}
	}
	if candidate == "" {
		return
	}
	l.predictedNext = candidate

	l.metricsMu.Lock()
	l.metrics.PredictionsMade++
	l.metricsMu.Unlock()
}

// Get returns a handle for name, loading it first if necessary. A
// load-in-progress or already-ready model blocks on the bounded load
// semaphore only when it must actually perform IO.
func (l *Loader) Get(name string) (modelregistry.Handle, error) {
	l.mu.Lock()
	e, ok := l.models[name]
	if !ok {
		l.mu.Unlock()
		return 0, liberr.Newf(smartLoaderErr(3), liberr.KindNotFound, "model not registered: %s", name)
	}

	if e.state == StateReady {
		e.lastUsed = time.Now()
		e.useCount++
		h := e.handle
		tier := e.tier
		l.activeTier = &tier
		l.mu.Unlock()

		l.metricsMu.Lock()
		l.metrics.CacheHits++
		if l.predictedNext == name {
			l.metrics.PredictionsCorrect++
		}
		l.metricsMu.Unlock()

		return h, nil
	}
	e.state = StateLoading
	l.mu.Unlock()

	l.loadSem <- struct{}{}
	defer func() { <-l.loadSem }()

	start := time.Now()
	handle, err := l.load(e.path)
	elapsed := time.Since(start)

	l.mu.Lock()
	if err != nil {
		e.state = StateFailed
		l.mu.Unlock()
		return 0, liberr.Newf(smartLoaderErr(4), liberr.KindInternal, "load model %s: %v", name, err)
	}
	e.state = StateReady
	e.handle = handle
	e.hasHandle = true
	e.lastUsed = time.Now()
	e.useCount++
	e.loadTimeMs = uint64(elapsed.Milliseconds())
	tier := e.tier
	l.activeTier = &tier
	l.mu.Unlock()

	l.metricsMu.Lock()
	total := l.metrics.TotalLoads + 1
	l.metrics.AvgLoadMs = (l.metrics.AvgLoadMs*float64(l.metrics.TotalLoads) + float64(elapsed.Milliseconds())) / float64(total)
	l.metrics.TotalLoads = total
	l.metricsMu.Unlock()

	return handle, nil
}

// Status returns a point-in-time snapshot of loader contents.
func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	var loaded []LoadedModel
	var totalBytes uint64
	for name, e := range l.models {
		if e.state == StateReady {
			loaded = append(loaded, LoadedModel{Name: name, Tier: e.tier})
			totalBytes += e.sizeBytes
		}
	}

	return Status{
		RegisteredCount:  len(l.models),
		LoadedCount:      len(loaded),
		LoadedModels:     loaded,
		ActiveTier:       l.activeTier,
		TotalLoadedBytes: totalBytes,
		PredictedNext:    l.predictedNext,
	}
}

// Metrics returns a point-in-time snapshot of loader metrics.
func (l *Loader) Metrics() Metrics {
	l.metricsMu.Lock()
	defer l.metricsMu.Unlock()
	return l.metrics
}

// RunAutoUnload blocks, unloading models idle beyond cfg.AutoUnloadAfter
// on a periodic tick, until ctx is cancelled or Stop is called.
func (l *Loader) RunAutoUnload(ctx context.Context) {
	if l.cfg.AutoUnloadAfter <= 0 {
		return
	}
	ticker := time.NewTicker(l.cfg.AutoUnloadAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-ticker.C:
			l.unloadIdle()
		}
	}
}

func (l *Loader) unloadIdle() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.models {
		if e.state != StateReady {
			continue
		}
		if now.Sub(e.lastUsed) < l.cfg.AutoUnloadAfter {
			continue
		}
		if e.hasHandle {
			l.registry.Unregister(e.handle)
		}
		e.state = StateRegistered
		e.hasHandle = false
	}
}

// Stop ends a running RunAutoUnload loop.
func (l *Loader) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func smartLoaderErr(n uint16) uint16 {
	return liberr.MinPkgSmartLoader + n
}
