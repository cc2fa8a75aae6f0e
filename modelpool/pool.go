// Package modelpool keeps a small number of models resident in memory so
// switching the active model is instant, rather than paying the load-time
// cost of the smart loader on every tier change. Eviction favors higher
// tiers first; within a tier, frequent use and recent use both keep a model
// resident.
package modelpool

import (
	"sync"
	"time"

	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/modelregistry"
)

// Tier ranks a model for eviction priority; higher tiers are kept longer.
type Tier uint8

const (
	TierTesting Tier = iota
	TierDefault
	TierQuality
)

type pooledModel struct {
	handle    modelregistry.Handle
	tier      Tier
	memoryBytes uint64

	loadedAt time.Time

	mu             sync.Mutex
	lastUsed       time.Time
	useCount       uint64
	warmupComplete bool
}

// evictionScore ranks models for eviction: lower evicts first. Tier
// dominates; within a tier the use count (capped at 1000) adds to the score
// and whole seconds since last use (capped at 999) subtract from it.
func (m *pooledModel) evictionScore(now time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	tierWeight := int64(m.tier) * 1_000_000
	recencyWeight := int64(now.Sub(m.lastUsed) / time.Second)
	if recencyWeight > 999 {
		recencyWeight = 999
	}
	usageWeight := int64(m.useCount)
	if usageWeight > 1000 {
		usageWeight = 1000
	}
	return tierWeight + usageWeight - recencyWeight
}

// Config sizes and tunes a Pool.
type Config struct {
	MaxModels      int
	MaxMemoryBytes uint64
	WarmupPrompt   string
	EnablePreload  bool
}

// DefaultConfig matches the stock single-host deployment: three resident
// models, an 8 GiB memory ceiling.
func DefaultConfig() Config {
	return Config{
		MaxModels:      3,
		MaxMemoryBytes: 8 * 1024 * 1024 * 1024,
		WarmupPrompt:   "Hello",
		EnablePreload:  true,
	}
}

// Metrics is a point-in-time snapshot of pool activity.
type Metrics struct {
	PoolHits           uint64
	PoolMisses         uint64
	Evictions          uint64
	WarmupsCompleted   uint64
	AvgSwitchLatencyNs uint64
}

// SwitchResult reports the outcome of switching to a pooled model.
type SwitchResult struct {
	Handle        modelregistry.Handle
	SwitchLatency time.Duration
	WasPreloaded  bool
	WasWarmed     bool
}

// Status is a point-in-time snapshot of pool contents.
type Status struct {
	ModelCount       int
	TotalMemoryBytes uint64
	ActiveModel      string
	LoadedModels     []string
	Metrics          Metrics
}

// Pool keeps a bounded set of models preloaded in a registry for instant
// switching between them.
type Pool struct {
	cfg      Config
	registry *modelregistry.Registry

	mu     sync.RWMutex
	models map[string]*pooledModel
	active string

	metricsMu sync.Mutex
	metrics   Metrics
}

// New builds a Pool backed by registry.
func New(cfg Config, registry *modelregistry.Registry) *Pool {
	return &Pool{
		cfg:      cfg,
		registry: registry,
		models:   make(map[string]*pooledModel),
	}
}

// Preload registers modelID in the pool without activating it, evicting
// by tier/usage/recency or by memory pressure as needed to fit.
func (p *Pool) Preload(modelID string, handle modelregistry.Handle, tier Tier, memoryBytes uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.models[modelID]; ok {
		return liberr.Newf(liberr.MinPkgModelPool+1, liberr.KindInvalidInput, "model already loaded: %s", modelID)
	}

	if len(p.models) >= p.cfg.MaxModels {
		if err := p.evictOneLocked(); err != nil {
			return err
		}
	}

	var current uint64
	for _, m := range p.models {
		current += m.memoryBytes
	}
	for current+memoryBytes > p.cfg.MaxMemoryBytes {
		if err := p.evictOneLocked(); err != nil {
			return err
		}
		current = 0
		for _, m := range p.models {
			current += m.memoryBytes
		}
	}

	now := time.Now()
	p.models[modelID] = &pooledModel{
		handle:      handle,
		tier:        tier,
		memoryBytes: memoryBytes,
		loadedAt:    now,
		lastUsed:    now,
	}
	return nil
}

// SwitchTo activates modelID, returning its handle and bumping usage
// counters. Switching a preloaded model is O(1) and sub-millisecond.
func (p *Pool) SwitchTo(modelID string) (SwitchResult, error) {
	start := time.Now()

	p.mu.Lock()
	m, ok := p.models[modelID]
	if !ok {
		p.mu.Unlock()
		return SwitchResult{}, liberr.Newf(liberr.MinPkgModelPool+2, liberr.KindNotFound, "model not in pool: %s", modelID)
	}

	m.mu.Lock()
	m.lastUsed = time.Now()
	m.useCount++
	wasWarmed := m.warmupComplete
	m.mu.Unlock()

	p.active = modelID
	p.mu.Unlock()

	latency := time.Since(start)

	p.metricsMu.Lock()
	p.metrics.PoolHits++
	total := p.metrics.PoolHits
	p.metrics.AvgSwitchLatencyNs = (p.metrics.AvgSwitchLatencyNs*(total-1) + uint64(latency.Nanoseconds())) / total
	p.metricsMu.Unlock()

	return SwitchResult{
		Handle:        m.handle,
		SwitchLatency: latency,
		WasPreloaded:  true,
		WasWarmed:     wasWarmed,
	}, nil
}

// MarkWarmed records that modelID has completed its warmup inference.
func (p *Pool) MarkWarmed(modelID string) {
	p.mu.RLock()
	m, ok := p.models[modelID]
	p.mu.RUnlock()
	if !ok {
		return
	}

	m.mu.Lock()
	m.warmupComplete = true
	m.mu.Unlock()

	p.metricsMu.Lock()
	p.metrics.WarmupsCompleted++
	p.metricsMu.Unlock()
}

// evictOneLocked evicts the lowest-scoring non-active model. Caller must
// hold p.mu for writing.
func (p *Pool) evictOneLocked() error {
	now := time.Now()

	var victimID string
	var victimScore int64
	found := false

	for id, m := range p.models {
		if id == p.active {
			continue
		}
		score := m.evictionScore(now)
		if !found || score < victimScore {
			victimID, victimScore, found = id, score, true
		}
	}

	if !found {
		return liberr.New(liberr.MinPkgModelPool+3, liberr.KindResourceExhausted, "eviction failed: no evictable models")
	}

	victim := p.models[victimID]
	delete(p.models, victimID)
	p.registry.Unregister(victim.handle)

	p.metricsMu.Lock()
	p.metrics.Evictions++
	p.metricsMu.Unlock()

	return nil
}

// Status returns a point-in-time snapshot of pool contents.
func (p *Pool) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var total uint64
	loaded := make([]string, 0, len(p.models))
	for id, m := range p.models {
		total += m.memoryBytes
		loaded = append(loaded, id)
	}

	p.metricsMu.Lock()
	metrics := p.metrics
	p.metricsMu.Unlock()

	return Status{
		ModelCount:       len(p.models),
		TotalMemoryBytes: total,
		ActiveModel:      p.active,
		LoadedModels:     loaded,
		Metrics:          metrics,
	}
}

// Contains reports whether modelID is currently pooled.
func (p *Pool) Contains(modelID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.models[modelID]
	return ok
}

// Active returns the currently active model id, if any.
func (p *Pool) Active() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active, p.active != ""
}

// Remove drops modelID from the pool unconditionally.
func (p *Pool) Remove(modelID string) (modelregistry.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.models[modelID]
	if !ok {
		return 0, false
	}
	delete(p.models, modelID)
	if p.active == modelID {
		p.active = ""
	}
	return m.handle, true
}
