package kvcache

import (
	"sync"
	"sync/atomic"
	"time"

	liberr "github.com/mythologiq/gg-core/errors"
)

// SequenceID identifies a sequence allocated within a Manager.
type SequenceID uint64

// SlidingWindow configures eviction of pages older than a retained window.
type SlidingWindow struct {
	WindowSize    int
	OverlapTokens int
}

// Config controls a Manager's sizing and optional features.
type Config struct {
	HiddenDim         int
	MaxPages          int
	MaxSeqLen         int
	EnableQuantization bool
	SlidingWindow     *SlidingWindow
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	ActiveSequences uint64
	PagesAllocated  uint64
	Evictions       uint64
}

type sequenceEntry struct {
	mu           sync.RWMutex
	pageIDs      []PageID
	evictedPages int
	seqLen       int
	lastAccess   time.Time
	accessCount  uint64
	quant        *q8Store
}

// pageIndex maps a logical position to its slot in pageIDs, accounting for
// leading pages already dropped by the sliding window. Negative means the
// position has been evicted.
func (e *sequenceEntry) pageIndex(pos int) int {
	return pos/PageTokens - e.evictedPages
}

// Manager is the paged KV-cache: a bounded pool of pages shared across
// sequences, each sequence owning an ordered list of pages plus an
// optional quantized shadow store.
type Manager struct {
	cfg       Config
	table     *pageTable
	mu        sync.RWMutex
	sequences map[SequenceID]*sequenceEntry
	lru       []SequenceID
	lruMu     sync.Mutex

	nextSeqID atomic.Uint64
	evictions atomic.Uint64
}

// New builds a Manager per cfg.
func New(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		table:     newPageTable(cfg.HiddenDim, cfg.MaxPages),
		sequences: make(map[SequenceID]*sequenceEntry),
	}
}

// AllocateSequence reserves a new sequence and returns its id.
func (m *Manager) AllocateSequence() SequenceID {
	id := SequenceID(m.nextSeqID.Add(1))

	var qs *q8Store
	if m.cfg.EnableQuantization {
		qs = newQ8Store(m.cfg.HiddenDim, m.cfg.MaxSeqLen)
	}

	m.mu.Lock()
	m.sequences[id] = &sequenceEntry{lastAccess: time.Now(), quant: qs}
	m.mu.Unlock()

	m.lruMu.Lock()
	m.lru = append(m.lru, id)
	m.lruMu.Unlock()

	return id
}

func (m *Manager) get(id SequenceID) (*sequenceEntry, error) {
	m.mu.RLock()
	e, ok := m.sequences[id]
	m.mu.RUnlock()
	if !ok {
		return nil, liberr.New(liberr.MinPkgKVCache+1, liberr.KindNotFound, "sequence not found")
	}
	return e, nil
}

// AppendKV appends one token's key/value rows to seq's tail, allocating a
// fresh page at page boundaries and evicting the LRU sequence on exhaustion.
// Each append moves seq to the most-recently-used end of the eviction order.
func (m *Manager) AppendKV(id SequenceID, keys, values []float32) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastAccess = time.Now()
	e.accessCount++

	m.lruMu.Lock()
	for i, sid := range m.lru {
		if sid == id {
			m.lru = append(append(m.lru[:i:i], m.lru[i+1:]...), id)
			break
		}
	}
	m.lruMu.Unlock()

	slot := e.seqLen % PageTokens
	if slot == 0 || len(e.pageIDs) == 0 {
		pid, err := m.allocatePageWithEviction()
		if err != nil {
			return err
		}
		e.pageIDs = append(e.pageIDs, pid)
	}

	pageIdx := e.pageIndex(e.seqLen)
	p, ok := m.table.get(e.pageIDs[pageIdx])
	if !ok {
		return liberr.New(liberr.MinPkgKVCache+2, liberr.KindNotFound, "page not found")
	}
	p.write(slot, keys, values, m.cfg.HiddenDim)

	if e.quant != nil {
		if !e.quant.append(keys, values) {
			e.quant.reset()
			e.quant.append(keys, values)
		}
	}

	e.seqLen++
	return nil
}

func (m *Manager) allocatePageWithEviction() (PageID, error) {
	m.mu.Lock()
	pid, ok := m.table.allocate()
	m.mu.Unlock()
	if ok {
		return pid, nil
	}

	if err := m.evictLRU(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	pid, ok = m.table.allocate()
	m.mu.Unlock()
	if !ok {
		return 0, liberr.New(liberr.MinPkgKVCache+3, liberr.KindResourceExhausted, "memory exhausted")
	}
	return pid, nil
}

func (m *Manager) evictLRU() error {
	m.lruMu.Lock()
	if len(m.lru) == 0 {
		m.lruMu.Unlock()
		return nil
	}
	victim := m.lru[0]
	m.lru = m.lru[1:]
	m.lruMu.Unlock()

	return m.FreeSequence(victim)
}

// FreeSequence releases a sequence's pages back to the pool.
func (m *Manager) FreeSequence(id SequenceID) error {
	m.mu.Lock()
	e, ok := m.sequences[id]
	if !ok {
		m.mu.Unlock()
		return liberr.New(liberr.MinPkgKVCache+4, liberr.KindNotFound, "sequence not found")
	}
	delete(m.sequences, id)
	m.table.release(e.pageIDs)
	m.mu.Unlock()

	m.lruMu.Lock()
	for i, sid := range m.lru {
		if sid == id {
			m.lru = append(m.lru[:i], m.lru[i+1:]...)
			break
		}
	}
	m.lruMu.Unlock()

	m.evictions.Add(1)
	return nil
}

// ReadKV reads the key/value rows at pos within seq, preferring the
// quantized shadow store when it covers pos.
func (m *Manager) ReadKV(id SequenceID, pos int, keysOut, valuesOut []float32) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if pos >= e.seqLen {
		return liberr.New(liberr.MinPkgKVCache+5, liberr.KindInvalidInput, "position out of bounds")
	}

	if e.quant != nil {
		// The quantized store holds the most recent quant.seqLen() positions;
		// it restarts from empty each time it fills.
		if base := e.seqLen - e.quant.seqLen(); pos >= base {
			e.quant.readKeys(pos-base, keysOut)
			e.quant.readValues(pos-base, valuesOut)
			return nil
		}
	}

	pageIdx := e.pageIndex(pos)
	if pageIdx < 0 || pageIdx >= len(e.pageIDs) {
		return liberr.New(liberr.MinPkgKVCache+6, liberr.KindNotFound, "page not found")
	}
	p, ok := m.table.get(e.pageIDs[pageIdx])
	if !ok {
		return liberr.New(liberr.MinPkgKVCache+6, liberr.KindNotFound, "page not found")
	}

	slot := pos % PageTokens
	copy(keysOut, p.readKeys(slot, m.cfg.HiddenDim))
	copy(valuesOut, p.readValues(slot, m.cfg.HiddenDim))
	return nil
}

// AttentionScores computes dot(query, key) for every cached position in
// seq, preferring the quantized store when it covers the whole sequence.
func (m *Manager) AttentionScores(id SequenceID, query []float32, scoresOut []float32) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.quant != nil && e.quant.seqLen() >= e.seqLen {
		e.quant.attentionScores(query, scoresOut)
		return nil
	}

	for pos := 0; pos < e.seqLen; pos++ {
		pageIdx := e.pageIndex(pos)
		if pageIdx < 0 || pageIdx >= len(e.pageIDs) {
			continue
		}
		p, ok := m.table.get(e.pageIDs[pageIdx])
		if !ok {
			continue
		}
		scoresOut[pos] = dotProduct(query, p.readKeys(pos%PageTokens, m.cfg.HiddenDim))
	}
	return nil
}

// EvictBeyondWindow drops pages of seq older than the configured sliding
// window, returning the number of pages evicted. A nil SlidingWindow is a
// no-op.
func (m *Manager) EvictBeyondWindow(id SequenceID, currentPos int) (int, error) {
	if m.cfg.SlidingWindow == nil {
		return 0, nil
	}

	e, err := m.get(id)
	if err != nil {
		return 0, err
	}

	keep := m.cfg.SlidingWindow.WindowSize + m.cfg.SlidingWindow.OverlapTokens
	cutoff := currentPos - keep
	if cutoff <= 0 {
		return 0, nil
	}

	cutoffPage := cutoff / PageTokens

	e.mu.Lock()
	defer e.mu.Unlock()

	// cutoffPage is a logical page index; earlier calls may already have
	// dropped some of the pages before it.
	evictCount := cutoffPage - e.evictedPages
	if evictCount > len(e.pageIDs) {
		evictCount = len(e.pageIDs)
	}
	if evictCount <= 0 {
		return 0, nil
	}

	evicted := append([]PageID(nil), e.pageIDs[:evictCount]...)
	e.pageIDs = e.pageIDs[evictCount:]
	e.evictedPages += evictCount

	m.mu.Lock()
	m.table.release(evicted)
	m.mu.Unlock()

	return evictCount, nil
}

// SeqLen returns a sequence's current token length.
func (m *Manager) SeqLen(id SequenceID) (int, error) {
	e, err := m.get(id)
	if err != nil {
		return 0, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seqLen, nil
}

// HasSequence reports whether id names a live sequence.
func (m *Manager) HasSequence(id SequenceID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sequences[id]
	return ok
}

// ActiveSequences returns the number of live sequences.
func (m *Manager) ActiveSequences() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sequences)
}

// SequencePageCount returns the number of pages a sequence currently owns.
func (m *Manager) SequencePageCount(id SequenceID) int {
	e, err := m.get(id)
	if err != nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pageIDs)
}

// MemoryUsage estimates bytes held by the allocated page pool.
func (m *Manager) MemoryUsage() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.table.pageCount() * PageTokens * m.cfg.HiddenDim * 2 * 4
}

// Stats returns a point-in-time activity snapshot.
func (m *Manager) Stats() Stats {
	return Stats{
		ActiveSequences: uint64(m.ActiveSequences()),
		PagesAllocated:  uint64(m.table.pageCount()),
		Evictions:       m.evictions.Load(),
	}
}

// Reset clears all sequences and releases their pages.
func (m *Manager) Reset() {
	m.mu.Lock()
	for _, e := range m.sequences {
		m.table.release(e.pageIDs)
	}
	m.sequences = make(map[SequenceID]*sequenceEntry)
	m.mu.Unlock()

	m.lruMu.Lock()
	m.lru = nil
	m.lruMu.Unlock()
}
