// Package smartloader predicts which model tier a caller is about to need
// from semantic hints, preloads it ahead of the request, and auto-unloads
// models that have sat idle too long.
package smartloader

import (
	"time"

	"github.com/mythologiq/gg-core/modelregistry"
)

// Tier classifies a model by its latency/quality tradeoff.
type Tier uint8

const (
	TierLight Tier = iota
	TierBalanced
	TierQuality
)

func (t Tier) String() string {
	switch t {
	case TierLight:
		return "light"
	case TierBalanced:
		return "balanced"
	case TierQuality:
		return "quality"
	default:
		return "unknown"
	}
}

// State is a registered model's load lifecycle.
type State uint8

const (
	StateRegistered State = iota
	StateLoading
	StateReady
	StateFailed
)

// Hint carries a caller's semantic signal about upcoming load.
type Hint struct {
	kind  hintKind
	tier  Tier
	count int
}

type hintKind uint8

const (
	hintQuickQuery hintKind = iota
	hintComplexTask
	hintBatchIncoming
	hintUserIdle
	hintPreferModel
)

// QuickQuery signals a small, latency-sensitive request is coming.
func QuickQuery() Hint { return Hint{kind: hintQuickQuery} }

// ComplexTask signals a request that benefits from the highest-quality tier.
func ComplexTask() Hint { return Hint{kind: hintComplexTask} }

// BatchIncoming signals count requests are about to arrive together.
func BatchIncoming(count int) Hint { return Hint{kind: hintBatchIncoming, count: count} }

// UserIdle signals the caller has gone idle, a good moment to preload.
func UserIdle() Hint { return Hint{kind: hintUserIdle} }

// PreferModel explicitly names the desired tier.
func PreferModel(tier Tier) Hint { return Hint{kind: hintPreferModel, tier: tier} }

// Config tunes a Loader's concurrency and idle-unload behavior.
type Config struct {
	AutoUnloadAfter    time.Duration
	MaxConcurrentLoads int
	EnablePrediction   bool
}

// DefaultConfig unloads idle models after a minute and loads one at a time.
func DefaultConfig() Config {
	return Config{
		AutoUnloadAfter:    60 * time.Second,
		MaxConcurrentLoads: 1,
		EnablePrediction:   true,
	}
}

// Metrics is a point-in-time snapshot of loader activity.
type Metrics struct {
	TotalLoads         uint64
	CacheHits          uint64
	PredictionsMade    uint64
	PredictionsCorrect uint64
	AvgLoadMs          float64
	AvgCacheHitMs      float64
}

// LoadedModel names one currently-loaded model and its tier, for status.
type LoadedModel struct {
	Name string
	Tier Tier
}

// Status is a point-in-time snapshot of loader contents.
type Status struct {
	RegisteredCount  int
	LoadedCount      int
	LoadedModels     []LoadedModel
	ActiveTier       *Tier
	TotalLoadedBytes uint64
	PredictedNext    string
}

// LoadFunc performs the actual (expensive) model load given its path,
// returning a handle the caller can use against the model registry.
type LoadFunc func(path string) (modelregistry.Handle, error)

type modelEntry struct {
	path      string
	tier      Tier
	sizeBytes uint64
	state     State

	handle     modelregistry.Handle
	hasHandle  bool
	lastUsed   time.Time
	useCount   uint64
	loadTimeMs uint64
}
