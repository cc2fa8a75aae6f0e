// Package runtime assembles every subsystem — session auth, the request
// queue, the smart loader, the worker, and the framed socket transport —
// into a single process that can be started and drained cleanly.
package runtime

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mythologiq/gg-core/crypt"
	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/ipc"
	"github.com/mythologiq/gg-core/kvcache"
	"github.com/mythologiq/gg-core/logger"
	"github.com/mythologiq/gg-core/metrics"
	"github.com/mythologiq/gg-core/modelpool"
	"github.com/mythologiq/gg-core/modelregistry"
	"github.com/mythologiq/gg-core/queue"
	"github.com/mythologiq/gg-core/sanitize"
	"github.com/mythologiq/gg-core/session"
	"github.com/mythologiq/gg-core/smartloader"
	"github.com/mythologiq/gg-core/socket"
	"github.com/mythologiq/gg-core/wire"
	"github.com/mythologiq/gg-core/worker"
	"github.com/mythologiq/gg-core/workerpool"
)

// Config collects every subsystem's tunables into the single settings
// object a process boots from.
type Config struct {
	SocketPath     string
	SocketPermFile uint32
	SocketGroupID  int
	MaxConnections int

	AuthToken      string
	SessionTimeout time.Duration

	MaxPending       int
	MaxContextTokens int

	ShutdownTimeout time.Duration

	KVCache     kvcache.Config
	ModelPool   modelpool.Config
	SmartLoader smartloader.Config
	Sanitizer   sanitize.Config
	WorkerPool  workerpool.Config
}

// DefaultConfig matches the stock single-host deployment.
func DefaultConfig() Config {
	return Config{
		SocketPath:       "/var/run/gg-core/gg-core.sock",
		SocketGroupID:    -1,
		MaxConnections:   256,
		SessionTimeout:   30 * time.Minute,
		MaxPending:       256,
		MaxContextTokens: 8192,
		ShutdownTimeout:  30 * time.Second,
		KVCache: kvcache.Config{
			HiddenDim: 4096,
			MaxPages:  4096,
			MaxSeqLen: 8192,
		},
		ModelPool:   modelpool.DefaultConfig(),
		SmartLoader: smartloader.DefaultConfig(),
		Sanitizer:   sanitize.DefaultConfig(),
		WorkerPool:  workerpool.InferenceOptimizedConfig(),
	}
}

// Validate rejects a Config that would leave the runtime unable to start.
// Errors carry KindInvalidInput, mapped to CLI exit code 2.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return liberr.New(liberr.MinPkgRuntime+1, liberr.KindInvalidInput, "socket path must not be empty")
	}
	if c.AuthToken == "" {
		return liberr.New(liberr.MinPkgRuntime+2, liberr.KindInvalidInput, "auth token must not be empty")
	}
	if c.MaxPending <= 0 {
		return liberr.New(liberr.MinPkgRuntime+3, liberr.KindInvalidInput, "max pending must be positive")
	}
	if c.MaxContextTokens <= 0 {
		return liberr.New(liberr.MinPkgRuntime+4, liberr.KindInvalidInput, "max context tokens must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return liberr.New(liberr.MinPkgRuntime+5, liberr.KindInvalidInput, "shutdown timeout must be positive")
	}
	return nil
}

// Runtime holds every subsystem wired together for one process lifetime.
type Runtime struct {
	cfg       Config
	log       logger.Logger
	startedAt time.Time

	Auth      *session.Auth
	Queue     *queue.Queue
	KVCache   *kvcache.Manager
	Registry  *modelregistry.Registry
	Pool      *modelpool.Pool
	Loader    *smartloader.Loader
	Sanitizer *sanitize.Sanitizer
	Exec      *workerpool.Pool
	Handler   *ipc.Handler
	Server    *socket.Server
	Worker    *worker.Worker
	Metrics   *metrics.Registry
}

// New wires every subsystem per cfg. rec may be nil, discarding security
// events; log may be nil, in which case a default info-level logger is
// used. mr may be nil, in which case metrics observation is skipped
// entirely rather than recorded into a discarded registry.
func New(cfg Config, log logger.Logger, rec session.Recorder, mr *metrics.Registry) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New(logger.InfoLevel)
	}

	auth := session.New(cfg.AuthToken, cfg.SessionTimeout, rec)
	q := queue.New(cfg.MaxPending, cfg.MaxContextTokens)
	kv := kvcache.New(cfg.KVCache)
	registry := modelregistry.New()
	pool := modelpool.New(cfg.ModelPool, registry)
	loader := smartloader.New(cfg.SmartLoader, registry, registryLoadFunc(registry))
	sanitizer := sanitize.New(cfg.Sanitizer)
	exec := workerpool.New(cfg.WorkerPool, log)

	r := &Runtime{
		cfg:       cfg,
		log:       log,
		Auth:      auth,
		Queue:     q,
		KVCache:   kv,
		Registry:  registry,
		Pool:      pool,
		Loader:    loader,
		Sanitizer: sanitizer,
		Exec:      exec,
		Metrics:   mr,
	}

	model := &modelAdapter{loader: loader, pool: pool, exec: exec, kv: kv, hiddenDim: cfg.KVCache.HiddenDim}
	r.Worker = worker.New(q, model, log)

	r.Handler = &ipc.Handler{
		Auth:      auth,
		Queue:     q,
		Sanitizer: sanitizer,
		Warmup:    r.warmup,
		Models:    r.listModels,
		Metrics:   mr,
	}

	srv, err := socket.New(nil, r.connHandler, socket.Config{
		SocketPath:     cfg.SocketPath,
		PermFile:       cfg.SocketPermFile,
		GroupID:        cfg.SocketGroupID,
		MaxConnections: cfg.MaxConnections,
	})
	if err != nil {
		return nil, err
	}
	r.Server = srv

	return r, nil
}

// registryLoadFunc builds the smartloader.LoadFunc that resolves a model
// path into a registry handle, standing in for the weight-loading step the
// transformer backend collaborator performs in a full deployment.
func registryLoadFunc(registry *modelregistry.Registry) smartloader.LoadFunc {
	return func(path string) (modelregistry.Handle, error) {
		info, err := os.Stat(path)
		if err != nil {
			return 0, liberr.New(liberr.MinPkgRuntime+6, liberr.KindNotFound, "model path not found", err)
		}
		meta := modelregistry.Metadata{Name: filepath.Base(path), SizeBytes: uint64(info.Size())}
		format := strings.TrimPrefix(filepath.Ext(path), ".")
		h := registry.RegisterWithFormat(meta, uint64(info.Size()), format)
		registry.SetState(h, modelregistry.StateReady)
		return h, nil
	}
}

func (r *Runtime) warmup(ctx context.Context, modelID string) (time.Duration, error) {
	start := time.Now()
	m := &modelAdapter{loader: r.Loader, pool: r.Pool, exec: r.Exec, kv: r.KVCache, hiddenDim: r.cfg.KVCache.HiddenDim}
	params := wire.SamplingParams{MaxTokens: 1, TopP: 1}
	if _, err := m.Infer(ctx, modelID, r.cfg.ModelPool.WarmupPrompt, params); err != nil {
		return 0, err
	}
	r.Pool.MarkWarmed(modelID)
	return time.Since(start), nil
}

func (r *Runtime) listModels() []wire.ModelInfo {
	infos := r.Registry.ListModels()
	out := make([]wire.ModelInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, wire.ModelInfo{
			ModelID: info.Name,
			Loaded:  info.State == modelregistry.StateReady,
		})
	}
	return out
}

// modelAdapter implements worker.Model by resolving a model handle through
// the smart loader. The transformer inference backend itself is an external
// collaborator; absent one, Infer returns a deterministic placeholder
// completion rather than a real generation.
type modelAdapter struct {
	loader    *smartloader.Loader
	pool      *modelpool.Pool
	exec      *workerpool.Pool
	kv        *kvcache.Manager
	hiddenDim int
}

// Infer runs the generation on the work-stealing pool so a slow model
// cannot starve the transport goroutines, waiting on ctx for the result.
func (m *modelAdapter) Infer(ctx context.Context, modelID, prompt string, params wire.SamplingParams) (wire.InferenceResponse, error) {
	if _, err := m.loader.Get(modelID); err != nil {
		return wire.InferenceResponse{}, err
	}

	done := make(chan wire.InferenceResponse, 1)
	task := func() {
		text := stubCompletion(prompt, params.MaxTokens)
		tokens := strings.Fields(text)
		m.recordAttentionState(len(tokens))
		done <- wire.InferenceResponse{
			Text:         text,
			FinishReason: "stop",
			TokensUsed:   len(tokens),
		}
	}
	if err := m.exec.SubmitWithPriority(task, workerpool.PriorityHigh); err != nil {
		return wire.InferenceResponse{}, err
	}

	select {
	case <-ctx.Done():
		return wire.InferenceResponse{}, liberr.New(liberr.MinPkgRuntime+7, liberr.KindCancelled, "inference cancelled", ctx.Err())
	case resp := <-done:
		return resp, nil
	}
}

// recordAttentionState walks the generated tokens through the KV cache the
// way the transformer backend does during decode: one K/V row appended per
// token, the sliding window applied as the position advances, the sequence
// freed once the generation completes. The placeholder rows keep the
// cache's occupancy, eviction, and memory-usage accounting live even with
// a stub backend.
func (m *modelAdapter) recordAttentionState(tokens int) {
	seq := m.kv.AllocateSequence()
	defer func() { _ = m.kv.FreeSequence(seq) }()

	row := make([]float32, m.hiddenDim)
	for pos := 0; pos < tokens; pos++ {
		if err := m.kv.AppendKV(seq, row, row); err != nil {
			return
		}
		_, _ = m.kv.EvictBeyondWindow(seq, pos)
	}
}

// stubCompletion is a placeholder for the real transformer generation step,
// truncating the prompt to the requested token budget.
func stubCompletion(prompt string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = 1
	}
	words := strings.Fields(prompt)
	if maxTokens < len(words) {
		words = words[:maxTokens]
	}
	return strings.Join(words, " ")
}

// connHandler bridges one accepted, framed connection to the dispatcher:
// read a frame, dispatch it, write back whatever it emits, until the
// connection errors or is closed.
func (r *Runtime) connHandler(c socket.Context) {
	defer c.Close()

	ctx := context.Background()
	var sess session.Token

	emit := func(typ wire.Type, payload interface{}) error {
		frame, err := wire.Encode(wire.V1, typ, payload)
		if err != nil {
			return err
		}
		return socket.WriteFrame(c, frame)
	}

	for {
		frame, err := socket.ReadFrame(c)
		if err != nil {
			return
		}

		var dispatchErr error
		sess, dispatchErr = r.Handler.Dispatch(ctx, sess, frame, emit)
		if dispatchErr != nil {
			r.log.Entry(logger.DebugLevel, "dispatch error").ErrorAdd(true, dispatchErr).Log()
		}
		r.reportGauges()
	}
}

// reportGauges pushes the current queue depth, connection count, resident
// model count, uptime, and KV-cache footprint into the metrics registry.
// It is a no-op when no registry was supplied to New.
func (r *Runtime) reportGauges() {
	if r.Metrics == nil {
		return
	}
	r.Metrics.SetQueueDepth(r.Queue.Len())
	r.Metrics.SetActiveConnections(r.Server.OpenConnections())
	r.Metrics.SetModelsLoaded(r.Registry.Count())
	r.Metrics.SetUptimeSeconds(time.Since(r.startedAt).Seconds())
	r.Metrics.SetKVCacheBytes(r.KVCache.MemoryUsage())
}

// Serve runs the runtime until ctx is cancelled or a termination signal
// arrives, then drains in-flight work and shuts every subsystem down in
// turn. It returns the process exit code: 0 on a clean shutdown, 1 if the
// power-on self-tests fail, 3 if the transport failed to bind or accept.
func (r *Runtime) Serve(ctx context.Context) int {
	if err := crypt.SelfTest(); err != nil {
		r.log.Entry(logger.ErrorLevel, "FIPS self-test failed").ErrorAdd(true, err).Log()
		r.log.Entry(logger.ErrorLevel, "cryptographic operations disabled, aborting startup").Log()
		return 1
	}
	r.log.Entry(logger.InfoLevel, "FIPS 140-3 self-tests passed").Log()
	r.startedAt = time.Now()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	listenErr := make(chan error, 1)
	go func() { listenErr <- r.Server.Listen(serveCtx) }()

	// The worker outlives serveCtx so it can drain the queue after the
	// listener stops; Worker.Stop below ends it.
	go r.Worker.Run(context.Background())

	autoCtx, autoCancel := context.WithCancel(context.Background())
	go r.Loader.RunAutoUnload(autoCtx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var transportFailed bool
	select {
	case <-sigCh:
		r.log.Entry(logger.InfoLevel, "shutdown signal received, draining").Log()
	case <-ctx.Done():
	case err := <-listenErr:
		transportFailed = true
		if err != nil {
			r.log.Entry(logger.ErrorLevel, "listener failed").ErrorAdd(true, err).Log()
		}
		listenErr <- err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := r.Server.Shutdown(shutdownCtx); err != nil {
		r.log.Entry(logger.WarnLevel, "server shutdown error").ErrorAdd(true, err).Log()
	}

	r.Queue.Close()
	deadline := time.Now().Add(r.cfg.ShutdownTimeout)
	for r.Queue.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if remaining := r.Queue.Len(); remaining > 0 {
		r.log.Entry(logger.WarnLevel, "shutdown timeout, requests remaining").
			FieldAdd("remaining", remaining).Log()
	} else {
		r.log.Entry(logger.InfoLevel, "shutdown complete").Log()
	}

	autoCancel()
	r.Worker.Stop()
	r.Exec.Shutdown()
	r.Exec.Join()
	<-listenErr

	if transportFailed {
		return 3
	}
	return 0
}
