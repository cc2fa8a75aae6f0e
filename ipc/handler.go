// Package ipc dispatches decoded wire protocol frames to the services that
// implement them: session handshake, inference enqueue, cancellation,
// warmup, health, and model listing.
package ipc

import (
	"context"
	"time"

	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/metrics"
	"github.com/mythologiq/gg-core/queue"
	"github.com/mythologiq/gg-core/sanitize"
	"github.com/mythologiq/gg-core/session"
	"github.com/mythologiq/gg-core/wire"
)

// Emit sends one response envelope back to the originating connection. It
// may be called more than once per Dispatch call when a response streams.
type Emit func(typ wire.Type, payload interface{}) error

// WarmupFunc drives a model through a minimal inference to preload it,
// returning how long that took.
type WarmupFunc func(ctx context.Context, modelID string) (time.Duration, error)

// ModelsFunc lists known models and their load state for a ModelsRequest.
type ModelsFunc func() []wire.ModelInfo

// Handler maps decoded protocol messages onto the runtime's services.
type Handler struct {
	Auth      *session.Auth
	Queue     *queue.Queue
	Sanitizer *sanitize.Sanitizer
	Warmup    WarmupFunc
	Models    ModelsFunc
	Metrics   *metrics.Registry
}

// Dispatch decodes one frame and drives it to completion, calling emit with
// every response envelope it produces. sess is the caller's current session
// token, empty if no handshake has completed yet; Dispatch returns the
// (possibly new) session token to carry forward to the next frame.
func (h *Handler) Dispatch(ctx context.Context, sess session.Token, frame []byte, emit Emit) (session.Token, error) {
	env, err := wire.Decode(frame)
	if err != nil {
		h.emitError(emit, 400, err.Error())
		return sess, err
	}

	if sess == "" {
		return h.dispatchHandshake(env, emit)
	}

	if err := h.Auth.Validate(sess); err != nil {
		h.emitError(emit, 401, err.Error())
		return sess, err
	}

	switch env.Type {
	case wire.TypeInferenceRequest:
		return sess, h.dispatchInference(env, emit)
	case wire.TypeCancelRequest:
		return sess, h.dispatchCancel(env, emit)
	case wire.TypeWarmupRequest:
		return sess, h.dispatchWarmup(ctx, env, emit)
	case wire.TypeHealthCheck:
		return sess, h.dispatchHealth(emit)
	case wire.TypeModelsRequest:
		return sess, h.dispatchModels(emit)
	case wire.TypeMetricsRequest:
		return sess, h.dispatchMetrics(emit)
	case wire.TypePrometheusRequest:
		return sess, h.dispatchPrometheus(emit)
	case wire.TypeSpansRequest:
		return sess, h.dispatchSpans(emit)
	default:
		err := liberr.Newf(liberr.MinPkgIPC+1, liberr.KindInvalidInput, "unsupported message type: %s", env.Type)
		h.emitError(emit, 400, err.Error())
		return sess, err
	}
}

func (h *Handler) dispatchHandshake(env wire.Envelope, emit Emit) (session.Token, error) {
	if env.Type != wire.TypeHandshake {
		err := liberr.New(liberr.MinPkgIPC+2, liberr.KindUnauthenticated, "first frame must be a handshake")
		h.emitError(emit, 401, err.Error())
		return "", err
	}

	var hs wire.Handshake
	if err := wire.DecodePayload(env, &hs); err != nil {
		h.emitError(emit, 400, err.Error())
		return "", err
	}

	tok, err := h.Auth.Authenticate(hs.Token)
	if err != nil {
		h.emitError(emit, 401, err.Error())
		return "", err
	}

	negotiated := wire.V1
	if hs.RequestedVersion == wire.V2 {
		negotiated = wire.V2
	}

	if err := emit(wire.TypeHandshakeAck, wire.HandshakeAck{
		SessionToken:      string(tok),
		NegotiatedVersion: negotiated,
	}); err != nil {
		return "", err
	}
	return tok, nil
}

func (h *Handler) dispatchInference(env wire.Envelope, emit Emit) error {
	var req wire.InferenceRequest
	if err := wire.DecodePayload(env, &req); err != nil {
		h.emitError(emit, 400, err.Error())
		return err
	}
	if err := wire.ValidateInferenceRequest(&req); err != nil {
		h.emitError(emit, 400, err.Error())
		return err
	}

	start := time.Now()
	qreq, err := h.Queue.Enqueue(req.ModelID, req.Prompt, req.Params, req.Priority)
	if err != nil {
		h.observeInference(req.ModelID, start, err)
		h.emitError(emit, errorCode(err), err.Error())
		return err
	}

	result := <-qreq.Sink()
	if result.Err != nil {
		h.observeInference(req.ModelID, start, result.Err)
		h.emitError(emit, errorCode(result.Err), result.Err.Error())
		return result.Err
	}
	h.observeInference(req.ModelID, start, nil)

	if !req.Params.Stream {
		text := result.Response.Text
		if h.Sanitizer != nil {
			text = h.Sanitizer.Sanitize(text).Output
		}
		return emit(wire.TypeInferenceResponse, wire.InferenceResponse{
			RequestID:    qreq.ID,
			Text:         text,
			FinishReason: result.Response.FinishReason,
			TokensUsed:   result.Response.TokensUsed,
		})
	}

	// The Model capability hands back the full generation at once, so the
	// stream is one text chunk followed by the terminal marker. The chunk
	// path still runs through the cross-chunk sanitizer state so PII split
	// across future multi-chunk producers stays covered.
	text := result.Response.Text
	if h.Sanitizer != nil {
		var state sanitize.StreamingState
		text = h.Sanitizer.SanitizeChunk(text, &state)
	}
	if err := emit(wire.TypeStreamChunk, wire.StreamChunk{
		RequestID: qreq.ID,
		Text:      text,
	}); err != nil {
		return err
	}
	return emit(wire.TypeStreamChunk, wire.StreamChunk{
		RequestID: qreq.ID,
		IsFinal:   true,
	})
}

func (h *Handler) observeInference(modelID string, start time.Time, err error) {
	if h.Metrics == nil {
		return
	}
	kind := ""
	if err != nil {
		if e := liberr.Get(err); e != nil {
			kind = e.Kind().String()
		} else {
			kind = "unknown"
		}
	}
	h.Metrics.ObserveInference(modelID, float64(time.Since(start).Milliseconds()), kind)
}

func (h *Handler) dispatchMetrics(emit Emit) error {
	if h.Metrics == nil {
		err := liberr.New(liberr.MinPkgIPC+4, liberr.KindInternal, "metrics not supported")
		h.emitError(emit, 501, err.Error())
		return err
	}
	snap, err := h.Metrics.Snapshot()
	if err != nil {
		h.emitError(emit, 500, err.Error())
		return err
	}
	return emit(wire.TypeMetricsResponse, wire.MetricsResponse{Snapshot: snap.ToMap()})
}

func (h *Handler) dispatchPrometheus(emit Emit) error {
	if h.Metrics == nil {
		err := liberr.New(liberr.MinPkgIPC+5, liberr.KindInternal, "metrics not supported")
		h.emitError(emit, 501, err.Error())
		return err
	}
	text, err := h.Metrics.PrometheusText()
	if err != nil {
		h.emitError(emit, 500, err.Error())
		return err
	}
	return emit(wire.TypePrometheusResponse, wire.PrometheusMetricsResponse{Text: text})
}

// dispatchSpans always answers with an empty snapshot rather than an error:
// the Handler holds no span recorder, since tracing is handled outside the
// runtime.
func (h *Handler) dispatchSpans(emit Emit) error {
	return emit(wire.TypeSpansResponse, wire.SpansResponse{Spans: []wire.Span{}})
}

func (h *Handler) dispatchCancel(env wire.Envelope, emit Emit) error {
	var req wire.CancelRequest
	if err := wire.DecodePayload(env, &req); err != nil {
		h.emitError(emit, 400, err.Error())
		return err
	}
	cancelled := h.Queue.Cancel(req.RequestID)
	return emit(wire.TypeCancelResponse, wire.CancelResponse{Cancelled: cancelled})
}

func (h *Handler) dispatchWarmup(ctx context.Context, env wire.Envelope, emit Emit) error {
	var req wire.WarmupRequest
	if err := wire.DecodePayload(env, &req); err != nil {
		h.emitError(emit, 400, err.Error())
		return err
	}
	if h.Warmup == nil {
		err := liberr.New(liberr.MinPkgIPC+3, liberr.KindInternal, "warmup not supported")
		h.emitError(emit, 501, err.Error())
		return err
	}

	elapsed, err := h.Warmup(ctx, req.ModelID)
	if err != nil {
		h.emitError(emit, 500, err.Error())
		return err
	}

	return emit(wire.TypeWarmupResponse, wire.WarmupResponse{
		Loaded:    true,
		ElapsedMs: elapsed.Milliseconds(),
	})
}

func (h *Handler) dispatchHealth(emit Emit) error {
	return emit(wire.TypeHealthResponse, wire.HealthResponse{Healthy: true})
}

func (h *Handler) dispatchModels(emit Emit) error {
	var models []wire.ModelInfo
	if h.Models != nil {
		models = h.Models()
	}
	return emit(wire.TypeModelsResponse, wire.ModelsResponse{Models: models})
}

func (h *Handler) emitError(emit Emit, code int, message string) {
	_ = emit(wire.TypeError, wire.ErrorPayload{Code: code, Message: message})
}

// errorCode maps an internal error's Kind to a wire error code.
func errorCode(err error) int {
	e := liberr.Get(err)
	if e == nil {
		return 500
	}
	switch e.Kind() {
	case liberr.KindInvalidInput:
		return 400
	case liberr.KindUnauthenticated:
		return 401
	case liberr.KindRateLimited:
		return 429
	case liberr.KindNotFound:
		return 404
	case liberr.KindBusy, liberr.KindResourceExhausted:
		return 503
	case liberr.KindDeadlineExceeded:
		return 504
	case liberr.KindCancelled:
		return 499
	default:
		return 500
	}
}
