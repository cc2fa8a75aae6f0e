// Package audit keeps a capped, append-only record of security-relevant
// events — authentication outcomes, tamper detections, self-test
// failures — and mirrors each one through the structured logger.
package audit

import (
	"sync"
	"time"

	"github.com/mythologiq/gg-core/logger"
	"github.com/mythologiq/gg-core/session"
)

// Severity ranks an Event for log-level and retention purposes.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// Category groups events by the subsystem that raised them.
type Category string

const (
	CategoryAuth   Category = "auth"
	CategoryCrypto Category = "crypto"
	CategorySystem Category = "system"
)

// Type names a specific audit-worthy occurrence. The first five mirror
// session.Event's authenticator taxonomy; the last two are recorded through
// RecordNonceReuse and RecordFIPSFailure.
type Type string

const (
	TypeAuthFailure        Type = "auth_failure"
	TypeAuthSuccess        Type = "auth_success"
	TypeInvalidSession     Type = "invalid_session"
	TypeSessionExpired     Type = "session_expired"
	TypeRateLimited        Type = "rate_limited"
	TypeNonceReuseDetected Type = "nonce_reuse_detected"
	TypeFIPSFailure        Type = "fips_failure"
)

// Event is one recorded occurrence.
type Event struct {
	Sequence  uint64
	Timestamp time.Time
	Severity  Severity
	Category  Category
	Type      Type
	Message   string
	Fields    map[string]string
}

// EventOption attaches extra context to an Event as it's recorded.
type EventOption func(*Event)

// WithField attaches a key/value pair to the event being recorded.
func WithField(key, value string) EventOption {
	return func(e *Event) {
		if e.Fields == nil {
			e.Fields = make(map[string]string)
		}
		e.Fields[key] = value
	}
}

const defaultCapacity = 10_000

// Audit is an append-only ring of capped length, safe for concurrent use.
type Audit struct {
	mu  sync.Mutex
	cap int
	seq uint64
	log logger.Logger

	ring []Event
}

// New builds an Audit retaining at most capacity events (10,000 if
// capacity <= 0), mirroring every record through log. log may be nil, in
// which case only the ring retains events.
func New(capacity int, log logger.Logger) *Audit {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Audit{cap: capacity, log: log}
}

// Record appends an event and mirrors it through the structured logger at
// a level matching severity, returning the built Event.
func (a *Audit) Record(severity Severity, category Category, eventType Type, message string, opts ...EventOption) Event {
	a.mu.Lock()
	a.seq++
	e := Event{
		Sequence:  a.seq,
		Timestamp: time.Now(),
		Severity:  severity,
		Category:  category,
		Type:      eventType,
		Message:   message,
	}
	for _, opt := range opts {
		opt(&e)
	}
	a.ring = append(a.ring, e)
	if len(a.ring) > a.cap {
		a.ring = a.ring[len(a.ring)-a.cap:]
	}
	a.mu.Unlock()

	if a.log != nil {
		entry := a.log.Entry(severityLevel(severity), message).
			FieldAdd("category", string(category)).
			FieldAdd("event_type", string(eventType))
		for k, v := range e.Fields {
			entry = entry.FieldAdd(k, v)
		}
		entry.Log()
	}

	return e
}

func severityLevel(s Severity) logger.Level {
	switch s {
	case SeverityCritical:
		return logger.ErrorLevel
	case SeverityWarning:
		return logger.WarnLevel
	default:
		return logger.InfoLevel
	}
}

// Recent returns the n most recently recorded events, oldest first. n <= 0
// or n greater than the number retained returns everything currently held.
func (a *Audit) Recent(n int) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n <= 0 || n > len(a.ring) {
		n = len(a.ring)
	}
	out := make([]Event, n)
	copy(out, a.ring[len(a.ring)-n:])
	return out
}

// RecordSecurityEvent implements session.Recorder, letting an Audit be
// passed directly as the authenticator's event sink.
func (a *Audit) RecordSecurityEvent(evt session.Event, message string, fields map[string]string) {
	opts := make([]EventOption, 0, len(fields))
	for k, v := range fields {
		opts = append(opts, WithField(k, v))
	}
	a.Record(severityFor(evt), CategoryAuth, typeFor(evt), message, opts...)
}

func severityFor(evt session.Event) Severity {
	switch evt {
	case session.EventAuthSuccess:
		return SeverityInfo
	case session.EventRateLimited:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

func typeFor(evt session.Event) Type {
	switch evt {
	case session.EventAuthFailure:
		return TypeAuthFailure
	case session.EventAuthSuccess:
		return TypeAuthSuccess
	case session.EventInvalidSession:
		return TypeInvalidSession
	case session.EventSessionExpired:
		return TypeSessionExpired
	case session.EventRateLimited:
		return TypeRateLimited
	default:
		return Type(evt)
	}
}

// RecordNonceReuse records a detected nonce-reuse tamper attempt (the
// condition Cipher.Encrypt reports as an error) at critical severity.
func (a *Audit) RecordNonceReuse(message string, fields ...EventOption) Event {
	return a.Record(SeverityCritical, CategoryCrypto, TypeNonceReuseDetected, message, fields...)
}

// RecordFIPSFailure records a failed power-on self-test at critical
// severity.
func (a *Audit) RecordFIPSFailure(message string, fields ...EventOption) Event {
	return a.Record(SeverityCritical, CategorySystem, TypeFIPSFailure, message, fields...)
}
