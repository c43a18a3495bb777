package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Option configures a Service at construction time.
type Option func(*Service)

// WithLogger overrides the service logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetricsRecorder attaches a metrics sink observing every operation.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithAuditRecorder attaches an audit sink receiving one entry per operation.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// Logger is the minimal leveled logging contract the service depends on.
// Key/value pairs follow the message.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger returns a logger that discards everything.
func NoopLogger() Logger { return noopLogger{} }

// JSONLogger writes one JSON object per entry to a writer.
type JSONLogger struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLogger constructs a logger emitting JSON lines to w.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{enc: json.NewEncoder(w)}
}

func (l *JSONLogger) log(level, msg string, kv []any) {
	entry := map[string]any{"level": level, "msg": msg, "ts": time.Now().UTC()}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			if err, isErr := kv[i+1].(error); isErr {
				entry[key] = err.Error()
				continue
			}
			entry[key] = kv[i+1]
		}
	}
	l.mu.Lock()
	_ = l.enc.Encode(entry)
	l.mu.Unlock()
}

// Debug logs at debug level.
func (l *JSONLogger) Debug(msg string, kv ...any) { l.log("debug", msg, kv) }

// Info logs at info level.
func (l *JSONLogger) Info(msg string, kv ...any) { l.log("info", msg, kv) }

// Warn logs at warn level.
func (l *JSONLogger) Warn(msg string, kv ...any) { l.log("warn", msg, kv) }

// Error logs at error level.
func (l *JSONLogger) Error(msg string, kv ...any) { l.log("error", msg, kv) }

// Clock abstracts the time source used for durations and audit timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the function's current time.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// AuditStatus tags an audit entry outcome.
type AuditStatus string

// Audit entry outcomes.
const (
	AuditStatusOK    AuditStatus = "ok"
	AuditStatusError AuditStatus = "error"
)

// AuditEntry records one service operation for after-the-fact review.
type AuditEntry struct {
	Operation string      `json:"operation"`
	OwnerID   int64       `json:"owner_id"`
	EntityID  int64       `json:"entity_id,omitempty"`
	Status    AuditStatus `json:"status"`
	At        time.Time   `json:"at"`
}

// AuditRecorder receives one entry per service operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MemoryAuditRecorder retains entries in memory for inspection.
type MemoryAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewMemoryAuditRecorder constructs an empty in-memory audit log.
func NewMemoryAuditRecorder() *MemoryAuditRecorder { return &MemoryAuditRecorder{} }

// Record appends an entry.
func (r *MemoryAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (r *MemoryAuditRecorder) Entries() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
