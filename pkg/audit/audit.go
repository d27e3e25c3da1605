// Package audit delivers anonymized login attempt records.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/secure-login/pkg/auth"
	"github.com/tendant/secure-login/pkg/domain"
)

// ErrClosed is returned by Async.Record after Close.
var ErrClosed = errors.New("audit sink closed")

// LogSink writes each attempt as one structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs through logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record logs the attempt.
func (s *LogSink) Record(ctx context.Context, r domain.AttemptRecord) error {
	level := slog.LevelInfo
	if !r.Succeeded {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "login attempt",
		"username", r.MaskedUsername,
		"source", r.MaskedSourceAddress,
		"user_agent", r.UserAgent,
		"succeeded", r.Succeeded,
		"reason", r.FailureReason,
		"at", r.Timestamp,
	)
	return nil
}

// Multi fans a record out to every sink and joins their errors.
type Multi []auth.AuditSink

// Record delivers r to each sink in order.
func (m Multi) Record(ctx context.Context, r domain.AttemptRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async decouples the request path from a slow sink. Records are queued in a
// bounded buffer and delivered by one worker; when the buffer is full the
// record is dropped with a warning.
type Async struct {
	next    auth.AuditSink
	logger  *slog.Logger
	timeout time.Duration
	queue   chan domain.AttemptRecord

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the delivery worker. Call Close to drain and stop it.
func NewAsync(next auth.AuditSink, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		logger:  logger,
		timeout: 5 * time.Second,
		queue:   make(chan domain.AttemptRecord, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Record enqueues r without blocking.
func (a *Async) Record(_ context.Context, r domain.AttemptRecord) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- r:
	default:
		a.logger.Warn("audit buffer full, dropping login attempt", "username", r.MaskedUsername)
	}
	return nil
}

// Close stops accepting records and waits for queued ones to be delivered or
// for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for r := range a.queue {
		a.deliver(r)
	}
}

func (a *Async) deliver(r domain.AttemptRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			a.logger.Error("audit sink panicked", "panic", p)
		}
	}()
	if err := a.next.Record(ctx, r); err != nil {
		a.logger.Warn("failed to deliver login attempt", "username", r.MaskedUsername, "error", err)
	}
}
