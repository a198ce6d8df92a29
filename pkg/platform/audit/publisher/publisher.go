// Package publisher emits audit events to a store, optionally through an
// async buffer so the hot path never waits on persistence.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	id "registrar/pkg/domain"
	audit "registrar/pkg/platform/audit"
)

// ErrBufferFull is returned in async mode when the inbox is saturated
// and the caller's context expires before a slot frees up.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher writes audit events to a Store and forwards copies to any
// configured sinks. In sync mode Emit persists inline; with an async
// buffer Emit enqueues and a background goroutine drains.
type Publisher struct {
	store audit.Store
	sinks []audit.Sink

	inbox chan audit.Event
	wg    sync.WaitGroup

	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// inbox capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithSink adds a best-effort delivery sink. Sink failures are ignored
// on the emit path.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, sink)
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. A zero timestamp is stamped with the current
// time. In async mode a full buffer blocks until a slot frees or the
// context expires.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
	}

	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.Canceled {
			return context.Canceled
		}
		return ErrBufferFull
	}
}

// List returns the audit trail for a subject.
func (p *Publisher) List(ctx context.Context, subjectID id.SubjectID) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subjectID)
}

// Close drains any buffered events and stops the background worker.
// Safe to call multiple times.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		_ = p.persist(context.Background(), event)
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	for _, sink := range p.sinks {
		_ = sink.Forward(ctx, event)
	}
	return p.store.Append(ctx, event)
}
