package engine

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"drinktab/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

// anyEvent subscribes to every event type.
const anyEvent core.EventType = "*"

type Handler func(context.Context, core.Event)

// EventBus provides thread-safe pub/sub with sync and async dispatch.
//
// Async mode runs one worker per shard and routes events by user, so a
// user's purchase is always delivered before the unlocks it caused.
type EventBus struct {
	mode   DispatchMode
	log    *slog.Logger
	mu     sync.RWMutex
	subs   map[core.EventType]map[int64]Handler
	nextID int64
	shards []chan core.Event
	wg     sync.WaitGroup
	done   chan struct{}
	once   sync.Once

	// closeMu makes the closed check and the shard send atomic against Close.
	closeMu sync.RWMutex
	closed  bool
}

// BusOption configures an EventBus.
type BusOption func(*EventBus)

// WithShards sets the number of async workers (default 4).
func WithShards(n int) BusOption {
	return func(e *EventBus) {
		if n > 0 {
			e.shards = make([]chan core.Event, n)
		}
	}
}

func WithBusLogger(l *slog.Logger) BusOption {
	return func(e *EventBus) {
		if l != nil {
			e.log = l
		}
	}
}

const shardQueue = 256

func NewEventBus(mode DispatchMode, opts ...BusOption) *EventBus {
	eb := &EventBus{
		mode:   mode,
		log:    slog.Default(),
		subs:   make(map[core.EventType]map[int64]Handler),
		shards: make([]chan core.Event, 4),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(eb)
	}
	if mode == DispatchAsync {
		for i := range eb.shards {
			eb.shards[i] = make(chan core.Event, shardQueue)
			eb.wg.Add(1)
			go eb.work(eb.shards[i])
		}
	}
	return eb
}

func (e *EventBus) work(queue chan core.Event) {
	defer e.wg.Done()
	for {
		select {
		case ev := <-queue:
			e.dispatch(context.Background(), ev)
		case <-e.done:
			for {
				select {
				case ev := <-queue:
					e.dispatch(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// Close stops async workers after their queues are drained. Events published
// afterwards are dropped.
func (e *EventBus) Close() {
	e.closeMu.Lock()
	e.closed = true
	e.once.Do(func() { close(e.done) })
	e.closeMu.Unlock()
	e.wg.Wait()
}

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]Handler)
	}
	e.subs[typ][id] = handler
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs[typ], id)
	}
}

// SubscribeAll registers a handler receiving every event.
func (e *EventBus) SubscribeAll(handler Handler) func() {
	return e.Subscribe(anyEvent, handler)
}

// Publish sends an event to subscribers. In async mode a full shard drops the event.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode != DispatchAsync {
		e.dispatch(ctx, ev)
		return
	}
	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		e.log.Warn("event bus closed, dropping event", "type", ev.Type, "user", ev.UserID)
		return
	}
	select {
	case e.shardFor(ev.UserID) <- ev:
	default:
		e.log.Warn("event queue full, dropping event", "type", ev.Type, "user", ev.UserID)
	}
}

func (e *EventBus) shardFor(user core.UserID) chan core.Event {
	h := fnv.New32a()
	_, _ = h.Write([]byte(user))
	return e.shards[h.Sum32()%uint32(len(e.shards))]
}

func (e *EventBus) dispatch(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.subs[ev.Type])+len(e.subs[anyEvent]))
	for _, h := range e.subs[ev.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range e.subs[anyEvent] {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		e.call(ctx, h, ev)
	}
}

// call isolates subscribers from each other: a panicking handler is logged
// and the remaining handlers still run.
func (e *EventBus) call(ctx context.Context, h Handler, ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("event handler panicked", "type", ev.Type, "user", ev.UserID, "panic", r)
		}
	}()
	h(ctx, ev)
}
