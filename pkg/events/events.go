// Package events delivers trip lifecycle events to interested consumers.
// Delivery is best effort: a slow or failing consumer never delays or
// aborts the session that produced the event.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"cicerone/pkg/model"
)

// Sink consumes trip events. Implementations must not block; the
// dispatcher calls Emit from a single delivery goroutine.
type Sink interface {
	Emit(ev model.TripEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev model.TripEvent)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev model.TripEvent) { f(ev) }

const dispatchBuffer = 64

// Dispatcher fans trip events out to registered sinks. Publish never
// blocks; when the delivery queue is full the event is counted as
// dropped and discarded.
type Dispatcher struct {
	mu    sync.RWMutex
	sinks []Sink

	ch      chan model.TripEvent
	dropped atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher and starts its delivery goroutine.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		sinks:  sinks,
		ch:     make(chan model.TripEvent, dispatchBuffer),
		stopCh: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Register adds a sink. Events published before registration are not
// replayed.
func (d *Dispatcher) Register(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Publish queues ev for delivery. Never blocks.
func (d *Dispatcher) Publish(ev model.TripEvent) {
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
		slog.Warn("Events: delivery queue full, dropping event", "type", ev.Type, "session", ev.SessionID)
	}
}

// Dropped returns the number of events discarded due to backpressure.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops the delivery goroutine after draining queued events.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.ch:
			d.deliver(ev)
		case <-d.stopCh:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case ev := <-d.ch:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev model.TripEvent) {
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, s := range sinks {
		s.Emit(ev)
	}
}
