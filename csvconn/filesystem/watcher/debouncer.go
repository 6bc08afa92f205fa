package watcher

import (
	"context"
	"sync"
	"time"
)

type eventBatch struct {
	events []Event
	first  time.Time
	timer  *time.Timer
}

// Debouncer collects events per path and emits them as one batch once the
// path has been quiet for the delay, or the max delay has passed.
type Debouncer struct {
	delay     time.Duration
	maxDelay  time.Duration
	eventChan chan []Event
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
	pending   map[string]*eventBatch
}

// NewDebouncer creates a new debouncer
func NewDebouncer(delay, maxDelay time.Duration, queueCapacity int) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Debouncer{
		delay:     delay,
		maxDelay:  maxDelay,
		eventChan: make(chan []Event, queueCapacity),
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]*eventBatch),
	}
}

// Add adds an event to be debounced
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	batch, exists := d.pending[event.Path]
	if !exists {
		batch = &eventBatch{first: time.Now()}
		d.pending[event.Path] = batch
	}
	batch.events = append(batch.events, event)

	wait := d.delay
	if d.maxDelay > 0 {
		remaining := d.maxDelay - time.Since(batch.first)
		if remaining < wait {
			wait = max(remaining, 0)
		}
	}

	if batch.timer != nil {
		batch.timer.Stop()
	}
	path := event.Path
	batch.timer = time.AfterFunc(wait, func() {
		d.flush(path, batch)
	})
}

// Events returns the debounced batches
func (d *Debouncer) Events() <-chan []Event {
	return d.eventChan
}

// Pending returns the number of paths with unsent events
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) flush(path string, batch *eventBatch) {
	d.mu.Lock()
	if d.closed || d.pending[path] != batch {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.wg.Add(1)
	d.mu.Unlock()
	defer d.wg.Done()

	select {
	case d.eventChan <- batch.events:
	case <-d.ctx.Done():
	}
}

// Close stops the debouncer and closes the batch channel. Pending events
// are dropped.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cancel()

	for _, batch := range d.pending {
		if batch.timer != nil {
			batch.timer.Stop()
		}
	}
	d.pending = make(map[string]*eventBatch)
	d.mu.Unlock()

	d.wg.Wait()
	close(d.eventChan)
}
