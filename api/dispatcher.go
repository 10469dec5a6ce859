package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

// DispatcherConfig sizes the event worker pool.
type DispatcherConfig struct {
	Workers        int
	Buffer         int
	PublishTimeout time.Duration
	HandoffTimeout time.Duration
}

// EventDispatcher fans task events out to publishers from a fixed set of
// worker goroutines. When the buffer stays full past the hand-off timeout the
// event is published inline by the caller. A nil dispatcher drops events.
type EventDispatcher struct {
	cfg        DispatcherConfig
	publishers []Publisher
	logger     *log.Logger
	jobs       chan domain.TaskEvent
	workerWG   sync.WaitGroup
	closeOnce  sync.Once
}

var lastEventTimestamp int64

// nextTimestamp returns a strictly increasing UnixNano value.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastEventTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastEventTimestamp, last, now) {
			return now
		}
	}
}

// NewEventDispatcher starts cfg.Workers goroutines delivering to publishers.
func NewEventDispatcher(cfg DispatcherConfig, logger *log.Logger, publishers ...Publisher) *EventDispatcher {
	if logger == nil {
		panic("logger is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}

	d := &EventDispatcher{
		cfg:        cfg,
		publishers: publishers,
		logger:     logger,
		jobs:       make(chan domain.TaskEvent, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.workerWG.Add(1)
		go d.worker(i)
	}
	logger.Infof("event dispatcher started, workers: %d, buffer: %d, publishers: %d, handoff: %v", cfg.Workers, cfg.Buffer, len(publishers), cfg.HandoffTimeout)
	return d
}

// Dispatch emits an event of the given type. It never blocks longer than the
// hand-off timeout plus one inline publish.
func (d *EventDispatcher) Dispatch(eventType, taskID string, count int) {
	if d == nil {
		return
	}
	ev := domain.TaskEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		TaskID:    taskID,
		Count:     count,
		Timestamp: nextTimestamp(),
	}
	if d.tryEnqueue(ev) {
		return
	}
	d.logger.Warn("event buffer saturated; publishing inline")
	d.publish(ev)
}

// Close stops accepting queued events and waits for workers to drain.
func (d *EventDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.jobs)
		d.workerWG.Wait()
	})
}

func (d *EventDispatcher) worker(id int) {
	defer d.workerWG.Done()
	for ev := range d.jobs {
		if err := d.publish(ev); err != nil {
			d.logger.Debugf("worker %d gave up on event %s", id, ev.ID)
		}
	}
}

// publish delivers to every publisher and returns the last failure.
func (d *EventDispatcher) publish(ev domain.TaskEvent) error {
	var lastErr error
	for _, p := range d.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
		err := p.Publish(ctx, ev)
		cancel()
		if err != nil {
			lastErr = err
			d.logger.WithError(err).WithFields(log.Fields{"event": ev.Type, "task": ev.TaskID}).Error("publish task event failed")
		}
	}
	return lastErr
}

func (d *EventDispatcher) tryEnqueue(ev domain.TaskEvent) bool {
	if ok, closed := trySendNonBlocking(d.jobs, ev); closed {
		return false
	} else if ok {
		return true
	}

	if d.cfg.HandoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(d.cfg.HandoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(d.jobs, ev, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan domain.TaskEvent, ev domain.TaskEvent) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan domain.TaskEvent, ev domain.TaskEvent, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	case <-timer:
		return false, false
	}
}
