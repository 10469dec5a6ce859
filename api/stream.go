package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

const streamHeartbeat = 25 * time.Second

// Broker fans change notifications out to connected board streams. It
// implements Publisher so the event dispatcher can feed it directly.
type Broker struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan struct{}]struct{})}
}

func (b *Broker) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan struct{}) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Notify wakes every subscriber. Pending wake-ups are coalesced.
func (b *Broker) Notify() {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

func (b *Broker) Publish(ctx context.Context, ev domain.TaskEvent) error {
	b.Notify()
	return nil
}

// streamTasks sends the full task list as a server-sent event on connect and
// again after every change.
func streamTasks(store Storage, broker *Broker, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		w := c.Response()
		w.Header().Set(echo.HeaderContentType, "text/event-stream")
		w.Header().Set(echo.HeaderCacheControl, "no-cache")
		w.Header().Set(echo.HeaderConnection, "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		ctx := c.Request().Context()
		ch := broker.Subscribe()
		defer broker.Unsubscribe(ch)
		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			tasks, err := store.ListTasks(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if logger != nil {
					logger.WithError(err).WithField("op", "stream").Error("task store failure")
				}
				msg, _ := sonic.Marshal(errorResponse{Error: err.Error()})
				writeEvent(w, "event: error\ndata: ", msg)
				return nil
			}
			data, err := sonic.Marshal(tasks)
			if err != nil {
				return err
			}
			if !writeEvent(w, "data: ", data) {
				return nil
			}

		wait:
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-heartbeat.C:
					if !writeEvent(w, ": ping", nil) {
						return nil
					}
				case <-ch:
					break wait
				}
			}
		}
	}
}

func writeEvent(w *echo.Response, prefix string, data []byte) bool {
	if _, err := w.Write([]byte(prefix)); err != nil {
		return false
	}
	if data != nil {
		if _, err := w.Write(data); err != nil {
			return false
		}
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return false
	}
	w.Flush()
	return true
}
