// Package notify carries transient, non-blocking user notifications from the
// chat core to whatever is presenting it.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a short informational event. Presenters are expected to
// show it briefly and dismiss it on their own.
type Notification struct {
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Domain      string    `json:"domain"`
	Time        time.Time `json:"time"`
}

// Notifier receives notifications. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Nop discards everything.
var Nop Notifier = NotifierFunc(func(Notification) {})

// Multi fans a notification out to several notifiers in order.
func Multi(ns ...Notifier) Notifier {
	return NotifierFunc(func(n Notification) {
		for _, to := range ns {
			if to != nil {
				to.Notify(n)
			}
		}
	})
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(n Notification) {
	fields := []zap.Field{
		zap.String("domain", n.Domain),
		zap.String("title", n.Title),
		zap.String("description", n.Description),
	}
	if n.Level == LevelError {
		l.Logger.Warn("notification", fields...)
		return
	}
	l.Logger.Info("notification", fields...)
}

// Bus delivers notifications to any number of subscribers. Each subscriber
// has a bounded buffer; when it is full the notification is dropped for that
// subscriber rather than blocking the publisher.
type Bus struct {
	buffer int

	mu     sync.Mutex
	subs   map[int]chan Notification
	nextID int
	closed bool
}

// NewBus returns a bus whose subscribers buffer up to buffer notifications.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		buffer: buffer,
		subs:   make(map[int]chan Notification),
	}
}

// Subscribe returns a receive channel and a function that unsubscribes and
// closes it. The channel is also closed when the bus closes.
func (b *Bus) Subscribe() (<-chan Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notification, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Notify publishes n to every subscriber without blocking.
func (b *Bus) Notify(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Close closes every subscriber channel. Later notifications are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
