// internal/game/action_log.go
package game

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/yudh/internal/cache"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 2 * time.Second

// actionLog publishes a match's action records in the order they were pushed.
// A single goroutine drains the queue, so push never blocks the match lock.
type actionLog struct {
	pub    ActionPublisher
	logger *logrus.Entry

	mu      sync.Mutex
	pending []cache.MatchActionRecord
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newActionLog(pub ActionPublisher, logger *logrus.Entry) *actionLog {
	l := &actionLog{
		pub:    pub,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// push queues rec. Records pushed after close are dropped.
func (l *actionLog) push(rec cache.MatchActionRecord) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.pending = append(l.pending, rec)
	l.mu.Unlock()
	l.signal()
}

// close lets the sender exit once everything queued has been published.
func (l *actionLog) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

func (l *actionLog) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *actionLog) run() {
	defer close(l.done)
	for range l.wake {
		if l.drain() {
			return
		}
	}
}

// drain publishes everything queued and reports whether the log is closed.
func (l *actionLog) drain() bool {
	for {
		l.mu.Lock()
		batch, closed := l.pending, l.closed
		l.pending = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return closed
		}
		for _, rec := range batch {
			l.publish(rec)
		}
	}
}

func (l *actionLog) publish(rec cache.MatchActionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := l.pub.PublishMatchAction(ctx, rec); err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{
			"action": rec.ActionIndex,
			"type":   rec.ActionType,
		}).Warn("failed to publish match action")
	}
}
