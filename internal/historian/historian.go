// Package historian drains the match action queue into Postgres and marks matches
// abandoned once their log goes quiet.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/yudh/internal/cache"
	"github.com/jason-s-yu/yudh/internal/database"
	"github.com/sirupsen/logrus"
)

// Source yields queued action records. Pop returns (nil, nil) when nothing arrived
// within timeout. Implemented by cache.ActionQueue.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.MatchActionRecord, error)
}

// Sink persists action batches and abandonment.
type Sink interface {
	InsertMatchActions(ctx context.Context, recs []cache.MatchActionRecord) error
	MarkMatchAbandoned(ctx context.Context, matchID uuid.UUID) error
}

// DatabaseSink writes through the shared database pool.
type DatabaseSink struct{}

func (DatabaseSink) InsertMatchActions(ctx context.Context, recs []cache.MatchActionRecord) error {
	return database.InsertMatchActions(ctx, recs)
}

func (DatabaseSink) MarkMatchAbandoned(ctx context.Context, matchID uuid.UUID) error {
	return database.MarkMatchAbandoned(ctx, matchID)
}

// Options tune the service. Zero values take the defaults below.
type Options struct {
	BatchSize     int
	FlushDelay    time.Duration
	Inactivity    time.Duration // quiet period after which a match counts as abandoned
	PopTimeout    time.Duration
	SweepInterval time.Duration
	Logger        *logrus.Entry
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushDelay <= 0 {
		o.FlushDelay = 500 * time.Millisecond
	}
	if o.Inactivity <= 0 {
		o.Inactivity = 10 * time.Minute
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = 3 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return o
}

// Service batches records from a Source into a Sink.
type Service struct {
	src    Source
	sink   Sink
	opts   Options
	logger *logrus.Entry

	batchMu sync.Mutex
	batch   []cache.MatchActionRecord

	// lastActivity maps match id to the time its latest record was seen.
	lastActivity sync.Map
}

// New creates a historian reading from src and writing to sink.
func New(src Source, sink Sink, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		src:    src,
		sink:   sink,
		opts:   opts,
		logger: opts.Logger,
		batch:  make([]cache.MatchActionRecord, 0, opts.BatchSize),
	}
}

// Run processes the queue until ctx is cancelled, then flushes what is buffered.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.readLoop(ctx) }()
	go func() { defer wg.Done(); s.flushLoop(ctx) }()
	go func() { defer wg.Done(); s.inactivityLoop(ctx) }()

	s.logger.Info("historian started")
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.logger.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		rec, err := s.src.Pop(ctx, s.opts.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).Warn("failed to pop action record")
			if !sleep(ctx, s.opts.FlushDelay) {
				return
			}
			continue
		}
		if rec == nil {
			continue
		}
		s.track(*rec, time.Now())
		if s.append(*rec) {
			s.flush(ctx)
		}
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

// track records activity for a match. A finished match stops being watched.
func (s *Service) track(rec cache.MatchActionRecord, now time.Time) {
	if rec.ActionType == database.MatchEndAction {
		s.lastActivity.Delete(rec.MatchID)
		return
	}
	s.lastActivity.Store(rec.MatchID, now)
}

// append buffers rec and reports whether the batch is full.
func (s *Service) append(rec cache.MatchActionRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.opts.BatchSize
}

// flush writes the buffered records in one transaction. A failed batch is dropped
// and logged.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]cache.MatchActionRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.InsertMatchActions(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("count", len(pending)).Error("failed to flush action batch")
		return
	}
	s.logger.WithField("count", len(pending)).Debug("flushed action batch")
}

// sweep marks every match idle for longer than the inactivity window as abandoned.
func (s *Service) sweep(ctx context.Context, now time.Time) {
	s.lastActivity.Range(func(key, val interface{}) bool {
		matchID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.opts.Inactivity {
			return true
		}
		if err := s.sink.MarkMatchAbandoned(ctx, matchID); err != nil {
			s.logger.WithError(err).WithField("match", matchID).Error("failed to mark match abandoned")
			return true
		}
		s.logger.WithField("match", matchID).Info("marked match abandoned after inactivity")
		s.lastActivity.Delete(matchID)
		return true
	})
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
