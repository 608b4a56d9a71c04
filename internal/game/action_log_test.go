package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/yudh/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher stores published records, sleeping a little on each to widen
// any reordering window.
type recordingPublisher struct {
	mu      sync.Mutex
	records []cache.MatchActionRecord
	failOn  int
}

func (p *recordingPublisher) PublishMatchAction(_ context.Context, rec cache.MatchActionRecord) error {
	time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec.ActionIndex == p.failOn {
		return errors.New("redis unavailable")
	}
	p.records = append(p.records, rec)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.records))
	for i, r := range p.records {
		out[i] = r.ActionType
	}
	return out
}

func (p *recordingPublisher) indexes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.records))
	for i, r := range p.records {
		out[i] = r.ActionIndex
	}
	return out
}

func nullEntry() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func TestActionLogPublishesInOrder(t *testing.T) {
	pub := &recordingPublisher{failOn: -1}
	l := newActionLog(pub, nullEntry())

	for i := 1; i <= 100; i++ {
		l.push(cache.MatchActionRecord{ActionIndex: i})
	}
	l.close()
	l.push(cache.MatchActionRecord{ActionIndex: 101}) // after close: dropped

	select {
	case <-l.done:
	case <-time.After(2 * time.Second):
		t.Fatal("action log did not drain")
	}

	idx := pub.indexes()
	require.Len(t, idx, 100)
	for i, v := range idx {
		assert.Equal(t, i+1, v)
	}
}

func TestActionLogSkipsFailedRecords(t *testing.T) {
	pub := &recordingPublisher{failOn: 2}
	l := newActionLog(pub, nullEntry())
	for i := 1; i <= 3; i++ {
		l.push(cache.MatchActionRecord{ActionIndex: i})
	}
	l.close()
	<-l.done
	assert.Equal(t, []int{1, 3}, pub.indexes())
}

func TestMatchEndIsPublishedLast(t *testing.T) {
	pub := &recordingPublisher{failOn: -1}
	src := newScriptedSource()
	a := NewPlayer(uuid.New(), uuid.New(), "a", "")
	b := NewPlayer(uuid.New(), uuid.New(), "b", "")
	m := NewMatch(uuid.New(), a, b, MatchOptions{Source: src, Timing: zeroTiming(), Actions: pub, Logger: nullEntry()})
	mb := newMockBroadcaster()
	m.BroadcastFn = mb.broadcastFn
	m.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	playToRolling(t, m, mb, src)
	rollOut(m, b, a)
	m.Abort(a.ID)

	select {
	case <-m.actions.done:
	case <-time.After(2 * time.Second):
		t.Fatal("action log did not drain")
	}
	types := pub.types()
	require.NotEmpty(t, types)
	assert.Equal(t, "match_start", types[0])
	assert.Equal(t, "match_end", types[len(types)-1])
	assert.IsIncreasing(t, pub.indexes())
}
