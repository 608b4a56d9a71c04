package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionQueueRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	q, err := NewActionQueue(ctx, addr, 0, "yudh_actions_test_"+uuid.NewString())
	require.NoError(t, err)
	defer q.Close()

	rec := MatchActionRecord{
		MatchID:       uuid.New(),
		ActionIndex:   7,
		ActorID:       uuid.New(),
		ActionType:    "roll_dice",
		ActionPayload: map[string]interface{}{"rollsUsed": float64(2)},
		Timestamp:     time.Now().UnixMilli(),
	}
	require.NoError(t, q.PublishMatchAction(ctx, rec))

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec, *got)

	got, err = q.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got, "empty queue times out without error")
}

func TestNewActionQueueUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewActionQueue(ctx, "127.0.0.1:1", 0, "")
	assert.Error(t, err)
}
