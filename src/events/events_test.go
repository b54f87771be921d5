package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBus_FiltersByTable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewLocalBus()
	votes, err := bus.Subscribe(ctx, TableVotes)
	require.NoError(t, err)
	all, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, NewChange(TableProposals, Insert, "p1", nil)))
	require.NoError(t, bus.Publish(ctx, NewChange(TableVotes, Insert, "v1", map[string]bool{"support": true})))

	got := <-votes
	assert.Equal(t, "v1", got.ID)
	assert.JSONEq(t, `{"support":true}`, string(got.Record))

	assert.Equal(t, "p1", (<-all).ID)
	assert.Equal(t, "v1", (<-all).ID)
}

func TestLocalBus_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewLocalBus()
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
}

func TestLocalBus_DropsWhenSubscriberFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewLocalBus()
	_, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer+3; i++ {
		require.NoError(t, bus.Publish(ctx, NewChange(TableVotes, Insert, "v", nil)))
	}
	assert.Equal(t, int64(3), bus.Dropped())
}

func TestEncodeDecode(t *testing.T) {
	c := NewChange(TableProposals, Update, "p1", map[string]int{"votes_for": 3})
	values := encode(c)
	values["at"] = "1700000000000"

	got, err := decode(values)
	require.NoError(t, err)
	assert.Equal(t, TableProposals, got.Table)
	assert.Equal(t, Update, got.Type)
	assert.Equal(t, "p1", got.ID)
	assert.JSONEq(t, `{"votes_for":3}`, string(got.Record))
	assert.Equal(t, int64(1700000000000), got.At.UnixMilli())

	_, err = decode(map[string]interface{}{"id": "x"})
	assert.Error(t, err)
}
