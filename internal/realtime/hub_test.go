package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChangeEncodesRow(t *testing.T) {
	c, err := NewChange(ResourceLoans, OpInsert, 7, map[string]any{"id": 7, "employee_name": "Alice"})
	require.NoError(t, err)

	assert.Equal(t, ResourceLoans, c.Resource)
	assert.Equal(t, OpInsert, c.Op)
	assert.Equal(t, int64(7), c.ID)
	assert.False(t, c.At.IsZero())

	var row map[string]any
	require.NoError(t, json.Unmarshal(c.Data, &row))
	assert.Equal(t, "Alice", row["employee_name"])

	empty, err := NewChange(ResourceEvents, OpDelete, 1, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Data)
}

func TestHubFiltersByResource(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()

	loans, cancelLoans := hub.Subscribe(ResourceLoans)
	defer cancelLoans()
	all, cancelAll := hub.Subscribe()
	defer cancelAll()

	ctx := context.Background()
	hub.Publish(ctx, Change{Resource: ResourceUnits, Op: OpInsert, ID: 1})
	hub.Publish(ctx, Change{Resource: ResourceLoans, Op: OpInsert, ID: 2})

	got := <-loans
	assert.Equal(t, int64(2), got.ID)
	assert.Empty(t, loans)

	first, second := <-all, <-all
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe()
	require.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(2)
	defer hub.Close()

	slow, cancelSlow := hub.Subscribe()
	defer cancelSlow()
	fast, cancelFast := hub.Subscribe()
	defer cancelFast()

	ctx := context.Background()
	for i := range 3 {
		hub.Publish(ctx, Change{Resource: ResourceUnits, ID: int64(i)})
		<-fast
	}

	// The slow subscriber keeps what was buffered, then sees a closed channel.
	assert.Equal(t, int64(0), (<-slow).ID)
	assert.Equal(t, int64(1), (<-slow).ID)
	_, ok := <-slow
	assert.False(t, ok)
	assert.Equal(t, 1, hub.Subscribers())
}

func TestHubClose(t *testing.T) {
	hub := NewHub(1)
	ch, _ := hub.Subscribe()
	hub.Close()
	hub.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, cancel := hub.Subscribe()
	defer cancel()
	_, ok = <-late
	assert.False(t, ok)

	// Publishing after close is a no-op.
	hub.Publish(context.Background(), Change{Resource: ResourceUnits})
}

func TestHubConcurrentPublish(t *testing.T) {
	hub := NewHub(100)
	defer hub.Close()

	ch, cancel := hub.Subscribe(ResourceEvents)
	defer cancel()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 5 {
				hub.Publish(context.Background(), Change{Resource: ResourceEvents, ID: int64(i*10 + j)})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ch, 50)
}

func TestDiscard(t *testing.T) {
	Discard.Publish(context.Background(), Change{Resource: ResourceUnits})
}
