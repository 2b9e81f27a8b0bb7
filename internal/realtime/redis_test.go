package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeSkipsOwnChanges(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()
	ch, cancel := hub.Subscribe()
	defer cancel()

	local := NewBridge(hub, nil, "")
	remote := NewBridge(NewHub(1), nil, "")
	require.NotEqual(t, local.Origin(), remote.Origin())

	c := Change{Resource: ResourceLoans, Op: OpUpdate, ID: 3}

	own, err := local.encode(c)
	require.NoError(t, err)
	assert.False(t, local.deliver(context.Background(), own))
	assert.Empty(t, ch)

	other, err := remote.encode(c)
	require.NoError(t, err)
	assert.True(t, local.deliver(context.Background(), other))

	got := <-ch
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, OpUpdate, got.Op)
}

func TestBridgeIgnoresMalformedPayload(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()

	b := NewBridge(hub, nil, "custom")
	assert.Equal(t, "custom", b.channel)
	assert.False(t, b.deliver(context.Background(), []byte("{not json")))
}

func TestBridgeDefaultChannel(t *testing.T) {
	b := NewBridge(NewHub(1), nil, "")
	assert.Equal(t, DefaultChannel, b.channel)
}

const testChannel = "teamdesk:test"

func newTestClient(t *testing.T, addr string) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		MaxRetries:      -1,
		DisableIdentity: true,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestBridgeRelaysBetweenInstances(t *testing.T) {
	srv := miniredis.RunT(t)

	hubA, hubB := NewHub(8), NewHub(8)
	defer hubA.Close()
	defer hubB.Close()
	a := NewBridge(hubA, newTestClient(t, srv.Addr()), testChannel)
	b := NewBridge(hubB, newTestClient(t, srv.Addr()), testChannel)

	changesA, cancelA := hubA.Subscribe()
	defer cancelA()
	changesB, cancelB := hubB.Subscribe()
	defer cancelB()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 2)
	go func() { done <- a.Run(ctx) }()
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		return srv.PubSubNumSub(testChannel)[testChannel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	first := Change{Resource: ResourceUnits, Op: OpInsert, ID: 1}
	a.Publish(ctx, first)

	assert.Equal(t, first.ID, receive(t, changesA).ID, "local delivery")
	assert.Equal(t, first.ID, receive(t, changesB).ID, "relayed to the other instance")

	// Redis delivers in publish order, so if A relayed its own change back
	// it would arrive here before B's.
	second := Change{Resource: ResourceLoans, Op: OpUpdate, ID: 2}
	b.Publish(ctx, second)
	assert.Equal(t, second.ID, receive(t, changesB).ID)
	got := receive(t, changesA)
	assert.Equal(t, ResourceLoans, got.Resource)
	assert.Equal(t, second.ID, got.ID)

	cancel()
	for range 2 {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	}
	assert.Empty(t, changesA)
}

func TestBridgeRunSubscribeError(t *testing.T) {
	srv := miniredis.NewMiniRedis()
	require.NoError(t, srv.Start())
	addr := srv.Addr()
	srv.Close()

	b := NewBridge(NewHub(1), newTestClient(t, addr), testChannel)
	err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribing to "+testChannel)
}

func TestBridgeRunCancelledBeforeSubscribe(t *testing.T) {
	srv := miniredis.RunT(t)
	b := NewBridge(NewHub(1), newTestClient(t, srv.Addr()), testChannel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, b.Run(ctx))
}

func TestBridgePublishKeepsLocalDeliveryWhenRedisIsDown(t *testing.T) {
	srv := miniredis.NewMiniRedis()
	require.NoError(t, srv.Start())
	addr := srv.Addr()
	srv.Close()

	hub := NewHub(1)
	defer hub.Close()
	changes, cancel := hub.Subscribe()
	defer cancel()

	b := NewBridge(hub, newTestClient(t, addr), testChannel)
	b.Publish(context.Background(), Change{Resource: ResourceEvents, Op: OpDelete, ID: 9})

	assert.Equal(t, int64(9), receive(t, changes).ID)
}
