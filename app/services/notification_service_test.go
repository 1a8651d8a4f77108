package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CafePos/app/models"
	"CafePos/app/money"
)

type broadcastRecorder struct {
	mu       sync.Mutex
	messages [][]byte
}

func (r *broadcastRecorder) Broadcast(message []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *broadcastRecorder) all() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.messages))
	copy(out, r.messages)
	return out
}

func TestCompletionEventDelivered(t *testing.T) {
	rec := &broadcastRecorder{}
	svc := NewNotificationService(rec, 8)

	completedAt := time.Now()
	svc.EnqueueCompletion(&models.Order{
		ID:          "order-1",
		Status:      models.OrderStatusCompleted,
		TotalAmount: money.FromRupees(270),
		Payment:     models.PaymentDetails{Method: models.PaymentCash},
		StaffID:     "staff-1",
		CompletedAt: &completedAt,
	})
	svc.Stop()

	messages := rec.all()
	require.Len(t, messages, 1)

	var ev Event
	require.NoError(t, json.Unmarshal(messages[0], &ev))
	assert.Equal(t, "order_completed", ev.Type)

	data, ok := ev.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "order-1", data["order_id"])
	assert.Equal(t, "270.00", data["total"])
}

func TestItemAddedEventDelivered(t *testing.T) {
	rec := &broadcastRecorder{}
	svc := NewNotificationService(rec, 8)

	svc.ItemAdded(models.CartLine{ItemID: "samosa", Name: "Samosa", Quantity: 2})
	svc.Stop()

	messages := rec.all()
	require.Len(t, messages, 1)

	var ev Event
	require.NoError(t, json.Unmarshal(messages[0], &ev))
	assert.Equal(t, "item_added", ev.Type)
}

// gatedBroadcaster holds every delivery until the gate closes, so the
// queue can be filled deterministically.
type gatedBroadcaster struct {
	gate      chan struct{}
	mu        sync.Mutex
	delivered int
}

func (g *gatedBroadcaster) Broadcast(message []byte) {
	<-g.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delivered++
}

func (g *gatedBroadcaster) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delivered
}

func TestQueueOverflowDropsWithoutBlocking(t *testing.T) {
	gate := &gatedBroadcaster{gate: make(chan struct{})}
	svc := NewNotificationService(gate, 1)

	// With the worker stalled and a queue of one, at least one of these
	// must be dropped. Returning from all three proves enqueue never blocks.
	for i := 0; i < 3; i++ {
		svc.ItemAdded(models.CartLine{ItemID: "samosa", Quantity: 1})
	}

	close(gate.gate)
	svc.Stop()

	assert.GreaterOrEqual(t, gate.count(), 1)
	assert.Less(t, gate.count(), 3)
}

func TestStopDrainsQueue(t *testing.T) {
	rec := &broadcastRecorder{}
	svc := NewNotificationService(rec, 32)

	for i := 0; i < 10; i++ {
		svc.ItemAdded(models.CartLine{ItemID: "samosa", Quantity: 1})
	}
	svc.Stop()

	assert.Len(t, rec.all(), 10)
}
