package services

import (
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"CafePos/app/models"
)

// Broadcaster fans a message out to every connected listener. Satisfied by
// the websocket hub; tests inject a recorder.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Event is the wire shape of a pushed notification.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NotificationService pushes best-effort events (order completed, item added
// to cart) to kitchen displays and dashboards over the hub. Delivery is
// fire-and-forget: a full queue drops the event with a warning, and nothing
// upstream ever blocks or fails because of a notification.
type NotificationService struct {
	hub   Broadcaster
	queue chan Event

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewNotificationService starts the delivery worker. Call Stop to drain it.
func NewNotificationService(hub Broadcaster, queueSize int) *NotificationService {
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &NotificationService{
		hub:   hub,
		queue: make(chan Event, queueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// EnqueueCompletion queues an order-completed event. Never blocks.
func (s *NotificationService) EnqueueCompletion(order *models.Order) {
	s.enqueue(Event{
		Type:      "order_completed",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"order_id": order.ID,
			"total":    order.TotalAmount.String(),
			"method":   order.Payment.Method,
			"staff_id": order.StaffID,
		},
	})
}

// OrderReady queues a ready-for-pickup event for the counter display.
func (s *NotificationService) OrderReady(order *models.Order) {
	s.enqueue(Event{
		Type:      "order_ready",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"order_id":     order.ID,
			"table_number": order.TableNumber,
			"order_type":   order.OrderType,
		},
	})
}

// ItemAdded queues a cart-item event for live kitchen displays.
func (s *NotificationService) ItemAdded(line models.CartLine) {
	s.enqueue(Event{
		Type:      "item_added",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"item_id":  line.ItemID,
			"name":     line.Name,
			"quantity": line.Quantity,
		},
	})
}

func (s *NotificationService) enqueue(ev Event) {
	select {
	case s.queue <- ev:
	default:
		log.WithField("type", ev.Type).Warn("notification queue full, dropping event")
	}
}

func (s *NotificationService) run() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.queue:
			s.deliver(ev)
		case <-s.stop:
			// Drain whatever was queued before the stop.
			for {
				select {
				case ev := <-s.queue:
					s.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *NotificationService) deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.WithError(err).WithField("type", ev.Type).Warn("cannot encode notification")
		return
	}
	s.hub.Broadcast(data)
}

// Stop shuts the worker down after draining queued events.
func (s *NotificationService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}
