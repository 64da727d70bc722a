package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carlbunn/musicbox/logger"
	"github.com/carlbunn/musicbox/types"
)

// TopicAll subscribes a client to every event regardless of topic.
const TopicAll = "all"

// Hub manages WebSocket subscribers and fans events out to them by
// topic.
type Hub interface {
	Run()
	Broadcast(event types.Event)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
}

// hub maintains the set of active clients grouped by the topic they
// subscribed to.
type hub struct {
	clients map[string]map[*Client]bool

	broadcast  chan types.Event
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

func NewHub() Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan types.Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop. Meant to run in its own goroutine
// for the life of the process.
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]bool)
			}
			h.clients[client.topic][client] = true
			h.mu.Unlock()
			logger.Debug("websocket client connected", zap.String("topic", client.topic))

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.topic]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.topic)
					}
				}
			}
			h.mu.Unlock()
			logger.Debug("websocket client disconnected", zap.String("topic", client.topic))

		case event := <-h.broadcast:
			h.mu.Lock()
			h.deliverLocked(event.Topic, event)
			h.deliverLocked(TopicAll, event)
			h.mu.Unlock()
		}
	}
}

// deliverLocked sends to every client on a topic, dropping clients
// whose send buffer is full.
func (h *hub) deliverLocked(topic string, event types.Event) {
	clients, ok := h.clients[topic]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- event:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, topic)
	}
}

// Broadcast queues an event for fan-out. Never blocks; under pressure
// the event is dropped, subscribers are advisory listeners.
func (h *hub) Broadcast(event types.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		logger.Warn("websocket broadcast queue full, dropping event",
			zap.String("topic", event.Topic), zap.String("type", event.Type))
	}
}

func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
