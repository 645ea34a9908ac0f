package websocket

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned when attempting to send to a closed client
var ErrClientClosed = errors.New("client is closed")

// AllTopics subscribes a client to every topic
const AllTopics = "*"

// IdleTopic holds clients that are connected but not subscribed; nothing is broadcast to it
const IdleTopic = ""

// ClientInterface defines the interface that clients must implement
type ClientInterface interface {
	ID() string
	Topic() string
	// SetTopic is called by the hub, under its lock, when the client moves between topics
	SetTopic(topic string)
	Send(data []byte) error
	Close() error
}

// Hub manages WebSocket connections organized by topic (a budget month key such as "2024-03")
// It is safe for concurrent use
type Hub struct {
	// topics maps topic to a map of client ID to client
	topics map[string]map[string]ClientInterface
	mu     sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[string]ClientInterface),
	}
}

// Register adds a client to the hub under its topic
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic := client.Topic()
	clientID := client.ID()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]ClientInterface)
	}

	h.topics[topic][clientID] = client

	log.Debug().
		Str("topic", topic).
		Str("client_id", clientID).
		Msg("WebSocket client registered")
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topic := client.Topic()
	clientID := client.ID()

	if clients, ok := h.topics[topic]; ok {
		if _, exists := clients[clientID]; exists {
			delete(clients, clientID)

			// Clean up empty topic maps
			if len(clients) == 0 {
				delete(h.topics, topic)
			}

			log.Debug().
				Str("topic", topic).
				Str("client_id", clientID).
				Msg("WebSocket client unregistered")
		}
	}
}

// Subscribe moves a registered client to topic. It reports false when the client is no
// longer registered (already unregistered or closed by CloseAll).
func (h *Hub) Subscribe(client ClientInterface, topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	previous := client.Topic()
	clientID := client.ID()

	clients, ok := h.topics[previous]
	if !ok {
		return false
	}
	if _, exists := clients[clientID]; !exists {
		return false
	}
	if previous == topic {
		return true
	}

	delete(clients, clientID)
	if len(clients) == 0 {
		delete(h.topics, previous)
	}

	client.SetTopic(topic)
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]ClientInterface)
	}
	h.topics[topic][clientID] = client

	log.Debug().
		Str("from_topic", previous).
		Str("topic", topic).
		Str("client_id", clientID).
		Msg("WebSocket client changed subscription")
	return true
}

// Broadcast sends an event to all clients of a topic and to AllTopics subscribers
func (h *Hub) Broadcast(topic string, event Event) {
	if topic == IdleTopic {
		return
	}

	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	h.mu.RLock()
	// Copy clients to avoid holding lock during send
	recipients := make([]ClientInterface, 0, len(h.topics[topic])+len(h.topics[AllTopics]))
	for _, client := range h.topics[topic] {
		recipients = append(recipients, client)
	}
	if topic != AllTopics {
		for _, client := range h.topics[AllTopics] {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	if len(recipients) == 0 {
		return
	}

	// Send to each client asynchronously
	for _, client := range recipients {
		go func(c ClientInterface) {
			if err := c.Send(data); err != nil {
				log.Warn().
					Err(err).
					Str("topic", topic).
					Str("client_id", c.ID()).
					Msg("Failed to send to client")
			}
		}(client)
	}

	log.Debug().
		Str("topic", topic).
		Str("event_type", event.Type).
		Int("client_count", len(recipients)).
		Msg("Broadcast event")
}

// ClientCount returns the number of clients subscribed to exactly this topic
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.topics[topic]; ok {
		return len(clients)
	}
	return 0
}

// TotalClientCount returns the total number of connected clients across all topics
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.topics {
		total += len(clients)
	}
	return total
}

// CloseAll disconnects every client, used on shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]ClientInterface, 0)
	for _, topicClients := range h.topics {
		for _, client := range topicClients {
			clients = append(clients, client)
		}
	}
	h.topics = make(map[string]map[string]ClientInterface)
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
