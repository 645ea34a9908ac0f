package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
)

const (
	// writeWait is time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// pongWait is time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// pingPeriod is the interval for sending pings (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is maximum message size allowed from peer
	maxMessageSize = 512

	// snapshotTimeout bounds a single snapshot load
	snapshotTimeout = 10 * time.Second
)

// Client commands
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Command is a message sent by the client, e.g. {"action":"subscribe","month":"2024-03-01"}.
// A subscribe without a month subscribes to every month.
type Command struct {
	Action string `json:"action"`
	Month  string `json:"month,omitempty"`
}

// SnapshotFunc loads the current state of a month, pushed to a client when it subscribes
type SnapshotFunc func(ctx context.Context, month domain.Month) (interface{}, error)

// Client represents a single WebSocket connection
type Client struct {
	id        string
	topic     string
	conn      *websocket.Conn
	hub       *Hub
	send      chan []byte
	snapshot  SnapshotFunc
	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client subscribed to topic. snapshot may be nil.
func NewClient(conn *websocket.Conn, topic string, hub *Hub, snapshot SnapshotFunc) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:       uuid.New().String(),
		topic:    topic,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
		snapshot: snapshot,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the client's unique identifier
func (c *Client) ID() string {
	return c.id
}

// Topic returns the topic the client is subscribed to
func (c *Client) Topic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topic
}

// SetTopic records the client's topic; use Hub.Subscribe to move a registered client
func (c *Client) SetTopic(topic string) {
	c.mu.Lock()
	c.topic = topic
	c.mu.Unlock()
}

// Send queues a message to be sent to the client
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer is full, client is too slow
		return ErrClientClosed
	}
}

// Close closes the client connection
// Safe to call multiple times from different goroutines
func (c *Client) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		if c.conn != nil {
			closeErr = c.conn.Close()
		}
	})
	return closeErr
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// ReadPump pumps messages from the WebSocket connection
// This should be run in a goroutine
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Str("topic", c.Topic()).
					Msg("WebSocket unexpected close")
			}
			break
		}
		c.HandleCommand(message)
	}
}

// HandleCommand applies a subscribe or unsubscribe command. Every command is answered:
// a subscription.updated ack (followed by a budget.snapshot when a month was named)
// or a subscription.error.
func (c *Client) HandleCommand(message []byte) {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.sendEvent(SubscriptionError("command must be a JSON object"))
		return
	}

	switch cmd.Action {
	case ActionSubscribe:
		topic := AllTopics
		var month domain.Month
		if cmd.Month != "" {
			m, err := domain.ParseMonth(cmd.Month)
			if err != nil {
				c.sendEvent(SubscriptionError(commandErrorMessage(err)))
				return
			}
			month = m
			topic = m.Key()
		}
		if !c.hub.Subscribe(c, topic) {
			return
		}
		c.sendEvent(SubscriptionUpdated(topic))
		if !month.IsZero() {
			c.PushSnapshot(month)
		}

	case ActionUnsubscribe:
		if !c.hub.Subscribe(c, IdleTopic) {
			return
		}
		c.sendEvent(SubscriptionUpdated(IdleTopic))

	default:
		c.sendEvent(SubscriptionError("unknown action: " + cmd.Action))
	}
}

// PushSnapshot sends a budget.snapshot of month to the client
func (c *Client) PushSnapshot(month domain.Month) {
	if c.snapshot == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, snapshotTimeout)
	defer cancel()

	payload, err := c.snapshot(ctx, month)
	if err != nil {
		log.Warn().
			Err(err).
			Str("client_id", c.id).
			Str("month", month.String()).
			Msg("Failed to load budget snapshot")
		c.sendEvent(SubscriptionError("failed to load budget snapshot"))
		return
	}
	c.sendEvent(BudgetSnapshot(payload))
}

func (c *Client) sendEvent(event Event) {
	data, err := event.ToJSON()
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to serialize event")
		return
	}
	if err := c.Send(data); err != nil {
		log.Debug().Err(err).Str("client_id", c.id).Str("event_type", event.Type).Msg("Dropped event for client")
	}
}

func commandErrorMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}

// WritePump pumps messages from the hub to the WebSocket connection
// This should be run in a goroutine
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed, hub closed this client
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Str("topic", c.Topic()).
					Msg("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
