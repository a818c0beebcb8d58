// Package feed broadcasts computed assessments to live dashboard subscribers over WebSocket.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cardio-insights-server/internal/domain"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

// Filter restricts which events a subscriber receives. Empty fields match everything.
type Filter struct {
	Calculator domain.Calculator
	PatientID  string
}

func (f Filter) matches(e domain.AssessmentEvent) bool {
	if f.Calculator != "" && f.Calculator != e.Calculator {
		return false
	}
	if f.PatientID != "" && f.PatientID != e.PatientID {
		return false
	}
	return true
}

// Subscriber is one live connection.
type Subscriber struct {
	ID     string
	Filter Filter
	Send   chan []byte
}

// Hub fans events out to subscribers. A subscriber whose buffer is full is dropped.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	log         *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		log:         logger,
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe(filter Filter) *Subscriber {
	sub := &Subscriber{
		ID:     uuid.New().String(),
		Filter: filter,
		Send:   make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Unsubscribe removes a subscriber and closes its channel. It is safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscriber) {
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.Send)
}

// Publish implements domain.AssessmentPublisher.
func (h *Hub) Publish(event domain.AssessmentEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal assessment event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		if !sub.Filter.matches(event) {
			continue
		}
		select {
		case sub.Send <- data:
		default:
			h.log.WithField("subscriber_id", sub.ID).Warn("Dropping slow feed subscriber")
			h.removeLocked(sub)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		h.removeLocked(sub)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS upgrades the request and streams matching events until the client disconnects.
// Query parameters calculator and patient_id narrow the stream.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, checkOrigin func(*http.Request) bool) error {
	up := upgrader
	up.CheckOrigin = checkOrigin

	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := h.Subscribe(Filter{
		Calculator: domain.Calculator(r.URL.Query().Get("calculator")),
		PatientID:  r.URL.Query().Get("patient_id"),
	})

	h.log.WithFields(logrus.Fields{
		"subscriber_id": sub.ID,
		"remote_addr":   r.RemoteAddr,
	}).Info("Feed subscriber connected")

	go h.writePump(sub, conn)
	go h.readPump(sub, conn)
	return nil
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(sub *Subscriber, conn *websocket.Conn) {
	defer func() {
		h.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *Subscriber, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
