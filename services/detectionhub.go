package services

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// DetectionMessage is published on detections.<camera> after every stored
// detection and forwarded verbatim to dashboard clients.
type DetectionMessage struct {
	DetectionID int64     `json:"detectionId"`
	Camera      string    `json:"camera"`
	Plate       string    `json:"plate"`
	Images      int       `json:"images"`
	DetectedAt  time.Time `json:"detectedAt"`
}

// DetectionHub fans live detections out to WebSocket dashboard clients. It
// subscribes once to the detections subject tree and broadcasts every message
// to all connected clients.
type DetectionHub struct {
	natsConn *nats.Conn
	sub      *nats.Subscription

	clients   map[*DetectionClient]bool
	clientsMu sync.RWMutex

	register   chan *DetectionClient
	unregister chan *DetectionClient

	broadcastCount uint64
}

// NewDetectionHub creates a hub on an existing NATS connection.
func NewDetectionHub(natsConn *nats.Conn) *DetectionHub {
	return &DetectionHub{
		natsConn:   natsConn,
		clients:    make(map[*DetectionClient]bool),
		register:   make(chan *DetectionClient),
		unregister: make(chan *DetectionClient),
	}
}

// Publish sends a stored detection into the hub's subject tree.
func PublishDetection(nc *nats.Conn, msg DetectionMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := nc.Publish("detections."+msg.Camera, data); err != nil {
		log.Printf("⚠️ [HUB] Publish failed: %v", err)
	}
}

// Run starts the hub's main loop and the NATS subscription.
func (h *DetectionHub) Run() {
	sub, err := h.natsConn.Subscribe("detections.>", func(msg *nats.Msg) {
		h.broadcast(msg.Data)
	})
	if err != nil {
		log.Printf("❌ [HUB] Failed to subscribe to detections: %v", err)
		return
	}
	h.sub = sub
	log.Println("📺 Detection hub started")

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			log.Printf("📺 [HUB] Client connected: %s", client.remoteAddr)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			log.Printf("📺 [HUB] Client disconnected: %s", client.remoteAddr)
		}
	}
}

// Register adds a client to the hub.
func (h *DetectionHub) Register(client *DetectionClient) {
	h.register <- client
}

func (h *DetectionHub) broadcast(data []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
			atomic.AddUint64(&h.broadcastCount, 1)
		default:
			// Slow client: drop the message rather than block the hub.
		}
	}
}

// HubStats reports hub counters for the dashboard.
type HubStats struct {
	Clients   int    `json:"clients"`
	Broadcast uint64 `json:"broadcast"`
}

// Stats returns current counters.
func (h *DetectionHub) Stats() HubStats {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return HubStats{
		Clients:   len(h.clients),
		Broadcast: atomic.LoadUint64(&h.broadcastCount),
	}
}
