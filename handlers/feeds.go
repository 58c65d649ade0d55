package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/platewatch/backend/services"
)

var (
	detectionHub *services.DetectionHub
	upgrader     = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true // dashboard may be served from anywhere
		},
	}
)

// SetDetectionHub sets the hub used by the websocket handlers.
func SetDetectionHub(hub *services.DetectionHub) {
	detectionHub = hub
}

// HandleDetectionWebSocket handles WebSocket connections for the live
// detection feed.
func HandleDetectionWebSocket(c *gin.Context) {
	if detectionHub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Detection hub not initialized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	client := services.NewDetectionClient(detectionHub, conn, c.ClientIP())
	detectionHub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// GetHubStats returns live-feed statistics
func GetHubStats(c *gin.Context) {
	if detectionHub == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}

	stats := detectionHub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"enabled":   true,
		"clients":   stats.Clients,
		"broadcast": stats.Broadcast,
	})
}
