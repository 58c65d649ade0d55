// Package handlers wires the HTTP surface to the ingestion core. Route
// registration lives in main; handlers receive their collaborators once via
// Init.
package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/platewatch/backend/services"
	"gorm.io/gorm"
)

var (
	db        *gorm.DB
	resolver  *services.CameraResolver
	persister *services.Persister
	store     *services.ImageStore
	natsConn  *nats.Conn
)

// Init injects the shared collaborators into the handler package.
func Init(database *gorm.DB, r *services.CameraResolver, p *services.Persister, s *services.ImageStore, nc *nats.Conn) {
	db = database
	resolver = r
	persister = p
	store = s
	natsConn = nc
}

// HandleWebhook ingests one camera delivery. Any payload shape is accepted:
// normalization falls back to the UNKNOWN plate rather than rejecting, so the
// only failure the camera ever sees is a datastore outage.
func HandleWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		raw = nil
	}

	ev := services.NormalizePayload(raw)

	// /hooks/:camera binds the camera explicitly; everything else goes
	// through resolution.
	camera := c.Param("camera")
	if camera == "" {
		camera = resolver.Resolve(c.ClientIP(), c.Request.URL.Path, ev.DeviceID)
	}

	log.Printf("📸 [WEBHOOK] %s %s plate=%s variant=%s images=%d",
		camera, c.Request.URL.Path, ev.Plate, ev.Variant, len(ev.Images))

	result, err := persister.Record(ev, camera, c.ClientIP())
	if err != nil {
		log.Printf("🔥 [WEBHOOK] %s: %v", camera, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Payloads that reference pic names instead of inline bytes are archived
	// for the payload-scan reconciliation pass.
	if hasDeferredImages(ev) {
		capturedAt := time.Now()
		if ev.CapturedAt != nil {
			capturedAt = *ev.CapturedAt
		}
		if _, err := store.ArchivePayload(camera, ev.Plate, capturedAt, ev.Raw); err != nil {
			log.Printf("⚠️ [WEBHOOK] Payload archive failed for detection %d: %v", result.DetectionID, err)
		}
	}

	if natsConn != nil {
		services.PublishDetection(natsConn, services.DetectionMessage{
			DetectionID: result.DetectionID,
			Camera:      camera,
			Plate:       ev.Plate,
			Images:      result.ImagesStored,
			DetectedAt:  time.Now(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"detectionId": result.DetectionID,
		"images":      result.ImagesStored,
	})
}

func hasDeferredImages(ev *services.CanonicalEvent) bool {
	for _, src := range ev.Images {
		if src.Filename != "" {
			return true
		}
	}
	return false
}
