package services

import (
	"fmt"
	"log"
	"time"

	"github.com/platewatch/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoredDetection reports what a Record call persisted.
type StoredDetection struct {
	DetectionID  int64 `json:"detectionId"`
	VehicleID    int64 `json:"vehicleId"`
	ImagesStored int   `json:"imagesStored"`
}

// Persister writes a canonical event to the datastore: vehicle upsert,
// detection insert, image rows, and the secondary event ledger. A datastore
// error aborts the request; a single bad image never does.
type Persister struct {
	db    *gorm.DB
	store *ImageStore
}

// NewPersister wires a persister to its datastore handle and image store.
func NewPersister(db *gorm.DB, store *ImageStore) *Persister {
	return &Persister{db: db, store: store}
}

// Record persists one detection event attributed to camera/cameraIP.
func (p *Persister) Record(ev *CanonicalEvent, camera, cameraIP string) (*StoredDetection, error) {
	capturedAt := time.Now()
	if ev.CapturedAt != nil {
		capturedAt = *ev.CapturedAt
	}

	vehicleID, err := p.upsertVehicle(ev.Plate)
	if err != nil {
		return nil, fmt.Errorf("upsert vehicle: %w", err)
	}

	detection := models.VehicleDetection{
		CameraName: camera,
		CameraIP:   cameraIP,
		Plate:      ev.Plate,
		CreatedAt:  capturedAt,
	}
	if err := p.db.Create(&detection).Error; err != nil {
		return nil, fmt.Errorf("insert detection: %w", err)
	}

	stored := 0
	for _, src := range ev.Images {
		if src.Inline == "" {
			// Bare pic names are left for the reconciliation passes.
			continue
		}
		path, err := p.store.SaveBase64(camera, ev.Plate, src.Type, src.Inline, capturedAt)
		if err != nil {
			log.Printf("⚠️ [PERSIST] Skipping %s image for detection %d: %v", src.Type, detection.ID, err)
			continue
		}
		linked, err := p.LinkImage(detection.ID, src.Type, path)
		if err != nil {
			log.Printf("⚠️ [PERSIST] Failed to link %s image for detection %d: %v", src.Type, detection.ID, err)
			continue
		}
		if linked {
			stored++
		}
	}

	if err := p.recordEvent(vehicleID, camera, capturedAt); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	return &StoredDetection{
		DetectionID:  detection.ID,
		VehicleID:    vehicleID,
		ImagesStored: stored,
	}, nil
}

// upsertVehicle inserts the plate, doing nothing on conflict, and returns the
// row id either way.
func (p *Persister) upsertVehicle(plate string) (int64, error) {
	vehicle := models.Vehicle{Plate: plate}
	if err := p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plate"}},
		DoNothing: true,
	}).Create(&vehicle).Error; err != nil {
		return 0, err
	}
	if vehicle.ID != 0 {
		return vehicle.ID, nil
	}
	// Conflict path: the insert was a no-op, fetch the existing row.
	var existing models.Vehicle
	if err := p.db.Where("plate = ?", plate).First(&existing).Error; err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// LinkImage inserts a vehicle_images row unless the (detection, path) pair is
// already linked. Every write path goes through here. The existence check
// keeps the common already-linked case cheap; the conflict clause against the
// composite unique index is what makes a concurrent duplicate lose cleanly
// instead of racing.
func (p *Persister) LinkImage(detectionID int64, imageType, path string) (bool, error) {
	var existing models.VehicleImage
	err := p.db.Where("detection_id = ? AND image_path = ?", detectionID, path).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}

	img := models.VehicleImage{
		DetectionID: detectionID,
		ImageType:   imageType,
		ImagePath:   path,
		CreatedAt:   time.Now(),
	}
	result := p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "detection_id"}, {Name: "image_path"}},
		DoNothing: true,
	}).Create(&img)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// recordEvent writes the secondary ledger row. Cameras without a configured
// row are skipped silently.
func (p *Persister) recordEvent(vehicleID int64, cameraName string, detectedAt time.Time) error {
	var cam models.Camera
	err := p.db.Where("name = ?", cameraName).First(&cam).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	event := models.Event{
		VehicleID:  vehicleID,
		CameraID:   cam.ID,
		DetectedAt: detectedAt,
	}
	return p.db.Create(&event).Error
}
