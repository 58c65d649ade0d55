package models

import (
	"time"
)

// ImageType is an open enumeration: cameras and reconciliation passes may
// introduce new values, so it is stored as plain text.
type ImageType = string

const (
	ImageTypePlate   ImageType = "plate"   // cropped plate cutout
	ImageTypeFull    ImageType = "full"    // full vehicle frame
	ImageTypeContext ImageType = "context" // wide scene shot
	ImageTypeFetched ImageType = "fetched" // recovered later from a camera host
)

// Camera model - a configured recognition camera
type Camera struct {
	ID   int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name string `gorm:"column:name;uniqueIndex" json:"name"`
	IP   string `gorm:"column:ip" json:"ip"`

	Events []Event `gorm:"foreignKey:CameraID" json:"events,omitempty"`
}

func (Camera) TableName() string {
	return "cameras"
}

// Vehicle model - one row per unique plate, created by upsert only
type Vehicle struct {
	ID    int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Plate string `gorm:"column:plate;uniqueIndex" json:"plate"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`

	Events []Event `gorm:"foreignKey:VehicleID" json:"events,omitempty"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// VehicleDetection model - one recorded sighting, immutable after insert.
// Plate is denormalized on purpose: it keeps whatever format the webhook
// delivered and may diverge from Vehicle.Plate.
type VehicleDetection struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	CameraName string    `gorm:"column:camera_name;index" json:"cameraName"`
	CameraIP   string    `gorm:"column:camera_ip" json:"cameraIp"`
	Plate      string    `gorm:"column:plate;index" json:"plate"`
	CreatedAt  time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP;index" json:"createdAt"`

	Images []VehicleImage `gorm:"foreignKey:DetectionID" json:"images,omitempty"`
}

func (VehicleDetection) TableName() string {
	return "vehicle_detections"
}

// VehicleImage model - a stored image linked to a detection. The composite
// unique index backs the at-most-one-row-per-(detection, path) invariant; the
// persister's existence check is only the friendly fast path on top of it.
type VehicleImage struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	DetectionID int64     `gorm:"column:detection_id;index;uniqueIndex:idx_detection_image_path" json:"detectionId"`
	ImageType   ImageType `gorm:"column:image_type" json:"imageType"`
	ImagePath   string    `gorm:"column:image_path;uniqueIndex:idx_detection_image_path" json:"imagePath"`
	CreatedAt   time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (VehicleImage) TableName() string {
	return "vehicle_images"
}

// Event model - secondary sighting ledger, only written when the delivering
// camera name has a configured Camera row
type Event struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	VehicleID  int64     `gorm:"column:vehicle_id;index" json:"vehicleId"`
	Vehicle    *Vehicle  `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	CameraID   int64     `gorm:"column:camera_id;index" json:"cameraId"`
	Camera     *Camera   `gorm:"foreignKey:CameraID" json:"camera,omitempty"`
	DetectedAt time.Time `gorm:"column:detected_at;default:CURRENT_TIMESTAMP;index" json:"detectedAt"`
}

func (Event) TableName() string {
	return "events"
}
