package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/platewatch/backend/database"
	"github.com/platewatch/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCamera(t *testing.T, db *gorm.DB, name string) models.Camera {
	t.Helper()
	cam := models.Camera{Name: name, IP: "192.168.1.101"}
	if err := db.Create(&cam).Error; err != nil {
		t.Fatalf("seed camera: %v", err)
	}
	return cam
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRecordWebhookEvent(t *testing.T) {
	db := newTestDB(t)
	seedCamera(t, db, "camera1")
	store := NewImageStore(t.TempDir(), true)
	p := NewPersister(db, store)

	ev := NormalizePayload([]byte(`{"plate":"MH12AB1234","images":{"plate":"YWJj","full":"ZGVm"}}`))
	result, err := p.Record(ev, "camera1", "10.0.0.5")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if result.DetectionID == 0 {
		t.Error("detection id not returned")
	}
	if result.ImagesStored != 2 {
		t.Errorf("imagesStored = %d, want 2", result.ImagesStored)
	}

	if n := count(t, db, &models.Vehicle{}); n != 1 {
		t.Errorf("vehicles = %d, want 1", n)
	}
	if n := count(t, db, &models.VehicleDetection{}); n != 1 {
		t.Errorf("detections = %d, want 1", n)
	}
	if n := count(t, db, &models.VehicleImage{}); n != 2 {
		t.Errorf("images = %d, want 2", n)
	}
	if n := count(t, db, &models.Event{}); n != 1 {
		t.Errorf("events = %d, want 1", n)
	}

	var det models.VehicleDetection
	db.First(&det)
	if det.CameraName != "camera1" || det.Plate != "MH12AB1234" || det.CameraIP != "10.0.0.5" {
		t.Errorf("detection row = %+v", det)
	}

	var types []string
	db.Model(&models.VehicleImage{}).Order("image_type").Pluck("image_type", &types)
	if len(types) != 2 || types[0] != "full" || types[1] != "plate" {
		t.Errorf("image types = %v, want [full plate]", types)
	}
}

func TestRecordVehicleUpsert(t *testing.T) {
	db := newTestDB(t)
	store := NewImageStore(t.TempDir(), true)
	p := NewPersister(db, store)

	ev := NormalizePayload([]byte(`{"plate":"MH12AB1234"}`))
	first, err := p.Record(ev, "camera1", "")
	if err != nil {
		t.Fatalf("first Record: %v", err)
	}
	second, err := p.Record(ev, "camera1", "")
	if err != nil {
		t.Fatalf("second Record: %v", err)
	}

	if n := count(t, db, &models.Vehicle{}); n != 1 {
		t.Errorf("vehicles = %d, want 1 (upsert)", n)
	}
	if n := count(t, db, &models.VehicleDetection{}); n != 2 {
		t.Errorf("detections = %d, want 2", n)
	}
	if first.VehicleID != second.VehicleID {
		t.Errorf("vehicle ids differ: %d vs %d", first.VehicleID, second.VehicleID)
	}
}

func TestRecordUnconfiguredCameraSkipsEvent(t *testing.T) {
	db := newTestDB(t)
	store := NewImageStore(t.TempDir(), true)
	p := NewPersister(db, store)

	ev := NormalizePayload([]byte(`{"plate":"MH12AB1234"}`))
	if _, err := p.Record(ev, "camera9", ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if n := count(t, db, &models.Event{}); n != 0 {
		t.Errorf("events = %d, want 0 for unconfigured camera", n)
	}
	if n := count(t, db, &models.VehicleDetection{}); n != 1 {
		t.Errorf("detections = %d, want 1 (event skip is silent)", n)
	}
}

func TestRecordBadImageSkipped(t *testing.T) {
	db := newTestDB(t)
	store := NewImageStore(t.TempDir(), true)
	p := NewPersister(db, store)

	ev := NormalizePayload([]byte(`{"plate":"MH12AB1234","images":{"plate":"!!!bad","full":"ZGVm"}}`))
	result, err := p.Record(ev, "camera1", "")
	if err != nil {
		t.Fatalf("Record: %v (bad image must not abort the detection)", err)
	}

	if result.ImagesStored != 1 {
		t.Errorf("imagesStored = %d, want 1", result.ImagesStored)
	}
	if n := count(t, db, &models.VehicleImage{}); n != 1 {
		t.Errorf("image rows = %d, want 1", n)
	}
}

func TestLinkImageDuplicateSkipped(t *testing.T) {
	db := newTestDB(t)
	store := NewImageStore(t.TempDir(), true)
	p := NewPersister(db, store)

	det := models.VehicleDetection{CameraName: "camera1", Plate: "X", CreatedAt: time.Now()}
	if err := db.Create(&det).Error; err != nil {
		t.Fatalf("create detection: %v", err)
	}

	linked, err := p.LinkImage(det.ID, "plate", "uploads/camera1/2024-05-01/X/plate.jpg")
	if err != nil || !linked {
		t.Fatalf("first link = (%v, %v), want (true, nil)", linked, err)
	}
	linked, err = p.LinkImage(det.ID, "plate", "uploads/camera1/2024-05-01/X/plate.jpg")
	if err != nil {
		t.Fatalf("second link: %v", err)
	}
	if linked {
		t.Error("second link = true, want silent skip")
	}
	if n := count(t, db, &models.VehicleImage{}); n != 1 {
		t.Errorf("image rows = %d, want 1", n)
	}
}
