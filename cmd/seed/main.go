// Seed creates the configured camera rows. Detections delivered by a camera
// without a row still persist, but skip the secondary event ledger.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/platewatch/backend/database"
	"github.com/platewatch/backend/models"
	"gorm.io/gorm/clause"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	cameras := defaultCameras()
	if raw := os.Getenv("SEED_CAMERAS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cameras); err != nil {
			log.Fatalf("❌ Invalid SEED_CAMERAS JSON: %v", err)
		}
	}

	for _, cam := range cameras {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"ip"}),
		}).Create(&cam).Error; err != nil {
			log.Fatalf("❌ Failed to seed camera %s: %v", cam.Name, err)
		}
		fmt.Printf("✅ Seeded camera %s (%s)\n", cam.Name, cam.IP)
	}

	fmt.Println("Seed finished successfully")
}

func defaultCameras() []models.Camera {
	return []models.Camera{
		{Name: "camera1", IP: "192.168.1.101"},
		{Name: "camera2", IP: "192.168.1.102"},
	}
}
