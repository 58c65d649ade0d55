// Cleanup purges detection data. This is the only path that deletes vehicle
// rows; nothing in the ingestion or reconciliation code ever removes them.
package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/platewatch/backend/database"
	"github.com/platewatch/backend/models"
	"gorm.io/gorm"
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

	fmt.Println("Start cleanup...")

	// Children first, then owners
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.VehicleImage{}).Error; err != nil {
		log.Fatalf("Failed to delete vehicle images: %v", err)
	}
	fmt.Println("✅ Deleted all vehicle images")

	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Event{}).Error; err != nil {
		log.Fatalf("Failed to delete events: %v", err)
	}
	fmt.Println("✅ Deleted all events")

	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.VehicleDetection{}).Error; err != nil {
		log.Fatalf("Failed to delete vehicle detections: %v", err)
	}
	fmt.Println("✅ Deleted all vehicle detections")

	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Vehicle{}).Error; err != nil {
		log.Fatalf("Failed to delete vehicles: %v", err)
	}
	fmt.Println("✅ Deleted all vehicles")

	fmt.Println("Cleanup finished successfully")
}
