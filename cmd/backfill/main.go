// Backfill links image files already on disk to their detections by walking
// the uploads tree. Safe to re-run: existing links are skipped.
package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/platewatch/backend/config"
	"github.com/platewatch/backend/database"
	"github.com/platewatch/backend/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	store := services.NewImageStore(cfg.UploadRoot, cfg.OverwriteImages)
	persister := services.NewPersister(db, store)
	reconciler := services.NewReconciler(db, persister, store, cfg)

	fmt.Println("Scanning uploads tree...")
	summary, err := reconciler.ScanUploads()
	if err != nil {
		log.Fatalf("❌ Backfill failed: %v", err)
	}

	fmt.Printf("Backfill complete: %s\n", summary)
}
