// Scanfetch re-reads archived webhook payloads for pic names that were never
// downloaded, matches each payload to its detection by capture time, and
// fetches the referenced images from the camera hosts.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/platewatch/backend/config"
	"github.com/platewatch/backend/database"
	"github.com/platewatch/backend/services"
)

func main() {
	limit := flag.Int("limit", 200, "maximum payload files to process")
	flag.Parse()

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

	fmt.Println("Scanning archived payloads for pic names...")
	summary, err := reconciler.ScanPayloads(*limit)
	if err != nil {
		log.Fatalf("❌ Payload scan failed: %v", err)
	}

	fmt.Printf("Payload scan complete: %s\n", summary)
}
