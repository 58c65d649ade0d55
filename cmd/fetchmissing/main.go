// Fetchmissing probes camera hosts for detections that were recorded without
// any image, most recent first. Misses are retried on the next run.
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
	limit := flag.Int("limit", 200, "maximum detections to process")
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

	fmt.Println("Querying detections with no images...")
	summary, err := reconciler.FetchMissing(*limit)
	if err != nil {
		log.Fatalf("❌ Fetch pass failed: %v", err)
	}

	fmt.Printf("Fetch pass complete: %s\n", summary)
}
