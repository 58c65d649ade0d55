package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/platewatch/backend/config"
	"github.com/platewatch/backend/database"
	"github.com/platewatch/backend/handlers"
	"github.com/platewatch/backend/natsserver"
	"github.com/platewatch/backend/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// Connect to database; the handle is owned here and injected everywhere
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	defer database.Close(db)

	// Start embedded NATS server for the live detection feed
	ns, err := natsserver.New(natsserver.Config{
		Port:       cfg.NATSPort,
		MaxPayload: 1 << 20,
	})
	if err != nil {
		log.Fatalf("❌ Failed to start NATS server: %v", err)
	}
	defer ns.Shutdown()

	// Wire the ingestion core
	store := services.NewImageStore(cfg.UploadRoot, cfg.OverwriteImages)
	resolver := services.NewCameraResolver(cfg)
	persister := services.NewPersister(db, store)

	// Detection hub for WebSocket dashboards
	hub := services.NewDetectionHub(ns.Conn())
	go hub.Run()
	handlers.SetDetectionHub(hub)

	handlers.Init(db, resolver, persister, store, ns.Conn())
	handlers.SeedAdminUser()

	// Setup Gin router
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Stored images for the dashboard
	log.Printf("📁 Serving uploads from: %s", cfg.UploadRoot)
	router.Static("/uploads", cfg.UploadRoot)

	// Camera webhooks: distinct paths bound to distinct camera identities,
	// plus an explicit per-camera path for new deployments
	router.POST("/webhook", handlers.HandleWebhook)
	router.POST("/webhooks", handlers.HandleWebhook)
	router.POST("/hooks/:camera", handlers.HandleWebhook)

	// WebSocket live detection feed
	router.GET("/ws/detections", handlers.HandleDetectionWebSocket)

	// Dashboard API
	api := router.Group("/api")
	{
		api.POST("/login", handlers.Login)
		api.GET("/feed/stats", handlers.GetHubStats)

		authed := api.Group("", handlers.AuthMiddleware())
		{
			authed.GET("/detections", handlers.GetDetections)
			authed.GET("/detections/stats", handlers.GetDetectionStats)
			authed.GET("/cameras", handlers.GetCameras)
		}
	}

	log.Printf("🚀 Server running on http://localhost:%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
