package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/platewatch/backend/models"
)

// detectionView is the dashboard shape: one row per detection with its images
// keyed by type.
type detectionView struct {
	ID         int64             `json:"id"`
	Camera     string            `json:"camera"`
	Plate      string            `json:"plate"`
	DetectedAt time.Time         `json:"detected_at"`
	Images     map[string]string `json:"images"`
}

// GetDetections handles GET /api/detections - recent detections with images
func GetDetections(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	query := db.Model(&models.VehicleDetection{})
	if plate := c.Query("plate"); plate != "" {
		query = query.Where("plate LIKE ?", "%"+strings.ToUpper(plate)+"%")
	}
	if camera := c.Query("camera"); camera != "" {
		query = query.Where("camera_name = ?", camera)
	}

	var detections []models.VehicleDetection
	if err := query.Preload("Images").Order("created_at DESC").Limit(limit).Find(&detections).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch detections"})
		return
	}

	views := make([]detectionView, 0, len(detections))
	for _, d := range detections {
		v := detectionView{
			ID:         d.ID,
			Camera:     d.CameraName,
			Plate:      d.Plate,
			DetectedAt: d.CreatedAt,
			Images:     make(map[string]string),
		}
		for _, img := range d.Images {
			v.Images[img.ImageType] = "/" + strings.ReplaceAll(img.ImagePath, "\\", "/")
		}
		views = append(views, v)
	}

	c.JSON(http.StatusOK, views)
}

// GetDetectionStats handles GET /api/detections/stats
func GetDetectionStats(c *gin.Context) {
	var stats struct {
		Total    int64            `json:"total"`
		Today    int64            `json:"today"`
		Vehicles int64            `json:"vehicles"`
		ByCamera map[string]int64 `json:"byCamera"`
	}
	stats.ByCamera = make(map[string]int64)

	db.Model(&models.VehicleDetection{}).Count(&stats.Total)
	today := time.Now().Truncate(24 * time.Hour)
	db.Model(&models.VehicleDetection{}).Where("created_at >= ?", today).Count(&stats.Today)
	db.Model(&models.Vehicle{}).Count(&stats.Vehicles)

	var cameraCounts []struct {
		CameraName string
		Count      int64
	}
	db.Model(&models.VehicleDetection{}).
		Select("camera_name, COUNT(*) as count").
		Group("camera_name").
		Scan(&cameraCounts)
	for _, cc := range cameraCounts {
		stats.ByCamera[cc.CameraName] = cc.Count
	}

	c.JSON(http.StatusOK, stats)
}

// GetCameras handles GET /api/cameras - configured cameras
func GetCameras(c *gin.Context) {
	var cameras []models.Camera
	if err := db.Order("name").Find(&cameras).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cameras"})
		return
	}
	c.JSON(http.StatusOK, cameras)
}
