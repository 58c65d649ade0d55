// Package config loads process configuration from the environment.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Config holds the process-wide settings. It is read once at startup and
// treated as read-only for the process lifetime.
type Config struct {
	// UploadRoot is the filesystem root for stored images and archived
	// payloads: <root>/<camera>/<date>/<plate>/...
	UploadRoot string

	// DefaultCamera receives detections no resolution rule matched.
	DefaultCamera string

	// IPCameras maps source IPs to camera names.
	IPCameras map[string]string

	// PathCameras maps webhook URL paths to camera names.
	PathCameras map[string]string

	// DevicePatterns maps payload device-identifier substrings to camera
	// names, checked after IP and path rules.
	DevicePatterns map[string]string

	// ImageHosts maps camera name or camera IP to a base URL used by
	// remote-fetch reconciliation.
	ImageHosts map[string]string

	// OverwriteImages keeps the historical behavior of a second image of the
	// same declared type replacing the first. Set OVERWRITE_IMAGES=false to
	// keep the first file instead.
	OverwriteImages bool

	Port     string
	NATSPort int
}

// Load reads configuration from the environment, applying defaults.
func Load() Config {
	cfg := Config{
		UploadRoot:      envOr("UPLOAD_ROOT", "uploads"),
		DefaultCamera:   envOr("DEFAULT_CAMERA", "camera1"),
		IPCameras:       jsonMapEnv("CAMERA_IP_MAP"),
		PathCameras:     jsonMapEnv("CAMERA_PATH_MAP"),
		DevicePatterns:  jsonMapEnv("CAMERA_DEVICE_PATTERNS"),
		ImageHosts:      jsonMapEnv("CAMERA_IMAGE_HOSTS"),
		OverwriteImages: envOr("OVERWRITE_IMAGES", "true") != "false",
		Port:            envOr("PORT", "3001"),
		NATSPort:        intEnv("NATS_PORT", 4233),
	}

	// The historical two-camera deployment bound /webhook to camera1 and
	// /webhooks to camera2. Keep those bindings unless overridden.
	if len(cfg.PathCameras) == 0 {
		cfg.PathCameras = map[string]string{
			"/webhook":  "camera1",
			"/webhooks": "camera2",
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func jsonMapEnv(key string) map[string]string {
	raw := os.Getenv(key)
	if raw == "" {
		return map[string]string{}
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		log.Printf("⚠️ [CONFIG] Invalid %s JSON, ignoring: %v", key, err)
		return map[string]string{}
	}
	return m
}
