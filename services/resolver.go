package services

import (
	"net"
	"sort"
	"strings"

	"github.com/platewatch/backend/config"
)

// CameraResolver maps a request origin to a canonical camera name. Resolution
// is total: when no rule matches, the detection is attributed to the default
// camera. A wrong default attribution is silent; there is no rule that can
// reject a delivery.
type CameraResolver struct {
	ipCameras      map[string]string
	pathCameras    map[string]string
	devicePatterns map[string]string
	defaultCamera  string
}

// NewCameraResolver builds a resolver from process configuration.
func NewCameraResolver(cfg config.Config) *CameraResolver {
	return &CameraResolver{
		ipCameras:      cfg.IPCameras,
		pathCameras:    cfg.PathCameras,
		devicePatterns: cfg.DevicePatterns,
		defaultCamera:  cfg.DefaultCamera,
	}
}

// Resolve picks the camera name for a delivery. Precedence, first match wins:
// source IP, URL path, payload device identifier, default camera.
func (r *CameraResolver) Resolve(sourceIP, path, deviceID string) string {
	if ip := stripPort(sourceIP); ip != "" {
		if name, ok := r.ipCameras[ip]; ok {
			return name
		}
	}

	if name, ok := r.pathCameras[path]; ok {
		return name
	}
	// A path bound as /webhooks also matches /webhooks/anything.
	for prefix, name := range r.pathCameras {
		if strings.HasPrefix(path, prefix+"/") {
			return name
		}
	}

	if deviceID != "" {
		// Longest pattern first so a more specific serial prefix beats a
		// shorter one.
		for _, pattern := range byLength(r.devicePatterns) {
			if strings.Contains(deviceID, pattern) {
				return r.devicePatterns[pattern]
			}
		}
	}

	return r.defaultCamera
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func byLength(m map[string]string) []string {
	patterns := make([]string, 0, len(m))
	for p := range m {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) > len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})
	return patterns
}
