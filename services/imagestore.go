package services

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ImageStore decodes embedded images and writes them under a deterministic
// layout: <root>/<camera>/<YYYY-MM-DD>/<plate>/<filename>.
type ImageStore struct {
	// Root is the uploads root directory.
	Root string
	// Overwrite keeps the historical behavior where a second image with the
	// same declared type replaces the first. When false the existing file is
	// kept and its path returned.
	Overwrite bool
}

// NewImageStore creates a store rooted at root.
func NewImageStore(root string, overwrite bool) *ImageStore {
	return &ImageStore{Root: root, Overwrite: overwrite}
}

// DecodeBase64Image strips a data-URI prefix if present and decodes the
// base64 body.
func DecodeBase64Image(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, fmt.Errorf("empty image payload")
	}
	if i := strings.Index(b64, ","); i >= 0 {
		b64 = b64[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return data, nil
}

// SaveBase64 decodes an inline image and stores it as <type>.jpg for the
// given camera, date and plate. Returns the stored relative path.
func (s *ImageStore) SaveBase64(camera, plate, imageType, b64 string, date time.Time) (string, error) {
	data, err := DecodeBase64Image(b64)
	if err != nil {
		return "", err
	}
	return s.SaveBuffer(camera, plate, imageType+".jpg", data, date)
}

// SaveBuffer stores raw image bytes under the deterministic layout. The
// directory is created if absent; creation is idempotent.
func (s *ImageStore) SaveBuffer(camera, plate, filename string, data []byte, date time.Time) (string, error) {
	if plate == "" {
		plate = UnknownPlate
	}
	dir := filepath.Join(s.Root, camera, date.Format("2006-01-02"), sanitizePlate(plate))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	path := filepath.Join(dir, filename)
	if !s.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

// ArchivePayload writes the raw webhook body next to the detection's images
// so the payload-scan reconciliation pass can revisit it.
func (s *ImageStore) ArchivePayload(camera, plate string, date time.Time, raw []byte) (string, error) {
	dir := s.DetectionDir(camera, plate, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create payload dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("payload-%d.json", time.Now().UnixNano()))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write payload: %w", err)
	}
	return path, nil
}

// DetectionDir returns the directory a detection's images live in.
func (s *ImageStore) DetectionDir(camera, plate string, date time.Time) string {
	return filepath.Join(s.Root, camera, date.Format("2006-01-02"), sanitizePlate(plate))
}

// plates show up with embedded spaces on some cameras; the filesystem layout
// uses underscores instead
func sanitizePlate(plate string) string {
	return strings.Join(strings.Fields(plate), "_")
}
