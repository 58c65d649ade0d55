package services

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/platewatch/backend/config"
	"github.com/platewatch/backend/models"
	"gorm.io/gorm"
)

// snapWindow is how far a payload's capture time may sit from a detection's
// created_at for the two to be considered the same sighting.
const snapWindow = 5 * time.Minute

// probeTimeout bounds each candidate-URL request. Probing is strictly
// sequential per detection so a slow camera host never sees parallel load.
const probeTimeout = 5 * time.Second

// maxImageBytes caps a fetched image body.
const maxImageBytes = 20 << 20

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Summary aggregates one reconciliation pass. Unmatched and FetchFailed items
// are terminal for the run only; the next pass retries them.
type Summary struct {
	Scanned       int `json:"scanned"`
	Linked        int `json:"linked"`
	AlreadyLinked int `json:"alreadyLinked"`
	Unmatched     int `json:"unmatched"`
	FetchFailed   int `json:"fetchFailed"`
}

func (s Summary) String() string {
	return fmt.Sprintf("scanned=%d linked=%d alreadyLinked=%d unmatched=%d fetchFailed=%d",
		s.Scanned, s.Linked, s.AlreadyLinked, s.Unmatched, s.FetchFailed)
}

// Reconciler links orphaned images to their detections after the fact, either
// by walking the uploads tree or by probing camera hosts. Passes are batch
// runs: they are not meant to run concurrently with themselves, but every
// link goes through the persister's existence check so concurrent webhook
// inserts cannot produce duplicates.
type Reconciler struct {
	db        *gorm.DB
	persister *Persister
	store     *ImageStore
	hosts     map[string]string
	client    *http.Client
}

// NewReconciler wires a reconciler to the shared datastore and image store.
func NewReconciler(db *gorm.DB, persister *Persister, store *ImageStore, cfg config.Config) *Reconciler {
	return &Reconciler{
		db:        db,
		persister: persister,
		store:     store,
		hosts:     cfg.ImageHosts,
		client:    &http.Client{Timeout: probeTimeout},
	}
}

// ---------------------------------------------------------------------------
// Filesystem-scan mode

type uploadEntry struct {
	camera   string
	date     string
	plate    string
	filename string
	path     string
	modTime  time.Time
}

// ScanUploads walks <root>/<camera>/<date>/<plate>/<file> and links image
// files to the most recent same-day detection with matching camera and plate.
// Re-running over an unchanged tree changes nothing.
func (r *Reconciler) ScanUploads() (Summary, error) {
	var summary Summary

	entries, err := r.collectUploads()
	if err != nil {
		return summary, err
	}
	// Most recent first: an interrupted run still covers the records an
	// operator cares about.
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.After(entries[j].modTime) })

	for _, e := range entries {
		summary.Scanned++

		detectionID, found := r.findSameDayDetection(e.camera, e.plate, e.date)
		if !found {
			summary.Unmatched++
			continue
		}

		linked, err := r.persister.LinkImage(detectionID, InferImageType(e.filename), e.path)
		if err != nil {
			log.Printf("⚠️ [SCAN] Link failed for %s: %v", e.path, err)
			continue
		}
		if !linked {
			summary.AlreadyLinked++
			continue
		}
		summary.Linked++
		log.Printf("🔗 [SCAN] Linked %s -> detection %d", e.path, detectionID)
	}

	log.Printf("✅ [SCAN] Upload scan complete: %s", summary)
	return summary, nil
}

func (r *Reconciler) collectUploads() ([]uploadEntry, error) {
	root := r.store.Root
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, fmt.Errorf("uploads root not found: %s", root)
	}

	var entries []uploadEntry
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) < 4 {
			return nil
		}
		entries = append(entries, uploadEntry{
			camera:   parts[0],
			date:     parts[1],
			plate:    parts[2],
			filename: filepath.Join(parts[3:]...),
			path:     path,
			modTime:  info.ModTime(),
		})
		return nil
	})
	return entries, err
}

func (r *Reconciler) findSameDayDetection(camera, plate, date string) (int64, bool) {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return 0, false
	}

	var detection models.VehicleDetection
	err = r.db.Where("camera_name = ? AND plate = ? AND created_at >= ? AND created_at < ?",
		camera, plate, day, day.Add(24*time.Hour)).
		Order("created_at DESC").
		First(&detection).Error
	if err != nil {
		return 0, false
	}
	return detection.ID, true
}

// InferImageType guesses the canonical type from filename keywords. Anything
// unrecognized counts as a full frame.
func InferImageType(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "plate"), strings.Contains(lower, "cutout"), strings.Contains(lower, "crop"):
		return models.ImageTypePlate
	default:
		return models.ImageTypeFull
	}
}

// ---------------------------------------------------------------------------
// Remote-fetch mode

// BuildCandidateURLs returns the ordered probe list for one filename. The
// configured host is always tried before raw-IP fallbacks, shortest layout
// first; the first hit wins and the rest are abandoned.
func BuildCandidateURLs(host, cameraIP, camera, plate, dateStr, filename string) []string {
	var urls []string
	if host != "" {
		urls = append(urls,
			fmt.Sprintf("%s/%s", host, filename),
			fmt.Sprintf("%s/%s/%s/%s", host, dateStr, plate, filename),
			fmt.Sprintf("%s/uploads/%s/%s/%s/%s", host, camera, dateStr, plate, filename),
		)
	}
	if cameraIP != "" {
		ip := strings.Split(cameraIP, ":")[0]
		urls = append(urls,
			fmt.Sprintf("http://%s/%s", ip, filename),
			fmt.Sprintf("http://%s/uploads/%s/%s/%s", ip, dateStr, plate, filename),
		)
	}
	return urls
}

// hostFor finds the configured base URL for a detection, by camera name
// first, then by camera IP.
func (r *Reconciler) hostFor(camera, cameraIP string) string {
	if h, ok := r.hosts[camera]; ok {
		return h
	}
	if h, ok := r.hosts[cameraIP]; ok {
		return h
	}
	return ""
}

// probeImage fetches one candidate URL. Any non-OK status or non-image
// content type is a miss, not an error.
func (r *Reconciler) probeImage(url string) ([]byte, bool) {
	resp, err := r.client.Get(url)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return nil, false
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// fetchAndLink walks the candidate list for one filename, stores the first
// image that answers and links it. Returns whether anything was linked.
func (r *Reconciler) fetchAndLink(det *models.VehicleDetection, filename string) (bool, error) {
	dateStr := det.CreatedAt.Format("2006-01-02")
	plate := sanitizePlate(det.Plate)
	host := r.hostFor(det.CameraName, det.CameraIP)

	for _, url := range BuildCandidateURLs(host, det.CameraIP, det.CameraName, plate, dateStr, filename) {
		data, ok := r.probeImage(url)
		if !ok {
			continue
		}
		path, err := r.store.SaveBuffer(det.CameraName, det.Plate, filename, data, det.CreatedAt)
		if err != nil {
			return false, fmt.Errorf("save fetched image: %w", err)
		}
		linked, err := r.persister.LinkImage(det.ID, models.ImageTypeFetched, path)
		if err != nil {
			return false, err
		}
		log.Printf("📥 [FETCH] %s -> %s (detection %d)", url, path, det.ID)
		return linked, nil
	}
	return false, nil
}

// FetchMissing probes camera hosts for detections that have no images at all,
// most recent first.
func (r *Reconciler) FetchMissing(limit int) (Summary, error) {
	var summary Summary

	var detections []models.VehicleDetection
	err := r.db.
		Where("NOT EXISTS (SELECT 1 FROM vehicle_images i WHERE i.detection_id = vehicle_detections.id)").
		Order("created_at DESC").
		Limit(limit).
		Find(&detections).Error
	if err != nil {
		return summary, fmt.Errorf("query detections without images: %w", err)
	}

	log.Printf("🔍 [FETCH] %d detections without images", len(detections))

	for i := range detections {
		det := &detections[i]
		summary.Scanned++

		linked := false
		for _, filename := range guessFilenames(det) {
			ok, err := r.fetchAndLink(det, filename)
			if err != nil {
				log.Printf("⚠️ [FETCH] Detection %d: %v", det.ID, err)
				break
			}
			if ok {
				linked = true
				break
			}
		}
		if linked {
			summary.Linked++
		} else {
			summary.FetchFailed++
			log.Printf("🚫 [FETCH] No image found for detection %d (%s)", det.ID, det.Plate)
		}
	}

	log.Printf("✅ [FETCH] Pass complete: %s", summary)
	return summary, nil
}

// guessFilenames lists the filenames cameras are known to publish for a
// detection, in the order worth probing.
func guessFilenames(det *models.VehicleDetection) []string {
	plate := sanitizePlate(det.Plate)
	stamp := det.CreatedAt.Format("20060102150405")
	var names []string
	for _, kind := range []string{"vehicle", "plate", "full"} {
		names = append(names, fmt.Sprintf("%s-%s-%s.jpg", plate, stamp, kind))
	}
	for _, kind := range []string{"vehicle", "plate", "full"} {
		names = append(names, fmt.Sprintf("%s-%s-%s.jpeg", plate, stamp, kind))
	}
	return names
}

// ---------------------------------------------------------------------------
// Raw-payload scan mode

// ScanPayloads re-reads archived payload-*.json files, most recent first, and
// fetches any pic names they reference that never made it into the store.
func (r *Reconciler) ScanPayloads(limit int) (Summary, error) {
	var summary Summary

	files, err := r.collectPayloadFiles(limit)
	if err != nil {
		return summary, err
	}
	log.Printf("🔍 [PAYLOAD] %d archived payload files", len(files))

	for _, f := range files {
		summary.Scanned++
		if err := r.reconcilePayload(f, &summary); err != nil {
			log.Printf("⚠️ [PAYLOAD] %s: %v", f.path, err)
		}
	}

	log.Printf("✅ [PAYLOAD] Pass complete: %s", summary)
	return summary, nil
}

type payloadFile struct {
	path    string
	modTime time.Time
}

func (r *Reconciler) collectPayloadFiles(limit int) ([]payloadFile, error) {
	var files []payloadFile
	err := filepath.Walk(r.store.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if strings.HasPrefix(name, "payload-") && strings.HasSuffix(name, ".json") {
			files = append(files, payloadFile{path: path, modTime: info.ModTime()})
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (r *Reconciler) reconcilePayload(f payloadFile, summary *Summary) error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}

	ev := NormalizePayload(raw)
	var picNames []string
	for _, src := range ev.Images {
		if src.Filename != "" {
			picNames = append(picNames, src.Filename)
		}
	}
	if len(picNames) == 0 {
		return nil
	}

	det, found := r.findDetectionForPayload(ev, f.modTime)
	if !found {
		summary.Unmatched++
		log.Printf("🚫 [PAYLOAD] No detection for %s (plate %s)", f.path, ev.Plate)
		return nil
	}

	for _, pic := range picNames {
		if r.picAlreadyLinked(det.ID, pic) {
			summary.AlreadyLinked++
			continue
		}
		ok, err := r.fetchAndLink(det, pic)
		if err != nil {
			return err
		}
		if ok {
			summary.Linked++
		} else {
			summary.FetchFailed++
		}
	}
	return nil
}

// findDetectionForPayload matches a payload to a detection. With a capture
// time (embedded, or the file's own timestamp) the detection must fall within
// ±5 minutes and the most recent in-window row wins. With no timestamp at all
// the most recent detection for the plate is taken regardless of day — a
// permissive fallback that can mis-link reused plates across days.
func (r *Reconciler) findDetectionForPayload(ev *CanonicalEvent, fileTime time.Time) (*models.VehicleDetection, bool) {
	target := ev.CapturedAt
	if target == nil && !fileTime.IsZero() {
		target = &fileTime
	}

	var det models.VehicleDetection
	if target != nil {
		err := r.db.Where("plate LIKE ? AND created_at BETWEEN ? AND ?",
			"%"+ev.Plate+"%", target.Add(-snapWindow), target.Add(snapWindow)).
			Order("created_at DESC").
			First(&det).Error
		if err == nil {
			return &det, true
		}
		if err != gorm.ErrRecordNotFound {
			return nil, false
		}
	}

	err := r.db.Where("plate LIKE ?", "%"+ev.Plate+"%").
		Order("created_at DESC").
		First(&det).Error
	if err != nil {
		return nil, false
	}
	return &det, true
}

func (r *Reconciler) picAlreadyLinked(detectionID int64, picName string) bool {
	var count int64
	r.db.Model(&models.VehicleImage{}).
		Where("detection_id = ? AND image_path LIKE ?", detectionID, "%"+picName+"%").
		Count(&count)
	return count > 0
}
