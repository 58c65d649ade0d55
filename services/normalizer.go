// Package services holds the ingestion and reconciliation core: camera
// resolution, payload normalization, image storage, detection persistence and
// the reconciliation passes.
package services

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/platewatch/backend/models"
)

// PayloadVariant tags which known payload shape a body matched.
type PayloadVariant string

const (
	// VariantFlat is the generic shape: plate aliases at the top level and
	// an optional flat "images" map of type -> base64.
	VariantFlat PayloadVariant = "flat"
	// VariantVendor is the nested camera shape under "Picture".
	VariantVendor PayloadVariant = "vendor"
	// VariantUnrecognized carries the raw body for audit; the event still
	// records a detection with the UNKNOWN plate.
	VariantUnrecognized PayloadVariant = "unrecognized"
)

// UnknownPlate is the sentinel recorded when no plate field is recognized.
const UnknownPlate = "UNKNOWN"

// ImageSource describes one image found in a payload. Exactly one of Inline
// or Filename is set: Inline carries base64 (optionally a data URI) ready to
// decode, Filename is a bare pic name that has to be fetched later.
type ImageSource struct {
	Type     string
	Inline   string
	Filename string
}

// CanonicalEvent is the normalized form every webhook body reduces to.
type CanonicalEvent struct {
	Plate      string
	Images     []ImageSource
	Variant    PayloadVariant
	DeviceID   string     // vendor device identifier, used by camera resolution
	CapturedAt *time.Time // vendor snap time when the payload carries one
	Raw        json.RawMessage
}

// vendorPic is one nested picture object in a vendor payload.
type vendorPic struct {
	Pic     string `json:"Pic"`
	Content string `json:"Content"`
	PicName string `json:"PicName"`
}

type vendorPicture struct {
	Plate *struct {
		PlateNumber string `json:"PlateNumber"`
	} `json:"Plate"`
	SnapInfo *struct {
		AccurateTime string `json:"AccurateTime"`
		SnapTime     string `json:"SnapTime"`
	} `json:"SnapInfo"`
	CutoutPic  *vendorPic `json:"CutoutPic"`
	VehiclePic *vendorPic `json:"VehiclePic"`
	NormalPic  *vendorPic `json:"NormalPic"`
}

type rawPayload struct {
	PlateNumber string            `json:"plateNumber"`
	Plate       string            `json:"plate"`
	DeviceID    string            `json:"deviceId"`
	DeviceIDAlt string            `json:"DeviceID"`
	SerialNo    string            `json:"serialNumber"`
	Images      map[string]string `json:"images"`
	Picture     *vendorPicture    `json:"Picture"`
}

// vendorDispatch maps the vendor's nested picture keys to canonical image
// types, in delivery order.
var vendorDispatch = []struct {
	pick func(p *vendorPicture) *vendorPic
	typ  string
}{
	{func(p *vendorPicture) *vendorPic { return p.CutoutPic }, models.ImageTypePlate},
	{func(p *vendorPicture) *vendorPic { return p.VehiclePic }, models.ImageTypeFull},
	{func(p *vendorPicture) *vendorPic { return p.NormalPic }, models.ImageTypeContext},
}

// NormalizePayload reduces an arbitrarily shaped webhook body to a canonical
// event. It is total: an unparseable body yields an UNKNOWN-plate event with
// no images rather than an error.
func NormalizePayload(raw []byte) *CanonicalEvent {
	ev := &CanonicalEvent{
		Plate:   UnknownPlate,
		Variant: VariantUnrecognized,
		Raw:     append(json.RawMessage(nil), raw...),
	}

	var p rawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ev
	}

	// Plate aliases, first match wins.
	switch {
	case p.PlateNumber != "":
		ev.Plate = strings.ToUpper(p.PlateNumber)
	case p.Plate != "":
		ev.Plate = strings.ToUpper(p.Plate)
	case p.Picture != nil && p.Picture.Plate != nil && p.Picture.Plate.PlateNumber != "":
		ev.Plate = strings.ToUpper(p.Picture.Plate.PlateNumber)
	}

	switch {
	case p.DeviceID != "":
		ev.DeviceID = p.DeviceID
	case p.DeviceIDAlt != "":
		ev.DeviceID = p.DeviceIDAlt
	case p.SerialNo != "":
		ev.DeviceID = p.SerialNo
	}

	if p.Picture != nil {
		ev.Variant = VariantVendor
		if p.Picture.SnapInfo != nil {
			ev.CapturedAt = parseSnapTime(p.Picture.SnapInfo.AccurateTime, p.Picture.SnapInfo.SnapTime)
		}
		for _, d := range vendorDispatch {
			pic := d.pick(p.Picture)
			if pic == nil {
				continue
			}
			if src, ok := pic.source(d.typ); ok {
				ev.Images = append(ev.Images, src)
			}
		}
		return ev
	}

	if ev.Plate != UnknownPlate || len(p.Images) > 0 {
		ev.Variant = VariantFlat
	}

	// Generic flat map: keys pass through as image types. Sorted for a
	// deterministic order, since JSON object order is not preserved.
	for _, typ := range sortedKeys(p.Images) {
		if b64 := p.Images[typ]; b64 != "" {
			ev.Images = append(ev.Images, ImageSource{Type: typ, Inline: b64})
		}
	}

	return ev
}

// source extracts an ImageSource from a vendor pic object. Inline content is
// preferred; a bare pic name is kept for later fetch. Empty objects drop out.
func (p *vendorPic) source(typ string) (ImageSource, bool) {
	switch {
	case p.Pic != "":
		return ImageSource{Type: typ, Inline: p.Pic}, true
	case p.Content != "":
		return ImageSource{Type: typ, Inline: p.Content}, true
	case p.PicName != "":
		return ImageSource{Type: typ, Filename: p.PicName}, true
	}
	return ImageSource{}, false
}

// vendor snap times arrive as "2006-01-02 15:04:05", occasionally RFC3339
var snapLayouts = []string{"2006-01-02 15:04:05", time.RFC3339}

func parseSnapTime(values ...string) *time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, layout := range snapLayouts {
			if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
				return &t
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
