package services

import (
	"testing"
	"time"
)

func TestNormalizePayloadPlateAliases(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "plateNumber wins over plate",
			payload: `{"plateNumber":"mh12ab1234","plate":"other"}`,
			want:    "MH12AB1234",
		},
		{
			name:    "plate alias",
			payload: `{"plate":"up14gh5678"}`,
			want:    "UP14GH5678",
		},
		{
			name:    "vendor nested plate",
			payload: `{"Picture":{"Plate":{"PlateNumber":"ka01cd9999"}}}`,
			want:    "KA01CD9999",
		},
		{
			name:    "flat alias wins over vendor nested",
			payload: `{"plateNumber":"MH12AB1234","Picture":{"Plate":{"PlateNumber":"OTHER"}}}`,
			want:    "MH12AB1234",
		},
		{
			name:    "no plate field",
			payload: `{"foo":"bar"}`,
			want:    UnknownPlate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NormalizePayload([]byte(tt.payload))
			if ev.Plate != tt.want {
				t.Errorf("plate = %q, want %q", ev.Plate, tt.want)
			}
		})
	}
}

func TestNormalizePayloadUnparseable(t *testing.T) {
	ev := NormalizePayload([]byte("not json at all"))

	if ev.Plate != UnknownPlate {
		t.Errorf("plate = %q, want %q", ev.Plate, UnknownPlate)
	}
	if len(ev.Images) != 0 {
		t.Errorf("images = %d, want 0", len(ev.Images))
	}
	if ev.Variant != VariantUnrecognized {
		t.Errorf("variant = %q, want %q", ev.Variant, VariantUnrecognized)
	}
	if string(ev.Raw) != "not json at all" {
		t.Errorf("raw body not preserved: %q", ev.Raw)
	}
}

func TestNormalizePayloadFlatImages(t *testing.T) {
	ev := NormalizePayload([]byte(`{"plate":"MH12AB1234","images":{"plate":"YWJj","full":"ZGVm"}}`))

	if ev.Variant != VariantFlat {
		t.Fatalf("variant = %q, want %q", ev.Variant, VariantFlat)
	}
	if len(ev.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(ev.Images))
	}
	// Keys pass through as types, sorted for determinism.
	if ev.Images[0].Type != "full" || ev.Images[0].Inline != "ZGVm" {
		t.Errorf("first image = %+v", ev.Images[0])
	}
	if ev.Images[1].Type != "plate" || ev.Images[1].Inline != "YWJj" {
		t.Errorf("second image = %+v", ev.Images[1])
	}
}

func TestNormalizePayloadVendorDispatch(t *testing.T) {
	payload := `{
		"Picture": {
			"Plate": {"PlateNumber": "MH12AB1234"},
			"CutoutPic": {"Pic": "YWJj"},
			"VehiclePic": {"PicName": "MH12AB1234-20240501100000-vehicle.jpg"},
			"NormalPic": {"Content": "Z2hp"}
		}
	}`
	ev := NormalizePayload([]byte(payload))

	if ev.Variant != VariantVendor {
		t.Fatalf("variant = %q, want %q", ev.Variant, VariantVendor)
	}
	if len(ev.Images) != 3 {
		t.Fatalf("images = %d, want 3", len(ev.Images))
	}

	want := []ImageSource{
		{Type: "plate", Inline: "YWJj"},
		{Type: "full", Filename: "MH12AB1234-20240501100000-vehicle.jpg"},
		{Type: "context", Inline: "Z2hp"},
	}
	for i, w := range want {
		if ev.Images[i] != w {
			t.Errorf("image[%d] = %+v, want %+v", i, ev.Images[i], w)
		}
	}
}

func TestNormalizePayloadVendorMissingPicsDropped(t *testing.T) {
	ev := NormalizePayload([]byte(`{"Picture":{"Plate":{"PlateNumber":"X"},"CutoutPic":{}}}`))
	if len(ev.Images) != 0 {
		t.Errorf("images = %d, want 0 (empty pic objects are dropped)", len(ev.Images))
	}
}

func TestNormalizePayloadSnapTime(t *testing.T) {
	payload := `{"Picture":{"Plate":{"PlateNumber":"X"},"SnapInfo":{"AccurateTime":"2024-05-01 10:03:00"}}}`
	ev := NormalizePayload([]byte(payload))

	if ev.CapturedAt == nil {
		t.Fatal("capturedAt = nil, want parsed snap time")
	}
	want := time.Date(2024, 5, 1, 10, 3, 0, 0, time.Local)
	if !ev.CapturedAt.Equal(want) {
		t.Errorf("capturedAt = %v, want %v", ev.CapturedAt, want)
	}
}

func TestNormalizePayloadDeviceID(t *testing.T) {
	ev := NormalizePayload([]byte(`{"plate":"X","serialNumber":"CAM-00042"}`))
	if ev.DeviceID != "CAM-00042" {
		t.Errorf("deviceID = %q, want CAM-00042", ev.DeviceID)
	}
}
