package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testDate = time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

func TestDecodeBase64Image(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain base64", "aGVsbG8=", "hello", false},
		{"data uri prefix stripped", "data:image/jpeg;base64,aGVsbG8=", "hello", false},
		{"empty", "", "", true},
		{"malformed", "!!!not-base64!!!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBase64Image(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("decoded = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSaveBase64DeterministicPath(t *testing.T) {
	store := NewImageStore(t.TempDir(), true)

	path, err := store.SaveBase64("camera1", "MH12AB1234", "plate", "aGVsbG8=", testDate)
	if err != nil {
		t.Fatalf("SaveBase64: %v", err)
	}

	want := filepath.Join(store.Root, "camera1", "2024-05-01", "MH12AB1234", "plate.jpg")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored image: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("stored bytes = %q", data)
	}
}

func TestSaveBase64PlateSpacesSanitized(t *testing.T) {
	store := NewImageStore(t.TempDir(), true)

	path, err := store.SaveBase64("camera1", "MH 12 AB 1234", "full", "aGVsbG8=", testDate)
	if err != nil {
		t.Fatalf("SaveBase64: %v", err)
	}
	if !strings.Contains(path, "MH_12_AB_1234") {
		t.Errorf("path = %q, want plate spaces replaced", path)
	}
}

func TestSaveSameTypeOverwrite(t *testing.T) {
	store := NewImageStore(t.TempDir(), true)

	first, err := store.SaveBase64("camera1", "X", "plate", "Zmlyc3Q=", testDate)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := store.SaveBase64("camera1", "X", "plate", "c2Vjb25k", testDate)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}

	data, _ := os.ReadFile(second)
	if string(data) != "second" {
		t.Errorf("stored bytes = %q, want overwrite to win", data)
	}
}

func TestSaveSameTypeKeepFirst(t *testing.T) {
	store := NewImageStore(t.TempDir(), false)

	first, _ := store.SaveBase64("camera1", "X", "plate", "Zmlyc3Q=", testDate)
	second, err := store.SaveBase64("camera1", "X", "plate", "c2Vjb25k", testDate)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first != second {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}

	data, _ := os.ReadFile(second)
	if string(data) != "first" {
		t.Errorf("stored bytes = %q, want first write kept", data)
	}
}

func TestSaveBase64DecodeFailure(t *testing.T) {
	store := NewImageStore(t.TempDir(), true)

	if _, err := store.SaveBase64("camera1", "X", "plate", "!!!", testDate); err == nil {
		t.Fatal("expected decode error")
	}
	// Nothing should have been written.
	entries, _ := os.ReadDir(store.Root)
	for _, e := range entries {
		sub := filepath.Join(store.Root, e.Name(), "2024-05-01", "X")
		if files, err := os.ReadDir(sub); err == nil && len(files) > 0 {
			t.Errorf("unexpected files written: %v", files)
		}
	}
}

func TestArchivePayload(t *testing.T) {
	store := NewImageStore(t.TempDir(), true)

	path, err := store.ArchivePayload("camera2", "UP14GH5678", testDate, []byte(`{"plate":"UP14GH5678"}`))
	if err != nil {
		t.Fatalf("ArchivePayload: %v", err)
	}

	dir := filepath.Dir(path)
	if want := store.DetectionDir("camera2", "UP14GH5678", testDate); dir != want {
		t.Errorf("dir = %q, want %q", dir, want)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "payload-") || !strings.HasSuffix(base, ".json") {
		t.Errorf("filename = %q, want payload-*.json", base)
	}
}
