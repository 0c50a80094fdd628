package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// Helper functions for creating test images

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// --- Decode tests ---

func TestDecode_JPEG(t *testing.T) {
	data := encodeJPEG(createTestImage(64, 48, color.White))

	img, format, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if format != "jpeg" {
		t.Errorf("expected format jpeg, got %s", format)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 48 {
		t.Errorf("expected 64x48, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestDecode_PNG(t *testing.T) {
	data := encodePNG(createTestImage(32, 32, color.Black))

	_, format, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if format != "png" {
		t.Errorf("expected format png, got %s", format)
	}
}

func TestDecode_InvalidData(t *testing.T) {
	_, _, err := Decode([]byte("not an image"))
	if err == nil {
		t.Error("expected error for invalid image data")
	}
}

func TestDecode_EmptyData(t *testing.T) {
	_, _, err := Decode([]byte{})
	if err == nil {
		t.Error("expected error for empty data")
	}
}

// --- Snapshot tests ---

func TestSnapshot_NoResizeNeeded(t *testing.T) {
	data := encodeJPEG(createTestImage(100, 100, color.White))

	snap, err := Snapshot(data, 200)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	decodedImg, format, err := Decode(snap)
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}

	if format != "jpeg" {
		t.Errorf("expected jpeg format, got %s", format)
	}

	bounds := decodedImg.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("expected 100x100, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestSnapshot_Landscape(t *testing.T) {
	data := encodeJPEG(createTestImage(2000, 1000, color.White))

	snap, err := Snapshot(data, 500)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	decodedImg, _, err := Decode(snap)
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}

	bounds := decodedImg.Bounds()

	// Width should be maxSize
	if bounds.Dx() != 500 {
		t.Errorf("expected width 500, got %d", bounds.Dx())
	}

	// Height should maintain aspect ratio (2000/1000 = 2:1)
	if bounds.Dy() != 250 {
		t.Errorf("expected height 250, got %d", bounds.Dy())
	}
}

func TestSnapshot_Portrait(t *testing.T) {
	data := encodeJPEG(createTestImage(600, 1200, color.White))

	snap, err := Snapshot(data, 300)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	decodedImg, _, err := Decode(snap)
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}

	bounds := decodedImg.Bounds()

	if bounds.Dy() != 300 {
		t.Errorf("expected height 300, got %d", bounds.Dy())
	}

	if bounds.Dx() != 150 {
		t.Errorf("expected width 150, got %d", bounds.Dx())
	}
}

func TestSnapshot_ConvertsPNGToJPEG(t *testing.T) {
	data := encodePNG(createTestImage(100, 100, color.White))

	snap, err := Snapshot(data, 200)
	if err != nil {
		t.Fatalf("Snapshot failed for PNG: %v", err)
	}

	_, format, err := Decode(snap)
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}

	if format != "jpeg" {
		t.Errorf("expected jpeg output format, got %s", format)
	}
}

func TestSnapshot_InvalidData(t *testing.T) {
	_, err := Snapshot([]byte("garbage"), 500)
	if err == nil {
		t.Error("expected error for invalid image data")
	}
}

// Benchmarks

func BenchmarkSnapshot(b *testing.B) {
	data := encodeJPEG(createTestImage(1920, 1080, color.Gray{128}))

	b.ResetTimer()
	for range b.N {
		Snapshot(data, 800)
	}
}
