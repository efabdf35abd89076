package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"nsg/config"
)

func encodeTestPNG(t *testing.T, w, h int, alpha uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), 128, alpha})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func encodeTestJPEG(t *testing.T, w, h, quality int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), uint8(x + y), 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encoding test jpeg: %v", err)
	}
	return buf.Bytes()
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading image file: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding image file: %v", err)
	}
	return img
}

func testCoverConfig() *config.CoverConfig {
	return &config.CoverConfig{
		Generate:              true,
		Resize:                config.ImageResizeModeKeepAR,
		Width:                 240,
		Height:                126,
		RemovePNGTransparency: true,
		JPEGQuality:           75,
	}
}

func TestCover_DownscalesAndCaches(t *testing.T) {
	payload := encodeTestPNG(t, 400, 300, 255)
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(payload)
	}))
	defer srv.Close()

	c, dir := newTestCache(t)
	conf := testCoverConfig()
	ctx := context.Background()

	rel, skipped, err := c.Cover(ctx, srv.URL+"/cover.png?sig=a", "post", conf)
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	if skipped {
		t.Error("first cover call reported a cache hit")
	}
	if !strings.HasPrefix(rel, "images/post-cover-") || !strings.HasSuffix(rel, ".png") {
		t.Errorf("unexpected cover path %q", rel)
	}

	img := decodeFile(t, filepath.Join(dir, filepath.FromSlash(rel)))
	if img.Bounds().Dy() != conf.Height {
		t.Errorf("cover height = %d, want %d", img.Bounds().Dy(), conf.Height)
	}
	if img.Bounds().Dx() != 168 {
		t.Errorf("cover width = %d, want 168 for a 400x300 source", img.Bounds().Dx())
	}

	_, skipped, err = c.Cover(ctx, srv.URL+"/cover.png?sig=b", "post", conf)
	if err != nil {
		t.Fatalf("second cover call: %v", err)
	}
	if !skipped {
		t.Error("second cover call did not report a cache hit")
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1", requests)
	}
}

func TestCover_SVGSource(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50"><rect width="100" height="50" fill="#336699"/></svg>`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write(svg)
	}))
	defer srv.Close()

	c, dir := newTestCache(t)
	rel, _, err := c.Cover(context.Background(), srv.URL+"/art.svg", "post", testCoverConfig())
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	if !strings.HasSuffix(rel, ".png") {
		t.Errorf("svg cover should be stored as png, got %q", rel)
	}
	img := decodeFile(t, filepath.Join(dir, filepath.FromSlash(rel)))
	if img.Bounds().Dx() != 240 || img.Bounds().Dy() != 120 {
		t.Errorf("bounds = %v, want 240x120 for a 2:1 svg in a 240x126 box", img.Bounds())
	}
}

func TestCover_KeepsCompactJPEG(t *testing.T) {
	payload := encodeTestJPEG(t, 100, 80, 60)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	c, dir := newTestCache(t)
	conf := testCoverConfig()
	conf.Resize = config.ImageResizeModeNone

	rel, _, err := c.Cover(context.Background(), srv.URL+"/photo.jpg", "post", conf)
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	if !strings.HasSuffix(rel, ".jpg") {
		t.Errorf("jpeg cover should keep jpg extension, got %q", rel)
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading cover: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("jpeg already below quality target was recompressed")
	}
}

func TestProcessCover_FlattensTransparency(t *testing.T) {
	conf := testCoverConfig()
	conf.Resize = config.ImageResizeModeNone
	data := encodeTestPNG(t, 60, 40, 128)

	out, err := processCover(data, conf, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("processCover: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding processed cover: %v", err)
	}
	if !isOpaque(img) {
		t.Error("transparency survived processing")
	}

	// With flattening off and no resize the original bytes pass through.
	conf.RemovePNGTransparency = false
	out, err = processCover(data, conf, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("processCover: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("untouched png did not keep its original bytes")
	}
}

func TestProcessCover_RejectsGarbage(t *testing.T) {
	_, err := processCover([]byte("definitely not an image"), testCoverConfig(), zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("expected error for non-image data")
	}
}

func TestDefaultCover(t *testing.T) {
	c, dir := newTestCache(t)
	conf := testCoverConfig()

	rel, err := c.DefaultCover(conf)
	if err != nil {
		t.Fatalf("DefaultCover: %v", err)
	}
	if rel != "images/cover-default-240x126.png" {
		t.Errorf("unexpected path %q", rel)
	}
	target := filepath.Join(dir, filepath.FromSlash(rel))
	img := decodeFile(t, target)
	if img.Bounds().Dx() != 240 || img.Bounds().Dy() != 126 {
		t.Errorf("bounds = %v, want 240x126", img.Bounds())
	}

	st1, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	rel2, err := c.DefaultCover(conf)
	if err != nil || rel2 != rel {
		t.Fatalf("second DefaultCover: path %q err %v", rel2, err)
	}
	st2, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !st1.ModTime().Equal(st2.ModTime()) {
		t.Error("default cover regenerated on second call")
	}
}
