package images

import "testing"

func TestRasterizeSVGToImage(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50"><rect width="100" height="50"/></svg>`)

	tests := []struct {
		name    string
		targetW int
		targetH int
		wantW   int
		wantH   int
	}{
		{name: "intrinsic", targetW: 0, targetH: 0, wantW: 100, wantH: 50},
		{name: "scale_by_width", targetW: 200, targetH: 0, wantW: 200, wantH: 100},
		{name: "scale_by_height", targetW: 0, targetH: 200, wantW: 400, wantH: 200},
		{name: "fit_box", targetW: 150, targetH: 150, wantW: 150, wantH: 75},
		{name: "fit_box_height_bound", targetW: 500, targetH: 100, wantW: 200, wantH: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := RasterizeSVGToImage(svg, tt.targetW, tt.targetH)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Fatalf("got bounds %v, want %dx%d", img.Bounds(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestRasterizeSVGToImage_ClampsHugeCanvas(t *testing.T) {
	old := maxRasterDim
	maxRasterDim = 256
	defer func() { maxRasterDim = old }()

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100000 50000"><rect width="100000" height="50000"/></svg>`)
	img, err := RasterizeSVGToImage(svg, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 128 {
		t.Fatalf("got bounds %v, want 256x128", img.Bounds())
	}
}

func TestRasterizeSVGToImage_BadInput(t *testing.T) {
	if _, err := RasterizeSVGToImage([]byte("not svg at all"), 0, 0); err == nil {
		t.Fatal("expected error for invalid SVG input")
	}
}
