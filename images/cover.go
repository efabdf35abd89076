package images

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"nsg/config"
	"nsg/jpegquality"
	uimages "nsg/utils/images"
)

//go:embed default_cover.svg
var defaultCoverSVG []byte

// Cover downloads the page cover, runs it through the configured processing
// (resize, transparency removal, recompression) and stores the result as
// images/<slug>-cover-<hash><ext>. Like Resolve it returns the relative
// path, a cache-hit flag and follows redirects by re-resolving.
func (c *Cache) Cover(ctx context.Context, remoteURL, slug string, conf *config.CoverConfig) (string, bool, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return "", false, &TransportError{URL: remoteURL, Err: err}
	}
	stable := u.Scheme + "://" + u.Host + u.Path
	name := slug + "-cover-" + shortHash(stable) + coverExt(u.Path)
	rel := path.Join(imagesSubdir, name)
	target := filepath.Join(c.root, imagesSubdir, name)
	if _, err := os.Stat(target); err == nil {
		return rel, true, nil
	}

	data, next, err := c.fetch(ctx, remoteURL)
	if err != nil {
		return "", false, err
	}
	if next != "" {
		c.log.Debug("Following cover redirect", zap.String("from", remoteURL), zap.String("to", next))
		return c.Cover(ctx, next, slug, conf)
	}

	processed, err := processCover(data, conf, c.log)
	if err != nil {
		return "", false, fmt.Errorf("processing cover %s: %w", remoteURL, err)
	}
	if err := c.store(target, processed); err != nil {
		return "", false, &TransportError{URL: remoteURL, Err: err}
	}
	c.log.Debug("Stored page cover", zap.String("url", remoteURL), zap.String("path", rel))
	return rel, false, nil
}

// DefaultCover renders the built-in placeholder cover at the configured size
// and returns its path relative to the output directory. The size is part of
// the name so a configuration change regenerates it.
func (c *Cache) DefaultCover(conf *config.CoverConfig) (string, error) {
	name := fmt.Sprintf("cover-default-%dx%d.png", conf.Width, conf.Height)
	rel := path.Join(imagesSubdir, name)
	target := filepath.Join(c.root, imagesSubdir, name)
	if _, err := os.Stat(target); err == nil {
		return rel, nil
	}

	img, err := uimages.RasterizeSVGToImage(defaultCoverSVG, conf.Width, conf.Height)
	if err != nil {
		return "", fmt.Errorf("rasterizing default cover: %w", err)
	}
	data, err := encodeCover(img, "png", conf)
	if err != nil {
		return "", err
	}
	if err := c.store(target, data); err != nil {
		return "", fmt.Errorf("storing default cover: %w", err)
	}
	c.log.Debug("Generated default cover", zap.String("path", rel))
	return rel, nil
}

// coverExt picks the output extension from the remote path alone, before any
// bytes are fetched, so the cache-hit check needs no network access. JPEG
// sources stay JPEG, everything else is normalized to PNG.
func coverExt(remotePath string) string {
	switch strings.ToLower(path.Ext(remotePath)) {
	case ".jpg", ".jpeg":
		return ".jpg"
	}
	return ".png"
}

func processCover(data []byte, conf *config.CoverConfig, log *zap.Logger) ([]byte, error) {
	if isSVG(data) {
		img, err := uimages.RasterizeSVGToImage(data, conf.Width, conf.Height)
		if err != nil {
			return nil, fmt.Errorf("rasterizing svg cover: %w", err)
		}
		return encodeCover(img, "png", conf)
	}
	if !filetype.IsImage(data) {
		return nil, errors.New("unrecognized cover image format")
	}

	img, imgType, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding cover: %w", err)
	}

	changed := false
	switch conf.Resize {
	case config.ImageResizeModeNone:
	case config.ImageResizeModeKeepAR:
		// Downscale only, small covers are left alone.
		if img.Bounds().Dy() > conf.Height {
			img = imaging.Resize(img, 0, conf.Height, imaging.Lanczos)
			changed = true
		}
	case config.ImageResizeModeStretch:
		img = imaging.Resize(img, conf.Width, conf.Height, imaging.Lanczos)
		changed = true
	}

	if conf.RemovePNGTransparency && imgType == "png" && !isOpaque(img) {
		log.Debug("Removing PNG transparency from cover")
		flat := image.NewRGBA(img.Bounds())
		draw.Draw(flat, img.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)
		draw.Draw(flat, img.Bounds(), img, image.Point{}, draw.Over)
		img = flat
		changed = true
	}

	if !changed {
		switch imgType {
		case "png":
			return data, nil
		case "jpeg":
			if jr, err := jpegquality.NewWithBytes(data); err == nil && jr.Quality() <= conf.JPEGQuality {
				log.Debug("Cover JPEG quality at or below target, keeping original",
					zap.Int("detected", jr.Quality()), zap.Int("requested", conf.JPEGQuality))
				return data, nil
			}
		}
	}

	outType := "png"
	if imgType == "jpeg" {
		outType = "jpeg"
	}
	return encodeCover(img, outType, conf)
}

func encodeCover(img image.Image, imgType string, conf *config.CoverConfig) ([]byte, error) {
	buf := new(bytes.Buffer)
	switch imgType {
	case "jpeg":
		if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(conf.JPEGQuality)); err != nil {
			return nil, fmt.Errorf("encoding cover jpeg: %w", err)
		}
	default:
		if err := imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, fmt.Errorf("encoding cover png: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}

// isSVG sniffs for an SVG document, which filetype cannot detect since it
// only looks at binary magic numbers.
func isSVG(data []byte) bool {
	head := data[:min(len(data), 1024)]
	head = bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf")
	if bytes.HasPrefix(head, []byte("<svg")) {
		return true
	}
	return bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg"))
}
