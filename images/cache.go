// Package images downloads remote page images once and serves them from the
// site output directory afterwards. Hosted image URLs carry expiring access
// signatures in their query string, so cache names are derived from the
// query-stripped URL and survive signature rotation.
package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	imagesSubdir = "images"

	// hashLen hex characters of the stable key hash go into the filename.
	hashLen = 12

	// maxExtLen caps the extension taken from the remote path, anything
	// longer is treated as garbage and replaced with defaultExt.
	maxExtLen  = 5
	defaultExt = ".png"

	downloadTimeout = 45 * time.Second
)

// Cache resolves remote image URLs to files under <root>/images. Safe for
// use from a single render pass; it keeps no mutable state besides the
// filesystem.
type Cache struct {
	root   string
	client *http.Client
	log    *zap.Logger
}

// NewCache creates the images directory under outputDir if needed and
// returns a resolver rooted there.
func NewCache(outputDir string, log *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(outputDir, imagesSubdir), 0755); err != nil {
		return nil, fmt.Errorf("creating images directory: %w", err)
	}
	return &Cache{
		root: outputDir,
		client: &http.Client{
			Timeout: downloadTimeout,
			// Redirects are resolved by Resolve itself so the cached file
			// lands under the final URL's name.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: log,
	}, nil
}

// Resolve returns the path of the cached copy of remoteURL relative to the
// output directory, downloading it first when missing. The second result is
// true when the file was already present and no network access happened.
// Redirects are followed by resolving the redirect target in its own right.
func (c *Cache) Resolve(ctx context.Context, remoteURL, slug string) (string, bool, error) {
	name, err := localName(remoteURL, slug)
	if err != nil {
		return "", false, &TransportError{URL: remoteURL, Err: err}
	}
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
		c.log.Debug("Following image redirect", zap.String("from", remoteURL), zap.String("to", next))
		return c.Resolve(ctx, next, slug)
	}
	if err := c.store(target, data); err != nil {
		return "", false, &TransportError{URL: remoteURL, Err: err}
	}
	c.log.Debug("Stored remote image", zap.String("url", remoteURL), zap.String("path", rel))
	return rel, false, nil
}

// fetch downloads remoteURL fully. When the server answers with a redirect
// the next location is returned instead of data.
func (c *Cache) fetch(ctx context.Context, remoteURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, "", &TransportError{URL: remoteURL, Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", &TransportError{URL: remoteURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		next, err := resp.Location()
		if err != nil {
			return nil, "", &TransportError{URL: remoteURL, Err: err}
		}
		return nil, next.String(), nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, "", &DownloadError{URL: remoteURL, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &TransportError{URL: remoteURL, Err: err}
	}
	return data, "", nil
}

// store writes data to target through a temporary file in the same
// directory, so a failure mid-write never leaves a partial image behind.
func (c *Cache) store(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".nsg-img-*")
	if err != nil {
		return err
	}
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return err
	}
	success = true
	return nil
}

// localName builds the cache filename for remoteURL: the slug, a short hash
// of the query-stripped URL and the remote path's extension.
func localName(remoteURL, slug string) (string, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return "", err
	}
	stable := u.Scheme + "://" + u.Host + u.Path

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > maxExtLen {
		ext = defaultExt
	}
	return slug + "-" + shortHash(stable) + ext, nil
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLen]
}
