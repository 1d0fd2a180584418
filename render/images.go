package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/milk9111/petsprite/assets"
)

const maxImageBytes = 32 << 20

var (
	imagesMu sync.Mutex
	images   = map[string]image.Image{}
)

// RegisterImage stores a decoded image by key.
func RegisterImage(key string, img image.Image) {
	if key == "" || img == nil {
		return
	}
	imagesMu.Lock()
	images[key] = img
	imagesMu.Unlock()
}

// GetImage returns a cached image by key.
func GetImage(key string) image.Image {
	if key == "" {
		return nil
	}
	imagesMu.Lock()
	defer imagesMu.Unlock()
	return images[key]
}

// LoadImage decodes an image and caches it by key. Keys starting with
// http:// or https:// are fetched; anything else is looked up in the embedded
// assets first and the filesystem second.
func LoadImage(ctx context.Context, key string) (image.Image, error) {
	if key == "" {
		return nil, fmt.Errorf("empty image key")
	}
	if img := GetImage(key); img != nil {
		return img, nil
	}

	var img image.Image
	var err error
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		img, err = fetchImage(ctx, key)
	} else {
		img, err = loadImageFromAssetsOrFS(key)
	}
	if err != nil {
		return nil, err
	}
	RegisterImage(key, img)
	return img, nil
}

func loadImageFromAssetsOrFS(path string) (image.Image, error) {
	if img, err := assets.LoadImage(path); err == nil {
		return img, nil
	}
	tried := []string{path, filepath.Join("assets", path), filepath.Base(path)}
	for _, p := range tried {
		if b, err := os.ReadFile(p); err == nil {
			if im, _, err := image.Decode(bytes.NewReader(b)); err == nil {
				return im, nil
			}
		}
	}
	return nil, fmt.Errorf("failed to load image %s", path)
}

func fetchImage(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image %s: status %d", url, resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", url, err)
	}
	return img, nil
}
