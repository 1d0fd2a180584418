// Package assets embeds the default capybara atlas so the binaries work
// without a checkout of the asset directory.
package assets

import (
	"bytes"
	"embed"
	"image"
	_ "image/png"
	"io/fs"
	"path/filepath"
	"strings"
)

// Default asset names.
const (
	AtlasDescriptor = "capy_atlas.json"
	AtlasSheet      = "capy_atlas.png"
	Placeholder     = "placeholder.png"
)

//go:embed capy_atlas.json capy_atlas.png placeholder.png
var assetsFS embed.FS

// FS exposes the embedded assets, for example to serve them over HTTP.
func FS() fs.FS { return assetsFS }

// LoadFile loads an embedded asset by assets-relative path.
func LoadFile(path string) ([]byte, error) {
	return assetsFS.ReadFile(cleanAssetPath(path))
}

// LoadImage decodes an embedded image by assets-relative path.
func LoadImage(path string) (image.Image, error) {
	b, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func cleanAssetPath(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		s := filepath.ToSlash(path)
		if idx := strings.LastIndex(s, "/assets/"); idx >= 0 {
			return s[idx+len("/assets/"):]
		}
		return filepath.Base(path)
	}
	s := filepath.ToSlash(path)
	if strings.HasPrefix(s, "assets/") {
		return strings.TrimPrefix(s, "assets/")
	}
	return s
}
