// Package fontcatalog maps logical font names to TTF files under the
// configured fonts directory and hands out parsed opentype faces. The same
// files back both image caption rendering and ffmpeg drawtext.
package fontcatalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"

	"mediabot/internal/services"
)

// builtins are the logical names the chat menu offers, mapped to the file
// names expected under the fonts directory.
var builtins = map[string]string{
	"xb roya":         "XB ROYA.ttf",
	"consolas":        "consola.ttf",
	"linux libertine": "LinLibertine_R.ttf",
}

type faceKey struct {
	name string
	size float64
}

// Catalog resolves font names and caches parsed fonts and sized faces.
type Catalog struct {
	dir string

	mu    sync.Mutex
	fonts map[string]*opentype.Font
	faces map[faceKey]font.Face
}

// New builds a catalog over the given fonts directory.
func New(dir string) *Catalog {
	return &Catalog{
		dir:   dir,
		fonts: make(map[string]*opentype.Font),
		faces: make(map[faceKey]font.Face),
	}
}

// Names returns the logical font names the catalog knows about.
func (c *Catalog) Names() []string {
	return []string{"XB Roya", "Consolas", "Linux Libertine"}
}

// Path resolves a logical font name to a TTF file path. Unknown names fall
// back to "<name>.ttf" in the fonts directory so operators can drop in their
// own files.
func (c *Catalog) Path(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "fontcatalog", "path", "font name required", nil)
	}
	file, ok := builtins[strings.ToLower(trimmed)]
	if !ok {
		file = trimmed + ".ttf"
	}
	path := filepath.Join(c.dir, file)
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "fontcatalog", "path",
			fmt.Sprintf("font %q not found at %s", trimmed, path), err)
	}
	return path, nil
}

// Face returns a sized face for the logical font name, caching both the
// parsed font and the face.
func (c *Catalog) Face(name string, size float64) (font.Face, error) {
	if size <= 0 {
		return nil, services.Wrap(services.ErrValidation, "fontcatalog", "face", "font size must be positive", nil)
	}
	key := faceKey{name: strings.ToLower(strings.TrimSpace(name)), size: size}

	c.mu.Lock()
	defer c.mu.Unlock()
	if face, ok := c.faces[key]; ok {
		return face, nil
	}

	parsed, ok := c.fonts[key.name]
	if !ok {
		path, err := c.Path(name)
		if err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "fontcatalog", "face", "read font file", err)
		}
		parsed, err = opentype.Parse(raw)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "fontcatalog", "face",
				fmt.Sprintf("parse font %q", name), err)
		}
		c.fonts[key.name] = parsed
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fontcatalog", "face",
			fmt.Sprintf("build face for %q at %.0fpt", name, size), err)
	}
	c.faces[key] = face
	return face, nil
}
