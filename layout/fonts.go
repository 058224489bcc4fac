package layout

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Fonts holds the two weights used on a receipt.
type Fonts struct {
	Regular *opentype.Font
	Bold    *opentype.Font
}

// DefaultFonts returns the embedded Go fonts. They have no Devanagari
// coverage; configure LoadFonts with a Noto Sans Devanagari pair for
// Marathi receipts.
func DefaultFonts() (*Fonts, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &Fonts{Regular: regular, Bold: bold}, nil
}

// LoadFonts reads TTF/OTF files. An empty boldPath reuses the regular face.
func LoadFonts(regularPath, boldPath string) (*Fonts, error) {
	regular, err := loadFont(regularPath)
	if err != nil {
		return nil, err
	}
	if boldPath == "" {
		return &Fonts{Regular: regular, Bold: regular}, nil
	}
	bold, err := loadFont(boldPath)
	if err != nil {
		return nil, err
	}
	return &Fonts{Regular: regular, Bold: bold}, nil
}

func loadFont(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return f, nil
}

type faceKey struct {
	size float64
	bold bool
}

// faceCache owns the faces opened for one surface.
type faceCache struct {
	fonts *Fonts
	scale float64
	faces map[faceKey]font.Face
}

func newFaceCache(fonts *Fonts, scale float64) *faceCache {
	return &faceCache{fonts: fonts, scale: scale, faces: make(map[faceKey]font.Face)}
}

func (c *faceCache) face(size float64, bold bool) (font.Face, error) {
	key := faceKey{size, bold}
	if f, ok := c.faces[key]; ok {
		return f, nil
	}

	src := c.fonts.Regular
	if bold {
		src = c.fonts.Bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size * c.scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("open face %.1fpt bold=%v: %w", size, bold, err)
	}
	c.faces[key] = f
	return f, nil
}

func (c *faceCache) close() {
	for k, f := range c.faces {
		f.Close()
		delete(c.faces, k)
	}
}
