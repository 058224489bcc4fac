// Package layout renders receipt markup onto an off-screen monochrome-ready
// bitmap.
package layout

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var (
	ErrClosed      = errors.New("surface closed")
	ErrNotRendered = errors.New("surface has nothing rendered")
	ErrTooTall     = errors.New("receipt exceeds printable height")
)

// MaxHeight is the tallest bitmap a single raster command can describe.
const MaxHeight = 0xFFFF

// Surface is a scratch canvas of fixed logical width. It must be closed
// after capture; a closed surface releases its faces and bitmap.
type Surface struct {
	width   float64
	padding float64
	scale   float64
	faces   *faceCache
	img     *image.RGBA
	closed  bool
}

// NewSurface creates a surface width logical units wide, drawn at scale
// device pixels per unit, with padding units on every side.
func NewSurface(fonts *Fonts, width, padding, scale float64) *Surface {
	return &Surface{
		width:   width,
		padding: padding,
		scale:   scale,
		faces:   newFaceCache(fonts, scale),
	}
}

type line struct {
	words []word
	width int
}

type word struct {
	text string
	face font.Face
}

type placedBlock struct {
	block  Block
	lines  []line
	face   font.Face
	height int // line height in pixels
}

func (s *Surface) px(units float64) int {
	return int(math.Round(units * s.scale))
}

// Render lays out markup and draws it, replacing any previous render.
func (s *Surface) Render(markup string) error {
	if s.closed {
		return ErrClosed
	}

	blocks, err := Parse(markup)
	if err != nil {
		return err
	}

	pageWidth := s.px(s.width)
	contentWidth := pageWidth - 2*s.px(s.padding)
	if contentWidth <= 0 {
		return fmt.Errorf("%w: padding leaves no content width", ErrMarkup)
	}

	placed := make([]placedBlock, 0, len(blocks))
	total := 2 * s.px(s.padding)
	for _, b := range blocks {
		if b.Space > 0 {
			placed = append(placed, placedBlock{block: b})
			total += s.px(b.Space)
			continue
		}

		pb, err := s.place(b, contentWidth)
		if err != nil {
			return err
		}
		placed = append(placed, pb)
		total += s.blockHeight(pb)
	}

	if total > MaxHeight {
		return fmt.Errorf("%w: %d rows", ErrTooTall, total)
	}

	img := image.NewRGBA(image.Rect(0, 0, pageWidth, total))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	x0 := s.px(s.padding)
	y := s.px(s.padding)
	for _, pb := range placed {
		if pb.block.Space > 0 {
			y += s.px(pb.block.Space)
			continue
		}
		y = s.drawBlock(img, pb, x0, y, contentWidth)
	}

	s.img = img
	return nil
}

func (s *Surface) blockHeight(pb placedBlock) int {
	h := s.px(pb.block.Gap) + len(pb.lines)*pb.height
	if pb.block.RuleTop {
		h += s.ruleThickness() + s.px(pb.block.Pad)
	}
	if pb.block.RuleBottom {
		h += s.px(pb.block.Pad) + s.ruleThickness()
	}
	return h
}

func (s *Surface) ruleThickness() int {
	if t := s.px(1); t > 0 {
		return t
	}
	return 1
}

// place wraps a block's runs into lines no wider than maxWidth.
func (s *Surface) place(b Block, maxWidth int) (placedBlock, error) {
	regular, err := s.faces.face(b.Size, b.Bold)
	if err != nil {
		return placedBlock{}, err
	}
	bold, err := s.faces.face(b.Size, true)
	if err != nil {
		return placedBlock{}, err
	}

	space := font.MeasureString(regular, " ").Ceil()
	var lines []line
	cur := line{}

	flush := func() {
		lines = append(lines, cur)
		cur = line{}
	}
	add := func(w word) {
		ww := font.MeasureString(w.face, w.text).Ceil()
		if len(cur.words) > 0 && cur.width+space+ww > maxWidth {
			flush()
		}
		if len(cur.words) > 0 {
			cur.width += space
		}
		cur.words = append(cur.words, w)
		cur.width += ww
	}

	for _, r := range b.Runs {
		if r.Break {
			flush()
			continue
		}
		face := regular
		if r.Bold {
			face = bold
		}
		for _, text := range strings.Fields(r.Text) {
			for _, piece := range splitToFit(face, text, maxWidth) {
				add(word{text: piece, face: face})
			}
		}
	}
	if len(cur.words) > 0 || len(lines) == 0 {
		flush()
	}

	height := int(math.Ceil(b.Size * DefaultLineHeight * s.scale))
	return placedBlock{block: b, lines: lines, face: regular, height: height}, nil
}

// splitToFit breaks a single word that is wider than maxWidth.
func splitToFit(face font.Face, text string, maxWidth int) []string {
	if font.MeasureString(face, text).Ceil() <= maxWidth {
		return []string{text}
	}

	var parts []string
	start := 0
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		next := i + size
		if i > start && font.MeasureString(face, text[start:next]).Ceil() > maxWidth {
			parts = append(parts, text[start:i])
			start = i
		}
		i = next
	}
	return append(parts, text[start:])
}

func (s *Surface) drawBlock(img *image.RGBA, pb placedBlock, x0, y, contentWidth int) int {
	b := pb.block
	y += s.px(b.Gap)

	if b.RuleTop {
		s.drawRule(img, x0, y, contentWidth)
		y += s.ruleThickness() + s.px(b.Pad)
	}

	for _, ln := range pb.lines {
		x := x0
		if b.Align == AlignCenter {
			x += (contentWidth - ln.width) / 2
		}

		m := pb.face.Metrics()
		textHeight := (m.Ascent + m.Descent).Ceil()
		baseline := y + (pb.height-textHeight)/2 + m.Ascent.Ceil()

		for i, w := range ln.words {
			if i > 0 {
				x += font.MeasureString(pb.face, " ").Ceil()
			}
			d := font.Drawer{
				Dst:  img,
				Src:  image.NewUniform(color.Black),
				Face: w.face,
				Dot:  fixed.P(x, baseline),
			}
			d.DrawString(w.text)
			x += font.MeasureString(w.face, w.text).Ceil()
		}
		y += pb.height
	}

	if b.RuleBottom {
		y += s.px(b.Pad)
		s.drawRule(img, x0, y, contentWidth)
		y += s.ruleThickness()
	}

	return y
}

func (s *Surface) drawRule(img *image.RGBA, x0, y, width int) {
	r := image.Rect(x0, y, x0+width, y+s.ruleThickness())
	draw.Draw(img, r, image.Black, image.Point{}, draw.Src)
}

// Capture returns the rendered bitmap. The image stays valid after Close.
func (s *Surface) Capture() (*image.RGBA, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.img == nil {
		return nil, ErrNotRendered
	}
	return s.img, nil
}

// Close releases the faces and drops the bitmap reference. Idempotent.
func (s *Surface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.faces.close()
	s.img = nil
	return nil
}

// Closed reports whether Close has been called
func (s *Surface) Closed() bool {
	return s.closed
}
