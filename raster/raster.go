// Package raster converts monochrome images into ESC/POS "GS v 0" raster
// commands and wraps them into a complete print payload.
package raster

import (
	"errors"
	"fmt"
	"image"
)

// Threshold is the luminance below which a pixel prints as ink.
const Threshold = 160

// Command sequences framing a raster image on the printer.
var (
	InitSequence   = []byte{0x1B, 0x40}
	AlignCenter    = []byte{0x1B, 0x61, 0x01}
	FeedAndCut     = []byte{0x0A, 0x0A, 0x1D, 0x56, 0x00}
	rasterOpcode   = []byte{0x1D, 0x76, 0x30}
	rasterModeNorm = byte(0x00)
)

// HeaderSize is the length of the raster header including dimensions.
const HeaderSize = 8

// MaxDimension bounds both header fields: width in bytes and height are
// two little-endian bytes each.
const MaxDimension = 0xFFFF

var (
	ErrMalformed = errors.New("malformed raster command")
	ErrTooLarge  = errors.New("image exceeds raster header limits")
)

// Encoder packs images into raster commands.
type Encoder struct {
	// Threshold overrides the ink cutoff. Zero means Threshold.
	Threshold int
}

// Default is an Encoder using the fixed threshold.
var Default = Encoder{}

func (e Encoder) threshold() int {
	if e.Threshold == 0 {
		return Threshold
	}
	return e.Threshold
}

// WidthBytes returns the number of bytes a row of width pixels occupies.
func WidthBytes(width int) int {
	return (width + 7) / 8
}

// luma is perceived brightness scaled by 1000 so the threshold test stays
// exact in integers.
func luma(r, g, b uint8) int {
	return 299*int(r) + 587*int(g) + 114*int(b)
}

// Check reports whether img fits the raster header.
func Check(img image.Image) error {
	bounds := img.Bounds()
	if wb := WidthBytes(bounds.Dx()); wb > MaxDimension {
		return fmt.Errorf("%w: %d bytes per row, max %d", ErrTooLarge, wb, MaxDimension)
	}
	if h := bounds.Dy(); h > MaxDimension {
		return fmt.Errorf("%w: %d rows, max %d", ErrTooLarge, h, MaxDimension)
	}
	return nil
}

// Encode returns the raster command for img: header, little-endian
// width-in-bytes and height, then the packed rows. Images that do not fit
// the header fail with ErrTooLarge before anything is allocated.
func (e Encoder) Encode(img image.Image) ([]byte, error) {
	if err := Check(img); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	widthBytes := WidthBytes(width)
	limit := e.threshold() * 1000

	cmd := make([]byte, HeaderSize+widthBytes*height)
	copy(cmd, rasterOpcode)
	cmd[3] = rasterModeNorm
	cmd[4] = byte(widthBytes)
	cmd[5] = byte(widthBytes >> 8)
	cmd[6] = byte(height)
	cmd[7] = byte(height >> 8)

	data := cmd[HeaderSize:]
	for y := 0; y < height; y++ {
		row := data[y*widthBytes:]
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if luma(uint8(r>>8), uint8(g>>8), uint8(b>>8)) < limit {
				row[x>>3] |= 1 << (7 - uint(x%8))
			}
		}
	}

	return cmd, nil
}

// Encode encodes img with the default threshold.
func Encode(img image.Image) ([]byte, error) {
	return Default.Encode(img)
}

// Payload returns the full byte stream sent to the printer for img.
func (e Encoder) Payload(img image.Image) ([]byte, error) {
	raster, err := e.Encode(img)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(InitSequence)+len(AlignCenter)+len(raster)+len(FeedAndCut))
	payload = append(payload, InitSequence...)
	payload = append(payload, AlignCenter...)
	payload = append(payload, raster...)
	payload = append(payload, FeedAndCut...)
	return payload, nil
}

// Payload builds the print payload with the default threshold.
func Payload(img image.Image) ([]byte, error) {
	return Default.Payload(img)
}

// Grid is an unpacked raster: Ink[y][x] is true for a set bit.
type Grid struct {
	WidthBytes int
	Height     int
	Ink        [][]bool
}

// Decode unpacks a raster command produced by Encode.
func Decode(cmd []byte) (Grid, error) {
	if len(cmd) < HeaderSize {
		return Grid{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(cmd))
	}
	if cmd[0] != rasterOpcode[0] || cmd[1] != rasterOpcode[1] || cmd[2] != rasterOpcode[2] {
		return Grid{}, fmt.Errorf("%w: bad opcode % x", ErrMalformed, cmd[:3])
	}

	widthBytes := int(cmd[4]) | int(cmd[5])<<8
	height := int(cmd[6]) | int(cmd[7])<<8
	data := cmd[HeaderSize:]
	if len(data) != widthBytes*height {
		return Grid{}, fmt.Errorf("%w: want %d data bytes, got %d", ErrMalformed, widthBytes*height, len(data))
	}

	grid := Grid{WidthBytes: widthBytes, Height: height, Ink: make([][]bool, height)}
	for y := 0; y < height; y++ {
		row := make([]bool, widthBytes*8)
		for x := range row {
			row[x] = data[y*widthBytes+x/8]&(1<<(7-uint(x%8))) != 0
		}
		grid.Ink[y] = row
	}
	return grid, nil
}
