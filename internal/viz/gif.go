package viz

import (
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
)

const (
	cellW = 8
	cellH = 16
)

var gifPalette = color.Palette{color.Black, color.White}

// Image rasterizes the canvas, one cellW x cellH block per braille cell.
func (c *Canvas) Image() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, c.Width*cellW, c.Height*cellH), gifPalette)
	dw, dh := cellW/2, cellH/4
	for row := 0; row < c.Height; row++ {
		for col := 0; col < c.Width; col++ {
			r := c.Grid[row][col]
			if r == brailleBase {
				continue
			}
			for sy := 0; sy < 4; sy++ {
				for sx := 0; sx < 2; sx++ {
					if r&dotBits[sy][sx] == 0 {
						continue
					}
					x0, y0 := col*cellW+sx*dw, row*cellH+sy*dh
					for y := y0; y < y0+dh; y++ {
						for x := x0; x < x0+dw; x++ {
							img.SetColorIndex(x, y, 1)
						}
					}
				}
			}
		}
	}
	return img
}

// Recorder collects canvas frames for a GIF.
type Recorder struct {
	frames []*image.Paletted
}

func (r *Recorder) Capture(c *Canvas) { r.frames = append(r.frames, c.Image()) }
func (r *Recorder) Len() int          { return len(r.frames) }

func (r *Recorder) Encode(w io.Writer) error {
	anim := gif.GIF{Image: r.frames, Delay: make([]int, len(r.frames))}
	for i := range anim.Delay {
		anim.Delay[i] = 2
	}
	return gif.EncodeAll(w, &anim)
}

// Save writes the recording to path. An empty recording writes nothing.
func (r *Recorder) Save(path string) error {
	if len(r.frames) == 0 {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
