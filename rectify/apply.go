package rectify

import (
	"image"

	"github.com/opticlab/stereovision/simage"
	"github.com/opticlab/stereovision/utils"
)

// Apply remaps a raw frame through the rectification map with bilinear
// interpolation. Destination pixels whose source falls outside the raw
// image are filled with zero, never wrapped. The remap is deterministic:
// every worker writes only its own destination pixels.
func (m *RectificationMap) Apply(raw *simage.Gray) (*simage.Gray, error) {
	if raw.Width() != m.Width || raw.Height() != m.Height {
		return nil, &simage.SizeMismatchError{
			GotWidth: raw.Width(), GotHeight: raw.Height(),
			WantWidth: m.Width, WantHeight: m.Height,
		}
	}
	out := simage.NewGray(m.Width, m.Height)
	utils.ParallelForEachPixel(image.Point{m.Width, m.Height}, func(x, y int) {
		idx := y*m.Width + x
		v, ok := raw.Bilinear(float64(m.SourceX[idx]), float64(m.SourceY[idx]))
		if !ok {
			return // leave the zero fill
		}
		out.SetXY(x, y, v)
	})
	return out, nil
}
