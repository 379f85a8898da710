package raster

import "fmt"

// Morphological operations use a disk structuring element of the given radius. Pixels
// outside the grid are ignored, so a feature touching the edge is not eroded by the edge.

const (
	OpOpening  = "opening"
	OpClosing  = "closing"
	OpErosion  = "erosion"
	OpDilation = "dilation"
)

type offset struct{ dx, dy int }

func disk(radius int) []offset {
	var out []offset
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				out = append(out, offset{dx, dy})
			}
		}
	}
	return out
}

// neighbourhood reports, for each pixel, whether any (all=false) or every (all=true)
// in-bounds pixel under the disk is set.
func (m *Mask) neighbourhood(radius int, all bool) *Mask {
	out := NewMask(m.Grid)
	if radius <= 0 {
		copy(out.Data, m.Data)
		return out
	}
	se := disk(radius)
	w, h := m.Grid.Width, m.Grid.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			result := all
			for _, o := range se {
				nx, ny := x+o.dx, y+o.dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				v := m.Data[ny*w+nx]
				if all && !v {
					result = false
					break
				}
				if !all && v {
					result = true
					break
				}
			}
			out.Data[y*w+x] = result
		}
	}
	return out
}

func (m *Mask) Erode(radius int) *Mask {
	return m.neighbourhood(radius, true)
}

func (m *Mask) Dilate(radius int) *Mask {
	return m.neighbourhood(radius, false)
}

// Open removes features smaller than the disk.
func (m *Mask) Open(radius int) *Mask {
	return m.Erode(radius).Dilate(radius)
}

// Close fills holes smaller than the disk.
func (m *Mask) Close(radius int) *Mask {
	return m.Dilate(radius).Erode(radius)
}

// Apply runs one named operation.
func (m *Mask) Apply(op string, radius int) (*Mask, error) {
	switch op {
	case OpOpening:
		return m.Open(radius), nil
	case OpClosing:
		return m.Close(radius), nil
	case OpErosion:
		return m.Erode(radius), nil
	case OpDilation:
		return m.Dilate(radius), nil
	}
	return nil, fmt.Errorf("unknown morphological operation %q", op)
}
