package geospatial

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

// detEpsilon guards inversions of the world-file 2x2 block. Anything smaller
// is treated as singular instead of letting Inf/NaN escape.
const detEpsilon = 1e-10

// ParseWorldFile parses the six-line world-file sidecar format
// (pixelSizeX, rotationY, rotationX, pixelSizeY, originX, originY).
// Blank lines are ignored; fewer than six numeric lines is an error.
func ParseWorldFile(text string) (domain.WorldFile, error) {
	var values []float64
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return domain.WorldFile{}, fmt.Errorf("world file: bad numeric line %q: %w", line, err)
		}
		values = append(values, v)
		if len(values) == 6 {
			break
		}
	}
	if len(values) < 6 {
		return domain.WorldFile{}, fmt.Errorf("world file: need 6 numeric lines, got %d", len(values))
	}

	return domain.WorldFile{
		PixelSizeX: values[0],
		RotationY:  values[1],
		RotationX:  values[2],
		PixelSizeY: values[3],
		OriginX:    values[4],
		OriginY:    values[5],
	}, nil
}

// PixelToProjected maps an image pixel to projected map coordinates using the
// world-file affine convention.
func PixelToProjected(wf domain.WorldFile, px, py float64) (x, y float64) {
	x = wf.OriginX + px*wf.PixelSizeX + py*wf.RotationY
	y = wf.OriginY + px*wf.RotationX + py*wf.PixelSizeY
	return x, y
}

// ProjectedToPixel inverts the world-file mapping. Returns an error when the
// 2x2 transform block is singular.
func ProjectedToPixel(wf domain.WorldFile, x, y float64) (px, py float64, err error) {
	det := wf.PixelSizeX*wf.PixelSizeY - wf.RotationY*wf.RotationX
	if math.Abs(det) < detEpsilon {
		return 0, 0, fmt.Errorf("world file transform is singular (det=%g)", det)
	}

	dx := x - wf.OriginX
	dy := y - wf.OriginY
	px = (dx*wf.PixelSizeY - dy*wf.RotationY) / det
	py = (dy*wf.PixelSizeX - dx*wf.RotationX) / det
	return px, py, nil
}

// BoundsWGS84 projects the four image corners through the world file and the
// SWEREF 99 TM inverse, returning the enclosing WGS 84 rectangle.
func BoundsWGS84(wf domain.WorldFile, widthPx, heightPx float64) domain.Bounds {
	corners := [4][2]float64{
		{0, 0},
		{widthPx, 0},
		{0, heightPx},
		{widthPx, heightPx},
	}

	bounds := domain.Bounds{
		MinLat: math.Inf(1), MinLng: math.Inf(1),
		MaxLat: math.Inf(-1), MaxLng: math.Inf(-1),
	}
	for _, c := range corners {
		x, y := PixelToProjected(wf, c[0], c[1])
		bounds.Extend(ProjectedToWGS84(x, y))
	}
	return bounds
}
