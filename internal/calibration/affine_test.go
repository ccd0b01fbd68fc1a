package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

// gcpAt builds a GCP by pushing a pixel through a known matrix.
func gcpAt(m domain.AffineMatrix, px, py float64) domain.GCP {
	geo := Apply(m, px, py)
	return domain.GCP{Pixel: domain.PixelPoint{X: px, Y: py}, Geo: geo}
}

// knownMatrix is a plausible map calibration: ~1e-5 degrees per pixel with
// the y axis flipped into image orientation.
var knownMatrix = domain.AffineMatrix{
	A: 1.2e-5, B: 0, C: 18.0,
	D: 0, E: -1.0e-5, F: 59.4,
}

func TestSolveExactThreePoints(t *testing.T) {
	gcps := []domain.GCP{
		gcpAt(knownMatrix, 0, 0),
		gcpAt(knownMatrix, 1000, 0),
		gcpAt(knownMatrix, 0, 1000),
	}

	res := Solve(gcps)
	require.True(t, res.IsValid, "solve failed: %s", res.ErrorMsg)

	assert.InDelta(t, knownMatrix.A, res.Matrix.A, 1e-12)
	assert.InDelta(t, knownMatrix.B, res.Matrix.B, 1e-12)
	assert.InDelta(t, knownMatrix.C, res.Matrix.C, 1e-9)
	assert.InDelta(t, knownMatrix.D, res.Matrix.D, 1e-12)
	assert.InDelta(t, knownMatrix.E, res.Matrix.E, 1e-12)
	assert.InDelta(t, knownMatrix.F, res.Matrix.F, 1e-9)

	require.Len(t, res.Residuals, 3)
	for i, r := range res.Residuals {
		assert.InDelta(t, 0, r, 1e-9, "residual %d", i)
	}
	assert.InDelta(t, 0, res.RMSError, 1e-9)
}

func TestSolveOverdetermined(t *testing.T) {
	gcps := []domain.GCP{
		gcpAt(knownMatrix, 0, 0),
		gcpAt(knownMatrix, 2000, 100),
		gcpAt(knownMatrix, 150, 1800),
		gcpAt(knownMatrix, 900, 900),
		gcpAt(knownMatrix, 1700, 1600),
	}

	res := Solve(gcps)
	require.True(t, res.IsValid, "solve failed: %s", res.ErrorMsg)
	assert.InDelta(t, knownMatrix.A, res.Matrix.A, 1e-10)
	assert.InDelta(t, knownMatrix.E, res.Matrix.E, 1e-10)
	assert.InDelta(t, 0, res.RMSError, 1e-7)
}

func TestSolveTooFewPoints(t *testing.T) {
	res := Solve([]domain.GCP{
		gcpAt(knownMatrix, 0, 0),
		gcpAt(knownMatrix, 100, 100),
	})
	assert.False(t, res.IsValid)
	assert.Contains(t, res.ErrorMsg, "at least 3")
}

func TestSolveCollinearPoints(t *testing.T) {
	res := Solve([]domain.GCP{
		gcpAt(knownMatrix, 0, 0),
		gcpAt(knownMatrix, 100, 100),
		gcpAt(knownMatrix, 200, 200),
	})
	assert.False(t, res.IsValid)
	assert.Contains(t, res.ErrorMsg, "collinear or degenerate")
}

func TestSolveStackedPoints(t *testing.T) {
	p := gcpAt(knownMatrix, 500, 500)
	res := Solve([]domain.GCP{p, p, p})
	assert.False(t, res.IsValid)
}

func TestInvertRoundTrip(t *testing.T) {
	inv := Invert(knownMatrix)
	require.NotNil(t, inv)

	geo := Apply(knownMatrix, 321.5, 654.25)
	px := Apply(*inv, geo.Lng, geo.Lat)
	assert.InDelta(t, 321.5, px.Lng, 1e-6)
	assert.InDelta(t, 654.25, px.Lat, 1e-6)
}

func TestInvertSingular(t *testing.T) {
	assert.Nil(t, Invert(domain.AffineMatrix{C: 18, F: 59}))
}

func TestGeoToPixel(t *testing.T) {
	geo := Apply(knownMatrix, 100, 200)
	p := GeoToPixel(knownMatrix, geo)
	require.NotNil(t, p)
	assert.InDelta(t, 100, p.X, 1e-6)
	assert.InDelta(t, 200, p.Y, 1e-6)

	assert.Nil(t, GeoToPixel(domain.AffineMatrix{}, geo))
}

func TestValidate(t *testing.T) {
	v := Validate(knownMatrix)
	assert.InDelta(t, 1.2e-5, v.ScaleX, 1e-12)
	assert.InDelta(t, 1.0e-5, v.ScaleY, 1e-12)
	assert.InDelta(t, 0, v.Rotation, 1e-9)
	assert.Empty(t, v.Flags)
}

func TestValidateFlagsExtremeRotation(t *testing.T) {
	// Axes swapped: a 90 degree rotation.
	rotated := domain.AffineMatrix{A: 0, B: -1e-5, D: 1e-5, E: 0}
	v := Validate(rotated)
	assert.InDelta(t, 90, v.Rotation, 1e-9)
	assert.NotEmpty(t, v.Flags)
}

func TestValidateFlagsNearZeroScale(t *testing.T) {
	v := Validate(domain.AffineMatrix{C: 18, F: 59})
	assert.NotEmpty(t, v.Flags)
}
