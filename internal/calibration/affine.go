// Package calibration solves the pixel-to-geographic affine transform for a
// map image from ground control points, and provides the matrix algebra the
// georeferencing path needs on top of it.
package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

// pivotEpsilon: an elimination pivot below this means the GCPs are collinear
// or otherwise degenerate, and the same threshold guards matrix inversion.
const pivotEpsilon = 1e-10

// Result is the outcome of a calibration solve. IsValid=false with an
// ErrorMessage is the degraded path for bad input; Solve never panics and
// never returns a Go error for geometric problems.
type Result struct {
	Matrix    domain.AffineMatrix `json:"matrix"`
	Residuals []float64           `json:"residuals"`
	RMSError  float64             `json:"rms_error"`
	IsValid   bool                `json:"is_valid"`
	ErrorMsg  string              `json:"error_message,omitempty"`
}

// Solve fits lng = A·x + B·y + C and lat = D·x + E·y + F to the given GCPs by
// least squares. Three exact points give a zero-residual fit; more points are
// solved through the normal equations. Requires at least three points and a
// non-collinear configuration.
func Solve(gcps []domain.GCP) Result {
	if len(gcps) < 3 {
		return Result{IsValid: false, ErrorMsg: fmt.Sprintf("need at least 3 ground control points, got %d", len(gcps))}
	}

	np := len(gcps)
	design := mat.NewDense(np, 3, nil)
	lngTarget := mat.NewVecDense(np, nil)
	latTarget := mat.NewVecDense(np, nil)
	for i, g := range gcps {
		design.Set(i, 0, g.Pixel.X)
		design.Set(i, 1, g.Pixel.Y)
		design.Set(i, 2, 1)
		lngTarget.SetVec(i, g.Geo.Lng)
		latTarget.SetVec(i, g.Geo.Lat)
	}

	// Normal equations: (AᵗA)p = Aᵗb, one solve per output axis.
	var ata mat.Dense
	ata.Mul(design.T(), design)

	var atLng, atLat mat.VecDense
	atLng.MulVec(design.T(), lngTarget)
	atLat.MulVec(design.T(), latTarget)

	lngCoef, err := solve3(&ata, &atLng)
	if err != nil {
		return Result{IsValid: false, ErrorMsg: "ground control points are collinear or degenerate: " + err.Error()}
	}
	latCoef, err := solve3(&ata, &atLat)
	if err != nil {
		return Result{IsValid: false, ErrorMsg: "ground control points are collinear or degenerate: " + err.Error()}
	}

	m := domain.AffineMatrix{
		A: lngCoef[0], B: lngCoef[1], C: lngCoef[2],
		D: latCoef[0], E: latCoef[1], F: latCoef[2],
	}

	residuals := make([]float64, np)
	sumSq := 0.0
	for i, g := range gcps {
		predicted := Apply(m, g.Pixel.X, g.Pixel.Y)
		dLng := predicted.Lng - g.Geo.Lng
		dLat := predicted.Lat - g.Geo.Lat
		residuals[i] = math.Hypot(dLng, dLat)
		sumSq += residuals[i] * residuals[i]
	}

	return Result{
		Matrix:    m,
		Residuals: residuals,
		RMSError:  math.Sqrt(sumSq / float64(np)),
		IsValid:   true,
	}
}

// solve3 solves the 3x3 system Mx = b with Gaussian elimination and partial
// pivoting. A pivot smaller than pivotEpsilon reports degeneracy.
func solve3(m *mat.Dense, b *mat.VecDense) ([3]float64, error) {
	var aug [3][4]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			aug[i][j] = m.At(i, j)
		}
		aug[i][3] = b.AtVec(i)
	}

	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(aug[pivot][col]) < pivotEpsilon {
			return [3]float64{}, fmt.Errorf("pivot %g at column %d", aug[pivot][col], col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		for row := col + 1; row < 3; row++ {
			factor := aug[row][col] / aug[col][col]
			for j := col; j < 4; j++ {
				aug[row][j] -= factor * aug[col][j]
			}
		}
	}

	var x [3]float64
	for i := 2; i >= 0; i-- {
		sum := aug[i][3]
		for j := i + 1; j < 3; j++ {
			sum -= aug[i][j] * x[j]
		}
		x[i] = sum / aug[i][i]
	}
	return x, nil
}

// Apply maps a pixel coordinate through the matrix to a geographic point.
func Apply(m domain.AffineMatrix, px, py float64) domain.GeoPoint {
	return domain.GeoPoint{
		Lng: m.A*px + m.B*py + m.C,
		Lat: m.D*px + m.E*py + m.F,
	}
}

// Invert returns the pixel-recovery matrix, or nil when m is singular.
func Invert(m domain.AffineMatrix) *domain.AffineMatrix {
	det := m.A*m.E - m.B*m.D
	if math.Abs(det) < pivotEpsilon {
		return nil
	}

	inv := domain.AffineMatrix{
		A: m.E / det,
		B: -m.B / det,
		D: -m.D / det,
		E: m.A / det,
	}
	inv.C = -(inv.A*m.C + inv.B*m.F)
	inv.F = -(inv.D*m.C + inv.E*m.F)
	return &inv
}

// GeoToPixel recovers the pixel coordinate depicting a geographic point, or
// nil when the matrix is singular.
func GeoToPixel(m domain.AffineMatrix, p domain.GeoPoint) *domain.PixelPoint {
	inv := Invert(m)
	if inv == nil {
		return nil
	}
	return &domain.PixelPoint{
		X: inv.A*p.Lng + inv.B*p.Lat + inv.C,
		Y: inv.D*p.Lng + inv.E*p.Lat + inv.F,
	}
}

// Validation carries non-fatal sanity flags for a solved matrix. A flagged
// matrix is still usable; the flags point at likely GCP placement mistakes.
type Validation struct {
	ScaleX   float64  `json:"scale_x"`
	ScaleY   float64  `json:"scale_y"`
	Rotation float64  `json:"rotation_degrees"`
	Skew     float64  `json:"skew_degrees"`
	Flags    []string `json:"flags,omitempty"`
}

// Validate derives the effective scale, rotation and skew of a matrix and
// flags extreme values.
func Validate(m domain.AffineMatrix) Validation {
	v := Validation{
		ScaleX:   math.Hypot(m.A, m.D),
		ScaleY:   math.Hypot(m.B, m.E),
		Rotation: math.Atan2(m.D, m.A) * 180 / math.Pi,
	}
	// Skew: deviation of the axis angle difference from the expected 90°.
	axisAngle := math.Atan2(m.E, m.B)*180/math.Pi - v.Rotation
	v.Skew = math.Abs(90 - math.Abs(axisAngle))

	if v.ScaleX < pivotEpsilon || v.ScaleY < pivotEpsilon {
		v.Flags = append(v.Flags, "scale is near zero; control points may be stacked")
	}
	if v.ScaleX > 1e10 || v.ScaleY > 1e10 {
		v.Flags = append(v.Flags, "scale is extreme; pixel and geo coordinates may be swapped")
	}
	if math.Abs(v.Rotation) > 45 {
		v.Flags = append(v.Flags, fmt.Sprintf("rotation of %.1f° exceeds 45°; check GCP ordering", v.Rotation))
	}
	return v
}
