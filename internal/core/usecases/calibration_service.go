package usecases

import (
	"github.com/antigravity-events/otrack/internal/calibration"
	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/pkg/geospatial"
	"github.com/antigravity-events/otrack/internal/pkg/metrics"
)

// CalibrationService exposes the map calibration pipeline: GCP solves and
// world-file handling.
type CalibrationService struct{}

// NewCalibrationService creates a CalibrationService.
func NewCalibrationService() *CalibrationService {
	return &CalibrationService{}
}

// SolveResult bundles the least-squares solve with the matrix sanity check.
type SolveResult struct {
	calibration.Result
	Validation *calibration.Validation `json:"validation,omitempty"`
}

// Solve fits an affine matrix to the ground control points. Degenerate input
// comes back with IsValid=false, never as an error.
func (s *CalibrationService) Solve(gcps []domain.GCP) SolveResult {
	res := calibration.Solve(gcps)
	if !res.IsValid {
		metrics.CalibrationFailures.Inc()
		return SolveResult{Result: res}
	}

	metrics.CalibrationSolves.Inc()
	v := calibration.Validate(res.Matrix)
	return SolveResult{Result: res, Validation: &v}
}

// WorldFileResult is a parsed world file plus the WGS 84 extent of the image
// it georeferences.
type WorldFileResult struct {
	WorldFile domain.WorldFile `json:"world_file"`
	Bounds    domain.Bounds    `json:"bounds"`
}

// ParseWorldFile parses world-file text and projects the image corners to a
// WGS 84 bounding rectangle.
func (s *CalibrationService) ParseWorldFile(text string, widthPx, heightPx float64) (*WorldFileResult, error) {
	wf, err := geospatial.ParseWorldFile(text)
	if err != nil {
		return nil, err
	}
	return &WorldFileResult{
		WorldFile: wf,
		Bounds:    geospatial.BoundsWGS84(wf, widthPx, heightPx),
	}, nil
}
