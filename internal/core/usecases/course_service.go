package usecases

import (
	"fmt"

	"github.com/antigravity-events/otrack/internal/calibration"
	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/coursexml"
	"github.com/antigravity-events/otrack/internal/pkg/geospatial"
	"github.com/antigravity-events/otrack/internal/pkg/metrics"
)

// CourseService parses course XML and georeferences the resulting controls.
type CourseService struct {
	parserOpts coursexml.Options
}

// NewCourseService creates a CourseService with the given expansion caps.
func NewCourseService(opts coursexml.Options) *CourseService {
	return &CourseService{parserOpts: opts}
}

// Parse parses course XML from an in-memory buffer.
func (s *CourseService) Parse(data []byte) *domain.ParseResult {
	res := coursexml.ParseWithOptions(data, s.parserOpts)

	metrics.CoursesParsed.WithLabelValues(string(res.Format)).Inc()
	metrics.ParseWarnings.Add(float64(len(res.Warnings)))
	for _, c := range res.Courses {
		if c.ForkLabel != "" {
			metrics.ForkVariantsExpanded.Inc()
		}
	}

	return res
}

// GeoreferenceAffine assigns absolute coordinates to every control that has a
// normalized map position, using a solved calibration matrix and the pixel
// size of the map image. Controls without map positions are left untouched.
func (s *CourseService) GeoreferenceAffine(controls []domain.Control, m domain.AffineMatrix, widthPx, heightPx float64) ([]domain.Control, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %gx%g", widthPx, heightPx)
	}

	out := append([]domain.Control(nil), controls...)
	for i := range out {
		if out[i].RelX == nil || out[i].RelY == nil {
			continue
		}
		geo := calibration.Apply(m, *out[i].RelX*widthPx, *out[i].RelY*heightPx)
		lat, lng := geo.Lat, geo.Lng
		out[i].Lat, out[i].Lng = &lat, &lng
	}
	return out, nil
}

// GeoreferenceWorldFile assigns absolute coordinates through a world file and
// the projected-datum conversion.
func (s *CourseService) GeoreferenceWorldFile(controls []domain.Control, wf domain.WorldFile, widthPx, heightPx float64) ([]domain.Control, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %gx%g", widthPx, heightPx)
	}

	out := append([]domain.Control(nil), controls...)
	for i := range out {
		if out[i].RelX == nil || out[i].RelY == nil {
			continue
		}
		x, y := geospatial.PixelToProjected(wf, *out[i].RelX*widthPx, *out[i].RelY*heightPx)
		geo := geospatial.ProjectedToWGS84(x, y)
		lat, lng := geo.Lat, geo.Lng
		out[i].Lat, out[i].Lng = &lat, &lng
	}
	return out, nil
}
