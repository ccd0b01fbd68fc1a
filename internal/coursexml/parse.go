// Package coursexml parses course-setting XML exports into the normalized
// control/course model. Two dialects are supported: IOF 3.0 CourseData and
// PurplePen course-scribe-event files. Parsing is tolerant by design: every
// recoverable problem becomes a warning on the result and the parser never
// returns an error for malformed input.
package coursexml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

// Options bounds fork expansion against pathological course graphs.
type Options struct {
	// MaxPaths caps the total number of expanded course variants per course.
	MaxPaths int
	// MaxDepth caps the number of nodes a single traversal may visit.
	MaxDepth int
}

// DefaultOptions are safe for any real course; a legitimate relay fork rarely
// produces more than a dozen variants.
func DefaultOptions() Options {
	return Options{MaxPaths: 64, MaxDepth: 300}
}

// Parse parses course XML with DefaultOptions.
func Parse(data []byte) *domain.ParseResult {
	return ParseWithOptions(data, DefaultOptions())
}

// ParseWithOptions detects the dialect from the document root and dispatches.
// Unrecognized or broken XML yields format "unknown" with a warning and an
// otherwise empty result.
func ParseWithOptions(data []byte, opts Options) *domain.ParseResult {
	if opts.MaxPaths <= 0 {
		opts.MaxPaths = DefaultOptions().MaxPaths
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions().MaxDepth
	}

	root, err := rootElement(data)
	if err != nil {
		return &domain.ParseResult{
			Format:   domain.FormatUnknown,
			Warnings: []string{fmt.Sprintf("unreadable XML: %v", err)},
		}
	}

	switch root {
	case "CourseData":
		return parseIOF(data)
	case "course-scribe-event":
		return parsePurplePen(data, opts)
	default:
		return &domain.ParseResult{
			Format:   domain.FormatUnknown,
			Warnings: []string{fmt.Sprintf("unrecognized course format (root element %q)", root)},
		}
	}
}

// rootElement returns the local name of the first start element.
func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("no root element")
		}
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// bbox is the pixel/map-unit bounding box used to normalize control positions.
type bbox struct {
	minX, maxX, minY, maxY float64
	valid                  bool
}

const bboxEpsilon = 1e-9

// normalize maps a map-space coordinate into rel (0..1) coordinates with the
// Y axis flipped into image orientation (0 = top). A collapsed axis pins the
// coordinate to the middle instead of dividing by zero.
func (b bbox) normalize(x, y float64) (relX, relY float64) {
	spanX := b.maxX - b.minX
	spanY := b.maxY - b.minY

	if spanX > bboxEpsilon {
		relX = (x - b.minX) / spanX
	} else {
		relX = 0.5
	}
	if spanY > bboxEpsilon {
		relY = (b.maxY - y) / spanY
	} else {
		relY = 0.5
	}
	return relX, relY
}

func (b *bbox) extend(x, y float64) {
	if !b.valid {
		b.minX, b.maxX, b.minY, b.maxY = x, x, y, y
		b.valid = true
		return
	}
	if x < b.minX {
		b.minX = x
	}
	if x > b.maxX {
		b.maxX = x
	}
	if y < b.minY {
		b.minY = y
	}
	if y > b.maxY {
		b.maxY = y
	}
}
