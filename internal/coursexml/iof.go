package coursexml

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

// IOF 3.0 CourseData wire structures. Children that a document may emit as
// either a single element or a list are declared as slices so cardinality is
// normalized right here at decoding, not in the traversal code.

type iofCourseData struct {
	XMLName        xml.Name            `xml:"CourseData"`
	RaceCourseData []iofRaceCourseData `xml:"RaceCourseData"`
}

type iofRaceCourseData struct {
	Map      *iofMap      `xml:"Map"`
	Controls []iofControl `xml:"Control"`
	Courses  []iofCourse  `xml:"Course"`
}

type iofMap struct {
	TopLeft     *iofMapPosition `xml:"MapPositionTopLeft"`
	BottomRight *iofMapPosition `xml:"MapPositionBottomRight"`
}

type iofMapPosition struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
}

type iofPosition struct {
	Lat float64 `xml:"lat,attr"`
	Lng float64 `xml:"lng,attr"`
}

type iofControl struct {
	Type        string          `xml:"type,attr"`
	ID          string          `xml:"Id"`
	Code        string          `xml:"Code"`
	Position    *iofPosition    `xml:"Position"`
	MapPosition *iofMapPosition `xml:"MapPosition"`
}

type iofCourse struct {
	ID       string             `xml:"Id"`
	Name     string             `xml:"Name"`
	Family   string             `xml:"CourseFamily"`
	Length   float64            `xml:"Length"`
	Climb    float64            `xml:"Climb"`
	Controls []iofCourseControl `xml:"CourseControl"`
}

type iofCourseControl struct {
	Type    string   `xml:"type,attr"`
	Control []string `xml:"Control"`
	Code    string   `xml:"ControlCode"`
}

func parseIOF(data []byte) *domain.ParseResult {
	res := &domain.ParseResult{Format: domain.FormatIOF}

	var doc iofCourseData
	if err := xml.Unmarshal(data, &doc); err != nil {
		res.Format = domain.FormatUnknown
		res.Warnings = append(res.Warnings, fmt.Sprintf("unreadable XML: %v", err))
		return res
	}

	known := make(map[string]bool)
	for _, race := range doc.RaceCourseData {
		box := iofBoundingBox(race)

		for _, c := range race.Controls {
			if c.ID == "" {
				res.Warnings = append(res.Warnings, "control without Id skipped")
				continue
			}
			if known[c.ID] {
				res.Warnings = append(res.Warnings, fmt.Sprintf("duplicate control id %q skipped", c.ID))
				continue
			}
			known[c.ID] = true

			ctl := domain.Control{
				ID:   c.ID,
				Code: c.Code,
				Type: iofControlType(c.Type),
			}
			if ctl.Code == "" {
				ctl.Code = c.ID
			}
			if c.Position != nil {
				lat, lng := c.Position.Lat, c.Position.Lng
				ctl.Lat, ctl.Lng = &lat, &lng
			}
			if c.MapPosition != nil && box.valid {
				relX, relY := box.normalize(c.MapPosition.X, c.MapPosition.Y)
				ctl.RelX, ctl.RelY = &relX, &relY
			}
			res.Controls = append(res.Controls, ctl)
		}

		courses := buildIOFCourses(race.Courses, known, res)
		res.Courses = append(res.Courses, courses...)
	}

	return res
}

// iofBoundingBox prefers the map's declared corners and falls back to the
// extent of the control map positions for any dimension the corners miss.
func iofBoundingBox(race iofRaceCourseData) bbox {
	var box bbox
	if race.Map != nil && race.Map.TopLeft != nil && race.Map.BottomRight != nil {
		box.extend(race.Map.TopLeft.X, race.Map.TopLeft.Y)
		box.extend(race.Map.BottomRight.X, race.Map.BottomRight.Y)
		return box
	}
	for _, c := range race.Controls {
		if c.MapPosition != nil {
			box.extend(c.MapPosition.X, c.MapPosition.Y)
		}
	}
	return box
}

func iofControlType(t string) domain.ControlType {
	switch strings.ToLower(t) {
	case "start":
		return domain.ControlStart
	case "finish":
		return domain.ControlFinish
	default:
		return domain.ControlNormal
	}
}

// controlRef resolves a CourseControl to its referenced control id: the first
// Control child wins, then the ControlCode fallback.
func (cc iofCourseControl) controlRef() string {
	for _, ref := range cc.Control {
		if ref = strings.TrimSpace(ref); ref != "" {
			return ref
		}
	}
	return strings.TrimSpace(cc.Code)
}

func buildIOFCourses(courses []iofCourse, known map[string]bool, res *domain.ParseResult) []domain.Course {
	type pending struct {
		course domain.Course
		family string
		label  string
	}

	var out []pending
	for i, c := range courses {
		id := c.ID
		if id == "" {
			id = "course-" + strconv.Itoa(i+1)
		}

		var ids []string
		for _, cc := range c.Controls {
			ref := cc.controlRef()
			if ref == "" {
				continue
			}
			if !known[ref] {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("course %q references unknown control %q; dropped", c.Name, ref))
				continue
			}
			ids = append(ids, ref)
		}
		if len(ids) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("course %q has no resolvable controls; dropped", c.Name))
			continue
		}

		family, label := c.Family, ""
		if family == "" {
			family, label = DeriveForkFamily(c.Name)
		} else {
			_, label = DeriveForkFamily(c.Name)
		}

		out = append(out, pending{
			course: domain.Course{
				ID:           id,
				Name:         c.Name,
				ControlIDs:   ids,
				LengthMeters: c.Length,
				ClimbMeters:  c.Climb,
			},
			family: family,
			label:  label,
		})
	}

	// Positional A/B/C labels for fork families where no member declared one.
	byFamily := make(map[string][]int)
	for i, p := range out {
		if p.family != "" {
			byFamily[p.family] = append(byFamily[p.family], i)
		}
	}
	for _, members := range byFamily {
		if len(members) < 2 {
			continue
		}
		anyDeclared := false
		for _, i := range members {
			if out[i].label != "" {
				anyDeclared = true
				break
			}
		}
		for pos, i := range members {
			if !anyDeclared {
				out[i].course.ForkLabel = forkLetter(pos)
			} else {
				out[i].course.ForkLabel = out[i].label
			}
		}
	}

	result := make([]domain.Course, 0, len(out))
	for _, p := range out {
		result = append(result, p.course)
	}
	return result
}
