package coursexml

import (
	"strings"
	"testing"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

func TestParseUnknownFormat(t *testing.T) {
	res := Parse([]byte(`<SomeOtherDocument/>`))

	if res.Format != domain.FormatUnknown {
		t.Fatalf("format = %q, want unknown", res.Format)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "unrecognized course format") {
		t.Errorf("warnings = %v, want one unrecognized-format warning", res.Warnings)
	}
	if len(res.Controls) != 0 || len(res.Courses) != 0 {
		t.Errorf("unknown format should produce an empty result, got %d controls, %d courses",
			len(res.Controls), len(res.Courses))
	}
}

func TestParseBrokenXML(t *testing.T) {
	for _, data := range []string{
		"this is not XML",
		"",
		"<CourseData><RaceCourseData>",
	} {
		res := Parse([]byte(data))
		if res.Format != domain.FormatUnknown {
			t.Errorf("Parse(%q): format = %q, want unknown", data, res.Format)
		}
		if len(res.Warnings) == 0 {
			t.Errorf("Parse(%q): want a warning for broken XML", data)
		}
	}
}

const iofLinearXML = `<?xml version="1.0" encoding="UTF-8"?>
<CourseData xmlns="http://www.orienteering.org/datastandard/3.0">
  <RaceCourseData>
    <Map>
      <MapPositionTopLeft x="0" y="200"/>
      <MapPositionBottomRight x="200" y="0"/>
    </Map>
    <Control type="Start">
      <Id>S1</Id>
      <Code>S1</Code>
      <Position lat="59.100" lng="18.200"/>
      <MapPosition x="20" y="180"/>
    </Control>
    <Control>
      <Id>31</Id>
      <Code>31</Code>
      <Position lat="59.105" lng="18.210"/>
      <MapPosition x="100" y="100"/>
    </Control>
    <Control type="Finish">
      <Id>F1</Id>
      <Code>F1</Code>
      <Position lat="59.110" lng="18.220"/>
      <MapPosition x="180" y="20"/>
    </Control>
    <Course>
      <Id>c1</Id>
      <Name>White</Name>
      <Length>2500</Length>
      <Climb>40</Climb>
      <CourseControl type="Start"><Control>S1</Control></CourseControl>
      <CourseControl type="Control"><Control>31</Control></CourseControl>
      <CourseControl type="Control"><Control>X99</Control></CourseControl>
      <CourseControl type="Finish"><Control>F1</Control></CourseControl>
    </Course>
  </RaceCourseData>
</CourseData>`

func TestParseIOFLinear(t *testing.T) {
	res := Parse([]byte(iofLinearXML))

	if res.Format != domain.FormatIOF {
		t.Fatalf("format = %q, want iof", res.Format)
	}
	if len(res.Controls) != 3 {
		t.Fatalf("controls = %d, want 3", len(res.Controls))
	}

	start := res.Controls[0]
	if start.Type != domain.ControlStart {
		t.Errorf("control S1 type = %q, want start", start.Type)
	}
	if start.Lat == nil || *start.Lat != 59.100 {
		t.Errorf("control S1 lat = %v, want 59.100", start.Lat)
	}
	if start.RelX == nil || *start.RelX != 0.1 {
		t.Errorf("control S1 relX = %v, want 0.1", start.RelX)
	}
	if start.RelY == nil || *start.RelY != 0.1 {
		t.Errorf("control S1 relY = %v, want 0.1", start.RelY)
	}

	mid := res.Controls[1]
	if mid.Type != domain.ControlNormal {
		t.Errorf("control 31 type = %q, want control", mid.Type)
	}
	if mid.RelX == nil || *mid.RelX != 0.5 || mid.RelY == nil || *mid.RelY != 0.5 {
		t.Errorf("control 31 rel = (%v, %v), want (0.5, 0.5)", mid.RelX, mid.RelY)
	}

	if res.Controls[2].Type != domain.ControlFinish {
		t.Errorf("control F1 type = %q, want finish", res.Controls[2].Type)
	}

	if len(res.Courses) != 1 {
		t.Fatalf("courses = %d, want 1", len(res.Courses))
	}
	c := res.Courses[0]
	if c.Name != "White" || c.LengthMeters != 2500 || c.ClimbMeters != 40 {
		t.Errorf("course = %+v, want White/2500/40", c)
	}
	want := []string{"S1", "31", "F1"}
	if len(c.ControlIDs) != len(want) {
		t.Fatalf("course controls = %v, want %v", c.ControlIDs, want)
	}
	for i, id := range want {
		if c.ControlIDs[i] != id {
			t.Errorf("course control[%d] = %q, want %q", i, c.ControlIDs[i], id)
		}
	}

	// The dangling X99 reference is a warning, never an error.
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "X99") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one mentioning X99", res.Warnings)
	}
}

const iofForkFamilyXML = `<?xml version="1.0"?>
<CourseData>
  <RaceCourseData>
    <Control><Id>31</Id><MapPosition x="10" y="10"/></Control>
    <Control><Id>32</Id><MapPosition x="20" y="20"/></Control>
    <Control><Id>33</Id><MapPosition x="30" y="30"/></Control>
    <Course>
      <Id>v1</Id>
      <Name>Relay First</Name>
      <CourseFamily>Relay</CourseFamily>
      <CourseControl><Control>31</Control></CourseControl>
      <CourseControl><Control>32</Control></CourseControl>
    </Course>
    <Course>
      <Id>v2</Id>
      <Name>Relay Second</Name>
      <CourseFamily>Relay</CourseFamily>
      <CourseControl><Control>31</Control></CourseControl>
      <CourseControl><Control>33</Control></CourseControl>
    </Course>
  </RaceCourseData>
</CourseData>`

func TestParseIOFPositionalForkLabels(t *testing.T) {
	res := Parse([]byte(iofForkFamilyXML))

	if len(res.Courses) != 2 {
		t.Fatalf("courses = %d, want 2", len(res.Courses))
	}
	if res.Courses[0].ForkLabel != "A" || res.Courses[1].ForkLabel != "B" {
		t.Errorf("fork labels = %q, %q, want A, B",
			res.Courses[0].ForkLabel, res.Courses[1].ForkLabel)
	}
}

const iofDeclaredLabelXML = `<?xml version="1.0"?>
<CourseData>
  <RaceCourseData>
    <Control><Id>31</Id></Control>
    <Course>
      <Id>v1</Id>
      <Name>Elite: A</Name>
      <CourseControl><Control>31</Control></CourseControl>
    </Course>
    <Course>
      <Id>v2</Id>
      <Name>Elite: B</Name>
      <CourseControl><Control>31</Control></CourseControl>
    </Course>
  </RaceCourseData>
</CourseData>`

func TestParseIOFDeclaredForkLabels(t *testing.T) {
	res := Parse([]byte(iofDeclaredLabelXML))

	if len(res.Courses) != 2 {
		t.Fatalf("courses = %d, want 2", len(res.Courses))
	}
	if res.Courses[0].ForkLabel != "A" || res.Courses[1].ForkLabel != "B" {
		t.Errorf("fork labels = %q, %q, want declared A, B",
			res.Courses[0].ForkLabel, res.Courses[1].ForkLabel)
	}
}

func TestParseIOFEmptyCourseDropped(t *testing.T) {
	data := `<CourseData><RaceCourseData>
		<Control><Id>31</Id></Control>
		<Course><Id>c1</Id><Name>Ghost</Name>
			<CourseControl><Control>X1</Control></CourseControl>
		</Course>
	</RaceCourseData></CourseData>`

	res := Parse([]byte(data))
	if len(res.Courses) != 0 {
		t.Fatalf("courses = %d, want 0", len(res.Courses))
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "no resolvable controls") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a dropped-course warning", res.Warnings)
	}
}

func TestParseIOFDuplicateControlID(t *testing.T) {
	data := `<CourseData><RaceCourseData>
		<Control><Id>31</Id></Control>
		<Control><Id>31</Id></Control>
	</RaceCourseData></CourseData>`

	res := Parse([]byte(data))
	if len(res.Controls) != 1 {
		t.Fatalf("controls = %d, want 1", len(res.Controls))
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "duplicate") {
		t.Errorf("warnings = %v, want one duplicate warning", res.Warnings)
	}
}
