package coursexml

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

// PurplePen course-scribe-event wire structures. The course topology is a
// pointer graph: course-control nodes reference each other by id through
// "next" and "variation" edges, so courses are expanded by walking an arena
// of nodes rather than decoding a nested tree.

type ppEvent struct {
	XMLName        xml.Name          `xml:"course-scribe-event"`
	Event          ppEventInfo       `xml:"event"`
	Controls       []ppControl       `xml:"control"`
	CourseControls []ppCourseControl `xml:"course-control"`
	Courses        []ppCourse        `xml:"course"`
}

type ppEventInfo struct {
	PrintArea *ppPrintArea `xml:"print-area"`
}

type ppPrintArea struct {
	Left   float64 `xml:"left,attr"`
	Right  float64 `xml:"right,attr"`
	Top    float64 `xml:"top,attr"`
	Bottom float64 `xml:"bottom,attr"`
}

type ppControl struct {
	ID       string      `xml:"id,attr"`
	Kind     string      `xml:"kind,attr"`
	Code     string      `xml:"code"`
	Location *ppLocation `xml:"location"`
}

type ppLocation struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
}

type ppRef struct {
	CourseControl string `xml:"course-control,attr"`
}

type ppCourseControl struct {
	ID           string  `xml:"id,attr"`
	Control      string  `xml:"control,attr"`
	Variation    string  `xml:"variation,attr"`
	VariationEnd string  `xml:"variation-end,attr"`
	Next         []ppRef `xml:"next"`
	Branches     []ppRef `xml:"variation"`
}

type ppCourse struct {
	ID    string  `xml:"id,attr"`
	Name  string  `xml:"name"`
	First []ppRef `xml:"first"`
}

func (n *ppCourseControl) nextID() string {
	for _, r := range n.Next {
		if id := strings.TrimSpace(r.CourseControl); id != "" {
			return id
		}
	}
	return ""
}

func (n *ppCourseControl) branchIDs() []string {
	var ids []string
	for _, r := range n.Branches {
		if id := strings.TrimSpace(r.CourseControl); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func parsePurplePen(data []byte, opts Options) *domain.ParseResult {
	res := &domain.ParseResult{Format: domain.FormatPurplePen}

	var doc ppEvent
	if err := xml.Unmarshal(data, &doc); err != nil {
		res.Format = domain.FormatUnknown
		res.Warnings = append(res.Warnings, fmt.Sprintf("unreadable XML: %v", err))
		return res
	}

	box := ppBoundingBox(&doc)

	known := make(map[string]bool)
	for _, c := range doc.Controls {
		if c.ID == "" {
			res.Warnings = append(res.Warnings, "control without id skipped")
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
			Type: ppControlType(c.Kind),
		}
		if ctl.Code == "" {
			ctl.Code = c.ID
		}
		if c.Location != nil && box.valid {
			relX, relY := box.normalize(c.Location.X, c.Location.Y)
			ctl.RelX, ctl.RelY = &relX, &relY
		}
		res.Controls = append(res.Controls, ctl)
	}

	// Node arena for the pointer graph.
	arena := make(map[string]*ppCourseControl, len(doc.CourseControls))
	for i := range doc.CourseControls {
		node := &doc.CourseControls[i]
		if node.ID != "" {
			arena[node.ID] = node
		}
	}

	for i, course := range doc.Courses {
		courseID := course.ID
		if courseID == "" {
			courseID = "course-" + strconv.Itoa(i+1)
		}

		firstID := ""
		for _, r := range course.First {
			if id := strings.TrimSpace(r.CourseControl); id != "" {
				firstID = id
				break
			}
		}
		if firstID == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("course %q has no first control; dropped", course.Name))
			continue
		}

		variants, warnings := expandPaths(firstID, arena, opts)
		for _, w := range warnings {
			res.Warnings = append(res.Warnings, fmt.Sprintf("course %q: %s", course.Name, w))
		}

		// Resolve control references and drop the dangling ones.
		var resolved []pathVariant
		for _, v := range variants {
			var ids []string
			for _, id := range v.controls {
				if !known[id] {
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("course %q references unknown control %q; dropped", course.Name, id))
					continue
				}
				ids = append(ids, id)
			}
			if len(ids) > 0 {
				resolved = append(resolved, pathVariant{label: v.label, controls: ids})
			}
		}
		if len(resolved) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("course %q has no resolvable controls; dropped", course.Name))
			continue
		}

		for vi, v := range resolved {
			c := domain.Course{
				ID:         courseID,
				Name:       course.Name,
				ControlIDs: v.controls,
				ForkLabel:  v.label,
			}
			if len(resolved) > 1 {
				c.ID = courseID + "-" + strconv.Itoa(vi+1)
				if v.label != "" {
					c.Name = course.Name + " " + v.label
				}
			}
			res.Courses = append(res.Courses, c)
		}
	}

	return res
}

// ppBoundingBox prefers the declared print area and falls back to the extent
// of the control locations.
func ppBoundingBox(doc *ppEvent) bbox {
	var box bbox
	if pa := doc.Event.PrintArea; pa != nil && pa.Right != pa.Left && pa.Top != pa.Bottom {
		box.extend(pa.Left, pa.Bottom)
		box.extend(pa.Right, pa.Top)
		return box
	}
	for _, c := range doc.Controls {
		if c.Location != nil {
			box.extend(c.Location.X, c.Location.Y)
		}
	}
	return box
}

func ppControlType(kind string) domain.ControlType {
	switch strings.ToLower(kind) {
	case "start":
		return domain.ControlStart
	case "finish":
		return domain.ControlFinish
	default:
		return domain.ControlNormal
	}
}

// pathVariant is one fully expanded control sequence through a course graph.
type pathVariant struct {
	label    string
	controls []string
}

// traversal is one in-flight walk through the node arena. Traversals are
// independent: each carries its own path, visit counts and pending
// variation-end markers, so forks just clone the current traversal per branch.
type traversal struct {
	node   string
	stops  []string // pending variation-end node ids, innermost last
	path   []string
	label  string
	visits map[string]int
	depth  int
}

func (t *traversal) clone(startNode, extraLabel string, extraStop string) *traversal {
	c := &traversal{
		node:   startNode,
		stops:  append([]string(nil), t.stops...),
		path:   append([]string(nil), t.path...),
		label:  t.label + extraLabel,
		visits: make(map[string]int, len(t.visits)),
		depth:  t.depth,
	}
	for k, v := range t.visits {
		c.visits[k] = v
	}
	if extraStop != "" {
		c.stops = append(c.stops, extraStop)
	}
	return c
}

// expandPaths walks every variant of a course from its first node. Explicit
// stack-based DFS: no recursion, so adversarial graphs are bounded by the
// path and depth caps instead of the goroutine stack.
func expandPaths(firstID string, arena map[string]*ppCourseControl, opts Options) ([]pathVariant, []string) {
	var (
		completed   []pathVariant
		warnings    []string
		truncated   bool
		openRejoins []string
	)
	rejoinWarned := make(map[string]bool)

	stack := []*traversal{{node: firstID, visits: make(map[string]int)}}

	// A variation-end marker still pending when a path finishes means the
	// branch ran to the course end without passing its declared rejoin node.
	finish := func(t *traversal) {
		completed = append(completed, pathVariant{label: t.label, controls: t.path})
		for _, s := range t.stops {
			if !rejoinWarned[s] {
				rejoinWarned[s] = true
				openRejoins = append(openRejoins, s)
			}
		}
	}

	// budget counts live traversals plus finished paths against MaxPaths.
	budgetLeft := func() int {
		return opts.MaxPaths - len(completed) - len(stack)
	}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		spawned := false
		for t.node != "" {
			if t.depth >= opts.MaxDepth {
				warnings = append(warnings, fmt.Sprintf("traversal exceeded depth cap %d; terminated", opts.MaxDepth))
				break
			}
			t.depth++

			node := arena[t.node]
			if node == nil {
				warnings = append(warnings, fmt.Sprintf("dangling course-control reference %q; dropped", t.node))
				break
			}

			// Arriving at the innermost pending variation end closes it.
			if len(t.stops) > 0 && t.stops[len(t.stops)-1] == t.node {
				t.stops = t.stops[:len(t.stops)-1]
			}

			t.visits[t.node]++
			if t.visits[t.node] > 2 {
				warnings = append(warnings, fmt.Sprintf("cycle at course-control %q; traversal terminated", t.node))
				break
			}

			// Collapse an immediately repeated control (self-loop station).
			if node.Control != "" && (len(t.path) == 0 || t.path[len(t.path)-1] != node.Control) {
				t.path = append(t.path, node.Control)
			}

			branches := node.branchIDs()
			if len(branches) > 0 {
				labelled := len(branches) > 1
				rejoinAt := ""
				if node.Variation == "fork" && node.VariationEnd != "" {
					rejoinAt = node.VariationEnd
				}

				var clones []*traversal
				for bi, branch := range branches {
					if budgetLeft()-len(clones) <= 0 {
						truncated = true
						break
					}
					extraLabel := ""
					if labelled {
						extraLabel = forkLetter(bi)
					}
					clones = append(clones, t.clone(branch, extraLabel, rejoinAt))
				}
				// Reverse push so branch A is popped and walked first.
				for ci := len(clones) - 1; ci >= 0; ci-- {
					stack = append(stack, clones[ci])
				}
				if len(clones) == 0 {
					// Budget exhausted: keep the prefix as a finished path.
					break
				}
				spawned = true
				break
			}

			t.node = node.nextID()
		}

		if !spawned {
			finish(t)
		}
	}

	if truncated {
		warnings = append(warnings, fmt.Sprintf("fork expansion truncated at %d paths", opts.MaxPaths))
	}
	for _, id := range openRejoins {
		warnings = append(warnings, fmt.Sprintf("fork rejoin %q never reached", id))
	}

	return dedupePaths(completed), warnings
}

// dedupePaths drops variants whose control sequence duplicates an earlier
// one; distinct fork labels that expand identically collapse to the first.
func dedupePaths(paths []pathVariant) []pathVariant {
	seen := make(map[string]bool, len(paths))
	var out []pathVariant
	for _, p := range paths {
		key := strings.Join(p.controls, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
