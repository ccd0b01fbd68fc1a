package domain

import (
	"time"
)

// ControlType distinguishes start/finish stations from ordinary controls.
type ControlType string

const (
	ControlStart  ControlType = "start"
	ControlNormal ControlType = "control"
	ControlFinish ControlType = "finish"
)

// Control is a single course control station.
//
// RelX/RelY are normalized positions inside the map image (0..1, origin at the
// bottom-left in map space). They are nil until the parser could place the
// control on the map. Lat/Lng are nil until the control has been georeferenced
// through a calibration matrix or a world file.
type Control struct {
	ID     string      `json:"id"`
	Code   string      `json:"code"`
	Type   ControlType `json:"type"`
	RelX   *float64    `json:"rel_x,omitempty"`
	RelY   *float64    `json:"rel_y,omitempty"`
	Lat    *float64    `json:"lat,omitempty"`
	Lng    *float64    `json:"lng,omitempty"`
	Radius float64     `json:"radius,omitempty"` // meters, 0 = use session default
}

// Course is an ordered visit sequence over controls. Forked courses expand to
// one Course per surviving variant, with the fork label appended to the name.
type Course struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	ControlIDs   []string `json:"control_ids"`
	ForkLabel    string   `json:"fork_label,omitempty"`
	LengthMeters float64  `json:"length_meters,omitempty"`
	ClimbMeters  float64  `json:"climb_meters,omitempty"`
}

// CourseFormat identifies the XML dialect a parse result came from.
type CourseFormat string

const (
	FormatIOF       CourseFormat = "iof"
	FormatPurplePen CourseFormat = "purplepen"
	FormatUnknown   CourseFormat = "unknown"
)

// ParseResult is the best-effort output of the course parser. Warnings carry
// every recoverable problem (dangling references, truncated fork expansion,
// unrecognized schemas); a hard XML error yields an empty result plus one
// warning, never an error return.
type ParseResult struct {
	Controls []Control    `json:"controls"`
	Courses  []Course     `json:"courses"`
	Format   CourseFormat `json:"format"`
	Warnings []string     `json:"warnings,omitempty"`
}

// PixelPoint is an image-space coordinate (x right, y down).
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GCP pairs a pixel coordinate with the geographic point it depicts. Ephemeral
// calibration input, never persisted by the pipeline.
type GCP struct {
	ID    string     `json:"id"`
	Pixel PixelPoint `json:"pixel"`
	Geo   GeoPoint   `json:"geo"`
}

// AffineMatrix maps pixel coordinates to geographic degrees:
//
//	lng = A·x + B·y + C
//	lat = D·x + E·y + F
type AffineMatrix struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	D float64 `json:"d"`
	E float64 `json:"e"`
	F float64 `json:"f"`
}

// WorldFile holds the six parameters of a raster sidecar file
// (.pgw/.jgw/.tfw), in file order.
type WorldFile struct {
	PixelSizeX float64 `json:"pixel_size_x"`
	RotationY  float64 `json:"rotation_y"`
	RotationX  float64 `json:"rotation_x"`
	PixelSizeY float64 `json:"pixel_size_y"`
	OriginX    float64 `json:"origin_x"`
	OriginY    float64 `json:"origin_y"`
}

// PositionSample is one GPS reading from a competitor device.
type PositionSample struct {
	SessionID string    `json:"session_id,omitempty"`
	Location  GeoPoint  `json:"location"`
	Accuracy  float64   `json:"accuracy"` // meters, 0 = unknown
	Time      time.Time `json:"time"`
}

// VirtualPunch records a GPS-proximity visit to a control. Immutable once
// created; a session only ever appends punches.
type VirtualPunch struct {
	ControlID           string    `json:"control_id"`
	ControlCode         string    `json:"control_code"`
	Time                time.Time `json:"time"`
	Location            GeoPoint  `json:"location"`
	Accuracy            float64   `json:"accuracy"`
	DistanceFromControl float64   `json:"distance_from_control"`
}

// SessionResult classifies a finished session.
type SessionResult string

const (
	ResultOK  SessionResult = "ok"
	ResultMP  SessionResult = "mp"  // mispunch: expected controls missing
	ResultDNF SessionResult = "dnf" // did not finish: no punches at all
)

// SessionSummary is the session outcome handed to result consumers.
type SessionSummary struct {
	SessionID       string         `json:"session_id,omitempty"`
	Result          SessionResult  `json:"result"`
	MissingControls []string       `json:"missing_controls,omitempty"`
	Punches         []VirtualPunch `json:"punches"`
}
