package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/core/ports"
)

const maxCourseXMLBytes = 5 * 1024 * 1024

// ParseCourseHandler parses a course-setting XML file posted as the request
// body and returns the normalized control/course graph. Recoverable problems
// come back as warnings inside the result, not as HTTP errors.
func ParseCourseHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if len(body) == 0 {
			return errBadRequest(c, "request body must contain course XML")
		}
		if len(body) > maxCourseXMLBytes {
			return errBadRequest(c, "course XML too large (max 5 MiB)")
		}

		res := deps.Courses.Parse(body)
		return c.JSON(res)
	}
}

// georeferenceRequest georeferences parsed controls either through a solved
// calibration matrix or through world-file text. Exactly one of the two must
// be supplied.
type georeferenceRequest struct {
	Controls  []domain.Control     `json:"controls"`
	WidthPx   float64              `json:"width_px"`
	HeightPx  float64              `json:"height_px"`
	Matrix    *domain.AffineMatrix `json:"matrix,omitempty"`
	WorldFile string               `json:"world_file,omitempty"`
}

// GeoreferenceHandler assigns WGS 84 coordinates to controls that carry a
// normalized map position.
func GeoreferenceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req georeferenceRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body: "+err.Error())
		}
		if len(req.Controls) == 0 {
			return errBadRequest(c, "controls are required")
		}
		if (req.Matrix == nil) == (req.WorldFile == "") {
			return errBadRequest(c, "exactly one of matrix or world_file is required")
		}

		var (
			out []domain.Control
			err error
		)
		if req.Matrix != nil {
			out, err = deps.Courses.GeoreferenceAffine(req.Controls, *req.Matrix, req.WidthPx, req.HeightPx)
		} else {
			wf, werr := deps.Calibration.ParseWorldFile(req.WorldFile, req.WidthPx, req.HeightPx)
			if werr != nil {
				return errBadRequest(c, "world file: "+werr.Error())
			}
			out, err = deps.Courses.GeoreferenceWorldFile(req.Controls, wf.WorldFile, req.WidthPx, req.HeightPx)
		}
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		return c.JSON(fiber.Map{"controls": out})
	}
}

type solveRequest struct {
	GCPs []domain.GCP `json:"gcps"`
}

// SolveCalibrationHandler fits an affine matrix to posted ground control
// points. Degenerate input is a 200 with is_valid=false, matching the
// solver's contract that bad geometry is a result, not a failure.
func SolveCalibrationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req solveRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body: "+err.Error())
		}
		if len(req.GCPs) < 3 {
			return errBadRequest(c, "at least 3 ground control points are required")
		}

		return c.JSON(deps.Calibration.Solve(req.GCPs))
	}
}

type worldFileRequest struct {
	Text     string  `json:"text"`
	WidthPx  float64 `json:"width_px"`
	HeightPx float64 `json:"height_px"`
}

// WorldFileHandler parses world-file text and returns the six parameters plus
// the WGS 84 extent of the image.
func WorldFileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req worldFileRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body: "+err.Error())
		}
		if req.Text == "" {
			return errBadRequest(c, "text is required")
		}
		if req.WidthPx <= 0 || req.HeightPx <= 0 {
			return errBadRequest(c, "width_px and height_px must be positive")
		}

		res, err := deps.Calibration.ParseWorldFile(req.Text, req.WidthPx, req.HeightPx)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.JSON(res)
	}
}

type startSessionRequest struct {
	Controls []domain.Control `json:"controls"`
}

// StartSessionHandler announces a new tracking session to detection workers.
// The posted controls must already be georeferenced.
func StartSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")
		if sessionID == "" {
			return errBadRequest(c, "session id is required")
		}

		var req startSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body: "+err.Error())
		}

		georeferenced := 0
		for _, ctl := range req.Controls {
			if ctl.Lat != nil && ctl.Lng != nil {
				georeferenced++
			}
		}
		if georeferenced == 0 {
			return errBadRequest(c, "at least one georeferenced control is required")
		}

		if ok, err := publishSessionControl(c, deps, ports.SessionControlMessage{
			SessionID: sessionID,
			Action:    "start",
			Controls:  req.Controls,
		}); !ok {
			return err
		}
		return c.Status(202).JSON(fiber.Map{"session_id": sessionID, "status": "starting"})
	}
}

// StopSessionHandler asks detection workers to finish a session and publish
// its summary.
func StopSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")
		if sessionID == "" {
			return errBadRequest(c, "session id is required")
		}

		if ok, err := publishSessionControl(c, deps, ports.SessionControlMessage{
			SessionID: sessionID,
			Action:    "stop",
		}); !ok {
			return err
		}
		return c.Status(202).JSON(fiber.Map{"session_id": sessionID, "status": "stopping"})
	}
}

// ResetSessionHandler discards a session's punches for a fresh attempt.
func ResetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Params("id")
		if sessionID == "" {
			return errBadRequest(c, "session id is required")
		}

		if ok, err := publishSessionControl(c, deps, ports.SessionControlMessage{
			SessionID: sessionID,
			Action:    "reset",
		}); !ok {
			return err
		}
		return c.Status(202).JSON(fiber.Map{"session_id": sessionID, "status": "resetting"})
	}
}

// publishSessionControl sends a control message to the detection workers.
// On failure it renders the error response itself and reports ok=false; the
// returned error is the render result and must be returned as-is, since a
// successfully written error response yields a nil error.
func publishSessionControl(c *fiber.Ctx, deps *Dependencies, msg ports.SessionControlMessage) (bool, error) {
	if deps.Publisher == nil {
		return false, errUnavailable(c, "message broker not available")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return false, errInternal(c, err.Error())
	}
	if err := deps.Publisher.PublishSessionControl(c.Context(), data); err != nil {
		return false, errUnavailable(c, "publish session control: "+err.Error())
	}
	return true, nil
}
