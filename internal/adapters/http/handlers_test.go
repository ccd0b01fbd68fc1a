package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/antigravity-events/otrack/internal/adapters/http"
	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/core/usecases"
	"github.com/antigravity-events/otrack/internal/coursexml"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	deps := &handler.Dependencies{
		Courses:     usecases.NewCourseService(coursexml.DefaultOptions()),
		Calibration: usecases.NewCalibrationService(),
	}
	handler.SetupRoutes(app, deps)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (int, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestReadyEndpointWithoutBroker(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 503 {
		t.Fatalf("status = %d, want 503 without a broker", resp.StatusCode)
	}
}

func TestParseCourseEndpoint(t *testing.T) {
	app := newTestApp()

	courseXML := `<CourseData><RaceCourseData>
		<Control><Id>31</Id></Control>
		<Course><Id>c1</Id><Name>White</Name>
			<CourseControl><Control>31</Control></CourseControl>
		</Course>
	</RaceCourseData></CourseData>`

	req := httptest.NewRequest("POST", "/v1/courses/parse", strings.NewReader(courseXML))
	req.Header.Set("Content-Type", "application/xml")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var res domain.ParseResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Format != domain.FormatIOF || len(res.Courses) != 1 {
		t.Errorf("result = %+v, want one iof course", res)
	}
}

func TestParseCourseEndpointEmptyBody(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest("POST", "/v1/courses/parse", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSolveCalibrationEndpoint(t *testing.T) {
	app := newTestApp()

	body := map[string]any{
		"gcps": []map[string]any{
			{"pixel": map[string]float64{"x": 0, "y": 0}, "geo": map[string]float64{"lat": 59.4, "lng": 18.0}},
			{"pixel": map[string]float64{"x": 1000, "y": 0}, "geo": map[string]float64{"lat": 59.4, "lng": 18.01}},
			{"pixel": map[string]float64{"x": 0, "y": 1000}, "geo": map[string]float64{"lat": 59.39, "lng": 18.0}},
		},
	}
	status, out := postJSON(t, app, "/v1/calibration/solve", body)
	if status != 200 {
		t.Fatalf("status = %d, want 200 (%s)", status, out)
	}

	var res struct {
		IsValid  bool    `json:"is_valid"`
		RMSError float64 `json:"rms_error"`
	}
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.IsValid {
		t.Errorf("is_valid = false, want true: %s", out)
	}

	// Degenerate input is still a 200 with is_valid=false.
	body["gcps"] = []map[string]any{
		{"pixel": map[string]float64{"x": 0, "y": 0}, "geo": map[string]float64{"lat": 59.4, "lng": 18.0}},
		{"pixel": map[string]float64{"x": 1, "y": 1}, "geo": map[string]float64{"lat": 59.4, "lng": 18.0}},
		{"pixel": map[string]float64{"x": 2, "y": 2}, "geo": map[string]float64{"lat": 59.4, "lng": 18.0}},
	}
	status, out = postJSON(t, app, "/v1/calibration/solve", body)
	if status != 200 {
		t.Fatalf("degenerate status = %d, want 200", status)
	}
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.IsValid {
		t.Errorf("is_valid = true for collinear points")
	}
}

func TestSolveCalibrationEndpointTooFewPoints(t *testing.T) {
	app := newTestApp()
	status, _ := postJSON(t, app, "/v1/calibration/solve", map[string]any{
		"gcps": []map[string]any{
			{"pixel": map[string]float64{"x": 0, "y": 0}, "geo": map[string]float64{"lat": 59.4, "lng": 18.0}},
		},
	})
	if status != 400 {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestWorldFileEndpoint(t *testing.T) {
	app := newTestApp()

	status, out := postJSON(t, app, "/v1/calibration/worldfile", map[string]any{
		"text":      "2\n0\n0\n-2\n500000\n6600000\n",
		"width_px":  1000,
		"height_px": 1000,
	})
	if status != 200 {
		t.Fatalf("status = %d, want 200 (%s)", status, out)
	}

	var res struct {
		WorldFile domain.WorldFile `json:"world_file"`
		Bounds    domain.Bounds    `json:"bounds"`
	}
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.WorldFile.PixelSizeX != 2 {
		t.Errorf("pixel size = %v, want 2", res.WorldFile.PixelSizeX)
	}

	status, _ = postJSON(t, app, "/v1/calibration/worldfile", map[string]any{
		"text": "junk", "width_px": 1000, "height_px": 1000,
	})
	if status != 400 {
		t.Fatalf("malformed world file status = %d, want 400", status)
	}
}

func TestGeoreferenceEndpoint(t *testing.T) {
	app := newTestApp()

	relX, relY := 0.5, 0.5
	controls := []domain.Control{{ID: "31", Code: "31", RelX: &relX, RelY: &relY}}
	matrix := domain.AffineMatrix{A: 1e-5, B: 0, C: 18.0, D: 0, E: -1e-5, F: 59.4}

	status, out := postJSON(t, app, "/v1/courses/georeference", map[string]any{
		"controls": controls,
		"width_px": 1000, "height_px": 1000,
		"matrix": matrix,
	})
	if status != 200 {
		t.Fatalf("status = %d, want 200 (%s)", status, out)
	}

	var res struct {
		Controls []domain.Control `json:"controls"`
	}
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Controls) != 1 || res.Controls[0].Lat == nil {
		t.Fatalf("controls = %+v, want one georeferenced control", res.Controls)
	}

	// Supplying both a matrix and a world file is rejected.
	status, _ = postJSON(t, app, "/v1/courses/georeference", map[string]any{
		"controls": controls,
		"width_px": 1000, "height_px": 1000,
		"matrix":     matrix,
		"world_file": "2\n0\n0\n-2\n500000\n6600000\n",
	})
	if status != 400 {
		t.Fatalf("ambiguous request status = %d, want 400", status)
	}

	// Supplying neither is rejected too.
	status, _ = postJSON(t, app, "/v1/courses/georeference", map[string]any{
		"controls": controls,
		"width_px": 1000, "height_px": 1000,
	})
	if status != 400 {
		t.Fatalf("missing transform status = %d, want 400", status)
	}
}

func TestStartSessionWithoutBroker(t *testing.T) {
	app := newTestApp()

	lat, lng := 59.4, 18.0
	status, out := postJSON(t, app, "/v1/sessions/s1/start", map[string]any{
		"controls": []domain.Control{{ID: "31", Code: "31", Lat: &lat, Lng: &lng}},
	})
	if status != 503 {
		t.Fatalf("status = %d, want 503 without a broker (%s)", status, out)
	}

	// The error envelope must survive to the client: a broker failure may not
	// be papered over with an accepted-session body.
	var apiErr handler.APIError
	if err := json.Unmarshal(out, &apiErr); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, out)
	}
	if apiErr.Code != "unavailable" || apiErr.Status != 503 {
		t.Errorf("envelope = %+v, want code unavailable / status 503", apiErr)
	}

	// Controls without coordinates fail validation before the broker check.
	status, _ = postJSON(t, app, "/v1/sessions/s1/start", map[string]any{
		"controls": []domain.Control{{ID: "31", Code: "31"}},
	})
	if status != 400 {
		t.Fatalf("status = %d, want 400 for ungeoreferenced controls", status)
	}
}

func TestStopAndResetSessionWithoutBroker(t *testing.T) {
	app := newTestApp()

	for _, path := range []string{"/v1/sessions/s1/stop", "/v1/sessions/s1/reset"} {
		status, out := postJSON(t, app, path, map[string]any{})
		if status != 503 {
			t.Errorf("%s status = %d, want 503 without a broker (%s)", path, status, out)
		}
	}
}

func TestUnknownRouteReturnsErrorEnvelope(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/v1/nope", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	var apiErr handler.APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if apiErr.Code != "not_found" {
		t.Errorf("code = %q, want not_found", apiErr.Code)
	}
}
