package http

import (
	"github.com/nats-io/nats.go"

	natsadapter "github.com/antigravity-events/otrack/internal/adapters/nats"
	"github.com/antigravity-events/otrack/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Courses     *usecases.CourseService
	Calibration *usecases.CalibrationService
	Publisher   *natsadapter.Publisher
	NATS        *nats.Conn
}
