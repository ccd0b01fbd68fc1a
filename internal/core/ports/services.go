package ports

import (
	"context"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

// EventPublisher publishes detection events to a message broker.
type EventPublisher interface {
	PublishPosition(ctx context.Context, sample *domain.PositionSample) error
	PublishPunch(ctx context.Context, sessionID string, punch *domain.VirtualPunch) error
	PublishApproach(ctx context.Context, sessionID string, control *domain.Control, distanceMeters float64) error
	PublishSummary(ctx context.Context, summary *domain.SessionSummary) error
}

// EventSubscriber subscribes to detection events from a message broker.
type EventSubscriber interface {
	SubscribePositions(ctx context.Context, handler func(ctx context.Context, sample *domain.PositionSample) error) error
	SubscribeSessionControl(ctx context.Context, handler func(ctx context.Context, msg *SessionControlMessage) error) error
}

// SessionControlMessage starts or finishes a tracking session. A start
// message carries the calibrated controls the detector should watch.
type SessionControlMessage struct {
	SessionID string           `json:"session_id"`
	Action    string           `json:"action"` // "start" | "stop" | "reset"
	Controls  []domain.Control `json:"controls,omitempty"`
}
