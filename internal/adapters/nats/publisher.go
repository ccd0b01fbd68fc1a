package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/antigravity-events/otrack/internal/core/domain"
)

// Subject layout. Position samples are keyed by session so a detection
// worker can consume per-session ordered streams; punch and summary events
// fan out to spectators and result consumers.
const (
	SubjectPositionPrefix = "otrack.position."
	SubjectPunchPrefix    = "otrack.punch."
	SubjectApproachPrefix = "otrack.approach."
	SubjectSummaryPrefix  = "otrack.summary."
	SubjectSessionControl = "otrack.session.control"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "POSITIONS",
			Subjects:  []string{"otrack.position.>", SubjectSessionControl},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "PUNCHES",
			Subjects:  []string{"otrack.punch.>", "otrack.approach.>", "otrack.summary.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishPosition(ctx context.Context, sample *domain.PositionSample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectPositionPrefix+sample.SessionID, data)
	return err
}

func (p *Publisher) PublishPunch(ctx context.Context, sessionID string, punch *domain.VirtualPunch) error {
	data, err := json.Marshal(punch)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectPunchPrefix+sessionID, data)
	return err
}

func (p *Publisher) PublishApproach(ctx context.Context, sessionID string, control *domain.Control, distanceMeters float64) error {
	data, err := json.Marshal(map[string]any{
		"session_id":   sessionID,
		"control_id":   control.ID,
		"control_code": control.Code,
		"distance":     distanceMeters,
	})
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectApproachPrefix+sessionID, data)
}

func (p *Publisher) PublishSummary(ctx context.Context, summary *domain.SessionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectSummaryPrefix+summary.SessionID, data)
	return err
}

// PublishSessionControl announces a session start/stop to detection workers.
func (p *Publisher) PublishSessionControl(ctx context.Context, msg []byte) error {
	_, err := p.js.Publish(SubjectSessionControl, msg)
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
