package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/core/ports"
	"github.com/antigravity-events/otrack/internal/pkg/metrics"
	"github.com/antigravity-events/otrack/internal/punch"
)

// SessionService runs one punch detector per live tracking session and
// publishes the events it emits. The detectors themselves are single-owner;
// the service serializes position updates per session with a mutex so a
// burst of samples for one runner is still processed in arrival order.
type SessionService struct {
	cfg       punch.Config
	publisher ports.EventPublisher

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	detector *punch.Detector
}

// NewSessionService creates a SessionService.
func NewSessionService(cfg punch.Config, publisher ports.EventPublisher) *SessionService {
	return &SessionService{
		cfg:       cfg,
		publisher: publisher,
		sessions:  make(map[string]*session),
	}
}

// StartSession creates (or resets) the detector for a session and loads the
// calibrated controls it should watch.
func (s *SessionService) StartSession(ctx context.Context, sessionID string, controls []domain.Control) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	georeferenced := 0
	for _, c := range controls {
		if c.Lat != nil && c.Lng != nil {
			georeferenced++
		}
	}
	if georeferenced == 0 {
		return fmt.Errorf("session %s: no georeferenced controls to watch", sessionID)
	}

	sess := &session{}
	sess.detector = punch.New(s.cfg, punch.Callbacks{
		OnPunch: func(p domain.VirtualPunch) {
			metrics.PunchesDetected.Inc()
			if err := s.publisher.PublishPunch(ctx, sessionID, &p); err != nil {
				slog.Warn("publish punch failed", "session", sessionID, "control", p.ControlCode, "error", err)
			}
		},
		OnApproaching: func(ctl domain.Control, dist float64) {
			if err := s.publisher.PublishApproach(ctx, sessionID, &ctl, dist); err != nil {
				slog.Warn("publish approach failed", "session", sessionID, "control", ctl.Code, "error", err)
			}
		},
		OnAccuracyWarning: func(sample domain.PositionSample) {
			metrics.AccuracyWarnings.Inc()
		},
	})
	sess.detector.SetControls(controls)
	sess.detector.Start()

	s.mu.Lock()
	s.sessions[sessionID] = sess
	active := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(active))
	slog.Info("session started", "session", sessionID, "controls", len(controls), "georeferenced", georeferenced)
	return nil
}

// OnPosition routes one GPS sample into its session's detector.
// Samples for unknown sessions are dropped; detection anomalies never
// interrupt the stream.
func (s *SessionService) OnPosition(ctx context.Context, sample *domain.PositionSample) error {
	s.mu.Lock()
	sess := s.sessions[sample.SessionID]
	s.mu.Unlock()
	if sess == nil {
		return nil
	}

	sess.mu.Lock()
	sess.detector.OnPosition(*sample)
	complete := sess.detector.IsComplete()
	sess.mu.Unlock()

	if complete {
		return s.StopSession(ctx, sample.SessionID)
	}
	return nil
}

// StopSession freezes a session's detector and publishes its summary.
// Stopping an unknown or already stopped session is a no-op.
func (s *SessionService) StopSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	active := len(s.sessions)
	s.mu.Unlock()
	if sess == nil {
		return nil
	}

	metrics.ActiveSessions.Set(float64(active))

	sess.mu.Lock()
	sess.detector.Stop()
	summary := sess.detector.Summary()
	sess.mu.Unlock()

	summary.SessionID = sessionID
	slog.Info("session stopped", "session", sessionID,
		"result", string(summary.Result), "punches", len(summary.Punches), "missing", len(summary.MissingControls))

	if err := s.publisher.PublishSummary(ctx, &summary); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

// ResetSession discards a session's accumulated punches for a fresh attempt.
func (s *SessionService) ResetSession(sessionID string) {
	s.mu.Lock()
	sess := s.sessions[sessionID]
	s.mu.Unlock()
	if sess == nil {
		return
	}

	sess.mu.Lock()
	sess.detector.Reset()
	sess.detector.Start()
	sess.mu.Unlock()
}
