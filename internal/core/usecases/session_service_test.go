package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/core/usecases"
	"github.com/antigravity-events/otrack/internal/punch"
)

// ---- Mock publisher ----

type mockPublisher struct {
	punches    []domain.VirtualPunch
	approaches []string
	summaries  []domain.SessionSummary
}

func (m *mockPublisher) PublishPosition(ctx context.Context, sample *domain.PositionSample) error {
	return nil
}

func (m *mockPublisher) PublishPunch(ctx context.Context, sessionID string, p *domain.VirtualPunch) error {
	m.punches = append(m.punches, *p)
	return nil
}

func (m *mockPublisher) PublishApproach(ctx context.Context, sessionID string, ctl *domain.Control, dist float64) error {
	m.approaches = append(m.approaches, ctl.Code)
	return nil
}

func (m *mockPublisher) PublishSummary(ctx context.Context, s *domain.SessionSummary) error {
	m.summaries = append(m.summaries, *s)
	return nil
}

// ----

func ptr(v float64) *float64 { return &v }

func testControls() []domain.Control {
	return []domain.Control{
		{ID: "31", Code: "31", Type: domain.ControlNormal, Lat: ptr(59.0), Lng: ptr(15.0)},
		{ID: "32", Code: "32", Type: domain.ControlNormal, Lat: ptr(59.02), Lng: ptr(15.0)},
	}
}

func TestStartSessionRequiresGeoreferencedControls(t *testing.T) {
	svc := usecases.NewSessionService(punch.Config{}, &mockPublisher{})

	err := svc.StartSession(context.Background(), "s1", []domain.Control{
		{ID: "31", Code: "31"},
	})
	if err == nil {
		t.Fatal("StartSession accepted controls without coordinates")
	}

	if err := svc.StartSession(context.Background(), "", testControls()); err == nil {
		t.Fatal("StartSession accepted an empty session id")
	}
}

func TestSessionFullRunPublishesSummary(t *testing.T) {
	pub := &mockPublisher{}
	svc := usecases.NewSessionService(punch.Config{}, pub)
	ctx := context.Background()

	if err := svc.StartSession(ctx, "s1", testControls()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	base := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	samples := []domain.PositionSample{
		{SessionID: "s1", Location: domain.GeoPoint{Lat: 59.0, Lng: 15.0}, Accuracy: 5, Time: base},
		{SessionID: "s1", Location: domain.GeoPoint{Lat: 59.02, Lng: 15.0}, Accuracy: 5, Time: base.Add(5 * time.Minute)},
	}
	for _, s := range samples {
		sample := s
		if err := svc.OnPosition(ctx, &sample); err != nil {
			t.Fatalf("OnPosition: %v", err)
		}
	}

	if len(pub.punches) != 2 {
		t.Fatalf("published punches = %d, want 2", len(pub.punches))
	}

	// Completing the course auto-stops the session and publishes the summary.
	if len(pub.summaries) != 1 {
		t.Fatalf("published summaries = %d, want 1", len(pub.summaries))
	}
	sum := pub.summaries[0]
	if sum.SessionID != "s1" {
		t.Errorf("summary session = %q, want s1", sum.SessionID)
	}
	if sum.Result != domain.ResultOK {
		t.Errorf("summary result = %q, want ok", sum.Result)
	}

	// A second stop for the same session is a no-op.
	if err := svc.StopSession(ctx, "s1"); err != nil {
		t.Fatalf("StopSession after auto-stop: %v", err)
	}
	if len(pub.summaries) != 1 {
		t.Errorf("duplicate summary published on repeated stop")
	}
}

func TestOnPositionUnknownSessionIsDropped(t *testing.T) {
	svc := usecases.NewSessionService(punch.Config{}, &mockPublisher{})

	sample := domain.PositionSample{
		SessionID: "ghost",
		Location:  domain.GeoPoint{Lat: 59.0, Lng: 15.0},
		Time:      time.Now(),
	}
	if err := svc.OnPosition(context.Background(), &sample); err != nil {
		t.Fatalf("OnPosition for unknown session: %v", err)
	}
}

func TestStopSessionEarlyIsMispunch(t *testing.T) {
	pub := &mockPublisher{}
	svc := usecases.NewSessionService(punch.Config{}, pub)
	ctx := context.Background()

	if err := svc.StartSession(ctx, "s1", testControls()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	sample := domain.PositionSample{
		SessionID: "s1",
		Location:  domain.GeoPoint{Lat: 59.0, Lng: 15.0},
		Accuracy:  5,
		Time:      time.Now(),
	}
	if err := svc.OnPosition(ctx, &sample); err != nil {
		t.Fatalf("OnPosition: %v", err)
	}
	if err := svc.StopSession(ctx, "s1"); err != nil {
		t.Fatalf("StopSession: %v", err)
	}

	if len(pub.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(pub.summaries))
	}
	sum := pub.summaries[0]
	if sum.Result != domain.ResultMP {
		t.Errorf("result = %q, want mp", sum.Result)
	}
	if len(sum.MissingControls) != 1 || sum.MissingControls[0] != "32" {
		t.Errorf("missing = %v, want [32]", sum.MissingControls)
	}
}

func TestResetSessionClearsPunches(t *testing.T) {
	pub := &mockPublisher{}
	svc := usecases.NewSessionService(punch.Config{}, pub)
	ctx := context.Background()

	if err := svc.StartSession(ctx, "s1", testControls()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	sample := domain.PositionSample{
		SessionID: "s1",
		Location:  domain.GeoPoint{Lat: 59.0, Lng: 15.0},
		Accuracy:  5,
		Time:      time.Now(),
	}
	_ = svc.OnPosition(ctx, &sample)
	svc.ResetSession("s1")

	if err := svc.StopSession(ctx, "s1"); err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if len(pub.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(pub.summaries))
	}
	if pub.summaries[0].Result != domain.ResultDNF {
		t.Errorf("result after reset = %q, want dnf", pub.summaries[0].Result)
	}

	// Resetting an unknown session must not panic.
	svc.ResetSession("ghost")
}
