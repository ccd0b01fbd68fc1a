package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/antigravity-events/otrack/internal/adapters/nats"
	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/core/ports"
	"github.com/antigravity-events/otrack/internal/core/usecases"
	"github.com/antigravity-events/otrack/internal/pkg/config"
	"github.com/antigravity-events/otrack/internal/pkg/logging"
	"github.com/antigravity-events/otrack/internal/pkg/telemetry"
	"github.com/antigravity-events/otrack/internal/punch"
)

// The tracker consumes GPS position streams and session control messages from
// the broker, runs punch detection, and publishes the resulting events.
func main() {
	cfg, err := config.Load("otrack-tracker")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("otrack-tracker", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	sessions := usecases.NewSessionService(punch.Config{
		RadiusMeters:       cfg.Detector.RadiusMeters,
		ApproachMeters:     cfg.Detector.ApproachMeters,
		Debounce:           time.Duration(cfg.Detector.DebounceSeconds * float64(time.Second)),
		PoorAccuracyMeters: cfg.Detector.PoorAccuracyMeters,
	}, pub)

	if err := sub.SubscribeSessionControl(ctx, func(ctx context.Context, msg *ports.SessionControlMessage) error {
		switch msg.Action {
		case "start":
			if err := sessions.StartSession(ctx, msg.SessionID, msg.Controls); err != nil {
				slog.Warn("start session failed", "session", msg.SessionID, "error", err)
			}
		case "stop":
			if err := sessions.StopSession(ctx, msg.SessionID); err != nil {
				slog.Warn("stop session failed", "session", msg.SessionID, "error", err)
			}
		case "reset":
			sessions.ResetSession(msg.SessionID)
		default:
			slog.Warn("unknown session control action", "action", msg.Action)
		}
		return nil
	}); err != nil {
		log.Fatalf("subscribe session control: %v", err)
	}

	if err := sub.SubscribePositions(ctx, func(ctx context.Context, sample *domain.PositionSample) error {
		return sessions.OnPosition(ctx, sample)
	}); err != nil {
		log.Fatalf("subscribe positions: %v", err)
	}

	slog.Info("tracker started",
		"radius_m", cfg.Detector.RadiusMeters,
		"approach_m", cfg.Detector.ApproachMeters,
		"debounce_s", cfg.Detector.DebounceSeconds)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())
	cancel()
	// Give in-flight handlers time to finish before draining
	time.Sleep(2 * time.Second)
}
