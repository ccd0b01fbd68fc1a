package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/antigravity-events/otrack/internal/adapters/nats"
	"github.com/antigravity-events/otrack/internal/core/domain"
	"github.com/antigravity-events/otrack/internal/pkg/metrics"
)

// wsMessage is the client-to-server frame. Competitor apps stream "position"
// frames with an attached sample; spectator clients use "subscribe" and
// "unsubscribe" with a channel ("punches" | "approaches" | "summaries") and
// an optional session filter ("" = all sessions).
type wsMessage struct {
	Action  string                 `json:"action"`
	Session string                 `json:"session"`
	Channel string                 `json:"channel"`
	Sample  *domain.PositionSample `json:"sample,omitempty"`
}

// WebSocketHandler upgrades to WebSocket and serves two roles on one socket:
// ingesting GPS position samples into the broker, and relaying detection
// events back out to subscribed clients.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Debug("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "position":
				if deps.Publisher == nil {
					_ = writeJSON(map[string]string{"error": "broker not available"})
					continue
				}
				if m.Sample == nil || m.Sample.SessionID == "" {
					_ = writeJSON(map[string]string{"error": "position frames need a sample with session_id"})
					continue
				}
				if m.Sample.Time.IsZero() {
					m.Sample.Time = time.Now().UTC()
				}
				if err := deps.Publisher.PublishPosition(context.Background(), m.Sample); err != nil {
					_ = writeJSON(map[string]string{"error": "publish failed: " + err.Error()})
					continue
				}
				metrics.PositionsIngested.Inc()

			case "subscribe":
				if deps.NATS == nil {
					_ = writeJSON(map[string]string{"error": "broker not available"})
					continue
				}
				subject, ok := relaySubject(m)
				if !ok {
					_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
					continue
				}
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := deps.NATS.Subscribe(subject, func(msg *nats.Msg) {
					_ = writeJSON(json.RawMessage(msg.Data))
				})
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				subject, ok := relaySubject(m)
				if !ok {
					_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
					continue
				}
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Debug("ws client disconnected", "remote", remoteAddr)
	}
}

// relaySubject maps a subscribe/unsubscribe frame to a NATS subject.
func relaySubject(m wsMessage) (string, bool) {
	var prefix string
	switch m.Channel {
	case "punches", "":
		prefix = natsadapter.SubjectPunchPrefix
	case "approaches":
		prefix = natsadapter.SubjectApproachPrefix
	case "summaries":
		prefix = natsadapter.SubjectSummaryPrefix
	default:
		return "", false
	}
	if m.Session != "" {
		return prefix + m.Session, true
	}
	return prefix + ">", true
}
