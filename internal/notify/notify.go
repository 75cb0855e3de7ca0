// Package notify posts staff alerts to the front-desk webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/hotel-call-scheduler/internal/config"
	"go.uber.org/zap"
)

type Urgency string

const (
	Normal    Urgency = "normal"
	Urgent    Urgency = "urgent"
	Emergency Urgency = "emergency"
)

type Message struct {
	RoomNumber string  `json:"room_number"`
	Urgency    Urgency `json:"urgency"`
	Text       string  `json:"message"`
}

// Sink delivers staff alerts. Without a webhook URL it only logs.
type Sink struct {
	url   string
	token string
	hc    *http.Client
	log   *zap.Logger
}

func New(cfg config.Notify, log *zap.Logger) *Sink {
	return &Sink{
		url:   cfg.WebhookURL,
		token: cfg.Token,
		hc:    &http.Client{Timeout: 5 * time.Second},
		log:   log.Named("notify"),
	}
}

// Notify reports whether the sink accepted the alert. It never returns an
// error; a failed alert must not fail the batch that raised it.
func (s *Sink) Notify(ctx context.Context, m Message) bool {
	if m.Urgency == "" {
		m.Urgency = Normal
	}
	fields := []zap.Field{
		zap.String("room_number", m.RoomNumber),
		zap.String("urgency", string(m.Urgency)),
		zap.String("message", m.Text),
	}
	if s.url == "" {
		s.log.Info("staff alert", fields...)
		return true
	}

	body, err := json.Marshal(m)
	if err != nil {
		s.log.Error("encode staff alert", append(fields, zap.Error(err))...)
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.log.Error("build staff alert request", append(fields, zap.Error(err))...)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		s.log.Warn("staff alert not delivered", append(fields, zap.Error(err))...)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.Warn("staff alert rejected", append(fields, zap.Int("status", resp.StatusCode))...)
		return false
	}
	return true
}
