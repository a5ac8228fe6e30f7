package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// SlogSink writes one structured log line per entry.
type SlogSink struct {
	Logger *slog.Logger
}

func (s *SlogSink) Record(e Entry) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("audit",
		"event", string(e.Event),
		"kind", e.Kind,
		"subject", e.Subject,
		"user", e.UserID,
		"by", e.ActedBy,
		"resource", e.ResourceType,
		"action", e.Action,
		"reason", e.Reason,
	)
}

// HTTPSink posts entries to an external audit service. Delivery is
// best-effort in a goroutine; failures are dropped silently so a dead
// sink cannot back-pressure authorization.
type HTTPSink struct {
	URL    string
	Client *http.Client
}

func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *HTTPSink) Record(e Entry) {
	if s.URL == "" {
		return
	}
	go func() {
		b, err := json.Marshal(e)
		if err != nil {
			return
		}
		resp, err := s.Client.Post(s.URL, "application/json", bytes.NewReader(b))
		if err != nil {
			return
		}
		resp.Body.Close()
	}()
}
