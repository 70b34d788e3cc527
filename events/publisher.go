package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/imkonsowa/taste-finder/config"
	"github.com/imkonsowa/taste-finder/models"
	"github.com/nats-io/nats.go"
)

const (
	SourceChat = "chat"
	SourceForm = "form"

	StatusOK     = "ok"
	StatusFailed = "failed"
)

// SearchCompleted is emitted once per finished search.
type SearchCompleted struct {
	SessionID string             `json:"session_id"`
	Source    string             `json:"source"`
	Query     models.QueryParams `json:"query"`
	Status    string             `json:"status"`
	Results   int                `json:"results"`
	Error     string             `json:"error,omitempty"`
	At        time.Time          `json:"at"`
}

type Publisher interface {
	PublishSearch(ctx context.Context, evt SearchCompleted) error
	Close()
}

type NopPublisher struct{}

func (NopPublisher) PublishSearch(context.Context, SearchCompleted) error { return nil }
func (NopPublisher) Close()                                              {}

// NatsPublisher fires core NATS messages. Nothing is retained server side.
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewPublisher(cfg config.Nats) (Publisher, error) {
	if !cfg.Enabled {
		return NopPublisher{}, nil
	}

	nc, err := nats.Connect(cfg.ConnStr(), nats.Name("taste-finder"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	slog.Info("publishing search events", "subject", cfg.Subject)

	return &NatsPublisher{conn: nc, subject: cfg.Subject}, nil
}

func (p *NatsPublisher) PublishSearch(_ context.Context, evt SearchCompleted) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal search event: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish search event: %w", err)
	}

	return nil
}

func (p *NatsPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		slog.Warn("failed to drain nats connection", "error", err)
		p.conn.Close()
	}
}
