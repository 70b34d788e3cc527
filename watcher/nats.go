package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/imkonsowa/taste-finder/config"
)

type Client struct {
	conn *nats.Conn
}

func NewNats(cfg config.Nats) (*Client, error) {
	nc, err := nats.Connect(cfg.ConnStr(), nats.Name("taste-finder-watcher"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &Client{conn: nc}, nil
}

func (c *Client) Close() {
	c.conn.Close()
}

// Subscribe feeds every message on subject into pool until ctx is done.
func (c *Client) Subscribe(ctx context.Context, subject string, pool *WorkerPool) error {
	msgs := make(chan *nats.Msg, 64)

	subscription, err := c.conn.ChanSubscribe(subject, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	slog.Info("subscribed", "subject", subject)

	for {
		select {
		case <-ctx.Done():
			if err := subscription.Unsubscribe(); err != nil {
				slog.Warn("failed to unsubscribe from subject", "subject", subject, "error", err)
			}

			return nil
		case msg := <-msgs:
			pool.Submit(ctx, msg.Data)
		}
	}
}
