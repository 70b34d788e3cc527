package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imkonsowa/taste-finder/config"
	"github.com/imkonsowa/taste-finder/models"
)

func TestNewPublisherDisabled(t *testing.T) {
	p, err := NewPublisher(config.Nats{Enabled: false})
	require.NoError(t, err)
	require.IsType(t, NopPublisher{}, p)
	require.NoError(t, p.PublishSearch(context.Background(), SearchCompleted{}))
	p.Close()
}

func TestNewPublisherUnreachable(t *testing.T) {
	_, err := NewPublisher(config.Nats{Enabled: true, Host: "127.0.0.1", Port: "1", Subject: "x"})
	require.Error(t, err)
}

func TestSearchCompletedPayload(t *testing.T) {
	open := true
	evt := SearchCompleted{
		SessionID: "s-1",
		Source:    SourceChat,
		Query:     models.QueryParams{Food: "sushi", Location: "LA", Price: "$$$", OpenNow: &open},
		Status:    StatusOK,
		Results:   5,
		At:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(evt)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"session_id": "s-1",
		"source": "chat",
		"query": {"food": "sushi", "location": "LA", "price": "$$$", "open_now": true},
		"status": "ok",
		"results": 5,
		"at": "2026-01-02T03:04:05Z"
	}`, string(data))
}
