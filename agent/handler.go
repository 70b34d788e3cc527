package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imkonsowa/taste-finder/finder"
	"github.com/imkonsowa/taste-finder/geo"
	"github.com/imkonsowa/taste-finder/models"
)

var ErrSessionNotFound = errors.New("session not found")

type Handler struct {
	completer finder.Completer
	searcher  finder.Searcher
	finder    *finder.Finder
	sessions  *finder.Store
}

func NewHandler(completer finder.Completer, searcher finder.Searcher, f *finder.Finder, sessions *finder.Store) *Handler {
	return &Handler{
		completer: completer,
		searcher:  searcher,
		finder:    f,
		sessions:  sessions,
	}
}

// Chat forwards messages to the completion provider as they are.
func (h *Handler) Chat(ctx context.Context, messages []models.ChatMessage) (models.ChatMessage, error) {
	reply, err := h.completer.Complete(ctx, messages)
	if err != nil {
		return models.ChatMessage{}, err
	}

	return models.AssistantMessage(reply), nil
}

// SearchRestaurants returns the provider body untouched.
func (h *Handler) SearchRestaurants(ctx context.Context, params models.QueryParams) (json.RawMessage, error) {
	resp, err := h.searcher.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(resp.Raw) > 0 {
		return resp.Raw, nil
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search response: %w", err)
	}

	return raw, nil
}

func (h *Handler) CreateSession() finder.Snapshot {
	s := h.sessions.Create()
	slog.Info("session created", "session", s.ID, "active", h.sessions.Len())

	return s.Snapshot()
}

func (h *Handler) Session(id string) (*finder.Session, error) {
	s, ok := h.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	return s, nil
}

func (h *Handler) DeleteSession(id string) error {
	if !h.sessions.Delete(id) {
		return ErrSessionNotFound
	}

	return nil
}

// StreamMessage starts a chat flow whose progress is delivered on the returned channel.
func (h *Handler) StreamMessage(ctx context.Context, s *finder.Session, content string) (<-chan finder.Event, error) {
	return h.finder.Ask(ctx, s, content)
}

// SendMessage runs a chat flow to completion. The error is the first failure reported by the flow.
func (h *Handler) SendMessage(ctx context.Context, s *finder.Session, content string) (finder.Snapshot, error) {
	events, err := h.finder.Ask(ctx, s, content)
	if err != nil {
		return s.Snapshot(), err
	}

	var flowErr error
	for evt := range events {
		if evt.Type == finder.EventError && flowErr == nil {
			flowErr = evt.Err
		}
	}

	return s.Snapshot(), flowErr
}

func (h *Handler) SearchForm(ctx context.Context, s *finder.Session, params models.QueryParams) (finder.Snapshot, error) {
	return h.finder.Search(ctx, s, params)
}

func (h *Handler) Restart(s *finder.Session) finder.Snapshot {
	s.Restart()
	slog.Info("session restarted", "session", s.ID)

	return s.Snapshot()
}

// ResultsGeoJSON renders the session's current results as a GeoJSON feature collection.
func (h *Handler) ResultsGeoJSON(s *finder.Session) ([]byte, error) {
	fc := geo.FeatureCollection(s.Snapshot().Restaurants)

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}

	return data, nil
}
