package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/imkonsowa/taste-finder/finder"
	"github.com/imkonsowa/taste-finder/models"
)

var errInvalidRequest = errors.New("invalid request")

type ChatRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

func (c *ChatRequest) Validate() error {
	if len(c.Messages) == 0 {
		return fmt.Errorf("%w: messages are required", errInvalidRequest)
	}

	for _, m := range c.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: unknown role %q", errInvalidRequest, m.Role)
		}
	}

	return nil
}

type ChatChoice struct {
	Message models.ChatMessage `json:"message"`
}

type ChatResponse struct {
	Choices []ChatChoice `json:"choices"`
}

type MessageRequest struct {
	Content string `json:"content"`
}

type SearchRequest struct {
	Food     string `json:"food" form:"food"`
	Location string `json:"location" form:"location"`
	Price    string `json:"price" form:"price"`
	OpenNow  string `json:"-" form:"open_now"`
	Radius   string `json:"-" form:"radius"`

	OpenNowFlag *bool `json:"open_now" form:"-"`
	RadiusMeter *int  `json:"radius" form:"-"`
}

// Params validates the request and converts it to search parameters.
func (r *SearchRequest) Params() (models.QueryParams, error) {
	params := models.QueryParams{
		Food:     strings.TrimSpace(r.Food),
		Location: strings.TrimSpace(r.Location),
		Price:    strings.TrimSpace(r.Price),
		OpenNow:  r.OpenNowFlag,
		Radius:   r.RadiusMeter,
	}

	if !params.Searchable() {
		return params, finder.ErrMissingFields
	}
	if params.Price != "" && !models.ValidPrice(params.Price) {
		return params, finder.ErrInvalidPrice
	}

	// anything but a true value leaves open_now off
	if open, err := strconv.ParseBool(r.OpenNow); err == nil {
		params.OpenNow = &open
	}

	if r.Radius != "" {
		radius, err := strconv.Atoi(r.Radius)
		if err != nil || radius <= 0 {
			return params, fmt.Errorf("%w: radius must be a positive number of meters", errInvalidRequest)
		}
		params.Radius = &radius
	}
	if params.Radius != nil && *params.Radius <= 0 {
		return params, fmt.Errorf("%w: radius must be a positive number of meters", errInvalidRequest)
	}

	return params, nil
}

// WebSocketsMessage is what the browser receives over the session socket.
type WebSocketsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
