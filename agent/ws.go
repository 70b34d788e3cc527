package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/imkonsowa/taste-finder/finder"
)

// stream keeps a socket open for one session. Each client frame is a MessageRequest
// and every step of the resulting flow is pushed back as a WebSocketsMessage.
func (a *Agent) stream(ctx *gin.Context, s *finder.Session) {
	conn, err := a.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "session", s.ID, "error", err)
		return
	}
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx.Request.Context())
	defer cancel()

	var (
		writeMu sync.Mutex
		flows   sync.WaitGroup
	)
	defer flows.Wait()

	write := func(msg WebSocketsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()

		return conn.WriteJSON(msg)
	}

	if err := write(WebSocketsMessage{Type: finder.EventState, Data: s.Snapshot()}); err != nil {
		slog.Error("failed to write to ws connection", "session", s.ID, "error", err)
		return
	}

	for {
		var req MessageRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("ws read failed", "session", s.ID, "error", err)
			}
			cancel()
			return
		}

		events, err := a.handler.StreamMessage(connCtx, s, req.Content)
		if err != nil {
			if werr := write(WebSocketsMessage{Type: finder.EventError, Data: err.Error()}); werr != nil {
				slog.Error("failed to write to ws connection", "session", s.ID, "error", werr)
				return
			}
			continue
		}

		flows.Add(1)
		go func() {
			defer flows.Done()

			for evt := range events {
				if err := write(WebSocketsMessage{Type: evt.Type, Data: evt.Data}); err != nil {
					if !errors.Is(err, websocket.ErrCloseSent) {
						slog.Error("failed to write to ws connection", "session", s.ID, "error", err)
					}
					cancel()
					return
				}
			}
		}()
	}
}
