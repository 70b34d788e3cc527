package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/imkonsowa/taste-finder/completion"
	"github.com/imkonsowa/taste-finder/config"
	"github.com/imkonsowa/taste-finder/events"
	"github.com/imkonsowa/taste-finder/extraction"
	"github.com/imkonsowa/taste-finder/finder"
	"github.com/imkonsowa/taste-finder/search"
	"github.com/imkonsowa/taste-finder/telemetry"
)

const shutdownTimeout = 10 * time.Second

type Agent struct {
	config   *config.Config
	handler  *Handler
	upgrader websocket.Upgrader
}

func main() {
	cfg := config.LoadConfig()

	_, closeLog, err := telemetry.InitLogger(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatal(err)
	}
	defer shutdownTelemetry()

	llm, err := completion.NewModel(cfg.LLM)
	if err != nil {
		log.Fatal(err)
	}
	if llm == nil {
		slog.Warn("OPENAI_API_KEY is not set, chat requests will fail")
	}

	orchestratorOpts := []completion.Option{completion.WithTemperature(cfg.LLM.Temperature)}
	if cfg.LLM.Provider != "" {
		orchestratorOpts = append(orchestratorOpts, completion.WithProvider(cfg.LLM.Provider))
	}
	orchestrator := completion.NewOrchestrator(llm, orchestratorOpts...)

	extractor, err := extraction.New(cfg.Chat.Extraction)
	if err != nil {
		log.Fatal(err)
	}

	searcher := search.NewClientFromConfig(cfg.Yelp)
	if !searcher.Configured() {
		slog.Warn("YELP_API_KEY is not set, searches will fail")
	}

	publisher, err := events.NewPublisher(cfg.Nats)
	if err != nil {
		log.Fatal(err)
	}
	defer publisher.Close()

	f := finder.New(orchestrator, extractor, searcher,
		finder.WithPublisher(publisher),
		finder.WithContextMessages(cfg.Chat.ContextMessages),
	)
	sessions := finder.NewStore(cfg.Chat.Greeting, cfg.Session.TTL)

	agent := NewAgent(cfg, NewHandler(orchestrator, searcher, f, sessions))

	if err := agent.Run(ctx); err != nil {
		log.Fatalf("failed to run the agent: %v", err)
	}
}

func NewAgent(cfg *config.Config, handler *Handler) *Agent {
	return &Agent{
		config:   cfg,
		handler:  handler,
		upgrader: websocket.Upgrader{},
	}
}

// Run serves HTTP and sweeps idle sessions until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.Server.Address(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("agent listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.handler.sessions.Run(ctx, a.config.Session.SweepInterval)
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *Agent) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())

	r.StaticFile("/", filepath.Join(a.config.Server.StaticDir, "index.html"))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.POST("/chat", func(c *gin.Context) {
		var req ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Messages are required"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		reply, err := a.handler.Chat(c.Request.Context(), req.Messages)
		if err != nil {
			a.fail(c, err, "Error communicating with the completion provider")
			return
		}

		c.JSON(http.StatusOK, ChatResponse{Choices: []ChatChoice{{Message: reply}}})
	})

	api.GET("/restaurants", func(c *gin.Context) {
		var req SearchRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		params, err := req.Params()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		raw, err := a.handler.SearchRestaurants(c.Request.Context(), params)
		if err != nil {
			a.fail(c, err, "Failed to fetch restaurant data")
			return
		}

		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
	})

	sessions := api.Group("/sessions")

	sessions.POST("", func(c *gin.Context) {
		c.JSON(http.StatusCreated, a.handler.CreateSession())
	})

	sessions.GET("/:id", a.withSession(func(c *gin.Context, s *finder.Session) {
		c.JSON(http.StatusOK, s.Snapshot())
	}))

	sessions.DELETE("/:id", func(c *gin.Context) {
		if err := a.handler.DeleteSession(c.Param("id")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		c.Status(http.StatusNoContent)
	})

	sessions.POST("/:id/messages", a.withSession(func(c *gin.Context, s *finder.Session) {
		var req MessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		snap, err := a.handler.SendMessage(c.Request.Context(), s, req.Content)
		a.respondSnapshot(c, snap, err)
	}))

	sessions.POST("/:id/search", a.withSession(func(c *gin.Context, s *finder.Session) {
		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		params, err := req.Params()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		snap, err := a.handler.SearchForm(c.Request.Context(), s, params)
		a.respondSnapshot(c, snap, err)
	}))

	sessions.POST("/:id/restart", a.withSession(func(c *gin.Context, s *finder.Session) {
		c.JSON(http.StatusOK, a.handler.Restart(s))
	}))

	sessions.GET("/:id/results.geojson", a.withSession(func(c *gin.Context, s *finder.Session) {
		data, err := a.handler.ResultsGeoJSON(s)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Data(http.StatusOK, "application/geo+json", data)
	}))

	sessions.GET("/:id/ws", a.withSession(a.stream))

	return r
}

func (a *Agent) withSession(next func(c *gin.Context, s *finder.Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := a.handler.Session(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		next(c, s)
	}
}

func (a *Agent) respondSnapshot(c *gin.Context, snap finder.Snapshot, err error) {
	if err == nil {
		c.JSON(http.StatusOK, snap)
		return
	}

	status := statusFor(err)
	if status == http.StatusBadRequest || status == http.StatusConflict {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(status, gin.H{"error": err.Error(), "session": snap})
}

// fail writes the error body used by the provider proxies.
func (a *Agent) fail(c *gin.Context, err error, upstreamMsg string) {
	status := statusFor(err)
	if status != http.StatusBadGateway {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	slog.Error(upstreamMsg, "request_id", c.GetString(requestIDKey), "error", err)
	c.JSON(status, gin.H{"error": upstreamMsg, "details": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, finder.ErrBusy),
		errors.Is(err, finder.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, finder.ErrEmptyInput),
		errors.Is(err, finder.ErrMissingFields),
		errors.Is(err, finder.ErrInvalidPrice),
		errors.Is(err, search.ErrMissingParams),
		errors.Is(err, search.ErrInvalidPrice),
		errors.Is(err, completion.ErrNoMessages),
		errors.Is(err, completion.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, completion.ErrMissingCredential),
		errors.Is(err, search.ErrMissingCredential):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
