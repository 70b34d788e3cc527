package finder

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/imkonsowa/taste-finder/events"
	"github.com/imkonsowa/taste-finder/extraction"
	"github.com/imkonsowa/taste-finder/models"
)

const (
	EventState       = "state"
	EventChat        = "chat"
	EventRestaurants = "restaurants"
	EventError       = "error"

	apologyMessage = "Sorry, I encountered an error. Please try again."
)

var (
	ErrBusy          = errors.New("a request is already in progress for this session")
	ErrEmptyInput    = errors.New("message is empty")
	ErrMissingFields = errors.New("please enter both food preference and location")
	ErrInvalidPrice  = errors.New("price must be between one and four '$' characters")
	ErrSuperseded    = errors.New("search was replaced by a newer request")
)

type Completer interface {
	Complete(ctx context.Context, history []models.ChatMessage) (string, error)
}

type Searcher interface {
	Search(ctx context.Context, params models.QueryParams) (*models.SearchResponse, error)
}

// Event is one step of a chat flow as seen by the client.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Err  error       `json:"-"`
}

type Finder struct {
	completer       Completer
	extractor       extraction.Extractor
	searcher        Searcher
	publisher       events.Publisher
	contextMessages int
}

type Option func(*Finder)

func WithPublisher(p events.Publisher) Option {
	return func(f *Finder) {
		f.publisher = p
	}
}

// WithContextMessages sets how many trailing transcript turns go to the completion endpoint.
func WithContextMessages(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.contextMessages = n
		}
	}
}

func New(completer Completer, extractor extraction.Extractor, searcher Searcher, opts ...Option) *Finder {
	f := &Finder{
		completer:       completer,
		extractor:       extractor,
		searcher:        searcher,
		publisher:       events.NopPublisher{},
		contextMessages: 1,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Ask appends the user's text and runs completion, extraction and, when the reply carries
// food and location, a search. Progress is streamed on the returned channel, which is
// closed when the flow ends.
func (f *Finder) Ask(ctx context.Context, s *Session, text string) (<-chan Event, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	if s.busyLocked() {
		s.mu.Unlock()
		return nil, ErrBusy
	}

	flowCtx, cancel := context.WithCancel(ctx)
	s.appendLocked(models.UserMessage(text))
	s.phase = PhaseAwaitingCompletion
	s.lastErr = ""
	s.chatCollapsed = false
	s.cancelChat = cancel
	epoch := s.epoch
	history := f.window(s.transcriptLocked())
	state := s.snapshotLocked()
	s.mu.Unlock()

	out := make(chan Event)

	go func() {
		defer close(out)
		defer cancel()

		send := func(evt Event) bool {
			select {
			case out <- evt:
				return true
			case <-flowCtx.Done():
				return false
			}
		}

		send(Event{Type: EventState, Data: state})

		reply, err := f.completer.Complete(flowCtx, history)
		if err != nil {
			slog.Error("completion failed", "session", s.ID, "error", err)

			snap, ok := f.failChat(s, epoch, err)
			if !ok {
				return
			}
			send(Event{Type: EventError, Data: err.Error(), Err: err})
			send(Event{Type: EventState, Data: snap})
			return
		}

		q, parsed := f.extractor.Extract(reply)
		display := extraction.DisplayText(reply, q)
		searchable := parsed && q.Searchable()

		seq, snap, ok := f.applyReply(s, epoch, display, q, searchable)
		if !ok {
			slog.Info("discarding stale completion", "session", s.ID)
			return
		}

		send(Event{Type: EventChat, Data: display})
		send(Event{Type: EventState, Data: snap})
		if !searchable {
			return
		}

		resp, err := f.searcher.Search(flowCtx, q.QueryParams)
		applied := s.finishSearch(seq, resp, err)
		if !applied {
			slog.Info("discarding stale search result", "session", s.ID)
			return
		}
		f.publish(flowCtx, s.ID, events.SourceChat, q.QueryParams, resp, err)

		if err != nil {
			slog.Error("search failed", "session", s.ID, "error", err)
			send(Event{Type: EventError, Data: err.Error(), Err: err})
		} else {
			send(Event{Type: EventRestaurants, Data: resp.Businesses})
		}
		send(Event{Type: EventState, Data: s.Snapshot()})
	}()

	return out, nil
}

// Search runs a form search with both fields filled in by the user. It is refused
// while a chat request or another search is in flight.
func (f *Finder) Search(ctx context.Context, s *Session, params models.QueryParams) (Snapshot, error) {
	if !params.Searchable() {
		return Snapshot{}, ErrMissingFields
	}
	if params.Price != "" && !models.ValidPrice(params.Price) {
		return Snapshot{}, ErrInvalidPrice
	}

	s.mu.Lock()
	if s.busyLocked() {
		s.mu.Unlock()
		return Snapshot{}, ErrBusy
	}
	seq := s.beginSearchLocked(params, false)
	s.mu.Unlock()

	resp, err := f.searcher.Search(ctx, params)
	if !s.finishSearch(seq, resp, err) {
		slog.Info("discarding stale search result", "session", s.ID)
		return s.Snapshot(), ErrSuperseded
	}
	f.publish(ctx, s.ID, events.SourceForm, params, resp, err)

	return s.Snapshot(), err
}

func (f *Finder) window(transcript []models.ChatMessage) []models.ChatMessage {
	if len(transcript) <= f.contextMessages {
		return transcript
	}

	return transcript[len(transcript)-f.contextMessages:]
}

func (f *Finder) failChat(s *Session, epoch uint64, err error) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return Snapshot{}, false
	}

	s.appendLocked(models.AssistantMessage(apologyMessage))
	s.phase = PhaseFailed
	s.lastErr = err.Error()
	s.cancelChat = nil

	return s.snapshotLocked(), true
}

func (f *Finder) applyReply(s *Session, epoch uint64, display string, q *models.StructuredQuery, searchable bool) (uint64, Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return 0, Snapshot{}, false
	}

	s.appendLocked(models.AssistantMessage(display))

	var seq uint64
	if searchable {
		s.phase = PhaseAwaitingSearch
		seq = s.beginSearchLocked(q.QueryParams, true)
	} else {
		s.phase = PhaseIdle
		s.cancelChat = nil
	}

	return seq, s.snapshotLocked(), true
}

func (f *Finder) publish(ctx context.Context, sessionID, source string, params models.QueryParams, resp *models.SearchResponse, err error) {
	evt := events.SearchCompleted{
		SessionID: sessionID,
		Source:    source,
		Query:     params,
		Status:    events.StatusOK,
		At:        time.Now().UTC(),
	}
	if err != nil {
		evt.Status = events.StatusFailed
		evt.Error = err.Error()
	} else if resp != nil {
		evt.Results = len(resp.Businesses)
	}

	if perr := f.publisher.PublishSearch(ctx, evt); perr != nil {
		slog.Warn("failed to publish search event", "session", sessionID, "error", perr)
	}
}
