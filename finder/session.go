package finder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/imkonsowa/taste-finder/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"
)

type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseAwaitingCompletion Phase = "awaiting_completion"
	PhaseAwaitingSearch     Phase = "awaiting_search"
	PhaseFailed             Phase = "failed"
)

type SearchStatus string

const (
	SearchNone         SearchStatus = "none"
	SearchSearching    SearchStatus = "searching"
	SearchResultsReady SearchStatus = "results_ready"
	SearchFailed       SearchStatus = "search_failed"
)

// Session is one browser session: transcript, chat phase and the current result set.
// All fields behind mu; nothing is shared between sessions.
type Session struct {
	ID string

	mu       sync.Mutex
	greeting string
	history  *memory.ChatMessageHistory

	phase         Phase
	searchStatus  SearchStatus
	results       []models.Restaurant
	query         *models.QueryParams
	lastErr       string
	chatCollapsed bool

	// epoch changes on restart; chat results carrying an older epoch are dropped.
	epoch      uint64
	cancelChat context.CancelFunc

	// searchSeq identifies the latest search; older completions are dropped.
	searchSeq        uint64
	searchFromChat   bool
	prevSearchStatus SearchStatus
	prevQuery        *models.QueryParams

	touchedAt time.Time
}

type Snapshot struct {
	ID            string               `json:"id"`
	Phase         Phase                `json:"phase"`
	SearchStatus  SearchStatus         `json:"search_status"`
	Messages      []models.ChatMessage `json:"messages"`
	Restaurants   []models.Restaurant  `json:"restaurants"`
	NoResults     bool                 `json:"no_results"`
	Query         *models.QueryParams  `json:"query,omitempty"`
	Error         string               `json:"error,omitempty"`
	ChatCollapsed bool                 `json:"chat_collapsed"`
}

func NewSession(id, greeting string) *Session {
	s := &Session{
		ID:               id,
		greeting:         greeting,
		history:          memory.NewChatMessageHistory(),
		phase:            PhaseIdle,
		searchStatus:     SearchNone,
		prevSearchStatus: SearchNone,
		touchedAt:        time.Now(),
	}
	s.resetTranscriptLocked()

	return s
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

func (s *Session) SearchStatus() SearchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.searchStatus
}

func (s *Session) Transcript() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transcriptLocked()
}

// Restart clears the transcript back to the greeting. An in-flight chat request is
// cancelled and whatever it returns later is discarded; a chat search in flight gives way
// to the last settled search state. Form searches are left alone.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	if s.cancelChat != nil {
		s.cancelChat()
		s.cancelChat = nil
	}

	if s.searchStatus == SearchSearching && s.searchFromChat {
		s.searchSeq++
		s.searchStatus = s.prevSearchStatus
		s.query = s.prevQuery
		s.searchFromChat = false
	}

	s.resetTranscriptLocked()
	s.phase = PhaseIdle
	s.lastErr = ""
	s.chatCollapsed = false
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	if s.cancelChat != nil {
		s.cancelChat()
		s.cancelChat = nil
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.touchedAt = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return now.Sub(s.touchedAt), s.busyLocked()
}

// busyLocked reports whether a chat request or a search is in flight.
func (s *Session) busyLocked() bool {
	return s.phase == PhaseAwaitingCompletion || s.phase == PhaseAwaitingSearch || s.searchStatus == SearchSearching
}

func (s *Session) resetTranscriptLocked() {
	ctx := context.Background()
	if err := s.history.Clear(ctx); err != nil {
		slog.Warn("failed to clear transcript", "session", s.ID, "error", err)
	}
	if s.greeting != "" {
		if err := s.history.AddAIMessage(ctx, s.greeting); err != nil {
			slog.Warn("failed to add greeting", "session", s.ID, "error", err)
		}
	}
}

func (s *Session) appendLocked(m models.ChatMessage) {
	ctx := context.Background()

	var err error
	switch m.Role {
	case models.RoleUser:
		err = s.history.AddUserMessage(ctx, m.Content)
	case models.RoleSystem:
		err = s.history.AddMessage(ctx, llms.SystemChatMessage{Content: m.Content})
	default:
		err = s.history.AddAIMessage(ctx, m.Content)
	}
	if err != nil {
		slog.Warn("failed to append message", "session", s.ID, "error", err)
	}
}

func (s *Session) transcriptLocked() []models.ChatMessage {
	msgs, err := s.history.Messages(context.Background())
	if err != nil {
		slog.Warn("failed to read transcript", "session", s.ID, "error", err)
		return nil
	}

	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.ChatMessage{Role: roleOf(m.GetType()), Content: m.GetContent()})
	}

	return out
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:            s.ID,
		Phase:         s.phase,
		SearchStatus:  s.searchStatus,
		Messages:      s.transcriptLocked(),
		Restaurants:   append([]models.Restaurant(nil), s.results...),
		NoResults:     s.searchStatus == SearchResultsReady && len(s.results) == 0,
		Error:         s.lastErr,
		ChatCollapsed: s.chatCollapsed,
	}
	if s.query != nil {
		q := *s.query
		snap.Query = &q
	}

	return snap
}

// beginSearchLocked marks a new search as in flight and returns its sequence number.
// prevSearchStatus only ever holds a settled status.
func (s *Session) beginSearchLocked(params models.QueryParams, fromChat bool) uint64 {
	s.searchSeq++
	if s.searchStatus != SearchSearching {
		s.prevSearchStatus = s.searchStatus
		s.prevQuery = s.query
	}
	s.searchStatus = SearchSearching
	s.searchFromChat = fromChat
	s.query = &params
	s.lastErr = ""

	return s.searchSeq
}

// finishSearch applies a search outcome unless a newer search or a restart superseded it.
func (s *Session) finishSearch(seq uint64, resp *models.SearchResponse, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.searchSeq {
		return false
	}

	if s.searchFromChat {
		s.cancelChat = nil
	}

	if err != nil {
		s.searchStatus = SearchFailed
		s.results = nil
		s.lastErr = err.Error()
		if s.searchFromChat {
			s.phase = PhaseFailed
		}
		return true
	}

	s.results = resp.Businesses
	if s.results == nil {
		s.results = []models.Restaurant{}
	}
	s.searchStatus = SearchResultsReady
	if s.searchFromChat {
		s.phase = PhaseIdle
		s.chatCollapsed = true
	}

	return true
}

func roleOf(t llms.ChatMessageType) models.Role {
	switch t {
	case llms.ChatMessageTypeHuman:
		return models.RoleUser
	case llms.ChatMessageTypeSystem:
		return models.RoleSystem
	default:
		return models.RoleAssistant
	}
}
