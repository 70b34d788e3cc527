package main

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/imkonsowa/taste-finder/events"
)

// Stats aggregates search-completed events in memory.
type Stats struct {
	mu        sync.Mutex
	total     int
	failed    int
	empty     int
	bySource  map[string]int
	foods     map[string]int
	locations map[string]int
	lastAt    time.Time
}

type Ranked struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type Summary struct {
	Total        int            `json:"total"`
	Failed       int            `json:"failed"`
	Empty        int            `json:"empty"`
	BySource     map[string]int `json:"by_source"`
	TopFoods     []Ranked       `json:"top_foods"`
	TopLocations []Ranked       `json:"top_locations"`
	LastAt       time.Time      `json:"last_at"`
}

func NewStats() *Stats {
	return &Stats{
		bySource:  make(map[string]int),
		foods:     make(map[string]int),
		locations: make(map[string]int),
	}
}

// Handle decodes one published event and records it.
func (s *Stats) Handle(_ context.Context, msg []byte) error {
	var evt events.SearchCompleted
	if err := json.Unmarshal(msg, &evt); err != nil {
		return fmt.Errorf("failed to decode search event: %w", err)
	}

	s.Record(evt)

	return nil
}

func (s *Stats) Record(evt events.SearchCompleted) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.bySource[evt.Source]++

	switch {
	case evt.Status == events.StatusFailed:
		s.failed++
	case evt.Results == 0:
		s.empty++
	}

	if food := normalize(evt.Query.Food); food != "" {
		s.foods[food]++
	}
	if location := normalize(evt.Query.Location); location != "" {
		s.locations[location]++
	}

	if evt.At.After(s.lastAt) {
		s.lastAt = evt.At
	}
}

func (s *Stats) Summary(n int) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySource := make(map[string]int, len(s.bySource))
	for k, v := range s.bySource {
		bySource[k] = v
	}

	return Summary{
		Total:        s.total,
		Failed:       s.failed,
		Empty:        s.empty,
		BySource:     bySource,
		TopFoods:     top(s.foods, n),
		TopLocations: top(s.locations, n),
		LastAt:       s.lastAt,
	}
}

func top(counts map[string]int, n int) []Ranked {
	ranked := make([]Ranked, 0, len(counts))
	for k, v := range counts {
		ranked = append(ranked, Ranked{Key: k, Count: v})
	}

	slices.SortFunc(ranked, func(a, b Ranked) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
