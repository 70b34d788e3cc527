package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}

	return false
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// QueryParams is what a single search is run with. Food and Location are mandatory.
type QueryParams struct {
	Food     string `json:"food"`
	Location string `json:"location"`
	Price    string `json:"price,omitempty"`
	OpenNow  *bool  `json:"open_now,omitempty"`
	Radius   *int   `json:"radius,omitempty"`
}

func (q QueryParams) Searchable() bool {
	return strings.TrimSpace(q.Food) != "" && strings.TrimSpace(q.Location) != ""
}

func (q QueryParams) WantsOpenNow() bool {
	return q.OpenNow != nil && *q.OpenNow
}

// StructuredQuery is the object pulled out of a model reply.
type StructuredQuery struct {
	QueryParams
	Message string `json:"message,omitempty"`
}

type Category struct {
	Alias string `json:"alias"`
	Title string `json:"title"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Location struct {
	Address1       string   `json:"address1"`
	Address2       string   `json:"address2,omitempty"`
	Address3       string   `json:"address3,omitempty"`
	City           string   `json:"city"`
	ZipCode        string   `json:"zip_code"`
	Country        string   `json:"country"`
	State          string   `json:"state"`
	DisplayAddress []string `json:"display_address"`
}

type Restaurant struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	ImageURL     string      `json:"image_url"`
	URL          string      `json:"url"`
	ReviewCount  int         `json:"review_count"`
	Rating       float64     `json:"rating"`
	Price        string      `json:"price,omitempty"`
	Location     Location    `json:"location"`
	Categories   []Category  `json:"categories"`
	Coordinates  Coordinates `json:"coordinates"`
	Phone        string      `json:"phone"`
	DisplayPhone string      `json:"display_phone"`
	Distance     float64     `json:"distance,omitempty"`
}

func (r *Restaurant) CategoryTitles() []string {
	titles := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		titles = append(titles, c.Title)
	}

	return titles
}

func (r *Restaurant) Stringify() string {
	return fmt.Sprintf("Restaurant: %s, Rating: %.1f (%d reviews), Price: %s, Categories: %s, Address: %s",
		r.Name, r.Rating, r.ReviewCount, r.Price, strings.Join(r.CategoryTitles(), ", "), strings.Join(r.Location.DisplayAddress, ", "))
}

type Region struct {
	Center Coordinates `json:"center"`
}

type SearchResponse struct {
	Businesses []Restaurant `json:"businesses"`
	Total      int          `json:"total"`
	Region     Region       `json:"region"`

	// Raw is the upstream body as received.
	Raw json.RawMessage `json:"-"`
}

const MaxPriceTier = 4

// ValidPrice reports whether p is a tier written as one to four dollar signs.
func ValidPrice(p string) bool {
	if len(p) < 1 || len(p) > MaxPriceTier {
		return false
	}

	return strings.Trim(p, "$") == ""
}
