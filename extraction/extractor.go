// Package extraction pulls a structured restaurant query out of free-form model output.
//
// Extraction is best effort: a reply without a decodable object is a plain
// conversational answer, not an error.
package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/imkonsowa/taste-finder/models"
)

const (
	StrategyBrace  = "brace"
	StrategyFenced = "fenced"
	StrategyChain  = "chain"
)

var (
	bracePattern  = regexp.MustCompile(`(?s)\{.*\}`)
	fencedPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")
)

type Extractor interface {
	Extract(text string) (*models.StructuredQuery, bool)
}

// BraceExtractor decodes the greedy span from the first '{' to the last '}'.
type BraceExtractor struct{}

func (BraceExtractor) Extract(text string) (*models.StructuredQuery, bool) {
	span := bracePattern.FindString(text)
	if span == "" {
		return nil, false
	}

	return Decode(span)
}

// FencedExtractor only accepts an object inside a ``` fenced block.
type FencedExtractor struct{}

func (FencedExtractor) Extract(text string) (*models.StructuredQuery, bool) {
	match := fencedPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return nil, false
	}

	return Decode(match[1])
}

// Chain returns the first successful extraction.
type Chain []Extractor

func (c Chain) Extract(text string) (*models.StructuredQuery, bool) {
	for _, e := range c {
		if q, ok := e.Extract(text); ok {
			return q, true
		}
	}

	return nil, false
}

func New(strategy string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyBrace:
		return BraceExtractor{}, nil
	case StrategyFenced:
		return FencedExtractor{}, nil
	case StrategyChain:
		return Chain{FencedExtractor{}, BraceExtractor{}}, nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", strategy)
	}
}

// Decode reads a JSON object leniently. Optional fields of the wrong type are dropped.
func Decode(span string) (*models.StructuredQuery, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, false
	}

	q := &models.StructuredQuery{
		QueryParams: models.QueryParams{
			Food:     stringField(raw, "food"),
			Location: stringField(raw, "location"),
			OpenNow:  boolField(raw, "open_now"),
			Radius:   intField(raw, "radius"),
		},
		Message: stringField(raw, "message"),
	}

	if price := stringField(raw, "price"); models.ValidPrice(price) {
		q.Price = price
	}

	return q, true
}

// DisplayText is what the user sees for a model reply.
func DisplayText(raw string, q *models.StructuredQuery) string {
	if q != nil && q.Message != "" {
		return q.Message
	}

	return raw
}

func stringField(raw map[string]interface{}, key string) string {
	s, ok := raw[key].(string)
	if !ok {
		return ""
	}

	return strings.TrimSpace(s)
}

func boolField(raw map[string]interface{}, key string) *bool {
	switch v := raw[key].(type) {
	case bool:
		return &v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &b
	}

	return nil
}

func intField(raw map[string]interface{}, key string) *int {
	var f float64
	switch v := raw[key].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if f <= 0 || f > math.MaxInt32 || math.IsNaN(f) {
		return nil
	}

	n := int(math.Round(f))
	return &n
}
