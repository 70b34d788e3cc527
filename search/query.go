package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/imkonsowa/taste-finder/models"
)

const (
	DefaultLimit  = 5
	DefaultSortBy = "rating"
)

// PriceTiers turns "$".."$$$$" into the comma-joined tier list "1".."1,2,3,4",
// i.e. every tier at or below the requested one.
func PriceTiers(price string) (string, error) {
	if !models.ValidPrice(price) {
		return "", ErrInvalidPrice
	}

	tiers := make([]string, len(price))
	for i := range price {
		tiers[i] = strconv.Itoa(i + 1)
	}

	return strings.Join(tiers, ","), nil
}

// BuildQuery validates params and renders the businesses/search query.
// open_now is only emitted when true; false and unset are the same request.
func BuildQuery(params models.QueryParams, limit int, sortBy string) (url.Values, error) {
	if !params.Searchable() {
		return nil, ErrMissingParams
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if sortBy == "" {
		sortBy = DefaultSortBy
	}

	q := url.Values{}
	q.Set("term", strings.TrimSpace(params.Food))
	q.Set("location", strings.TrimSpace(params.Location))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort_by", sortBy)

	if params.Price != "" {
		tiers, err := PriceTiers(params.Price)
		if err != nil {
			return nil, err
		}
		q.Set("price", tiers)
	}

	if params.WantsOpenNow() {
		q.Set("open_now", "true")
	}

	if params.Radius != nil {
		q.Set("radius", strconv.Itoa(*params.Radius))
	}

	return q, nil
}
