package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imkonsowa/taste-finder/models"
)

const twoBusinesses = `{
  "businesses": [
    {
      "id": "b1", "name": "Lou Malnati's", "image_url": "https://img/1.jpg", "url": "https://yelp/b1",
      "review_count": 1200, "rating": 4.5, "price": "$$",
      "location": {"address1": "439 N Wells St", "city": "Chicago", "zip_code": "60654", "country": "US", "state": "IL",
                   "display_address": ["439 N Wells St", "Chicago, IL 60654"]},
      "categories": [{"alias": "pizza", "title": "Pizza"}],
      "coordinates": {"latitude": 41.89, "longitude": -87.63},
      "phone": "+13128289800", "display_phone": "(312) 828-9800"
    },
    {"id": "b2", "name": "Pequod's", "rating": 4.0, "categories": [], "coordinates": {"latitude": 41.92, "longitude": -87.66}}
  ],
  "total": 240,
  "region": {"center": {"latitude": 41.88, "longitude": -87.63}}
}`

func newTestServer(t *testing.T, status int, body string, seen *http.Request) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r.Clone(context.Background())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestClientSearch(t *testing.T) {
	var seen http.Request
	server := newTestServer(t, http.StatusOK, twoBusinesses, &seen)

	client := NewClient(server.URL, "yelp-key", WithHTTPClient(server.Client()))
	resp, err := client.Search(context.Background(), models.QueryParams{Food: "pizza", Location: "Chicago"})
	require.NoError(t, err)

	require.Equal(t, "/businesses/search", seen.URL.Path)
	require.Equal(t, "Bearer yelp-key", seen.Header.Get("Authorization"))
	q := seen.URL.Query()
	require.Equal(t, "pizza", q.Get("term"))
	require.Equal(t, "Chicago", q.Get("location"))
	require.Equal(t, "5", q.Get("limit"))
	require.Equal(t, "rating", q.Get("sort_by"))
	require.False(t, q.Has("price"))
	require.False(t, q.Has("open_now"))
	require.False(t, q.Has("radius"))

	require.Len(t, resp.Businesses, 2)
	require.Equal(t, 240, resp.Total)
	first := resp.Businesses[0]
	require.Equal(t, "Lou Malnati's", first.Name)
	require.Equal(t, 1200, first.ReviewCount)
	require.InDelta(t, 4.5, first.Rating, 1e-9)
	require.Equal(t, "Chicago", first.Location.City)
	require.Equal(t, []string{"Pizza"}, first.CategoryTitles())
	require.InDelta(t, -87.63, first.Coordinates.Longitude, 1e-9)
	require.JSONEq(t, twoBusinesses, string(resp.Raw))
}

func TestClientSearchWithModifiers(t *testing.T) {
	var seen http.Request
	server := newTestServer(t, http.StatusOK, `{"businesses": []}`, &seen)

	open := true
	client := NewClient(server.URL, "yelp-key", WithHTTPClient(server.Client()))
	resp, err := client.Search(context.Background(), models.QueryParams{Food: "sushi", Location: "LA", Price: "$$$", OpenNow: &open})
	require.NoError(t, err)
	require.Empty(t, resp.Businesses)
	require.NotNil(t, resp.Businesses)

	q := seen.URL.Query()
	require.Equal(t, "1,2,3", q.Get("price"))
	require.Equal(t, "true", q.Get("open_now"))
}

func TestClientSearchMissingCredential(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.Search(context.Background(), models.QueryParams{Food: "pizza", Location: "Chicago"})
	require.ErrorIs(t, err, ErrMissingCredential)
	require.Zero(t, calls.Load())
}

func TestClientSearchMissingParamsDoesNotCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, "yelp-key")
	_, err := client.Search(context.Background(), models.QueryParams{Food: "pizza"})
	require.ErrorIs(t, err, ErrMissingParams)
	require.Zero(t, calls.Load())
}

func TestClientSearchUpstreamStatus(t *testing.T) {
	server := newTestServer(t, http.StatusUnauthorized, `{"error":{"code":"TOKEN_INVALID"}}`, nil)

	client := NewClient(server.URL, "bad-key", WithHTTPClient(server.Client()))
	_, err := client.Search(context.Background(), models.QueryParams{Food: "pizza", Location: "Chicago"})
	require.ErrorIs(t, err, ErrSearchFailed)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	require.Contains(t, statusErr.Body, "TOKEN_INVALID")
	require.Contains(t, err.Error(), "401")
}

func TestClientSearchInvalidResponse(t *testing.T) {
	for name, body := range map[string]string{
		"missing key": `{"total": 0}`,
		"null":        `{"businesses": null}`,
		"object":      `{"businesses": {"id": "x"}}`,
		"not json":    `<html>oops</html>`,
	} {
		t.Run(name, func(t *testing.T) {
			server := newTestServer(t, http.StatusOK, body, nil)

			client := NewClient(server.URL, "yelp-key", WithHTTPClient(server.Client()))
			resp, err := client.Search(context.Background(), models.QueryParams{Food: "pizza", Location: "Chicago"})
			require.ErrorIs(t, err, ErrInvalidResponse)
			require.Nil(t, resp)
		})
	}
}

func TestClientSearchNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "yelp-key")
	_, err := client.Search(context.Background(), models.QueryParams{Food: "pizza", Location: "Chicago"})
	require.ErrorIs(t, err, ErrSearchFailed)
}
