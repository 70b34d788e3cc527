package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imkonsowa/taste-finder/models"
)

func TestPrintResults(t *testing.T) {
	restaurants := []models.Restaurant{
		{ID: "a", Name: "Lou Malnati's", Rating: 4.5, URL: "https://example.com/lou",
			Coordinates: models.Coordinates{Latitude: 41.89, Longitude: -87.63}},
		{ID: "b", Name: "Pequod's", Rating: 4},
	}

	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, restaurants, false))
	require.Contains(t, buf.String(), "1. Lou Malnati's")
	require.Contains(t, buf.String(), "https://example.com/lou")
	require.Contains(t, buf.String(), "2. Pequod's")

	buf.Reset()
	require.NoError(t, printResults(&buf, nil, false))
	require.Contains(t, buf.String(), "No restaurants found")

	buf.Reset()
	require.NoError(t, printResults(&buf, restaurants, true))
	require.Contains(t, buf.String(), `"FeatureCollection"`)
	require.Contains(t, buf.String(), `"Lou Malnati's"`)
}

func TestSearchCommand(t *testing.T) {
	var price string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		price = r.URL.Query().Get("price")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"businesses": [{"id": "x", "name": "Slice Joint", "rating": 4.2}], "total": 1}`)
	}))
	defer server.Close()

	t.Setenv("YELP_API_KEY", "test-key")
	t.Setenv("YELP_BASEURL", server.URL)

	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf

	err := app.Run([]string{
		"tastefinder", "--config", filepath.Join(t.TempDir(), "none.yaml"),
		"search", "--food", "pizza", "--location", "Chicago", "--price", "$$",
	})
	require.NoError(t, err)
	require.Equal(t, "1,2", price)
	require.Contains(t, buf.String(), "1. Slice Joint")
}
