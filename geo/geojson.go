package geo

import (
	"github.com/imkonsowa/taste-finder/models"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

func Point(c models.Coordinates) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Longitude, c.Latitude})
}

// FeatureCollection renders restaurants as map points. Records without coordinates are skipped.
func FeatureCollection(restaurants []models.Restaurant) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(restaurants)),
	}

	for _, r := range restaurants {
		if r.Coordinates.Latitude == 0 && r.Coordinates.Longitude == 0 {
			continue
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       r.ID,
			Geometry: Point(r.Coordinates),
			Properties: map[string]interface{}{
				"name":         r.Name,
				"rating":       r.Rating,
				"review_count": r.ReviewCount,
				"price":        r.Price,
				"url":          r.URL,
				"categories":   r.CategoryTitles(),
				"address":      r.Location.DisplayAddress,
			},
		})
	}

	return fc
}
