// internal/discovery/catalog/facets.go
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/iserafeim/heurekka-sub002/internal/models"
)

// facetLimit caps each facet dimension; the UI only renders the top
// entries anyway.
const facetLimit = 20

// Facets aggregates the matching set along its dimensions in a single
// round trip. Bounds are optional; when present the facets describe the
// viewport only.
func (s *Store) Facets(ctx context.Context, box *models.BoundingBox, q models.SearchQuery) (*models.FacetSummary, error) {
	defer observe("facets")()

	where, args := filterClauses(q)
	if box != nil {
		where, args = boundsClauses(where, args, *box)
	}

	query := fmt.Sprintf(`
		WITH matching AS (
			SELECT neighborhood, property_type, price_amount, amenities
			FROM properties
			WHERE %s
		)
		SELECT 'neighborhood' AS facet, neighborhood AS value, COUNT(*) AS cnt
		FROM matching WHERE neighborhood <> '' GROUP BY neighborhood
		UNION ALL
		SELECT 'type', property_type, COUNT(*) FROM matching GROUP BY property_type
		UNION ALL
		SELECT 'price', CASE
			WHEN price_amount < 5000 THEN '0-5000'
			WHEN price_amount < 10000 THEN '5000-10000'
			WHEN price_amount < 20000 THEN '10000-20000'
			WHEN price_amount < 40000 THEN '20000-40000'
			ELSE '40000+'
		END, COUNT(*) FROM matching GROUP BY 2
		UNION ALL
		SELECT 'amenity', amenity, COUNT(*)
		FROM (SELECT unnest(amenities) AS amenity FROM matching) a GROUP BY amenity`,
		strings.Join(where, " AND "))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("facet query: %w", err)
	}
	defer rows.Close()

	summary := &models.FacetSummary{
		Neighborhoods: []models.FacetCount{},
		PriceRanges:   []models.FacetCount{},
		PropertyTypes: []models.FacetCount{},
		Amenities:     []models.FacetCount{},
	}
	for rows.Next() {
		var facet, value string
		var count int
		if err := rows.Scan(&facet, &value, &count); err != nil {
			return nil, fmt.Errorf("facet scan: %w", err)
		}
		entry := models.FacetCount{Value: value, Count: count}
		switch facet {
		case "neighborhood":
			if len(summary.Neighborhoods) < facetLimit {
				summary.Neighborhoods = append(summary.Neighborhoods, entry)
			}
		case "type":
			summary.PropertyTypes = append(summary.PropertyTypes, entry)
		case "price":
			summary.PriceRanges = append(summary.PriceRanges, entry)
		case "amenity":
			if len(summary.Amenities) < facetLimit {
				summary.Amenities = append(summary.Amenities, entry)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facet rows: %w", err)
	}
	return summary, nil
}
