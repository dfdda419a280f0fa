// internal/discovery/catalog/clusters.go
package catalog

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/iserafeim/heurekka-sub002/internal/models"

	"github.com/lib/pq"
)

// ClusterRow is one grid cell as returned by the clustering primitive.
// The aggregator turns rows into ClusterPoints (mean price, capped ids).
type ClusterRow struct {
	Lat         float64
	Lng         float64
	Count       int
	MinPrice    float64
	MaxPrice    float64
	PriceSum    float64
	PropertyIDs []string
}

// ClusterBounds groups the properties inside a viewport into grid cells
// sized for the zoom level. The merge-distance curve lives here, next to
// the indexed geometry; callers only hand in an integer zoom.
func (s *Store) ClusterBounds(ctx context.Context, box models.BoundingBox, zoom int, q models.SearchQuery) ([]ClusterRow, error) {
	defer observe("clusters")()

	where, args := filterClauses(q)
	where, args = boundsClauses(where, args, box)

	args = append(args, cellSizeDegrees(zoom))
	cell := len(args)

	query := fmt.Sprintf(`
		SELECT avg(latitude), avg(longitude), count(*),
		       min(price_amount), max(price_amount), sum(price_amount),
		       array_agg(id ORDER BY featured DESC, created_at DESC)
		FROM properties
		WHERE %s
		GROUP BY floor(latitude / $%d), floor(longitude / $%d)`,
		strings.Join(where, " AND "), cell, cell)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cluster query: %w", err)
	}
	defer rows.Close()

	var out []ClusterRow
	for rows.Next() {
		var row ClusterRow
		if err := rows.Scan(
			&row.Lat, &row.Lng, &row.Count,
			&row.MinPrice, &row.MaxPrice, &row.PriceSum,
			pq.Array(&row.PropertyIDs),
		); err != nil {
			return nil, fmt.Errorf("cluster scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cluster rows: %w", err)
	}
	return out, nil
}

// cellSizeDegrees halves the merge cell per zoom step, so zooming in
// splits clusters roughly the way map tiles do.
func cellSizeDegrees(zoom int) float64 {
	if zoom < 0 {
		zoom = 0
	}
	if zoom > 20 {
		zoom = 20
	}
	return 180 / math.Pow(2, float64(zoom))
}
