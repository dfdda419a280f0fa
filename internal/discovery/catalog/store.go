// Package catalog adapts the discovery service's query strategies onto
// the Postgres property catalog. Exactly one strategy runs per logical
// search; every execution error surfaces as a plain error for the
// orchestrator to wrap.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iserafeim/heurekka-sub002/internal/common/database"
	"github.com/iserafeim/heurekka-sub002/internal/common/logger"
	"github.com/iserafeim/heurekka-sub002/internal/common/metrics"
	"github.com/iserafeim/heurekka-sub002/internal/models"

	"github.com/lib/pq"
)

// SearchPage is one page of a paginated strategy plus the total match
// count for the whole filter set.
type SearchPage struct {
	Properties []models.PropertyRecord
	Total      int
}

// Store executes catalog queries against Postgres.
type Store struct {
	db  *database.PostgresClient
	log logger.Logger
}

// New creates a Store over an existing Postgres client.
func New(db *database.PostgresClient, log logger.Logger) *Store {
	return &Store{
		db:  db,
		log: log.WithFields(map[string]interface{}{"component": "catalog"}),
	}
}

// Search runs the filtered-search strategy: predicates, optional
// free-text match, requested sort, offset pagination. Total comes from a
// window count so one round trip serves the whole page.
func (s *Store) Search(ctx context.Context, q models.SearchQuery, offset int) (*SearchPage, error) {
	defer observe("search")()

	where, args := filterClauses(q)
	args = append(args, q.Limit, offset)

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM properties
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		propertyColumns, strings.Join(where, " AND "), orderClause(q.Sort), len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filtered search: %w", err)
	}
	defer rows.Close()

	return scanPage(rows)
}

// SearchBounds runs the bounding-box strategy with the same filter set.
func (s *Store) SearchBounds(ctx context.Context, box models.BoundingBox, q models.SearchQuery) (*SearchPage, error) {
	defer observe("bounds")()

	where, args := filterClauses(q)
	where, args = boundsClauses(where, args, box)
	args = append(args, q.Limit)

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM properties
		WHERE %s
		ORDER BY %s
		LIMIT $%d`,
		propertyColumns, strings.Join(where, " AND "), orderClause(q.Sort), len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bounds search: %w", err)
	}
	defer rows.Close()

	return scanPage(rows)
}

// SearchNearby runs the radius strategy: haversine distance from the
// center, ordered nearest first, capped at the query limit. No cursor;
// the capped list is the complete response.
func (s *Store) SearchNearby(ctx context.Context, center models.Coordinates, radiusKm float64, q models.SearchQuery) ([]models.PropertyRecord, error) {
	defer observe("nearby")()

	where, args := filterClauses(q)
	where = append(where, "latitude IS NOT NULL", "longitude IS NOT NULL")

	latArg := len(args) + 1
	lngArg := len(args) + 2
	args = append(args, center.Lat, center.Lng)

	distance := fmt.Sprintf(
		"6371 * acos(least(1.0, cos(radians($%d)) * cos(radians(latitude)) * cos(radians(longitude) - radians($%d)) + sin(radians($%d)) * sin(radians(latitude))))",
		latArg, lngArg, latArg)

	args = append(args, radiusKm, q.Limit)

	query := fmt.Sprintf(`
		SELECT * FROM (
			SELECT %s, %s AS distance_km
			FROM properties
			WHERE %s
		) nearby
		WHERE distance_km <= $%d
		ORDER BY distance_km ASC
		LIMIT $%d`,
		propertyColumns, distance, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearby search: %w", err)
	}
	defer rows.Close()

	var out []models.PropertyRecord
	for rows.Next() {
		var distanceKm float64
		rec, err := scanProperty(rows, &distanceKm)
		if err != nil {
			return nil, fmt.Errorf("nearby search scan: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("nearby search rows: %w", err)
	}
	return out, nil
}

// GetByID fetches a single property. Returns (nil, nil) when no row
// matches so the orchestrator decides the not-found shape.
func (s *Store) GetByID(ctx context.Context, id string) (*models.PropertyRecord, error) {
	defer observe("get_by_id")()

	query := fmt.Sprintf(`SELECT %s FROM properties WHERE id = $1`, propertyColumns)

	row := s.db.QueryRow(ctx, query, id)
	rec, err := scanPropertyRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}
	return rec, nil
}

// FindSimilar matches on type, bedrooms within one, and price within 30
// percent of the reference record.
func (s *Store) FindSimilar(ctx context.Context, ref *models.PropertyRecord, limit int) ([]models.PropertyRecord, error) {
	defer observe("similar")()

	query := fmt.Sprintf(`
		SELECT %s
		FROM properties
		WHERE status = 'active'
		  AND id <> $1
		  AND property_type = $2
		  AND bedrooms BETWEEN $3 AND $4
		  AND price_amount BETWEEN $5 AND $6
		ORDER BY featured DESC, created_at DESC
		LIMIT $7`, propertyColumns)

	rows, err := s.db.Query(ctx, query,
		ref.ID, ref.Type,
		ref.Bedrooms-1, ref.Bedrooms+1,
		ref.Price.Amount*0.7, ref.Price.Amount*1.3,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("similar search: %w", err)
	}
	defer rows.Close()

	var out []models.PropertyRecord
	for rows.Next() {
		rec, err := scanProperty(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("similar search scan: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similar search rows: %w", err)
	}
	return out, nil
}

// filterClauses translates the shared filter set into WHERE fragments.
// The base status predicate keeps delisted records out of every strategy.
func filterClauses(q models.SearchQuery) ([]string, []interface{}) {
	where := []string{"status = 'active'"}
	var args []interface{}

	if q.PriceMin > 0 {
		args = append(args, q.PriceMin)
		where = append(where, fmt.Sprintf("price_amount >= $%d", len(args)))
	}
	if q.PriceMax > 0 {
		args = append(args, q.PriceMax)
		where = append(where, fmt.Sprintf("price_amount <= $%d", len(args)))
	}
	if len(q.Bedrooms) > 0 {
		args = append(args, pq.Array(q.Bedrooms))
		where = append(where, fmt.Sprintf("bedrooms = ANY($%d)", len(args)))
	}
	if len(q.PropertyTypes) > 0 {
		args = append(args, pq.Array(q.PropertyTypes))
		where = append(where, fmt.Sprintf("property_type = ANY($%d)", len(args)))
	}
	if len(q.Amenities) > 0 {
		args = append(args, pq.Array(q.Amenities))
		where = append(where, fmt.Sprintf("amenities @> $%d", len(args)))
	}
	if q.Location != "" {
		args = append(args, "%"+q.Location+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR neighborhood ILIKE $%d)", n, n, n))
	}

	return where, args
}

func boundsClauses(where []string, args []interface{}, box models.BoundingBox) ([]string, []interface{}) {
	args = append(args, box.South, box.North)
	where = append(where, fmt.Sprintf("latitude BETWEEN $%d AND $%d", len(args)-1, len(args)))
	args = append(args, box.West, box.East)
	where = append(where, fmt.Sprintf("longitude BETWEEN $%d AND $%d", len(args)-1, len(args)))
	return where, args
}

// orderClause maps a sort mode to its ORDER BY. Relevance puts featured
// listings first; creation time is the stable secondary key everywhere.
func orderClause(mode models.SortMode) string {
	switch mode {
	case models.SortPriceAsc:
		return "price_amount ASC, created_at DESC"
	case models.SortPriceDesc:
		return "price_amount DESC, created_at DESC"
	case models.SortRecency:
		return "created_at DESC"
	default:
		return "featured DESC, created_at DESC"
	}
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.CatalogQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
