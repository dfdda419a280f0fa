// Package discovery orchestrates property search: cache lookups, query
// strategy selection, visibility projection, and the ancillary
// operations (detail, clusters, autocomplete, tracking).
package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/iserafeim/heurekka-sub002/internal/common/errors"
	"github.com/iserafeim/heurekka-sub002/internal/common/logger"
	"github.com/iserafeim/heurekka-sub002/internal/common/metrics"
	"github.com/iserafeim/heurekka-sub002/internal/common/observability"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cache"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cachekey"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/catalog"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cluster"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cursor"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/visibility"
	"github.com/iserafeim/heurekka-sub002/internal/models"

	"go.opentelemetry.io/otel/trace"
)

// Catalog is the store surface the orchestrator consumes.
type Catalog interface {
	Search(ctx context.Context, q models.SearchQuery, offset int) (*catalog.SearchPage, error)
	SearchBounds(ctx context.Context, box models.BoundingBox, q models.SearchQuery) (*catalog.SearchPage, error)
	SearchNearby(ctx context.Context, center models.Coordinates, radiusKm float64, q models.SearchQuery) ([]models.PropertyRecord, error)
	GetByID(ctx context.Context, id string) (*models.PropertyRecord, error)
	FindSimilar(ctx context.Context, ref *models.PropertyRecord, limit int) ([]models.PropertyRecord, error)
	ClusterBounds(ctx context.Context, box models.BoundingBox, zoom int, q models.SearchQuery) ([]catalog.ClusterRow, error)
	Facets(ctx context.Context, box *models.BoundingBox, q models.SearchQuery) (*models.FacetSummary, error)
	RecordView(ctx context.Context, ev models.TrackingEvent) error
	RecordContact(ctx context.Context, ev models.TrackingEvent) error
	ToggleFavorite(ctx context.Context, userID, propertyID string) (bool, error)
}

// Suggester serves autocomplete suggestions. Implementations never
// error; a failed lookup is an empty list.
type Suggester interface {
	Suggest(ctx context.Context, prefix string, limit int) []models.Suggestion
}

const (
	defaultSimilarLimit = 6
	maxSimilarLimit     = 12
)

// Service is the discovery orchestrator.
type Service struct {
	catalog    Catalog
	cache      *cache.ResultCache
	keys       *cachekey.Deriver
	visibility *visibility.Filter
	clusters   *cluster.Aggregator
	suggester  Suggester
	log        logger.Logger
	tracer     trace.Tracer
}

// NewService wires the orchestrator from its collaborators.
func NewService(
	cat Catalog,
	rc *cache.ResultCache,
	keys *cachekey.Deriver,
	vis *visibility.Filter,
	agg *cluster.Aggregator,
	sug Suggester,
	log logger.Logger,
) *Service {
	return &Service{
		catalog:    cat,
		cache:      rc,
		keys:       keys,
		visibility: vis,
		clusters:   agg,
		suggester:  sug,
		log:        log.WithFields(map[string]interface{}{"component": "discovery"}),
		tracer:     observability.Tracer("discovery"),
	}
}

// Search runs one of the three query strategies selected from the
// query: radius when coordinates and a radius are present, bounding box
// when a viewport is present, filtered search otherwise. Results are
// cached per identity class after projection, so a cache hit is already
// safe to return.
func (s *Service) Search(ctx context.Context, q models.SearchQuery, caller models.CallerContext) (*models.SearchResult, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	strategy := strategyFor(q)
	metrics.SearchesTotal.WithLabelValues(strategy).Inc()
	defer func(start time.Time) {
		metrics.SearchDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	}(time.Now())

	ctx, span := s.tracer.Start(ctx, "discovery.search")
	defer span.End()

	key := s.keys.Derive("search", caller.IdentityClass(), searchShape(q))

	var cached models.SearchResult
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	result := &models.SearchResult{Properties: []models.PropertyRecord{}}
	switch strategy {
	case "radius":
		list, err := s.catalog.SearchNearby(ctx, *q.Coordinates, q.RadiusKm, q)
		if err != nil {
			return nil, errors.NewSearchUnavailableError(err)
		}
		result.Properties = list
		result.Total = len(list)
		// The capped radius list is complete; no cursor.
	case "bounds":
		page, err := s.catalog.SearchBounds(ctx, *q.BoundingBox, q)
		if err != nil {
			return nil, errors.NewSearchUnavailableError(err)
		}
		result.Properties = page.Properties
		result.Total = page.Total
	default:
		offset := cursor.Decode(q.Cursor)
		page, err := s.catalog.Search(ctx, q, offset)
		if err != nil {
			return nil, errors.NewSearchUnavailableError(err)
		}
		result.Properties = page.Properties
		result.Total = page.Total
		if len(page.Properties) == q.Limit {
			next := cursor.Encode(offset + q.Limit)
			result.NextCursor = &next
		}
	}

	result.Facets = *s.facetsOrEmpty(ctx, q.BoundingBox, q)
	result.Properties = s.visibility.ApplyAll(result.Properties, caller)
	if result.Properties == nil {
		result.Properties = []models.PropertyRecord{}
	}

	s.cache.Set(ctx, key, result, cache.KindSearch)
	return result, nil
}

// GetByID fetches one property projected for the caller.
func (s *Service) GetByID(ctx context.Context, id string, caller models.CallerContext) (*models.PropertyRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewValidationError("property id is required")
	}

	ctx, span := s.tracer.Start(ctx, "discovery.get_by_id")
	defer span.End()

	key := s.detailKey(id, caller.IdentityClass())

	var cached models.PropertyRecord
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewSearchUnavailableError(err)
	}
	if rec == nil {
		return nil, errors.NewNotFoundError(id)
	}

	projected := s.visibility.Apply(rec, caller)
	s.cache.Set(ctx, key, projected, cache.KindDetail)
	return projected, nil
}

// GetByBounds returns all matching properties inside a viewport, capped
// at the query limit.
func (s *Service) GetByBounds(ctx context.Context, box models.BoundingBox, q models.SearchQuery, caller models.CallerContext) (*models.BoundsResult, error) {
	q.BoundingBox = &box
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "discovery.get_by_bounds")
	defer span.End()

	key := s.keys.Derive("bounds", caller.IdentityClass(), searchShape(q))

	var cached models.BoundsResult
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	page, err := s.catalog.SearchBounds(ctx, box, q)
	if err != nil {
		return nil, errors.NewSearchUnavailableError(err)
	}

	result := &models.BoundsResult{
		Properties: s.visibility.ApplyAll(page.Properties, caller),
		Total:      page.Total,
		Bounds:     box,
	}
	if result.Properties == nil {
		result.Properties = []models.PropertyRecord{}
	}

	s.cache.Set(ctx, key, result, cache.KindBounds)
	return result, nil
}

// GetClusters groups the viewport's properties into price-annotated map
// clusters. Cluster payloads carry no caller-sensitive fields, so the
// cache entry is shared across identity classes.
func (s *Service) GetClusters(ctx context.Context, box models.BoundingBox, zoom float64, q models.SearchQuery) ([]models.ClusterPoint, error) {
	q.BoundingBox = &box
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "discovery.get_clusters")
	defer span.End()

	z := cachekey.FloorZoom(zoom)
	shape := searchShape(q)
	shape["zoom"] = z
	key := s.keys.Derive("clusters", "", shape)

	var cached []models.ClusterPoint
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.catalog.ClusterBounds(ctx, box, z, q)
	if err != nil {
		return nil, errors.NewSearchUnavailableError(err)
	}

	points := s.clusters.Aggregate(rows)
	s.cache.Set(ctx, key, points, cache.KindClusters)
	return points, nil
}

// SearchNearby runs the radius strategy around a center point. The
// result is a complete capped list, never paginated.
func (s *Service) SearchNearby(ctx context.Context, center models.Coordinates, radiusKm float64, q models.SearchQuery, caller models.CallerContext) (*models.NearbyResult, error) {
	q.Coordinates = &center
	q.RadiusKm = radiusKm
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	if q.RadiusKm == 0 {
		return nil, errors.NewValidationError("radiusKm is required")
	}

	ctx, span := s.tracer.Start(ctx, "discovery.search_nearby")
	defer span.End()

	// Tagged so the nearby view never shares an entry with Search's
	// radius strategy, whose cached shape is a SearchResult.
	shape := searchShape(q)
	shape["view"] = "nearby"
	key := s.keys.Derive("search", caller.IdentityClass(), shape)

	var cached models.NearbyResult
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	list, err := s.catalog.SearchNearby(ctx, center, radiusKm, q)
	if err != nil {
		return nil, errors.NewSearchUnavailableError(err)
	}

	result := &models.NearbyResult{
		Properties: s.visibility.ApplyAll(list, caller),
		Total:      len(list),
		Center:     center,
		RadiusKm:   radiusKm,
	}
	if result.Properties == nil {
		result.Properties = []models.PropertyRecord{}
	}

	s.cache.Set(ctx, key, result, cache.KindSearch)
	return result, nil
}

// Autocomplete suggests locations and listings for a typed prefix.
// Failures and short prefixes both yield an empty list.
func (s *Service) Autocomplete(ctx context.Context, prefix string, limit int) []models.Suggestion {
	prefix = strings.TrimSpace(prefix)
	if len(prefix) < minPrefixLen {
		return []models.Suggestion{}
	}
	if len(prefix) > maxPrefixLen {
		prefix = prefix[:maxPrefixLen]
	}

	ctx, span := s.tracer.Start(ctx, "discovery.autocomplete")
	defer span.End()

	key := s.keys.Derive("autocomplete", "", map[string]interface{}{
		"q":     strings.ToLower(prefix),
		"limit": limit,
	})

	var cached []models.Suggestion
	if s.cache.Get(ctx, key, &cached) {
		return cached
	}

	out := s.suggester.Suggest(ctx, prefix, limit)
	if out == nil {
		out = []models.Suggestion{}
	}
	if len(out) > 0 {
		s.cache.Set(ctx, key, out, cache.KindAutocomplete)
	}
	return out
}

// GetSimilar returns listings comparable to a reference property,
// cached per identity class until the property changes.
func (s *Service) GetSimilar(ctx context.Context, id string, limit int, caller models.CallerContext) ([]models.PropertyRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewValidationError("property id is required")
	}
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}

	ctx, span := s.tracer.Start(ctx, "discovery.get_similar")
	defer span.End()

	key := s.keys.Derive("similar", caller.IdentityClass(), map[string]interface{}{
		"id":    id,
		"limit": limit,
	})

	var cached []models.PropertyRecord
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	ref, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewSearchUnavailableError(err)
	}
	if ref == nil {
		return nil, errors.NewNotFoundError(id)
	}

	list, err := s.catalog.FindSimilar(ctx, ref, limit)
	if err != nil {
		return nil, errors.NewSearchUnavailableError(err)
	}

	out := s.visibility.ApplyAll(list, caller)
	if out == nil {
		out = []models.PropertyRecord{}
	}
	s.cache.Set(ctx, key, out, cache.KindSimilar)
	return out, nil
}

// GetSearchFacets aggregates the matching set along its filter
// dimensions. A failed aggregation degrades to empty facets.
func (s *Service) GetSearchFacets(ctx context.Context, box *models.BoundingBox, q models.SearchQuery) (*models.FacetSummary, error) {
	if box != nil {
		q.BoundingBox = box
	}
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "discovery.facets")
	defer span.End()

	key := s.keys.Derive("facets", "", searchShape(q))

	var cached models.FacetSummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	summary := s.facetsOrEmpty(ctx, q.BoundingBox, q)
	s.cache.Set(ctx, key, summary, cache.KindFacets)
	return summary, nil
}

// ToggleFavorite flips the caller's favorite and invalidates cached
// views of the property.
func (s *Service) ToggleFavorite(ctx context.Context, propertyID string, caller models.CallerContext) (bool, error) {
	if !caller.IsAuthenticated || caller.UserID == "" {
		return false, errors.NewValidationError("favorites require an authenticated caller")
	}
	if strings.TrimSpace(propertyID) == "" {
		return false, errors.NewValidationError("property id is required")
	}

	ctx, span := s.tracer.Start(ctx, "discovery.toggle_favorite")
	defer span.End()

	isFavorite, err := s.catalog.ToggleFavorite(ctx, caller.UserID, propertyID)
	if err != nil {
		return false, errors.NewSearchUnavailableError(err)
	}

	s.invalidateProperty(ctx, propertyID)
	return isFavorite, nil
}

// TrackView records a property view. Tracking never fails a request:
// the return value reports whether the event was stored.
func (s *Service) TrackView(ctx context.Context, ev models.TrackingEvent) bool {
	if ev.PropertyID == "" {
		return false
	}
	if err := s.catalog.RecordView(ctx, ev); err != nil {
		metrics.TrackingFailures.WithLabelValues("view").Inc()
		s.log.WithError(err).Warn("view tracking failed", map[string]interface{}{
			"propertyId": ev.PropertyID,
		})
		return false
	}
	s.invalidateProperty(ctx, ev.PropertyID)
	return true
}

// TrackContact records a contact event with the same swallow-failures
// contract as TrackView.
func (s *Service) TrackContact(ctx context.Context, ev models.TrackingEvent) bool {
	if ev.PropertyID == "" {
		return false
	}
	if err := s.catalog.RecordContact(ctx, ev); err != nil {
		metrics.TrackingFailures.WithLabelValues("contact").Inc()
		s.log.WithError(err).Warn("contact tracking failed", map[string]interface{}{
			"propertyId": ev.PropertyID,
		})
		return false
	}
	s.invalidateProperty(ctx, ev.PropertyID)
	return true
}

// CacheHealthy reports result-cache reachability for health endpoints.
func (s *Service) CacheHealthy(ctx context.Context) bool {
	return s.cache.HealthCheck(ctx)
}

func (s *Service) facetsOrEmpty(ctx context.Context, box *models.BoundingBox, q models.SearchQuery) *models.FacetSummary {
	summary, err := s.catalog.Facets(ctx, box, q)
	if err != nil || summary == nil {
		if err != nil {
			s.log.WithError(err).Warn("facet aggregation failed", nil)
		}
		return &models.FacetSummary{
			Neighborhoods: []models.FacetCount{},
			PriceRanges:   []models.FacetCount{},
			PropertyTypes: []models.FacetCount{},
			Amenities:     []models.FacetCount{},
		}
	}
	return summary
}

// invalidateProperty drops the property's detail entries for both
// identity classes and clears every list namespace that may embed it.
func (s *Service) invalidateProperty(ctx context.Context, propertyID string) {
	s.cache.Delete(ctx,
		s.detailKey(propertyID, "auth"),
		s.detailKey(propertyID, "anon"),
	)
	s.cache.DeleteByPrefix(ctx,
		s.keys.Namespace("search"),
		s.keys.Namespace("bounds"),
		s.keys.Namespace("facets"),
		s.keys.Namespace("clusters"),
		s.keys.Namespace("similar"),
	)
}

func (s *Service) detailKey(propertyID, identityClass string) string {
	return s.keys.Derive("detail", identityClass, map[string]interface{}{"id": propertyID})
}

// strategyFor picks the query strategy. Radius wins over bounds when a
// query carries both.
func strategyFor(q models.SearchQuery) string {
	switch {
	case q.Coordinates != nil && q.RadiusKm > 0:
		return "radius"
	case q.BoundingBox != nil:
		return "bounds"
	default:
		return "filtered"
	}
}

// searchShape maps a normalized query to its cache-key shape. Zero
// values are omitted so explicit defaults and absent fields derive the
// same key; coordinates are rounded so near-identical viewports
// collapse.
func searchShape(q models.SearchQuery) map[string]interface{} {
	shape := map[string]interface{}{
		"sort":  string(q.Sort),
		"limit": q.Limit,
	}
	if q.Location != "" {
		shape["location"] = strings.ToLower(q.Location)
	}
	if q.Coordinates != nil {
		shape["lat"] = cachekey.RoundCoord(q.Coordinates.Lat)
		shape["lng"] = cachekey.RoundCoord(q.Coordinates.Lng)
	}
	if q.BoundingBox != nil {
		shape["bounds"] = map[string]interface{}{
			"n": cachekey.RoundCoord(q.BoundingBox.North),
			"s": cachekey.RoundCoord(q.BoundingBox.South),
			"e": cachekey.RoundCoord(q.BoundingBox.East),
			"w": cachekey.RoundCoord(q.BoundingBox.West),
		}
	}
	if q.RadiusKm > 0 {
		shape["radius"] = q.RadiusKm
	}
	if q.PriceMin > 0 {
		shape["priceMin"] = q.PriceMin
	}
	if q.PriceMax > 0 {
		shape["priceMax"] = q.PriceMax
	}
	if len(q.Bedrooms) > 0 {
		shape["bedrooms"] = q.Bedrooms
	}
	if len(q.PropertyTypes) > 0 {
		shape["types"] = q.PropertyTypes
	}
	if len(q.Amenities) > 0 {
		shape["amenities"] = q.Amenities
	}
	if q.Cursor != "" {
		shape["cursor"] = q.Cursor
	}
	return shape
}
