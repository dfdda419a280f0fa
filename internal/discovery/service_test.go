package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iserafeim/heurekka-sub002/internal/common/config"
	"github.com/iserafeim/heurekka-sub002/internal/common/database"
	svcerrors "github.com/iserafeim/heurekka-sub002/internal/common/errors"
	"github.com/iserafeim/heurekka-sub002/internal/common/logger"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cache"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cachekey"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/catalog"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/cluster"
	"github.com/iserafeim/heurekka-sub002/internal/discovery/visibility"
	"github.com/iserafeim/heurekka-sub002/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	searchCalls  int
	boundsCalls  int
	nearbyCalls  int
	detailCalls  int
	clusterCalls int
	similarCalls int

	page        *catalog.SearchPage
	searchErr   error
	nearby      []models.PropertyRecord
	nearbyErr   error
	record      *models.PropertyRecord
	recordErr   error
	similar     []models.PropertyRecord
	clusterRows []catalog.ClusterRow
	facets      *models.FacetSummary
	viewErr     error
	contactErr  error
	toggleState bool
	toggleErr   error
}

func (f *fakeCatalog) Search(_ context.Context, _ models.SearchQuery, _ int) (*catalog.SearchPage, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.page == nil {
		return &catalog.SearchPage{}, nil
	}
	return f.page, nil
}

func (f *fakeCatalog) SearchBounds(_ context.Context, _ models.BoundingBox, _ models.SearchQuery) (*catalog.SearchPage, error) {
	f.boundsCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.page == nil {
		return &catalog.SearchPage{}, nil
	}
	return f.page, nil
}

func (f *fakeCatalog) SearchNearby(_ context.Context, _ models.Coordinates, _ float64, _ models.SearchQuery) ([]models.PropertyRecord, error) {
	f.nearbyCalls++
	return f.nearby, f.nearbyErr
}

func (f *fakeCatalog) GetByID(_ context.Context, _ string) (*models.PropertyRecord, error) {
	f.detailCalls++
	return f.record, f.recordErr
}

func (f *fakeCatalog) FindSimilar(_ context.Context, _ *models.PropertyRecord, _ int) ([]models.PropertyRecord, error) {
	f.similarCalls++
	return f.similar, nil
}

func (f *fakeCatalog) ClusterBounds(_ context.Context, _ models.BoundingBox, _ int, _ models.SearchQuery) ([]catalog.ClusterRow, error) {
	f.clusterCalls++
	return f.clusterRows, nil
}

func (f *fakeCatalog) Facets(_ context.Context, _ *models.BoundingBox, _ models.SearchQuery) (*models.FacetSummary, error) {
	return f.facets, nil
}

func (f *fakeCatalog) RecordView(_ context.Context, _ models.TrackingEvent) error {
	return f.viewErr
}

func (f *fakeCatalog) RecordContact(_ context.Context, _ models.TrackingEvent) error {
	return f.contactErr
}

func (f *fakeCatalog) ToggleFavorite(_ context.Context, _, _ string) (bool, error) {
	if f.toggleErr != nil {
		return false, f.toggleErr
	}
	f.toggleState = !f.toggleState
	return f.toggleState, nil
}

type fakeSuggester struct {
	calls       int
	suggestions []models.Suggestion
}

func (f *fakeSuggester) Suggest(_ context.Context, _ string, _ int) []models.Suggestion {
	f.calls++
	return f.suggestions
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		KeyPrefix:     "heurekka",
		MaxValueBytes: 1 << 20,
		TTL: config.TTLConfig{
			Search:       5 * time.Minute,
			Detail:       60 * time.Minute,
			Bounds:       3 * time.Minute,
			Autocomplete: 24 * time.Hour,
			Facets:       10 * time.Minute,
			Clusters:     5 * time.Minute,
			Similar:      10 * time.Minute,
		},
	}
}

func newTestService(t *testing.T, cat Catalog, sug Suggester) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	log := logger.NewTestLogger(t)
	svc := NewService(
		cat,
		cache.New(rdb, testCacheConfig(), log),
		cachekey.New("heurekka"),
		visibility.New("Tegucigalpa"),
		cluster.New(25),
		sug,
		log,
	)
	return svc, mr
}

func testPhone(s string) *string { return &s }

func fullRecord(id string) models.PropertyRecord {
	return models.PropertyRecord{
		ID:             id,
		Neighborhood:   "Los Robles",
		City:           "Tegucigalpa",
		Address:        "Calle Principal 42",
		ContactPhone:   testPhone("+50499990000"),
		WhatsAppNumber: testPhone("+50499990000"),
		Landlord:       models.LandlordSummary{ID: "l1", Phone: testPhone("+50488880000")},
		Images: []models.PropertyImage{
			{URL: "1"}, {URL: "2"}, {URL: "3"}, {URL: "4"},
		},
	}
}

var authCaller = models.CallerContext{UserID: "user-1", IsAuthenticated: true}

func TestSearch_CachesByQueryShape(t *testing.T) {
	cat := &fakeCatalog{page: &catalog.SearchPage{
		Properties: []models.PropertyRecord{fullRecord("p1")},
		Total:      1,
	}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	q := models.SearchQuery{Location: "centro", PriceMax: 15000}

	first, err := svc.Search(context.Background(), q, authCaller)
	require.NoError(t, err)
	second, err := svc.Search(context.Background(), q, authCaller)
	require.NoError(t, err)

	assert.Equal(t, 1, cat.searchCalls)
	assert.Equal(t, first.Total, second.Total)
	require.Len(t, second.Properties, 1)
	assert.Equal(t, "p1", second.Properties[0].ID)
}

func TestSearch_IdentityClassesCacheSeparately(t *testing.T) {
	cat := &fakeCatalog{page: &catalog.SearchPage{
		Properties: []models.PropertyRecord{fullRecord("p1")},
		Total:      1,
	}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	q := models.SearchQuery{Location: "centro"}

	_, err := svc.Search(context.Background(), q, authCaller)
	require.NoError(t, err)
	anon, err := svc.Search(context.Background(), q, models.CallerContext{})
	require.NoError(t, err)

	assert.Equal(t, 2, cat.searchCalls)
	require.Len(t, anon.Properties, 1)
	assert.Nil(t, anon.Properties[0].ContactPhone)
	assert.Equal(t, "Los Robles, Tegucigalpa", anon.Properties[0].Address)
	assert.Len(t, anon.Properties[0].Images, 3)
}

func TestSearch_AnonymousCacheEntryIsRedacted(t *testing.T) {
	cat := &fakeCatalog{page: &catalog.SearchPage{
		Properties: []models.PropertyRecord{fullRecord("p1")},
		Total:      1,
	}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	anonCaller := models.CallerContext{}
	_, err := svc.Search(context.Background(), models.SearchQuery{}, anonCaller)
	require.NoError(t, err)

	cached, err := svc.Search(context.Background(), models.SearchQuery{}, anonCaller)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.searchCalls)
	require.Len(t, cached.Properties, 1)
	assert.Nil(t, cached.Properties[0].ContactPhone)
	assert.Nil(t, cached.Properties[0].Landlord.Phone)
	assert.Len(t, cached.Properties[0].Images, 3)
}

func TestSearch_CacheDownFailsOpen(t *testing.T) {
	cat := &fakeCatalog{page: &catalog.SearchPage{
		Properties: []models.PropertyRecord{fullRecord("p1")},
		Total:      1,
	}}
	svc, mr := newTestService(t, cat, &fakeSuggester{})
	mr.Close()

	for i := 0; i < 2; i++ {
		out, err := svc.Search(context.Background(), models.SearchQuery{}, authCaller)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Total)
	}
	assert.Equal(t, 2, cat.searchCalls)
}

func TestSearch_FullPageYieldsNextCursor(t *testing.T) {
	cat := &fakeCatalog{page: &catalog.SearchPage{
		Properties: []models.PropertyRecord{fullRecord("p1"), fullRecord("p2")},
		Total:      10,
	}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	out, err := svc.Search(context.Background(), models.SearchQuery{Limit: 2, Cursor: "4"}, authCaller)
	require.NoError(t, err)
	require.NotNil(t, out.NextCursor)
	assert.Equal(t, "6", *out.NextCursor)
}

func TestSearch_PartialPageEndsPagination(t *testing.T) {
	cat := &fakeCatalog{page: &catalog.SearchPage{
		Properties: []models.PropertyRecord{fullRecord("p1")},
		Total:      1,
	}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	out, err := svc.Search(context.Background(), models.SearchQuery{Limit: 20}, authCaller)
	require.NoError(t, err)
	assert.Nil(t, out.NextCursor)
}

func TestSearch_RadiusStrategyNeverPaginates(t *testing.T) {
	cat := &fakeCatalog{nearby: []models.PropertyRecord{fullRecord("p1"), fullRecord("p2")}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	out, err := svc.Search(context.Background(), models.SearchQuery{
		Coordinates: &models.Coordinates{Lat: 14.07, Lng: -87.19},
		RadiusKm:    5,
		Limit:       2,
	}, authCaller)

	require.NoError(t, err)
	assert.Equal(t, 1, cat.nearbyCalls)
	assert.Equal(t, 0, cat.searchCalls)
	assert.Nil(t, out.NextCursor)
	assert.Equal(t, 2, out.Total)
}

func TestSearch_ValidationFailures(t *testing.T) {
	svc, _ := newTestService(t, &fakeCatalog{}, &fakeSuggester{})

	cases := []struct {
		name string
		q    models.SearchQuery
	}{
		{"price range inverted", models.SearchQuery{PriceMin: 20000, PriceMax: 10000}},
		{"degenerate bounds", models.SearchQuery{BoundingBox: &models.BoundingBox{North: 14.1, South: 14.1, East: -87.0, West: -87.2}}},
		{"oversized bounds", models.SearchQuery{BoundingBox: &models.BoundingBox{North: 25, South: 10, East: -80, West: -95}}},
		{"radius too small", models.SearchQuery{Coordinates: &models.Coordinates{Lat: 14, Lng: -87}, RadiusKm: 0.05}},
		{"radius without center", models.SearchQuery{RadiusKm: 5}},
		{"unknown sort", models.SearchQuery{Sort: "alphabetical"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), tc.q, authCaller)
			assert.True(t, svcerrors.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestSearch_CatalogFailureSurfacesAsUnavailable(t *testing.T) {
	cat := &fakeCatalog{searchErr: errors.New("connection refused")}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	_, err := svc.Search(context.Background(), models.SearchQuery{}, authCaller)
	assert.Equal(t, svcerrors.ErrCodeSearchUnavailable, svcerrors.CodeOf(err))
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeCatalog{}, &fakeSuggester{})

	_, err := svc.GetByID(context.Background(), "missing", authCaller)
	assert.True(t, svcerrors.IsNotFound(err))
}

func TestGetByID_CachesProjectedRecord(t *testing.T) {
	rec := fullRecord("p1")
	cat := &fakeCatalog{record: &rec}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	anonCaller := models.CallerContext{}
	first, err := svc.GetByID(context.Background(), "p1", anonCaller)
	require.NoError(t, err)
	assert.Nil(t, first.ContactPhone)

	second, err := svc.GetByID(context.Background(), "p1", anonCaller)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.detailCalls)
	assert.Nil(t, second.ContactPhone)
	assert.Len(t, second.Images, 3)
}

func TestGetByBounds(t *testing.T) {
	cat := &fakeCatalog{page: &catalog.SearchPage{
		Properties: []models.PropertyRecord{fullRecord("p1")},
		Total:      1,
	}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	box := models.BoundingBox{North: 14.2, South: 14.0, East: -87.1, West: -87.3}
	out, err := svc.GetByBounds(context.Background(), box, models.SearchQuery{}, authCaller)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, box, out.Bounds)

	_, err = svc.GetByBounds(context.Background(), box, models.SearchQuery{}, authCaller)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.boundsCalls)
}

func TestGetClusters_AggregatesAndCaches(t *testing.T) {
	cat := &fakeCatalog{clusterRows: []catalog.ClusterRow{
		{Lat: 14.08, Lng: -87.19, Count: 4, MinPrice: 5000, MaxPrice: 15000, PriceSum: 40000,
			PropertyIDs: []string{"a", "b", "c", "d"}},
	}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	box := models.BoundingBox{North: 14.2, South: 14.0, East: -87.1, West: -87.3}
	points, err := svc.GetClusters(context.Background(), box, 12.7, models.SearchQuery{})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 10000.0, points[0].AvgPrice)

	// Fractional zoom floors into the key, so 12.0 reuses the entry.
	_, err = svc.GetClusters(context.Background(), box, 12.0, models.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, cat.clusterCalls)
}

func TestSearchNearby(t *testing.T) {
	cat := &fakeCatalog{nearby: []models.PropertyRecord{fullRecord("p1")}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	center := models.Coordinates{Lat: 14.07, Lng: -87.19}
	out, err := svc.SearchNearby(context.Background(), center, 5, models.SearchQuery{}, models.CallerContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, center, out.Center)
	assert.Nil(t, out.Properties[0].ContactPhone)
}

func TestAutocomplete(t *testing.T) {
	sug := &fakeSuggester{suggestions: []models.Suggestion{{Text: "Los Robles, Tegucigalpa", Category: "location"}}}
	svc, _ := newTestService(t, &fakeCatalog{}, sug)

	assert.Empty(t, svc.Autocomplete(context.Background(), "l", 10))
	assert.Equal(t, 0, sug.calls)

	out := svc.Autocomplete(context.Background(), "los", 10)
	require.Len(t, out, 1)

	svc.Autocomplete(context.Background(), "los", 10)
	assert.Equal(t, 1, sug.calls)
}

func TestGetSimilar(t *testing.T) {
	rec := fullRecord("p1")
	cat := &fakeCatalog{record: &rec, similar: []models.PropertyRecord{fullRecord("p2")}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	out, err := svc.GetSimilar(context.Background(), "p1", 0, models.CallerContext{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].ContactPhone)
}

func TestGetSimilar_CachesPerIdentityClass(t *testing.T) {
	rec := fullRecord("p1")
	cat := &fakeCatalog{record: &rec, similar: []models.PropertyRecord{fullRecord("p2")}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	_, err := svc.GetSimilar(context.Background(), "p1", 0, models.CallerContext{})
	require.NoError(t, err)
	cached, err := svc.GetSimilar(context.Background(), "p1", 0, models.CallerContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, cat.similarCalls)
	require.Len(t, cached, 1)
	assert.Nil(t, cached[0].ContactPhone)

	authed, err := svc.GetSimilar(context.Background(), "p1", 0, authCaller)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.similarCalls)
	require.Len(t, authed, 1)
	assert.NotNil(t, authed[0].ContactPhone)
}

func TestGetSimilar_InvalidatedWhenPropertyChanges(t *testing.T) {
	rec := fullRecord("p1")
	cat := &fakeCatalog{record: &rec, similar: []models.PropertyRecord{fullRecord("p2")}}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	_, err := svc.GetSimilar(context.Background(), "p1", 0, authCaller)
	require.NoError(t, err)

	_, err = svc.ToggleFavorite(context.Background(), "p1", authCaller)
	require.NoError(t, err)

	_, err = svc.GetSimilar(context.Background(), "p1", 0, authCaller)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.similarCalls)
}

func TestToggleFavorite_RequiresAuthentication(t *testing.T) {
	svc, _ := newTestService(t, &fakeCatalog{}, &fakeSuggester{})

	_, err := svc.ToggleFavorite(context.Background(), "p1", models.CallerContext{})
	assert.True(t, svcerrors.IsValidation(err))
}

func TestToggleFavorite_InvalidatesCachedViews(t *testing.T) {
	cat := &fakeCatalog{page: &catalog.SearchPage{
		Properties: []models.PropertyRecord{fullRecord("p1")},
		Total:      1,
	}}
	rec := fullRecord("p1")
	cat.record = &rec
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	_, err := svc.Search(context.Background(), models.SearchQuery{}, authCaller)
	require.NoError(t, err)
	_, err = svc.GetByID(context.Background(), "p1", authCaller)
	require.NoError(t, err)

	isFavorite, err := svc.ToggleFavorite(context.Background(), "p1", authCaller)
	require.NoError(t, err)
	assert.True(t, isFavorite)

	_, err = svc.Search(context.Background(), models.SearchQuery{}, authCaller)
	require.NoError(t, err)
	_, err = svc.GetByID(context.Background(), "p1", authCaller)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.searchCalls)
	assert.Equal(t, 2, cat.detailCalls)
}

func TestTrackView_InvalidatesCachedDetail(t *testing.T) {
	rec := fullRecord("p1")
	cat := &fakeCatalog{record: &rec}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	_, err := svc.GetByID(context.Background(), "p1", authCaller)
	require.NoError(t, err)

	stored := svc.TrackView(context.Background(), models.TrackingEvent{PropertyID: "p1", Source: "property_detail"})
	assert.True(t, stored)

	_, err = svc.GetByID(context.Background(), "p1", authCaller)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.detailCalls)
}

func TestTrackContact_InvalidatesCachedDetail(t *testing.T) {
	rec := fullRecord("p1")
	cat := &fakeCatalog{record: &rec}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	_, err := svc.GetByID(context.Background(), "p1", authCaller)
	require.NoError(t, err)

	stored := svc.TrackContact(context.Background(), models.TrackingEvent{PropertyID: "p1", Source: "property_detail"})
	assert.True(t, stored)

	_, err = svc.GetByID(context.Background(), "p1", authCaller)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.detailCalls)
}

func TestTracking_SwallowsFailures(t *testing.T) {
	cat := &fakeCatalog{viewErr: errors.New("insert failed")}
	svc, _ := newTestService(t, cat, &fakeSuggester{})

	ev := models.TrackingEvent{PropertyID: "p1", Source: "search_results"}
	assert.False(t, svc.TrackView(context.Background(), ev))
	assert.True(t, svc.TrackContact(context.Background(), ev))
	assert.False(t, svc.TrackView(context.Background(), models.TrackingEvent{}))
}

func TestGetSearchFacets_EmptyOnFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeCatalog{}, &fakeSuggester{})

	out, err := svc.GetSearchFacets(context.Background(), nil, models.SearchQuery{})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Empty(t, out.Neighborhoods)
	assert.Empty(t, out.Amenities)
}
