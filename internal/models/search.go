// internal/models/search.go
package models

// SortMode selects the ordering of a filtered search.
type SortMode string

const (
	SortRelevance SortMode = "relevance"
	SortPriceAsc  SortMode = "price_asc"
	SortPriceDesc SortMode = "price_desc"
	SortRecency   SortMode = "recency"
	SortDistance  SortMode = "distance"
)

// ValidSortModes enumerates the accepted sort values.
var ValidSortModes = map[SortMode]bool{
	SortRelevance: true,
	SortPriceAsc:  true,
	SortPriceDesc: true,
	SortRecency:   true,
	SortDistance:  true,
}

// SearchQuery is the immutable search input. Exactly one query strategy
// is selected from it: radius when Coordinates+RadiusKm are set, bounding
// box for bounds/cluster requests, filtered search otherwise.
type SearchQuery struct {
	Location      string       `json:"location,omitempty"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
	BoundingBox   *BoundingBox `json:"boundingBox,omitempty"`
	RadiusKm      float64      `json:"radiusKm,omitempty"`
	PriceMin      float64      `json:"priceMin,omitempty"`
	PriceMax      float64      `json:"priceMax,omitempty"`
	Bedrooms      []int        `json:"bedrooms,omitempty"`
	PropertyTypes []string     `json:"propertyTypes,omitempty"`
	Amenities     []string     `json:"amenities,omitempty"`
	Sort          SortMode     `json:"sort,omitempty"`
	Cursor        string       `json:"cursor,omitempty"`
	Limit         int          `json:"limit,omitempty"`
}

// CallerContext is the resolved viewer identity. It is constructed per
// request from the external auth collaborator and never persisted.
type CallerContext struct {
	UserID          string
	IsAuthenticated bool
}

// IdentityClass returns the tag used in cache keys. Raw user ids never
// enter a key; only the auth/anon class does.
func (c CallerContext) IdentityClass() string {
	if c.IsAuthenticated {
		return "auth"
	}
	return "anon"
}

// FacetCount is one value/count pair of a facet dimension.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FacetSummary aggregates the result set along its main dimensions.
type FacetSummary struct {
	Neighborhoods []FacetCount `json:"neighborhoods"`
	PriceRanges   []FacetCount `json:"priceRanges"`
	PropertyTypes []FacetCount `json:"propertyTypes"`
	Amenities     []FacetCount `json:"amenities"`
}

// SearchResult is the uniform output of every search strategy.
type SearchResult struct {
	Properties []PropertyRecord `json:"properties"`
	Total      int              `json:"total"`
	Facets     FacetSummary     `json:"facets"`
	NextCursor *string          `json:"nextCursor"`
}

// BoundsResult is the output of a bounding-box query.
type BoundsResult struct {
	Properties []PropertyRecord `json:"properties"`
	Total      int              `json:"total"`
	Bounds     BoundingBox      `json:"bounds"`
}

// NearbyResult is the output of a radius query. Radius searches return a
// complete capped list; NextCursor does not apply.
type NearbyResult struct {
	Properties []PropertyRecord `json:"properties"`
	Total      int              `json:"total"`
	Center     Coordinates      `json:"center"`
	RadiusKm   float64          `json:"radiusKm"`
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Text     string `json:"text"`
	Category string `json:"category"` // location or property
}

// TrackingEvent carries the identifiers of a view/contact event.
type TrackingEvent struct {
	PropertyID string `json:"propertyId"`
	Source     string `json:"source"`
	UserID     string `json:"userId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}
