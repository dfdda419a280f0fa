// internal/models/property.go
package models

import "time"

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox is a rectangular geographic region in degrees.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Price is the listing price of a property.
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Period   string  `json:"period"` // monthly, weekly, daily
}

// PropertyImage is one entry of a property's ordered image list.
type PropertyImage struct {
	URL     string `json:"url"`
	Primary bool   `json:"primary"`
}

// LandlordSummary is the landlord block embedded in a property record.
// Phone is a pointer so anonymous projections can omit it entirely.
type LandlordSummary struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Phone       *string `json:"phone,omitempty"`
	Rating      float64 `json:"rating"`
	Verified    bool    `json:"verified"`
}

// PropertyRecord is the canonical property entity as read from the
// catalog store. The discovery service only transforms it; the catalog
// owns it.
type PropertyRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`

	Address      string       `json:"address"`
	Neighborhood string       `json:"neighborhood"`
	City         string       `json:"city"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`

	Price     Price    `json:"price"`
	Bedrooms  int      `json:"bedrooms"`
	Bathrooms int      `json:"bathrooms"`
	AreaSqm   float64  `json:"areaSqm"`
	Amenities []string `json:"amenities"`

	Images []PropertyImage `json:"images"`

	ViewCount     int `json:"viewCount"`
	FavoriteCount int `json:"favoriteCount"`
	ContactCount  int `json:"contactCount"`

	ContactPhone   *string `json:"contactPhone,omitempty"`
	WhatsAppNumber *string `json:"whatsappNumber,omitempty"`

	Landlord LandlordSummary `json:"landlord"`

	Featured  bool      `json:"featured"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClusterPoint is an aggregated map marker for a viewport/zoom pair.
// Computed per request, never persisted.
type ClusterPoint struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Count       int      `json:"count"`
	MinPrice    float64  `json:"minPrice"`
	AvgPrice    float64  `json:"avgPrice"`
	MaxPrice    float64  `json:"maxPrice"`
	PropertyIDs []string `json:"propertyIds"`
}
