// Package visibility projects catalog records to what a caller is
// allowed to see. Authenticated callers get the full record; anonymous
// callers get a redacted view with coarse location and no direct
// contact channels.
package visibility

import (
	"github.com/iserafeim/heurekka-sub002/internal/models"
)

const maxAnonymousImages = 3

// Filter applies the identity-class projection.
type Filter struct {
	fallbackCity string
}

// New creates a Filter. fallbackCity stands in when a record carries
// neither a neighborhood nor a city.
func New(fallbackCity string) *Filter {
	return &Filter{fallbackCity: fallbackCity}
}

// Apply projects a single record for the caller. The input is never
// mutated; redacted views are deep enough copies that cached full
// records stay intact.
func (f *Filter) Apply(rec *models.PropertyRecord, caller models.CallerContext) *models.PropertyRecord {
	if rec == nil {
		return nil
	}
	if caller.IsAuthenticated {
		return rec
	}
	return f.redact(rec)
}

// ApplyAll projects a slice of records in place-order, returning a new
// slice for anonymous callers.
func (f *Filter) ApplyAll(recs []models.PropertyRecord, caller models.CallerContext) []models.PropertyRecord {
	if caller.IsAuthenticated || len(recs) == 0 {
		return recs
	}
	out := make([]models.PropertyRecord, len(recs))
	for i := range recs {
		out[i] = *f.redact(&recs[i])
	}
	return out
}

func (f *Filter) redact(rec *models.PropertyRecord) *models.PropertyRecord {
	cp := *rec

	cp.Address = f.coarseAddress(rec)
	cp.ContactPhone = nil
	cp.WhatsAppNumber = nil

	landlord := rec.Landlord
	landlord.Phone = nil
	cp.Landlord = landlord

	if len(rec.Images) > maxAnonymousImages {
		images := make([]models.PropertyImage, maxAnonymousImages)
		copy(images, rec.Images[:maxAnonymousImages])
		cp.Images = images
	}

	return &cp
}

// coarseAddress replaces the street address with "{neighborhood},
// {city}", degrading to whichever part exists and finally to the
// configured fallback city.
func (f *Filter) coarseAddress(rec *models.PropertyRecord) string {
	switch {
	case rec.Neighborhood != "" && rec.City != "":
		return rec.Neighborhood + ", " + rec.City
	case rec.Neighborhood != "":
		return rec.Neighborhood
	case rec.City != "":
		return rec.City
	default:
		return f.fallbackCity
	}
}
