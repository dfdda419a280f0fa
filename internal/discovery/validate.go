package discovery

import (
	"fmt"
	"strings"

	"github.com/iserafeim/heurekka-sub002/internal/common/errors"
	"github.com/iserafeim/heurekka-sub002/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 50

	minRadiusKm = 0.1
	maxRadiusKm = 50.0

	// maxBoundsSpanDegrees rejects viewports that would sweep a whole
	// country into one query.
	maxBoundsSpanDegrees = 10.0

	minPrefixLen = 2
	maxPrefixLen = 100
)

// normalizeQuery validates a search query and fills defaults. It returns
// a copy; the caller's query is never mutated.
func normalizeQuery(q models.SearchQuery) (models.SearchQuery, error) {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	if q.PriceMin < 0 || q.PriceMax < 0 {
		return q, errors.NewValidationError("price bounds must be non-negative")
	}
	if q.PriceMin > 0 && q.PriceMax > 0 && q.PriceMin > q.PriceMax {
		return q, errors.NewValidationError(
			fmt.Sprintf("priceMin %v exceeds priceMax %v", q.PriceMin, q.PriceMax))
	}

	for _, b := range q.Bedrooms {
		if b < 0 {
			return q, errors.NewValidationError("bedrooms must be non-negative")
		}
	}

	if q.Sort == "" {
		q.Sort = models.SortRelevance
	}
	if !models.ValidSortModes[q.Sort] {
		return q, errors.NewValidationError(fmt.Sprintf("unknown sort mode %q", q.Sort))
	}

	if q.RadiusKm != 0 {
		if q.Coordinates == nil {
			return q, errors.NewValidationError("radius search requires coordinates")
		}
		if q.RadiusKm < minRadiusKm || q.RadiusKm > maxRadiusKm {
			return q, errors.NewValidationError(
				fmt.Sprintf("radiusKm must be between %v and %v", minRadiusKm, maxRadiusKm))
		}
	}
	if q.Coordinates != nil {
		if err := validateCoordinates(*q.Coordinates); err != nil {
			return q, err
		}
	}

	if q.BoundingBox != nil {
		if err := validateBounds(*q.BoundingBox); err != nil {
			return q, err
		}
	}

	q.Location = strings.TrimSpace(q.Location)

	return q, nil
}

func validateCoordinates(c models.Coordinates) error {
	if c.Lat < -90 || c.Lat > 90 {
		return errors.NewValidationError("latitude out of range")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return errors.NewValidationError("longitude out of range")
	}
	return nil
}

func validateBounds(box models.BoundingBox) error {
	if box.North <= box.South {
		return errors.NewValidationError("bounds north must exceed south")
	}
	if box.East <= box.West {
		return errors.NewValidationError("bounds east must exceed west")
	}
	if box.North-box.South > maxBoundsSpanDegrees || box.East-box.West > maxBoundsSpanDegrees {
		return errors.NewValidationError(
			fmt.Sprintf("bounds span exceeds %v degrees", maxBoundsSpanDegrees))
	}
	if box.North > 90 || box.South < -90 || box.East > 180 || box.West < -180 {
		return errors.NewValidationError("bounds outside valid coordinate range")
	}
	return nil
}
