// Package cluster turns raw grid-cell rows into the cluster points the
// map renders.
package cluster

import (
	"github.com/iserafeim/heurekka-sub002/internal/discovery/catalog"
	"github.com/iserafeim/heurekka-sub002/internal/models"
)

// Aggregator finalizes cluster rows: derives the mean price and caps
// the member id list so large cells stay payload-friendly.
type Aggregator struct {
	maxMemberIDs int
}

func New(maxMemberIDs int) *Aggregator {
	if maxMemberIDs <= 0 {
		maxMemberIDs = 25
	}
	return &Aggregator{maxMemberIDs: maxMemberIDs}
}

// Aggregate converts the store rows into response points. Rows with a
// zero count are dropped; they carry no renderable information.
func (a *Aggregator) Aggregate(rows []catalog.ClusterRow) []models.ClusterPoint {
	out := make([]models.ClusterPoint, 0, len(rows))
	for _, row := range rows {
		if row.Count <= 0 {
			continue
		}
		point := models.ClusterPoint{
			Lat:      row.Lat,
			Lng:      row.Lng,
			Count:    row.Count,
			MinPrice: row.MinPrice,
			AvgPrice: row.PriceSum / float64(row.Count),
			MaxPrice: row.MaxPrice,
		}
		ids := row.PropertyIDs
		if len(ids) > a.maxMemberIDs {
			ids = ids[:a.maxMemberIDs]
		}
		point.PropertyIDs = append([]string(nil), ids...)
		out = append(out, point)
	}
	return out
}
