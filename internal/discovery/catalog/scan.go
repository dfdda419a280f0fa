// internal/discovery/catalog/scan.go
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iserafeim/heurekka-sub002/internal/models"

	"github.com/lib/pq"
)

// propertyColumns is the canonical column list every property query
// selects, in scanProperty order.
const propertyColumns = `id, title, description, property_type,
	street_address, neighborhood, city, latitude, longitude,
	price_amount, price_currency, price_period,
	bedrooms, bathrooms, area_sqm, amenities, images,
	view_count, favorite_count, contact_count,
	contact_phone, whatsapp_number,
	landlord_id, landlord_name, landlord_phone, landlord_rating, landlord_verified,
	featured, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProperty reads one property row. extra receives trailing columns
// (window total, distance) when the query selects them; pass nil when
// the column list is exactly propertyColumns.
func scanProperty(row rowScanner, extra ...interface{}) (*models.PropertyRecord, error) {
	var rec models.PropertyRecord
	var street, contactPhone, whatsapp, landlordPhone sql.NullString
	var lat, lng sql.NullFloat64
	var imagesRaw []byte

	dest := []interface{}{
		&rec.ID, &rec.Title, &rec.Description, &rec.Type,
		&street, &rec.Neighborhood, &rec.City, &lat, &lng,
		&rec.Price.Amount, &rec.Price.Currency, &rec.Price.Period,
		&rec.Bedrooms, &rec.Bathrooms, &rec.AreaSqm,
		pq.Array(&rec.Amenities), &imagesRaw,
		&rec.ViewCount, &rec.FavoriteCount, &rec.ContactCount,
		&contactPhone, &whatsapp,
		&rec.Landlord.ID, &rec.Landlord.DisplayName, &landlordPhone,
		&rec.Landlord.Rating, &rec.Landlord.Verified,
		&rec.Featured, &rec.CreatedAt, &rec.UpdatedAt,
	}
	for _, e := range extra {
		if e != nil {
			dest = append(dest, e)
		}
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec.Address = street.String
	if lat.Valid && lng.Valid {
		rec.Coordinates = &models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	if contactPhone.Valid {
		rec.ContactPhone = &contactPhone.String
	}
	if whatsapp.Valid {
		rec.WhatsAppNumber = &whatsapp.String
	}
	if landlordPhone.Valid {
		rec.Landlord.Phone = &landlordPhone.String
	}

	if len(imagesRaw) > 0 {
		if err := json.Unmarshal(imagesRaw, &rec.Images); err != nil {
			return nil, fmt.Errorf("decode images for %s: %w", rec.ID, err)
		}
	}

	return &rec, nil
}

// scanPropertyRow adapts scanProperty to a single-row query.
func scanPropertyRow(row *sql.Row) (*models.PropertyRecord, error) {
	return scanProperty(row)
}

// scanPage reads the rows of a strategy that selects the window total as
// its trailing column.
func scanPage(rows *sql.Rows) (*SearchPage, error) {
	page := &SearchPage{}
	for rows.Next() {
		var total int
		rec, err := scanProperty(rows, &total)
		if err != nil {
			return nil, fmt.Errorf("scan property page: %w", err)
		}
		page.Properties = append(page.Properties, *rec)
		page.Total = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("property page rows: %w", err)
	}
	return page, nil
}
