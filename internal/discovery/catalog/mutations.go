// internal/discovery/catalog/mutations.go
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/iserafeim/heurekka-sub002/internal/models"

	"github.com/google/uuid"
)

// RecordView stores a view event and bumps the property's view counter
// atomically.
func (s *Store) RecordView(ctx context.Context, ev models.TrackingEvent) error {
	defer observe("record_view")()

	tx, err := s.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin view tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO property_views (id, property_id, source, user_id, session_id, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)`,
		uuid.NewString(), ev.PropertyID, ev.Source, ev.UserID, ev.SessionID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert view event: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE properties SET view_count = view_count + 1 WHERE id = $1`, ev.PropertyID)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}

	return tx.Commit()
}

// RecordContact stores a contact event and bumps the contact counter.
func (s *Store) RecordContact(ctx context.Context, ev models.TrackingEvent) error {
	defer observe("record_contact")()

	tx, err := s.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contact tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contact_events (id, property_id, source, user_id, session_id, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)`,
		uuid.NewString(), ev.PropertyID, ev.Source, ev.UserID, ev.SessionID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert contact event: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE properties SET contact_count = contact_count + 1 WHERE id = $1`, ev.PropertyID)
	if err != nil {
		return fmt.Errorf("increment contact count: %w", err)
	}

	return tx.Commit()
}

// ToggleFavorite flips the caller's favorite for a property and keeps
// the denormalized counter in step. Returns the new favorite state.
func (s *Store) ToggleFavorite(ctx context.Context, userID, propertyID string) (bool, error) {
	defer observe("toggle_favorite")()

	tx, err := s.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin favorite tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND property_id = $2`, userID, propertyID)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("favorite rows affected: %w", err)
	}

	isFavorite := deleted == 0
	if isFavorite {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO favorites (user_id, property_id, created_at)
			VALUES ($1, $2, $3)`,
			userID, propertyID, time.Now().UTC())
		if err != nil {
			return false, fmt.Errorf("insert favorite: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE properties SET favorite_count = favorite_count + 1 WHERE id = $1`, propertyID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE properties SET favorite_count = GREATEST(favorite_count - 1, 0) WHERE id = $1`, propertyID)
	}
	if err != nil {
		return false, fmt.Errorf("update favorite count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit favorite tx: %w", err)
	}
	return isFavorite, nil
}
