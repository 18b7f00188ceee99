package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adboard/billing-engine/internal/apperrors"
	"github.com/adboard/billing-engine/internal/core/domain"
	portsrepo "github.com/adboard/billing-engine/internal/core/ports/repositories"
	"github.com/adboard/billing-engine/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxListingRepository provides listing reads and money-free state changes.
// Anything that moves money for a listing lives on PgxLedgerRepository.
type PgxListingRepository struct {
	BaseRepository
}

// NewListingRepository creates a new repository for listing data.
func NewListingRepository(pool *pgxpool.Pool) portsrepo.ListingRepositoryFacade {
	return &PgxListingRepository{BaseRepository{Pool: pool}}
}

var _ portsrepo.ListingRepositoryFacade = (*PgxListingRepository)(nil)

func toDomainListing(m models.Listing) domain.Listing {
	return domain.Listing{
		ListingID:     m.ListingID,
		AccountID:     m.AccountID,
		IsActive:      m.IsActive,
		LastChargedAt: m.LastChargedAt,
		BoostUntil:    m.BoostUntil,
		CreatedAt:     m.CreatedAt,
		LastUpdatedAt: m.LastUpdatedAt,
	}
}

// FindListingByID retrieves a listing by its ID.
func (r *PgxListingRepository) FindListingByID(ctx context.Context, listingID string) (*domain.Listing, error) {
	query := `
		SELECT listing_id, account_id, is_active, last_charged_at, boost_until, created_at, last_updated_at
		FROM listings
		WHERE listing_id = $1;
	`
	var m models.Listing
	err := r.Pool.QueryRow(ctx, query, listingID).Scan(
		&m.ListingID, &m.AccountID, &m.IsActive, &m.LastChargedAt, &m.BoostUntil, &m.CreatedAt, &m.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find listing %s: %w", listingID, err)
	}
	listing := toDomainListing(m)
	return &listing, nil
}

// ListActiveListingsDueForCharge returns active listings whose recurring
// window has elapsed, oldest anchor first.
func (r *PgxListingRepository) ListActiveListingsDueForCharge(ctx context.Context, cutoff time.Time) ([]domain.Listing, error) {
	query := `
		SELECT listing_id, account_id, is_active, last_charged_at, boost_until, created_at, last_updated_at
		FROM listings
		WHERE is_active = TRUE AND last_charged_at IS NOT NULL AND last_charged_at <= $1
		ORDER BY last_charged_at ASC;
	`
	rows, err := r.Pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings due for charge: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var m models.Listing
		if err := rows.Scan(&m.ListingID, &m.AccountID, &m.IsActive, &m.LastChargedAt, &m.BoostUntil, &m.CreatedAt, &m.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, toDomainListing(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listing rows: %w", err)
	}
	return listings, nil
}

// SetListingActive flips is_active without touching last_charged_at, so a
// paid window outlives deactivation.
func (r *PgxListingRepository) SetListingActive(ctx context.Context, listingID string, active bool, now time.Time) error {
	query := `
		UPDATE listings
		SET is_active = $2, last_updated_at = $3
		WHERE listing_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query, listingID, active, now)
	if err != nil {
		return fmt.Errorf("failed to update listing %s: %w", listingID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: listing %s", apperrors.ErrNotFound, listingID)
	}
	return nil
}
