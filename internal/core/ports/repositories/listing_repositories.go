package repositories

import (
	"context"
	"time"

	"github.com/adboard/billing-engine/internal/core/domain"
)

// ListingReader defines read operations for listing data.
type ListingReader interface {
	// FindListingByID retrieves a listing by its unique identifier.
	FindListingByID(ctx context.Context, listingID string) (*domain.Listing, error)

	// ListActiveListingsDueForCharge returns active listings whose
	// last_charged_at is at or before cutoff, oldest first.
	ListActiveListingsDueForCharge(ctx context.Context, cutoff time.Time) ([]domain.Listing, error)
}

// ListingWriter defines listing state changes that move no money.
type ListingWriter interface {
	// SetListingActive flips is_active without touching the charge anchor, so
	// a still-valid paid window survives deactivation.
	SetListingActive(ctx context.Context, listingID string, active bool, now time.Time) error
}

// ListingRepositoryFacade combines all listing repository operations.
type ListingRepositoryFacade interface {
	ListingReader
	ListingWriter
}
