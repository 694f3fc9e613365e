package repository

import (
	"context"

	"github.com/thriftkids/marketplace/internal/listing"
)

// Repository is the record store for listings. Records are append-only:
// there is no update or delete.
type Repository interface {
	// Insert stores l and fills in its ID and CreatedAt as assigned by the store.
	Insert(ctx context.Context, l *listing.Listing) error
	// ListNewestFirst returns every listing ordered by CreatedAt, descending.
	ListNewestFirst(ctx context.Context) ([]*listing.Listing, error)
}
