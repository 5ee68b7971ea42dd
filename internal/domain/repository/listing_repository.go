package repository

import (
	"context"

	"github.com/jhoicas/mercado-bff/internal/domain/entity"
)

// ListingBackend define el puerto hacia el listado del marketplace.
type ListingBackend interface {
	ListListings(ctx context.Context, token string) ([]entity.Listing, error)
}
