package backend

import (
	"context"
	"net/http"

	"github.com/jhoicas/mercado-bff/internal/domain/entity"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

var _ repository.ListingBackend = (*Client)(nil)

const listingsPath = "/marketplace/listings"

// ListListings GET /marketplace/listings. Acepta arreglo plano o sobre {"items"|"data": [...]}.
func (c *Client) ListListings(ctx context.Context, token string) ([]entity.Listing, error) {
	raw, err := c.do(ctx, http.MethodGet, listingsPath, token, nil)
	if err != nil {
		return nil, err
	}
	var items []entity.Listing
	if err := decode(unwrap(raw, "items", "data"), &items); err != nil {
		return nil, err
	}
	return entity.NormalizeAll(items), nil
}
