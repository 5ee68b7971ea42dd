package backend

import (
	"context"
	"net/http"

	"github.com/jhoicas/mercado-bff/internal/domain/entity"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

var _ repository.ProfileBackend = (*Client)(nil)

const (
	profilePath       = "/users/profile"
	switchCompanyPath = "/users/switch-company"
)

type switchCompanyRequest struct {
	CompanyID string `json:"company_id"`
}

// GetCurrentProfile GET /users/profile.
func (c *Client) GetCurrentProfile(ctx context.Context, token string) (*entity.Profile, error) {
	raw, err := c.do(ctx, http.MethodGet, profilePath, token, nil)
	if err != nil {
		return nil, err
	}
	return decodeProfile(raw)
}

// SwitchCompany POST /users/switch-company; responde el perfil con esa empresa activa.
func (c *Client) SwitchCompany(ctx context.Context, token, companyID string) (*entity.Profile, error) {
	raw, err := c.do(ctx, http.MethodPost, switchCompanyPath, token, switchCompanyRequest{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return decodeProfile(raw)
}

func decodeProfile(raw []byte) (*entity.Profile, error) {
	var p entity.Profile
	if err := decode(unwrap(raw, "data", "profile"), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
