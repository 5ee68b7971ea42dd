package dto

import "github.com/jhoicas/mercado-bff/internal/domain/entity"

// ProfileResponse perfil de la sesión.
type ProfileResponse struct {
	User           *entity.User          `json:"user"`
	ActiveCompany  *entity.ActiveCompany `json:"active_company"`
	OtherCompanies []entity.Company      `json:"other_companies"`
	State          string                `json:"state"`
	LastFetch      int64                 `json:"last_fetch,omitempty"` // unix ms
}

// SwitchCompanyRequest entrada para cambiar de empresa activa.
type SwitchCompanyRequest struct {
	CompanyID string `json:"company_id" validate:"required"`
}

// PermissionsResponse banderas de autorización sobre la empresa activa.
type PermissionsResponse struct {
	Superadmin bool `json:"superadmin"`
	Admin      bool `json:"admin"`
	Manager    bool `json:"manager"`
	Operator   bool `json:"operator"`
}
