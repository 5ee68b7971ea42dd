package repository

import (
	"context"

	"github.com/jhoicas/mercado-bff/internal/domain/entity"
)

// ProfileBackend define el puerto hacia los endpoints de perfil del backend REST.
// token es el Bearer del usuario; la implementación lo reenvía tal cual.
type ProfileBackend interface {
	GetCurrentProfile(ctx context.Context, token string) (*entity.Profile, error)
	SwitchCompany(ctx context.Context, token, companyID string) (*entity.Profile, error)
}
