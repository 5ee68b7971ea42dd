package profile

import (
	"context"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/jhoicas/mercado-bff/internal/domain"
	"github.com/jhoicas/mercado-bff/internal/domain/entity"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

const (
	// Por encima de este tamaño (en caracteres) se guarda solo el resumen de IDs.
	maxRolePayloadChars = 100_000
	minimalRolePayload  = `{"admins":[],"managers":[],"operators":[]}`
)

// writeRoleSnapshot persiste los roles de la empresa activa degradando ante falta de espacio:
// carga completa -> resumen de IDs (si es grande) -> carga mínima -> nada. Nunca devuelve error.
func writeRoleSnapshot(ctx context.Context, store repository.KVStore, log zerolog.Logger, roles entity.RoleSnapshot) {
	payload, err := json.Marshal(roles)
	if err != nil {
		log.Error().Err(err).Msg("serializar roles")
		return
	}
	if utf8.RuneCount(payload) > maxRolePayloadChars {
		log.Warn().
			Int("chars", utf8.RuneCount(payload)).
			Int("admins", len(roles.Admins)).
			Int("managers", len(roles.Managers)).
			Int("operators", len(roles.Operators)).
			Msg("roles demasiado grandes, se guarda solo el resumen de IDs")
		if payload, err = json.Marshal(roles.IDsOnly()); err != nil {
			log.Error().Err(err).Msg("serializar resumen de roles")
			return
		}
	}

	err = store.Set(ctx, keyCompanyRoles, string(payload))
	if err == nil {
		return
	}
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		log.Warn().Err(err).Msg("no se pudieron guardar los roles")
		return
	}

	log.Warn().Err(err).Msg("cuota excedida al guardar roles, se guarda carga mínima")
	store.Remove(ctx, keyCompanyRoles)
	if err := store.Set(ctx, keyCompanyRoles, minimalRolePayload); err != nil {
		log.Error().Err(err).Msg("no se pudo guardar ni la carga mínima de roles")
	}
}
