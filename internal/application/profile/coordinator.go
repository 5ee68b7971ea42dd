package profile

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/jhoicas/mercado-bff/internal/domain"
	"github.com/jhoicas/mercado-bff/internal/domain/entity"
)

const profileFlightKey = "profile"

// RefreshOptions opciones de RefreshProfile.
type RefreshOptions struct {
	Force bool
}

// FetchProfile carga el perfil del backend. Si ya hay una carga en curso en esta sesión,
// el llamador se une a ella: nunca hay dos GetCurrentProfile simultáneos por sesión.
// La carga compartida no se cancela si un llamador abandona; ctx solo acota la espera.
func (s *Session) FetchProfile(ctx context.Context) error {
	ch := s.flight.DoChan(profileFlightKey, func() (any, error) {
		return nil, s.fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureProfileData carga el perfil solo si hace falta y devuelve el estado vigente.
// Hace falta si: force, no hay usuario, la caché venció, o hay usuario sin empresa activa
// pero con otras empresas disponibles (autoselección pendiente).
func (s *Session) EnsureProfileData(ctx context.Context, force bool) (Snapshot, error) {
	if !s.Authenticated() {
		return Snapshot{}, domain.ErrUnauthenticated
	}

	s.mu.RLock()
	needsFetch := force ||
		s.user == nil ||
		s.policy.IsStale(s.lastFetch, s.opts.Now()) ||
		(s.user != nil && s.active == nil && len(s.others) > 0)
	s.mu.RUnlock()

	if needsFetch {
		if err := s.FetchProfile(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	return s.Snapshot(), nil
}

// RefreshProfile alias de EnsureProfileData.
func (s *Session) RefreshProfile(ctx context.Context, opts RefreshOptions) (Snapshot, error) {
	return s.EnsureProfileData(ctx, opts.Force)
}

// SwitchCompany cambio de empresa pedido por el usuario. Sin reintentos: el error vuelve al llamador.
func (s *Session) SwitchCompany(ctx context.Context, companyID string) (Snapshot, error) {
	if !s.Authenticated() {
		return Snapshot{}, domain.ErrUnauthenticated
	}
	if companyID == "" {
		return Snapshot{}, domain.ErrInvalidInput
	}
	epoch := s.currentEpoch()
	p, err := s.backend.SwitchCompany(ctx, s.currentToken(), companyID)
	if err != nil {
		s.log.Error().Err(err).Str("company_id", companyID).Str("kind", domain.KindOf(err).String()).Msg("cambiar de empresa")
		return Snapshot{}, fmt.Errorf("cambiar de empresa: %w", err)
	}
	if !s.commit(ctx, p, epoch) {
		return Snapshot{}, domain.ErrUnauthenticated
	}
	s.log.Info().Str("company_id", companyID).Msg("empresa activa cambiada")
	return s.Snapshot(), nil
}

func (s *Session) fetch(ctx context.Context) error {
	epoch := s.currentEpoch()
	s.setState(StateFetching)

	p, err := s.backend.GetCurrentProfile(ctx, s.currentToken())
	if err != nil {
		s.setState(StateError)
		s.log.Error().Err(err).Str("kind", domain.KindOf(err).String()).Msg("obtener perfil")
		return fmt.Errorf("obtener perfil: %w", err)
	}

	s.setState(StateResolving)
	committed := s.commit(ctx, s.resolve(ctx, p), epoch)
	s.setState(StateIdle)
	if !committed {
		return domain.ErrUnauthenticated
	}
	return nil
}

// resolve aplica la autoselección de empresa cuando el perfil llega sin empresa activa.
func (s *Session) resolve(ctx context.Context, p *entity.Profile) *entity.Profile {
	if p.ActiveCompany != nil || len(p.OtherCompanies) == 0 {
		return p
	}

	first := p.OtherCompanies[0]
	if !first.HasID() {
		s.log.Warn().Err(domain.ErrCompanyWithoutID).Str("company", first.Name).
			Msg("primera empresa sin id, se activa localmente")
		return localSelection(p)
	}

	switched, err := s.switchWithRetry(ctx, first.Key())
	if err != nil {
		s.log.Warn().Err(err).Str("company_id", first.Key()).Int("attempts", s.opts.SwitchAttempts).
			Msg("autoselección fallida, se activa la empresa localmente")
		return localSelection(p)
	}
	if switched.User == nil {
		switched.User = p.User
	}
	s.log.Info().Str("company_id", first.Key()).Msg("empresa autoseleccionada")
	return switched
}

// switchWithRetry hasta SwitchAttempts intentos con espera fija entre ellos.
func (s *Session) switchWithRetry(ctx context.Context, companyID string) (*entity.Profile, error) {
	var (
		out     *entity.Profile
		attempt int
	)
	op := func() error {
		attempt++
		p, err := s.backend.SwitchCompany(ctx, s.currentToken(), companyID)
		if err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt).Str("company_id", companyID).Msg("switchCompany fallido")
			return err
		}
		out = p
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.SwitchDelay), uint64(s.opts.SwitchAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

// localSelection promueve la primera empresa a activa sin pasar por el backend.
func localSelection(p *entity.Profile) *entity.Profile {
	out := *p
	out.ActiveCompany = entity.NewLocalActiveCompany(p.OtherCompanies[0])
	out.OtherCompanies = append([]entity.Company{}, p.OtherCompanies[1:]...)
	return &out
}
