package profile

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/mercado-bff/internal/domain"
	"github.com/jhoicas/mercado-bff/internal/domain/entity"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

// Claves persistidas por sesión (el store ya viene con el espacio de nombres del usuario).
const (
	keyUser           = "user"
	keyActiveCompany  = "active_company"
	keyOtherCompanies = "other_companies"
	keyCompanyRoles   = "company_roles"
	keyLastFetch      = "profile_last_fetch"
)

var sessionKeys = []string{keyUser, keyActiveCompany, keyOtherCompanies, keyCompanyRoles, keyLastFetch}

// State estado del coordinador de perfil.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateResolving
	StateError
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateResolving:
		return "resolving"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// DefaultSwitchDelay espera fija entre intentos de switchCompany durante la autoselección.
const DefaultSwitchDelay = time.Second

// DefaultIdleTTL inactividad máxima de una sesión en memoria.
const DefaultIdleTTL = 30 * time.Minute

// Options parámetros del coordinador.
type Options struct {
	CacheTTL       time.Duration
	SwitchAttempts int
	SwitchDelay    time.Duration
	// IdleTTL tiempo sin peticiones tras el cual el Manager desaloja la sesión de memoria.
	IdleTTL time.Duration
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultProfileTTL
	}
	if o.SwitchAttempts < 1 {
		o.SwitchAttempts = 3
	}
	if o.SwitchDelay <= 0 {
		o.SwitchDelay = DefaultSwitchDelay
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = DefaultIdleTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Snapshot vista de solo lectura del perfil de la sesión.
type Snapshot struct {
	User           *entity.User          `json:"user"`
	ActiveCompany  *entity.ActiveCompany `json:"active_company"`
	OtherCompanies []entity.Company      `json:"other_companies"`
}

// Session estado de perfil de un usuario autenticado. Cada sesión tiene su propio
// guardián single-flight, de modo que dos usuarios concurrentes no comparten cargas.
type Session struct {
	id      string
	userID  string
	backend repository.ProfileBackend
	store   repository.KVStore
	policy  CachePolicy
	opts    Options
	log     zerolog.Logger

	flight singleflight.Group

	// persistMu serializa las escrituras al store con Logout.
	persistMu sync.Mutex

	mu        sync.RWMutex
	epoch     uint64 // cambia en cada Logout; invalida cargas iniciadas antes
	token     string
	state     State
	user      *entity.User
	active    *entity.ActiveCompany
	others    []entity.Company
	roles     entity.RoleSnapshot
	lastFetch time.Time
	lastSeen  time.Time
}

// NewSession construye una sesión. store debe estar ya acotado al usuario.
func NewSession(id, userID, token string, backend repository.ProfileBackend, store repository.KVStore, opts Options, log zerolog.Logger) *Session {
	opts = opts.withDefaults()
	return &Session{
		id:       id,
		userID:   userID,
		token:    token,
		backend:  backend,
		store:    store,
		policy:   CachePolicy{TTL: opts.CacheTTL},
		opts:     opts,
		log:      log.With().Str("session_id", id).Str("user_id", userID).Logger(),
		others:   []entity.Company{},
		lastSeen: opts.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// SetToken actualiza el Bearer que se reenvía al backend (los tokens rotan).
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// idle indica si la sesión lleva más de ttl sin uso y no tiene una carga en curso.
func (s *Session) idle(now time.Time, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	busy := s.state == StateFetching || s.state == StateResolving
	return !busy && now.Sub(s.lastSeen) > ttl
}

func (s *Session) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Session) currentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated indica si la sesión tiene token.
func (s *Session) Authenticated() bool {
	return s.currentToken() != ""
}

// State devuelve el estado actual del coordinador.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// LastFetch instante de la última carga exitosa del perfil.
func (s *Session) LastFetch() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetch
}

// Snapshot devuelve copias del estado actual.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{OtherCompanies: append([]entity.Company{}, s.others...)}
	if s.user != nil {
		u := *s.user
		out.User = &u
	}
	if s.active != nil {
		ac := *s.active
		out.ActiveCompany = &ac
	}
	return out
}

// Roles devuelve la instantánea de roles de la empresa activa.
func (s *Session) Roles() entity.RoleSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles
}

// IsSuperadmin indica si el usuario tiene privilegios globales.
func (s *Session) IsSuperadmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Superadmin
}

// IsCompanyAdmin admin de la empresa activa (o superadmin).
func (s *Session) IsCompanyAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAdminLocked()
}

// IsCompanyManager manager de la empresa activa; los admins también lo son.
func (s *Session) IsCompanyManager() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isManagerLocked()
}

// IsCompanyOperator operador de la empresa activa; managers y admins también lo son.
func (s *Session) IsCompanyOperator() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isManagerLocked() {
		return true
	}
	return s.user != nil && s.active != nil && entity.Contains(s.roles.Operators, s.user.Identity)
}

func (s *Session) isAdminLocked() bool {
	if s.user == nil {
		return false
	}
	if s.user.Superadmin {
		return true
	}
	return s.active != nil && entity.Contains(s.roles.Admins, s.user.Identity)
}

func (s *Session) isManagerLocked() bool {
	if s.isAdminLocked() {
		return true
	}
	return s.user != nil && s.active != nil && entity.Contains(s.roles.Managers, s.user.Identity)
}

// UpdateUser aplica un cambio local sobre el usuario cargado y lo persiste.
func (s *Session) UpdateUser(ctx context.Context, patch entity.UserPatch) (*entity.User, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	u := entity.Normalize(patch.Apply(*s.user))
	s.user = &u
	s.mu.Unlock()

	s.writeJSON(ctx, keyUser, u)
	out := u
	return &out, nil
}

// Logout borra el estado en memoria y todas las claves persistidas de la sesión.
// Una carga que siga en curso termina sin publicar ni persistir nada.
func (s *Session) Logout(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.flight.Forget(profileFlightKey)
	s.mu.Lock()
	s.epoch++
	s.token = ""
	s.state = StateIdle
	s.user = nil
	s.active = nil
	s.others = []entity.Company{}
	s.roles = entity.RoleSnapshot{}
	s.lastFetch = time.Time{}
	s.mu.Unlock()

	for _, k := range sessionKeys {
		s.store.Remove(ctx, k)
	}
	s.log.Info().Msg("sesión cerrada")
}

// Restore rehidrata el estado desde el store (equivalente a recargar la página).
// Las claves ilegibles se ignoran; la próxima EnsureProfileData las repone.
func (s *Session) Restore(ctx context.Context) {
	var (
		user   *entity.User
		active *entity.ActiveCompany
		others []entity.Company
		roles  entity.RoleSnapshot
		last   time.Time
	)
	if raw, ok := s.store.Get(ctx, keyUser); ok {
		var u entity.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			u = entity.Normalize(u)
			user = &u
		} else {
			s.log.Warn().Err(err).Str("key", keyUser).Msg("clave de sesión ilegible")
		}
	}
	if raw, ok := s.store.Get(ctx, keyActiveCompany); ok && raw != "null" {
		var ac entity.ActiveCompany
		if err := json.Unmarshal([]byte(raw), &ac); err == nil {
			ac.Company = entity.Normalize(ac.Company)
			active = &ac
		} else {
			s.log.Warn().Err(err).Str("key", keyActiveCompany).Msg("clave de sesión ilegible")
		}
	}
	if raw, ok := s.store.Get(ctx, keyOtherCompanies); ok {
		if err := json.Unmarshal([]byte(raw), &others); err != nil {
			s.log.Warn().Err(err).Str("key", keyOtherCompanies).Msg("clave de sesión ilegible")
		}
	}
	if raw, ok := s.store.Get(ctx, keyCompanyRoles); ok {
		if err := json.Unmarshal([]byte(raw), &roles); err != nil {
			s.log.Warn().Err(err).Str("key", keyCompanyRoles).Msg("clave de sesión ilegible")
		}
	}
	if raw, ok := s.store.Get(ctx, keyLastFetch); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			last = time.UnixMilli(ms)
		}
	}

	roles = roles.Sanitized()
	if active != nil {
		active.Admins, active.Managers, active.Operators = roles.Admins, roles.Managers, roles.Operators
	}

	s.mu.Lock()
	s.user = user
	s.active = active
	s.others = entity.NormalizeAll(others)
	s.roles = roles
	s.lastFetch = last
	s.mu.Unlock()
}

// commit normaliza y publica un perfil resuelto, y lo persiste en el store.
// Devuelve false sin tocar nada si hubo un Logout desde que empezó la carga (epoch distinto).
func (s *Session) commit(ctx context.Context, p *entity.Profile, epoch uint64) bool {
	entity.NormalizeProfile(p)
	now := s.opts.Now()
	roles := p.ActiveCompany.Roles()

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.log.Debug().Msg("perfil descartado: la sesión se cerró durante la carga")
		return false
	}
	if p.User != nil {
		s.user = p.User
	}
	s.active = p.ActiveCompany
	s.others = p.OtherCompanies
	s.roles = roles
	s.lastFetch = now
	user := s.user
	s.mu.Unlock()

	if user != nil {
		s.writeJSON(ctx, keyUser, user)
	}
	if p.ActiveCompany != nil {
		// Los roles viajan en su propia clave (con control de tamaño).
		ac := *p.ActiveCompany
		ac.Admins, ac.Managers, ac.Operators = nil, nil, nil
		s.writeJSON(ctx, keyActiveCompany, ac)
	} else {
		s.store.Remove(ctx, keyActiveCompany)
	}
	s.writeJSON(ctx, keyOtherCompanies, p.OtherCompanies)
	writeRoleSnapshot(ctx, s.store, s.log, roles)
	if err := s.store.Set(ctx, keyLastFetch, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		s.log.Warn().Err(err).Msg("no se pudo guardar la marca de tiempo del perfil")
	}
	return true
}

// writeJSON persistencia de mejor esfuerzo: los errores solo se registran.
func (s *Session) writeJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("serializar clave de sesión")
		return
	}
	if err := s.store.Set(ctx, key, string(raw)); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("no se pudo persistir la clave de sesión")
	}
}
