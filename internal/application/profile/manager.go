package profile

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

// StoreScope devuelve el store acotado a un usuario (claves con su espacio de nombres).
type StoreScope func(userID string) repository.KVStore

// Manager entrega una Session por usuario autenticado y la mantiene viva entre peticiones.
type Manager struct {
	backend repository.ProfileBackend
	scope   StoreScope
	opts    Options
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	onEvict  func(userID string)
}

// NewManager construye el administrador de sesiones.
func NewManager(backend repository.ProfileBackend, scope StoreScope, opts Options, log zerolog.Logger) *Manager {
	return &Manager{
		backend:  backend,
		scope:    scope,
		opts:     opts.withDefaults(),
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Session devuelve la sesión del usuario, creándola y rehidratándola desde el store si no existe.
// El token se actualiza siempre con el de la petición en curso.
func (m *Manager) Session(ctx context.Context, userID, token string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		s.SetToken(token)
		s.touch(m.opts.Now())
		return s
	}
	s := NewSession(uuid.NewString(), userID, token, m.backend, m.scope(userID), m.opts, m.log)
	s.Restore(ctx)
	m.sessions[userID] = s
	s.log.Debug().Msg("sesión creada")
	return s
}

// Logout cierra la sesión del usuario y la olvida.
func (m *Manager) Logout(ctx context.Context, userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		// Sin sesión en memoria igual se limpian las claves persistidas.
		s = NewSession(uuid.NewString(), userID, "", m.backend, m.scope(userID), m.opts, m.log)
	}
	s.Logout(ctx)
}

// OnEvict registra una función que se llama con el usuario de cada sesión desalojada por inactividad.
func (m *Manager) OnEvict(fn func(userID string)) {
	m.mu.Lock()
	m.onEvict = fn
	m.mu.Unlock()
}

// EvictIdle quita de memoria las sesiones sin uso durante más de IdleTTL.
// El estado persistido se conserva: la próxima petición del usuario lo rehidrata.
func (m *Manager) EvictIdle() int {
	now := m.opts.Now()

	m.mu.Lock()
	var evicted []string
	for userID, s := range m.sessions {
		if s.idle(now, m.opts.IdleTTL) {
			delete(m.sessions, userID)
			evicted = append(evicted, userID)
		}
	}
	onEvict := m.onEvict
	m.mu.Unlock()

	for _, userID := range evicted {
		if onEvict != nil {
			onEvict(userID)
		}
	}
	if len(evicted) > 0 {
		m.log.Debug().Int("sessions", len(evicted)).Msg("sesiones inactivas desalojadas")
	}
	return len(evicted)
}

// Len sesiones activas en memoria.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
