package profile

import "time"

// DefaultProfileTTL vigencia del perfil en caché.
const DefaultProfileTTL = 10 * time.Minute

// CachePolicy decide si un dato cacheado está vencido. No dispara ninguna carga por sí misma.
type CachePolicy struct {
	TTL time.Duration
}

// IsStale es verdadero si nunca se cargó o si pasó más de TTL desde last.
func (p CachePolicy) IsStale(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > p.TTL
}
