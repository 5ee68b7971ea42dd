package repository

import "context"

// KVStore es el puerto de almacenamiento clave/valor para el estado de sesión (DIP).
// Es de mejor esfuerzo: Get devuelve ok=false si el almacenamiento falla o no existe la clave,
// Remove nunca falla. Set puede devolver domain.ErrQuotaExceeded (envuelto) para que el llamador degrade.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string)
}
