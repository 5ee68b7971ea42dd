package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")
	ErrUnauthenticated    = errors.New("sesión no autenticada")
	ErrQuotaExceeded      = errors.New("cuota de almacenamiento excedida")
	ErrCompanyWithoutID   = errors.New("empresa sin identificador")
	ErrBackendUnavailable = errors.New("backend no disponible")
)

// Kind clasifica los errores producidos en la frontera de transporte.
// Es un conjunto cerrado: la lógica de aplicación decide por Kind, nunca inspeccionando cuerpos.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	KindRateLimited
	KindUpstream
	KindNetwork
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindValidation:
		return "VALIDATION"
	case KindConflict:
		return "CONFLICT"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindUpstream:
		return "UPSTREAM"
	case KindNetwork:
		return "NETWORK"
	case KindDecode:
		return "DECODE"
	default:
		return "UNKNOWN"
	}
}

// Error es el error tipado que devuelve el cliente del backend.
type Error struct {
	Kind    Kind
	Status  int    // código HTTP del backend; 0 si no hubo respuesta
	Message string // mensaje extraído del cuerpo de error
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("backend %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("backend %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is permite errors.Is(err, domain.ErrUnauthorized) y similares sobre errores tipados.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInvalidInput:
		return e.Kind == KindValidation
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrBackendUnavailable:
		return e.Kind == KindNetwork || e.Kind == KindUpstream
	}
	return false
}

// KindOf devuelve el Kind de un error tipado, o KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// KindFromStatus traduce un código HTTP del backend a su Kind.
func KindFromStatus(status int) Kind {
	switch {
	case status == 401:
		return KindUnauthorized
	case status == 403:
		return KindForbidden
	case status == 404:
		return KindNotFound
	case status == 409:
		return KindConflict
	case status == 429:
		return KindRateLimited
	case status == 400 || status == 422:
		return KindValidation
	case status >= 500:
		return KindUpstream
	default:
		return KindUnknown
	}
}
