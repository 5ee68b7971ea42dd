package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/jhoicas/mercado-bff/internal/application/dto"
)

// UserRateLimiter limita peticiones por usuario (o IP si no hay usuario).
// Se usa en los refrescos forzados, que siempre llegan al backend.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter crea el limitador. perSecond <= 0 lo desactiva.
func NewUserRateLimiter(perSecond, burst int) *UserRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &UserRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *UserRateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// EvictIdle elimina los limitadores sin uso desde before. Un usuario que vuelve
// empieza con el burst completo, igual que uno nuevo.
func (rl *UserRateLimiter) EvictIdle(before time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for key, e := range rl.limiters {
		if e.lastSeen.Before(before) {
			delete(rl.limiters, key)
			n++
		}
	}
	return n
}

// Len limitadores en memoria.
func (rl *UserRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Handler middleware Fiber. Debe ir después de AuthMiddleware.
func (rl *UserRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.rate <= 0 {
			return c.Next()
		}
		key := GetUserID(c)
		if key == "" {
			key = c.IP()
		}
		if !rl.limiter(key).Allow() {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Code: "RATE_LIMITED", Message: "demasiadas solicitudes, intente más tarde"})
		}
		return c.Next()
	}
}
