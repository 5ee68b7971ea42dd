package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/mercado-bff/internal/application/dto"
	"github.com/jhoicas/mercado-bff/internal/domain"
)

// writeError traduce errores de dominio y del backend a la respuesta HTTP.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "sesión no autenticada"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{Code: "TIMEOUT", Message: "el backend no respondió a tiempo"})
	}

	var be *domain.Error
	if errors.As(err, &be) {
		status := fiber.StatusBadGateway
		switch be.Kind {
		case domain.KindUnauthorized:
			status = fiber.StatusUnauthorized
		case domain.KindForbidden:
			status = fiber.StatusForbidden
		case domain.KindNotFound:
			status = fiber.StatusNotFound
		case domain.KindValidation:
			status = fiber.StatusBadRequest
		case domain.KindConflict:
			status = fiber.StatusConflict
		case domain.KindRateLimited:
			status = fiber.StatusTooManyRequests
		case domain.KindNetwork:
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(dto.ErrorResponse{Code: be.Kind.String(), Message: be.Message})
	}

	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
