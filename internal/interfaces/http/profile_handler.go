package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/mercado-bff/internal/application/dto"
	"github.com/jhoicas/mercado-bff/internal/application/profile"
	"github.com/jhoicas/mercado-bff/internal/domain"
	"github.com/jhoicas/mercado-bff/internal/domain/entity"
)

// ProfileHandler expone el perfil de la sesión y la empresa activa (protegido).
type ProfileHandler struct {
	sessions *profile.Manager
}

// NewProfileHandler construye el handler.
func NewProfileHandler(sessions *profile.Manager) *ProfileHandler {
	return &ProfileHandler{sessions: sessions}
}

func (h *ProfileHandler) session(c *fiber.Ctx) *profile.Session {
	return h.sessions.Session(c.UserContext(), GetUserID(c), GetToken(c))
}

// Get godoc
// @Summary      Perfil de la sesión
// @Description  Devuelve el perfil desde caché o lo carga del backend si venció; autoselecciona empresa si falta.
// @Tags         profile
// @Security     Bearer
// @Produce      json
// @Param        force  query  bool  false  "Ignorar la caché"
// @Success      200  {object}  dto.ProfileResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/profile [get]
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	s := h.session(c)
	snap, err := s.EnsureProfileData(c.UserContext(), c.QueryBool("force", false))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toProfileResponse(s, snap))
}

// Refresh godoc
// @Summary      Forzar recarga del perfil
// @Tags         profile
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.ProfileResponse
// @Failure      429  {object}  dto.ErrorResponse
// @Router       /api/profile/refresh [post]
func (h *ProfileHandler) Refresh(c *fiber.Ctx) error {
	s := h.session(c)
	snap, err := s.RefreshProfile(c.UserContext(), profile.RefreshOptions{Force: true})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toProfileResponse(s, snap))
}

// SwitchCompany godoc
// @Summary      Cambiar empresa activa
// @Tags         profile
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SwitchCompanyRequest  true  "Empresa destino"
// @Success      200  {object}  dto.ProfileResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/profile/switch-company [post]
func (h *ProfileHandler) SwitchCompany(c *fiber.Ctx) error {
	var in dto.SwitchCompanyRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.CompanyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "company_id es requerido"})
	}
	s := h.session(c)
	snap, err := s.SwitchCompany(c.UserContext(), in.CompanyID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toProfileResponse(s, snap))
}

// UpdateUser godoc
// @Summary      Actualizar datos locales del usuario
// @Tags         profile
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  entity.UserPatch  true  "Campos a cambiar"
// @Success      200  {object}  entity.User
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/profile/user [patch]
func (h *ProfileHandler) UpdateUser(c *fiber.Ctx) error {
	var patch entity.UserPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	u, err := h.session(c).UpdateUser(c.UserContext(), patch)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "perfil no cargado"})
		}
		return writeError(c, err)
	}
	return c.JSON(u)
}

// Permissions godoc
// @Summary      Roles del usuario en la empresa activa
// @Tags         profile
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.PermissionsResponse
// @Router       /api/profile/permissions [get]
func (h *ProfileHandler) Permissions(c *fiber.Ctx) error {
	s := h.session(c)
	if _, err := s.EnsureProfileData(c.UserContext(), false); err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.PermissionsResponse{
		Superadmin: s.IsSuperadmin(),
		Admin:      s.IsCompanyAdmin(),
		Manager:    s.IsCompanyManager(),
		Operator:   s.IsCompanyOperator(),
	})
}

// Logout godoc
// @Summary      Cerrar sesión
// @Description  Borra el perfil cacheado del usuario y su búsqueda en vivo.
// @Tags         auth
// @Security     Bearer
// @Success      204
// @Router       /api/auth/logout [post]
func (h *ProfileHandler) Logout(c *fiber.Ctx) error {
	h.sessions.Logout(c.UserContext(), GetUserID(c))
	return c.SendStatus(fiber.StatusNoContent)
}

func toProfileResponse(s *profile.Session, snap profile.Snapshot) dto.ProfileResponse {
	out := dto.ProfileResponse{
		User:           snap.User,
		ActiveCompany:  snap.ActiveCompany,
		OtherCompanies: snap.OtherCompanies,
		State:          s.State().String(),
	}
	if lf := s.LastFetch(); !lf.IsZero() {
		out.LastFetch = lf.UnixMilli()
	}
	return out
}
