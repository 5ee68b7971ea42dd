package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/mercado-bff/internal/application/dto"
	"github.com/jhoicas/mercado-bff/internal/application/usecase"
)

// ListingHandler búsqueda y filtros del marketplace (protegido).
type ListingHandler struct {
	uc *usecase.ListingUseCase
}

// NewListingHandler construye el handler.
func NewListingHandler(uc *usecase.ListingUseCase) *ListingHandler {
	return &ListingHandler{uc: uc}
}

// Search godoc
// @Summary      Buscar publicaciones
// @Description  Filtra por texto (o regex), categoría, subcategoría y países; ordena y pagina.
// @Tags         marketplace
// @Security     Bearer
// @Produce      json
// @Param        q            query  string  false  "Texto a buscar"
// @Param        regex        query  bool    false  "Interpretar q como expresión regular"
// @Param        category     query  string  false  "Categoría"
// @Param        subcategory  query  string  false  "Subcategoría"
// @Param        country      query  string  false  "Países (repetible o separados por coma)"
// @Param        sort         query  string  false  "price_asc | price_desc | title_asc | title_desc"
// @Param        limit        query  int     false  "Límite (default 20, máx 100)"
// @Param        offset       query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.ListingSearchResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/marketplace/listings [get]
func (h *ListingHandler) Search(c *fiber.Ctx) error {
	in := dto.ListingSearchRequest{
		Query:       c.Query("q"),
		Regex:       c.QueryBool("regex", false),
		Category:    c.Query("category"),
		Subcategory: c.Query("subcategory"),
		Countries:   queryList(c, "country"),
		Sort:        c.Query("sort"),
		Force:       c.QueryBool("force", false),
		Page:        pageFromQuery(c),
	}
	out, err := h.uc.Search(c.UserContext(), GetUserID(c), GetToken(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Facets godoc
// @Summary      Valores disponibles para los filtros
// @Tags         marketplace
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.ListingFacetsResponse
// @Router       /api/marketplace/facets [get]
func (h *ListingHandler) Facets(c *fiber.Ctx) error {
	out, err := h.uc.Facets(c.UserContext(), GetUserID(c), GetToken(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// UpdateLive godoc
// @Summary      Actualizar búsqueda en vivo
// @Description  La consulta de texto se aplica tras el debounce, salvo flush=true.
// @Tags         marketplace
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LiveSearchUpdate  true  "Cambios de filtros"
// @Success      200  {object}  dto.ListingSearchResponse
// @Router       /api/marketplace/live [patch]
func (h *ListingHandler) UpdateLive(c *fiber.Ctx) error {
	var in dto.LiveSearchUpdate
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.UpdateLive(c.UserContext(), GetUserID(c), GetToken(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Live godoc
// @Summary      Resultados de la búsqueda en vivo
// @Tags         marketplace
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.ListingSearchResponse
// @Router       /api/marketplace/live [get]
func (h *ListingHandler) Live(c *fiber.Ctx) error {
	out, err := h.uc.Live(c.UserContext(), GetUserID(c), GetToken(c), pageFromQuery(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// CloseLive godoc
// @Summary      Descartar la búsqueda en vivo
// @Tags         marketplace
// @Security     Bearer
// @Success      204
// @Router       /api/marketplace/live [delete]
func (h *ListingHandler) CloseLive(c *fiber.Ctx) error {
	h.uc.CloseLive(GetUserID(c))
	return c.SendStatus(fiber.StatusNoContent)
}

func pageFromQuery(c *fiber.Ctx) dto.PageRequest {
	return dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
}

// queryList admite ?k=a&k=b y ?k=a,b.
func queryList(c *fiber.Ctx, key string) []string {
	var out []string
	for _, raw := range c.Context().QueryArgs().PeekMulti(key) {
		for _, v := range strings.Split(string(raw), ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
