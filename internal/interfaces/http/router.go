package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/mercado-bff/internal/application/profile"
	"github.com/jhoicas/mercado-bff/internal/application/usecase"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Sessions     *profile.Manager
	ListingUC    *usecase.ListingUseCase
	RefreshLimit *UserRateLimiter
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	refreshLimit := deps.RefreshLimit
	if refreshLimit == nil {
		refreshLimit = NewUserRateLimiter(0, 1)
	}

	// Perfil y empresa activa
	profileHandler := NewProfileHandler(deps.Sessions)
	prof := protected.Group("/profile")
	prof.Get("/", profileHandler.Get)
	prof.Post("/refresh", refreshLimit.Handler(), profileHandler.Refresh)
	prof.Post("/switch-company", profileHandler.SwitchCompany)
	prof.Patch("/user", profileHandler.UpdateUser)
	prof.Get("/permissions", profileHandler.Permissions)

	listingHandler := NewListingHandler(deps.ListingUC)

	// Logout limpia perfil y búsqueda en vivo
	protected.Post("/auth/logout", func(c *fiber.Ctx) error {
		listingHandler.CloseLive(c)
		return profileHandler.Logout(c)
	})

	// Marketplace
	market := protected.Group("/marketplace")
	market.Get("/listings", listingHandler.Search)
	market.Get("/facets", listingHandler.Facets)
	market.Patch("/live", listingHandler.UpdateLive)
	market.Get("/live", listingHandler.Live)
	market.Delete("/live", listingHandler.CloseLive)
}
