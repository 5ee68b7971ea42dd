package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingSearchRequest filtros de búsqueda del marketplace.
type ListingSearchRequest struct {
	Query       string
	Regex       bool
	Category    string
	Subcategory string
	Countries   []string
	Sort        string
	Force       bool // ignora la caché de listados
	Page        PageRequest
}

// ListingResponse salida de una publicación.
type ListingResponse struct {
	ID          string              `json:"id"`
	MongoID     string              `json:"_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	CompanyName string              `json:"company_name"`
	Category    string              `json:"category"`
	Subcategory string              `json:"subcategory"`
	Countries   []string            `json:"countries"`
	Price       decimal.NullDecimal `json:"price"`
	CreatedAt   time.Time           `json:"created_at"`
}

// ListingSearchResponse página de resultados con el estado de filtros aplicado.
type ListingSearchResponse struct {
	Items   []ListingResponse `json:"items"`
	Total   int               `json:"total"`
	Filters FilterStateDTO    `json:"filters"`
	Page    PageResponse      `json:"page"`
}

// FilterStateDTO estado de filtros tal como quedó aplicado.
type FilterStateDTO struct {
	Query        string   `json:"query"`
	PendingQuery string   `json:"pending_query,omitempty"`
	Regex        bool     `json:"regex"`
	Category     string   `json:"category,omitempty"`
	Subcategory  string   `json:"subcategory,omitempty"`
	Countries    []string `json:"countries"`
	Sort         string   `json:"sort,omitempty"`
}

// LiveSearchUpdate cambios incrementales sobre la búsqueda en vivo (campos opcionales).
// Query pasa por el debounce salvo que Flush sea true.
type LiveSearchUpdate struct {
	Query         *string  `json:"query"`
	Regex         *bool    `json:"regex"`
	Category      *string  `json:"category"`
	Subcategory   *string  `json:"subcategory"`
	ToggleCountry string   `json:"toggle_country"`
	Countries     []string `json:"countries"`
	Sort          *string  `json:"sort"`
	Clear         bool     `json:"clear"`
	Flush         bool     `json:"flush"`
}

// ListingFacetsResponse valores distintos disponibles para los filtros.
type ListingFacetsResponse struct {
	Categories    []string            `json:"categories"`
	Subcategories map[string][]string `json:"subcategories"`
	Countries     []string            `json:"countries"`
}
