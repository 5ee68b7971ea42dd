// Package search implementa búsqueda, filtros y orden en memoria sobre listados del marketplace.
package search

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/mercado-bff/internal/domain"
)

// Searchable lo que el motor necesita de cada elemento.
type Searchable interface {
	SearchText() string
	CategoryValue() string
	SubcategoryValue() string
	CountryValues() []string
	TitleValue() string
	PriceValue() *decimal.Decimal
}

// SortOption criterio de orden.
type SortOption string

const (
	SortNone      SortOption = ""
	SortPriceAsc  SortOption = "price_asc"
	SortPriceDesc SortOption = "price_desc"
	SortTitleAsc  SortOption = "title_asc"
	SortTitleDesc SortOption = "title_desc"
)

// ParseSort valida el criterio recibido por query string. "" y "none" equivalen a sin orden.
func ParseSort(s string) (SortOption, error) {
	switch opt := SortOption(strings.ToLower(strings.TrimSpace(s))); opt {
	case SortNone, SortPriceAsc, SortPriceDesc, SortTitleAsc, SortTitleDesc:
		return opt, nil
	case "none":
		return SortNone, nil
	default:
		return SortNone, fmt.Errorf("orden %q: %w", s, domain.ErrInvalidInput)
	}
}

// FilterState estado de filtros. Query se guarda ya en minúsculas.
type FilterState struct {
	Query       string
	Regex       bool
	Category    string
	Subcategory string
	Countries   []string
	Sort        SortOption
}

// HasFilters indica si hay algún filtro activo (el orden no cuenta).
func (f FilterState) HasFilters() bool {
	return f.Query != "" || f.Category != "" || f.Subcategory != "" || len(f.Countries) > 0
}

func (f FilterState) clone() FilterState {
	f.Countries = append([]string(nil), f.Countries...)
	return f
}
