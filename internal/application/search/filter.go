package search

import (
	"strings"

	"golang.org/x/text/language"
)

// Apply filtra y ordena items según state. Los filtros se combinan con AND y después se ordena.
// No modifica items.
func Apply[T Searchable](items []T, state FilterState, locale language.Tag) []T {
	match := newTextMatcher(state.Query, state.Regex)
	countries := make(map[string]struct{}, len(state.Countries))
	for _, c := range state.Countries {
		countries[c] = struct{}{}
	}

	out := make([]T, 0, len(items))
	for _, it := range items {
		if match != nil && !match(strings.ToLower(it.SearchText())) {
			continue
		}
		if state.Category != "" && it.CategoryValue() != state.Category {
			continue
		}
		if state.Subcategory != "" && it.SubcategoryValue() != state.Subcategory {
			continue
		}
		if len(countries) > 0 && !anyIn(it.CountryValues(), countries) {
			continue
		}
		out = append(out, it)
	}
	sortItems(out, state.Sort, locale)
	return out
}

func anyIn(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
