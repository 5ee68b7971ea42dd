package search

import (
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// compareNullable nulos al final en ambos sentidos; desc solo invierte la comparación de valores definidos.
func compareNullable[V any](a, b *V, cmp func(x, y V) int, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c := cmp(*a, *b)
	if desc {
		return -c
	}
	return c
}

func titleOf[T Searchable](it T) *string {
	t := it.TitleValue()
	if t == "" {
		return nil
	}
	return &t
}

// sortItems ordena en sitio de forma estable. El collator no es seguro para uso concurrente:
// se crea uno por llamada.
func sortItems[T Searchable](items []T, opt SortOption, locale language.Tag) {
	if opt == SortNone || len(items) < 2 {
		return
	}
	var less func(i, j int) bool
	switch opt {
	case SortPriceAsc, SortPriceDesc:
		desc := opt == SortPriceDesc
		less = func(i, j int) bool {
			return compareNullable(items[i].PriceValue(), items[j].PriceValue(), decimal.Decimal.Cmp, desc) < 0
		}
	case SortTitleAsc, SortTitleDesc:
		desc := opt == SortTitleDesc
		col := collate.New(locale, collate.IgnoreCase)
		less = func(i, j int) bool {
			return compareNullable(titleOf(items[i]), titleOf(items[j]), col.CompareString, desc) < 0
		}
	default:
		return
	}
	sort.SliceStable(items, less)
}
