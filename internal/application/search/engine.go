package search

import (
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// DefaultDebounce espera entre la última tecla y la aplicación de la consulta.
const DefaultDebounce = 300 * time.Millisecond

// EngineOptions configuración del motor.
type EngineOptions struct {
	Debounce time.Duration
	Locale   language.Tag
	// OnChange recibe la cantidad de resultados cada vez que cambian items o filtros.
	OnChange func(count int)
}

// Engine mantiene un estado de filtros sobre una colección y recalcula los resultados
// cuando cambian los items o el estado. La consulta de texto se aplica con debounce.
type Engine[T Searchable] struct {
	mu       sync.Mutex
	items    []T
	state    FilterState
	pending  string
	timer    *time.Timer
	results  []T
	dirty    bool
	closed   bool
	debounce time.Duration
	locale   language.Tag
	onChange func(count int)
}

// NewEngine crea un motor sobre items.
func NewEngine[T Searchable](items []T, opts EngineOptions) *Engine[T] {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Locale == (language.Tag{}) {
		opts.Locale = language.Spanish
	}
	return &Engine[T]{
		items:    append([]T(nil), items...),
		dirty:    true,
		debounce: opts.Debounce,
		locale:   opts.Locale,
		onChange: opts.OnChange,
	}
}

// SetItems reemplaza la colección de entrada.
func (e *Engine[T]) SetItems(items []T) {
	e.update(func() { e.items = append([]T(nil), items...) })
}

// SetQuery registra la consulta tecleada y reinicia el debounce.
func (e *Engine[T]) SetQuery(q string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.pending = q
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, e.FlushQuery)
}

// FlushQuery aplica de inmediato la consulta pendiente.
func (e *Engine[T]) FlushQuery() {
	e.update(func() {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.state.Query = strings.ToLower(strings.TrimSpace(e.pending))
	})
}

// PendingQuery consulta tecleada aún no aplicada (o la última aplicada).
func (e *Engine[T]) PendingQuery() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// SetRegex activa o desactiva el modo expresión regular.
func (e *Engine[T]) SetRegex(on bool) {
	e.update(func() { e.state.Regex = on })
}

// SetCategory selecciona categoría y limpia la subcategoría.
func (e *Engine[T]) SetCategory(c string) {
	e.update(func() {
		e.state.Category = c
		e.state.Subcategory = ""
	})
}

func (e *Engine[T]) SetSubcategory(sc string) {
	e.update(func() { e.state.Subcategory = sc })
}

// ToggleCountry agrega o quita un país de la selección.
func (e *Engine[T]) ToggleCountry(country string) {
	e.update(func() {
		for i, c := range e.state.Countries {
			if c == country {
				e.state.Countries = append(e.state.Countries[:i:i], e.state.Countries[i+1:]...)
				return
			}
		}
		e.state.Countries = append(e.state.Countries, country)
	})
}

// SetCountries reemplaza la selección de países (sin duplicados, ordenados).
func (e *Engine[T]) SetCountries(countries []string) {
	e.update(func() {
		seen := make(map[string]struct{}, len(countries))
		out := make([]string, 0, len(countries))
		for _, c := range countries {
			if _, ok := seen[c]; ok || c == "" {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
		sort.Strings(out)
		e.state.Countries = out
	})
}

func (e *Engine[T]) SetSort(opt SortOption) {
	e.update(func() { e.state.Sort = opt })
}

// ClearFilters limpia consulta y filtros; conserva el orden.
func (e *Engine[T]) ClearFilters() {
	e.update(func() {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.pending = ""
		e.state = FilterState{Sort: e.state.Sort}
	})
}

// State copia del estado aplicado.
func (e *Engine[T]) State() FilterState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Results resultados vigentes (copia).
func (e *Engine[T]) Results() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recomputeLocked()
	return append([]T(nil), e.results...)
}

// Close detiene el debounce pendiente. Tras Close el motor ignora nuevas consultas.
func (e *Engine[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine[T]) update(fn func()) {
	e.mu.Lock()
	fn()
	e.dirty = true
	count := -1
	if e.onChange != nil {
		e.recomputeLocked()
		count = len(e.results)
	}
	cb := e.onChange
	e.mu.Unlock()

	if cb != nil {
		cb(count)
	}
}

func (e *Engine[T]) recomputeLocked() {
	if !e.dirty {
		return
	}
	e.results = Apply(e.items, e.state, e.locale)
	e.dirty = false
}
