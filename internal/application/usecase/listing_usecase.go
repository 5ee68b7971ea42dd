package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/jhoicas/mercado-bff/internal/application/dto"
	"github.com/jhoicas/mercado-bff/internal/application/profile"
	"github.com/jhoicas/mercado-bff/internal/application/search"
	"github.com/jhoicas/mercado-bff/internal/domain/entity"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
)

// DefaultListingTTL vigencia del listado del marketplace en caché.
const DefaultListingTTL = 5 * time.Minute

// DefaultLiveIdleTTL inactividad tras la cual se descarta la búsqueda en vivo de un usuario.
const DefaultLiveIdleTTL = 30 * time.Minute

const keyListings = "marketplace_listings"

type cachedListings struct {
	FetchedAt int64            `json:"fetched_at"` // unix ms
	Items     []entity.Listing `json:"items"`
}

// ListingOptions parámetros del caso de uso.
type ListingOptions struct {
	CacheTTL    time.Duration
	LiveIdleTTL time.Duration
	Debounce    time.Duration
	Locale      language.Tag
	Now         func() time.Time
}

type liveEntry struct {
	engine   *search.Engine[entity.Listing]
	lastSeen time.Time
}

// ListingUseCase listado del marketplace con caché por usuario, búsqueda por petición
// y búsqueda en vivo (con debounce) por usuario.
type ListingUseCase struct {
	backend repository.ListingBackend
	scope   profile.StoreScope
	policy  profile.CachePolicy
	opts    ListingOptions
	log     zerolog.Logger

	flight singleflight.Group

	mu   sync.Mutex
	live map[string]*liveEntry
}

// NewListingUseCase construye el caso de uso.
func NewListingUseCase(backend repository.ListingBackend, scope profile.StoreScope, opts ListingOptions, log zerolog.Logger) *ListingUseCase {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultListingTTL
	}
	if opts.LiveIdleTTL <= 0 {
		opts.LiveIdleTTL = DefaultLiveIdleTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Locale == (language.Tag{}) {
		opts.Locale = language.Spanish
	}
	return &ListingUseCase{
		backend: backend,
		scope:   scope,
		policy:  profile.CachePolicy{TTL: opts.CacheTTL},
		opts:    opts,
		log:     log,
		live:    make(map[string]*liveEntry),
	}
}

// Listings devuelve el listado desde la caché del usuario o, si venció, desde el backend.
// Cargas concurrentes del mismo usuario comparten una sola llamada.
func (uc *ListingUseCase) Listings(ctx context.Context, userID, token string, force bool) ([]entity.Listing, error) {
	store := uc.scope(userID)
	if !force {
		if items, ok := uc.readCache(ctx, store); ok {
			return items, nil
		}
	}
	// La carga compartida no depende del ctx de quien la inició: si ese llamador
	// abandona, los demás siguen esperando el resultado.
	loadCtx := context.WithoutCancel(ctx)
	ch := uc.flight.DoChan(userID, func() (any, error) {
		items, err := uc.backend.ListListings(loadCtx, token)
		if err != nil {
			uc.log.Error().Err(err).Str("user_id", userID).Msg("obtener listado del marketplace")
			return nil, err
		}
		items = entity.NormalizeAll(items)
		uc.writeCache(loadCtx, store, items)
		return items, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("obtener listado: %w", res.Err)
		}
		return res.Val.([]entity.Listing), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Search aplica filtros y orden sobre el listado (sin debounce) y pagina.
func (uc *ListingUseCase) Search(ctx context.Context, userID, token string, in dto.ListingSearchRequest) (*dto.ListingSearchResponse, error) {
	sortOpt, err := search.ParseSort(in.Sort)
	if err != nil {
		return nil, err
	}
	items, err := uc.Listings(ctx, userID, token, in.Force)
	if err != nil {
		return nil, err
	}
	state := search.FilterState{
		Query:       strings.ToLower(strings.TrimSpace(in.Query)),
		Regex:       in.Regex,
		Category:    in.Category,
		Subcategory: in.Subcategory,
		Countries:   in.Countries,
		Sort:        sortOpt,
	}
	results := search.Apply(items, state, uc.opts.Locale)
	return toSearchResponse(results, state, "", in.Page), nil
}

// Facets categorías, subcategorías por categoría y países presentes en el listado.
func (uc *ListingUseCase) Facets(ctx context.Context, userID, token string) (*dto.ListingFacetsResponse, error) {
	items, err := uc.Listings(ctx, userID, token, false)
	if err != nil {
		return nil, err
	}
	cats := map[string]map[string]struct{}{}
	countries := map[string]struct{}{}
	for _, it := range items {
		if it.Category != "" {
			if cats[it.Category] == nil {
				cats[it.Category] = map[string]struct{}{}
			}
			if it.Subcategory != "" {
				cats[it.Category][it.Subcategory] = struct{}{}
			}
		}
		for _, c := range it.Countries {
			countries[c] = struct{}{}
		}
	}
	out := &dto.ListingFacetsResponse{
		Categories:    make([]string, 0, len(cats)),
		Subcategories: make(map[string][]string, len(cats)),
		Countries:     sortedKeys(countries),
	}
	for c, subs := range cats {
		out.Categories = append(out.Categories, c)
		out.Subcategories[c] = sortedKeys(subs)
	}
	sort.Strings(out.Categories)
	return out, nil
}

// UpdateLive aplica cambios a la búsqueda en vivo del usuario y devuelve los resultados vigentes.
// La consulta de texto respeta el debounce: los resultados la reflejan cuando vence (o con Flush).
func (uc *ListingUseCase) UpdateLive(ctx context.Context, userID, token string, in dto.LiveSearchUpdate) (*dto.ListingSearchResponse, error) {
	var sortOpt *search.SortOption
	if in.Sort != nil {
		opt, err := search.ParseSort(*in.Sort)
		if err != nil {
			return nil, err
		}
		sortOpt = &opt
	}
	eng, err := uc.liveEngine(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if in.Clear {
		eng.ClearFilters()
	}
	if in.Regex != nil {
		eng.SetRegex(*in.Regex)
	}
	if in.Category != nil {
		eng.SetCategory(*in.Category)
	}
	if in.Subcategory != nil {
		eng.SetSubcategory(*in.Subcategory)
	}
	if in.Countries != nil {
		eng.SetCountries(in.Countries)
	}
	if in.ToggleCountry != "" {
		eng.ToggleCountry(in.ToggleCountry)
	}
	if sortOpt != nil {
		eng.SetSort(*sortOpt)
	}
	if in.Query != nil {
		eng.SetQuery(*in.Query)
	}
	if in.Flush {
		eng.FlushQuery()
	}
	return uc.liveResponse(eng, dto.PageRequest{}), nil
}

// Live resultados vigentes de la búsqueda en vivo.
func (uc *ListingUseCase) Live(ctx context.Context, userID, token string, page dto.PageRequest) (*dto.ListingSearchResponse, error) {
	eng, err := uc.liveEngine(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	return uc.liveResponse(eng, page), nil
}

// CloseLive descarta la búsqueda en vivo del usuario.
func (uc *ListingUseCase) CloseLive(userID string) {
	uc.mu.Lock()
	entry, ok := uc.live[userID]
	delete(uc.live, userID)
	uc.mu.Unlock()
	if ok {
		entry.engine.Close()
	}
}

// EvictIdleLive descarta las búsquedas en vivo sin uso durante más de LiveIdleTTL.
func (uc *ListingUseCase) EvictIdleLive() int {
	now := uc.opts.Now()
	uc.mu.Lock()
	var evicted []*search.Engine[entity.Listing]
	for userID, entry := range uc.live {
		if now.Sub(entry.lastSeen) > uc.opts.LiveIdleTTL {
			delete(uc.live, userID)
			evicted = append(evicted, entry.engine)
		}
	}
	uc.mu.Unlock()

	for _, eng := range evicted {
		eng.Close()
	}
	return len(evicted)
}

// LiveLen búsquedas en vivo en memoria.
func (uc *ListingUseCase) LiveLen() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return len(uc.live)
}

// liveEngine obtiene (o crea) el motor del usuario y le entrega el listado vigente.
func (uc *ListingUseCase) liveEngine(ctx context.Context, userID, token string) (*search.Engine[entity.Listing], error) {
	items, err := uc.Listings(ctx, userID, token, false)
	if err != nil {
		return nil, err
	}
	uc.mu.Lock()
	entry, ok := uc.live[userID]
	if !ok {
		entry = &liveEntry{engine: search.NewEngine(items, search.EngineOptions{Debounce: uc.opts.Debounce, Locale: uc.opts.Locale})}
		uc.live[userID] = entry
	}
	entry.lastSeen = uc.opts.Now()
	uc.mu.Unlock()
	if ok {
		entry.engine.SetItems(items)
	}
	return entry.engine, nil
}

func (uc *ListingUseCase) liveResponse(eng *search.Engine[entity.Listing], page dto.PageRequest) *dto.ListingSearchResponse {
	return toSearchResponse(eng.Results(), eng.State(), eng.PendingQuery(), page)
}

func (uc *ListingUseCase) readCache(ctx context.Context, store repository.KVStore) ([]entity.Listing, bool) {
	raw, ok := store.Get(ctx, keyListings)
	if !ok {
		return nil, false
	}
	var c cachedListings
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		uc.log.Warn().Err(err).Msg("caché de listados ilegible")
		return nil, false
	}
	if uc.policy.IsStale(time.UnixMilli(c.FetchedAt), uc.opts.Now()) {
		return nil, false
	}
	return c.Items, true
}

func (uc *ListingUseCase) writeCache(ctx context.Context, store repository.KVStore, items []entity.Listing) {
	raw, err := json.Marshal(cachedListings{FetchedAt: uc.opts.Now().UnixMilli(), Items: items})
	if err != nil {
		uc.log.Error().Err(err).Msg("serializar caché de listados")
		return
	}
	if err := store.Set(ctx, keyListings, string(raw)); err != nil {
		// Sin caché se vuelve a pedir al backend en la próxima búsqueda.
		uc.log.Warn().Err(err).Int("items", len(items)).Msg("no se pudo cachear el listado")
	}
}

func toSearchResponse(results []entity.Listing, state search.FilterState, pending string, page dto.PageRequest) *dto.ListingSearchResponse {
	page.DefaultPage()
	limit, offset := page.Limit, page.Offset
	total := len(results)
	end := offset + limit
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}
	items := make([]dto.ListingResponse, 0, end-offset)
	for _, l := range results[offset:end] {
		items = append(items, toListingResponse(l))
	}
	countries := state.Countries
	if countries == nil {
		countries = []string{}
	}
	if strings.ToLower(strings.TrimSpace(pending)) == state.Query {
		pending = ""
	}
	return &dto.ListingSearchResponse{
		Items: items,
		Total: total,
		Filters: dto.FilterStateDTO{
			Query:        state.Query,
			PendingQuery: pending,
			Regex:        state.Regex,
			Category:     state.Category,
			Subcategory:  state.Subcategory,
			Countries:    countries,
			Sort:         string(state.Sort),
		},
		Page: dto.PageResponse{Limit: limit, Offset: offset, Total: total},
	}
}

func toListingResponse(l entity.Listing) dto.ListingResponse {
	countries := l.Countries
	if countries == nil {
		countries = []string{}
	}
	return dto.ListingResponse{
		ID:          l.ID,
		MongoID:     l.MongoID,
		Title:       l.Title,
		Description: l.Description,
		CompanyName: l.CompanyName,
		Category:    l.Category,
		Subcategory: l.Subcategory,
		Countries:   countries,
		Price:       l.Price,
		CreatedAt:   l.CreatedAt,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
