package profile_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/mercado-bff/internal/application/profile"
	"github.com/jhoicas/mercado-bff/internal/domain"
	"github.com/jhoicas/mercado-bff/internal/domain/entity"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
	"github.com/jhoicas/mercado-bff/internal/infrastructure/storage"
)

// fakeBackend cuenta llamadas y delega en funciones configurables por test.
type fakeBackend struct {
	profileCalls atomic.Int32
	switchCalls  atomic.Int32
	getProfile   func(ctx context.Context) (*entity.Profile, error)
	switchTo     func(ctx context.Context, companyID string, attempt int) (*entity.Profile, error)
}

func (f *fakeBackend) GetCurrentProfile(ctx context.Context, _ string) (*entity.Profile, error) {
	f.profileCalls.Add(1)
	return f.getProfile(ctx)
}

func (f *fakeBackend) SwitchCompany(ctx context.Context, _, companyID string) (*entity.Profile, error) {
	n := f.switchCalls.Add(1)
	return f.switchTo(ctx, companyID, int(n))
}

func profileWithoutActive(companies ...entity.Company) *entity.Profile {
	return &entity.Profile{
		User:           &entity.User{Identity: entity.Identity{MongoID: "u-1"}, Email: "ana@example.com"},
		OtherCompanies: companies,
	}
}

func switched(companyID string) *entity.Profile {
	return &entity.Profile{
		ActiveCompany: &entity.ActiveCompany{
			Company:  entity.Company{Identity: entity.Identity{MongoID: companyID}, Name: "Activa"},
			Managers: []entity.UserSummary{{Identity: entity.Identity{ID: "u-1"}}},
		},
		OtherCompanies: []entity.Company{},
	}
}

var (
	acme    = entity.Company{Identity: entity.Identity{MongoID: "c-1"}, Name: "Acme"}
	globex  = entity.Company{Identity: entity.Identity{MongoID: "c-2"}, Name: "Globex"}
	noIDCo  = entity.Company{Name: "Sin ID"}
	testOpt = profile.Options{SwitchDelay: time.Millisecond}
)

type fixture struct {
	backend *fakeBackend
	store   *storage.MemoryStore
	now     time.Time
}

func newFixture(b *fakeBackend) *fixture {
	return &fixture{backend: b, store: storage.NewMemoryStore(0), now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fixture) session(token string) *profile.Session {
	opts := testOpt
	opts.Now = func() time.Time { return f.now }
	return profile.NewSession("s-1", "u-1", token, f.backend, storage.NewScoped(f.store, "test:u-1"), opts, zerolog.Nop())
}

func TestFetchProfile_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) {
			<-release
			return &entity.Profile{User: &entity.User{Identity: entity.Identity{ID: "u-1"}}}, nil
		},
	}
	s := newFixture(b).session("tok")

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.FetchProfile(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return b.profileCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, profile.StateFetching, s.State())
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, b.profileCalls.Load(), "las cargas concurrentes comparten una sola petición")
	assert.Equal(t, profile.StateIdle, s.State())
}

func TestFetchProfile_CancelacionNoAbortaCargaCompartida(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) {
			<-release
			return &entity.Profile{User: &entity.User{Identity: entity.Identity{ID: "u-1"}}}, nil
		},
	}
	s := newFixture(b).session("tok")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.FetchProfile(ctx) }()
	require.Eventually(t, func() bool { return b.profileCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return s.Snapshot().User != nil }, time.Second, 5*time.Millisecond)
}

func TestEnsureProfileData_AutoseleccionConReintentos(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) { return profileWithoutActive(acme, globex), nil },
		switchTo: func(_ context.Context, id string, attempt int) (*entity.Profile, error) {
			if attempt < 3 {
				return nil, &domain.Error{Kind: domain.KindNetwork, Message: "timeout"}
			}
			return switched(id), nil
		},
	}
	s := newFixture(b).session("tok")

	snap, err := s.EnsureProfileData(context.Background(), false)
	require.NoError(t, err)

	assert.EqualValues(t, 1, b.profileCalls.Load())
	assert.EqualValues(t, 3, b.switchCalls.Load())
	require.NotNil(t, snap.ActiveCompany)
	assert.Equal(t, "c-1", snap.ActiveCompany.Company.Key())
	assert.Equal(t, "Activa", snap.ActiveCompany.Company.Name)
	require.NotNil(t, snap.User, "la respuesta de switch sin usuario conserva el usuario original")
	assert.Equal(t, "ana@example.com", snap.User.Email)
	assert.True(t, s.IsCompanyManager())
	assert.False(t, s.IsCompanyAdmin())
}

func TestEnsureProfileData_ReintentosAgotadosSeleccionLocal(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) { return profileWithoutActive(acme, globex), nil },
		switchTo: func(context.Context, string, int) (*entity.Profile, error) {
			return nil, errors.New("backend caído")
		},
	}
	s := newFixture(b).session("tok")

	snap, err := s.EnsureProfileData(context.Background(), false)
	require.NoError(t, err, "la autoselección fallida no es un error para el llamador")

	assert.EqualValues(t, 1, b.profileCalls.Load())
	assert.EqualValues(t, 3, b.switchCalls.Load())
	require.NotNil(t, snap.ActiveCompany)
	assert.Equal(t, "Acme", snap.ActiveCompany.Company.Name)
	assert.NotNil(t, snap.ActiveCompany.Tasks)
	assert.NotNil(t, snap.ActiveCompany.Admins)
	require.Len(t, snap.OtherCompanies, 1)
	assert.Equal(t, "Globex", snap.OtherCompanies[0].Name)
	assert.Equal(t, profile.StateIdle, s.State())
}

func TestEnsureProfileData_EmpresaSinIDSeleccionLocal(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) { return profileWithoutActive(noIDCo, acme), nil },
		switchTo: func(context.Context, string, int) (*entity.Profile, error) {
			t.Fatal("no debe llamarse switchCompany para una empresa sin id")
			return nil, nil
		},
	}
	s := newFixture(b).session("tok")

	snap, err := s.EnsureProfileData(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, snap.ActiveCompany)
	assert.Equal(t, "Sin ID", snap.ActiveCompany.Company.Name)
	assert.EqualValues(t, 0, b.switchCalls.Load())
}

func TestEnsureProfileData_CacheVencida(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) {
			return &entity.Profile{User: &entity.User{Identity: entity.Identity{ID: "u-1"}}, OtherCompanies: []entity.Company{}}, nil
		},
	}
	f := newFixture(b)
	s := f.session("tok")
	ctx := context.Background()

	_, err := s.EnsureProfileData(ctx, false)
	require.NoError(t, err)
	_, err = s.EnsureProfileData(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, b.profileCalls.Load(), "dentro del TTL se usa la caché")

	f.now = f.now.Add(10 * time.Minute)
	_, err = s.EnsureProfileData(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, b.profileCalls.Load(), "exactamente en el TTL aún está vigente")

	f.now = f.now.Add(time.Second)
	_, err = s.EnsureProfileData(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, b.profileCalls.Load())

	_, err = s.RefreshProfile(ctx, profile.RefreshOptions{Force: true})
	require.NoError(t, err)
	assert.EqualValues(t, 3, b.profileCalls.Load())
}

func TestEnsureProfileData_SinTokenFalla(t *testing.T) {
	b := &fakeBackend{}
	s := newFixture(b).session("")

	_, err := s.EnsureProfileData(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.EqualValues(t, 0, b.profileCalls.Load())
}

func TestEnsureProfileData_ErrorDelBackend(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) {
			return nil, &domain.Error{Kind: domain.KindUnauthorized, Status: 401, Message: "token expirado"}
		},
	}
	s := newFixture(b).session("tok")

	_, err := s.EnsureProfileData(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
	assert.Equal(t, profile.StateError, s.State())
}

func TestRestore_RehidrataDesdeStore(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) { return profileWithoutActive(acme), nil },
		switchTo:   func(_ context.Context, id string, _ int) (*entity.Profile, error) { return switched(id), nil },
	}
	f := newFixture(b)
	_, err := f.session("tok").EnsureProfileData(context.Background(), false)
	require.NoError(t, err)

	// Nueva sesión sobre el mismo store: equivalente a recargar la página.
	s2 := f.session("tok")
	s2.Restore(context.Background())
	snap, err := s2.EnsureProfileData(context.Background(), false)
	require.NoError(t, err)

	assert.EqualValues(t, 1, b.profileCalls.Load(), "el estado rehidratado sigue vigente")
	require.NotNil(t, snap.User)
	assert.Equal(t, "u-1", snap.User.ID)
	require.NotNil(t, snap.ActiveCompany)
	assert.Equal(t, "c-1", snap.ActiveCompany.Company.ID)
	require.Len(t, snap.ActiveCompany.Managers, 1)
	assert.True(t, s2.IsCompanyManager())
	assert.Equal(t, f.now.UnixMilli(), s2.LastFetch().UnixMilli())
}

func TestEnsureProfileData_UsuarioSinEmpresaActivaRecarga(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) { return profileWithoutActive(acme), nil },
		switchTo:   func(_ context.Context, id string, _ int) (*entity.Profile, error) { return switched(id), nil },
	}
	f := newFixture(b)
	ctx := context.Background()
	scoped := storage.NewScoped(f.store, "test:u-1")
	require.NoError(t, scoped.Set(ctx, "user", `{"_id":"u-1"}`))
	require.NoError(t, scoped.Set(ctx, "other_companies", `[{"_id":"c-1","name":"Acme"}]`))
	require.NoError(t, scoped.Set(ctx, "profile_last_fetch", "1767268800000"))

	s := f.session("tok")
	s.Restore(ctx)
	snap, err := s.EnsureProfileData(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, b.profileCalls.Load(), "usuario sin empresa activa con empresas disponibles fuerza la carga")
	require.NotNil(t, snap.ActiveCompany)
}

func TestSwitchCompany_SinReintentos(t *testing.T) {
	b := &fakeBackend{
		switchTo: func(context.Context, string, int) (*entity.Profile, error) {
			return nil, &domain.Error{Kind: domain.KindForbidden, Status: 403, Message: "sin acceso"}
		},
	}
	s := newFixture(b).session("tok")

	_, err := s.SwitchCompany(context.Background(), "c-9")
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	assert.EqualValues(t, 1, b.switchCalls.Load())

	_, err = s.SwitchCompany(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateUserYLogout(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) {
			return &entity.Profile{User: &entity.User{Identity: entity.Identity{ID: "u-1"}, Name: "Ana"}}, nil
		},
	}
	f := newFixture(b)
	s := f.session("tok")
	ctx := context.Background()

	name := "Ana María"
	_, err := s.UpdateUser(ctx, entity.UserPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.EnsureProfileData(ctx, false)
	require.NoError(t, err)
	u, err := s.UpdateUser(ctx, entity.UserPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", u.Name)
	assert.Equal(t, "Ana María", s.Snapshot().User.Name)

	s.Logout(ctx)
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.Snapshot().User)
	assert.True(t, s.LastFetch().IsZero())
	assert.Zero(t, f.store.Used(), "logout borra todas las claves de la sesión")
}

func TestRoles_Jerarquia(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) {
			return &entity.Profile{
				User: &entity.User{Identity: entity.Identity{ID: "u-1"}},
				ActiveCompany: &entity.ActiveCompany{
					Company:   acme,
					Operators: []entity.UserSummary{{Identity: entity.Identity{MongoID: "u-1"}}},
				},
			}, nil
		},
	}
	s := newFixture(b).session("tok")
	_, err := s.EnsureProfileData(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, s.IsSuperadmin())
	assert.False(t, s.IsCompanyAdmin())
	assert.False(t, s.IsCompanyManager())
	assert.True(t, s.IsCompanyOperator())
}

func TestRoles_SuperadminEsTodo(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) {
			return &entity.Profile{User: &entity.User{Identity: entity.Identity{ID: "root"}, Superadmin: true}}, nil
		},
	}
	s := newFixture(b).session("tok")
	_, err := s.EnsureProfileData(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, s.IsSuperadmin())
	assert.True(t, s.IsCompanyAdmin())
	assert.True(t, s.IsCompanyManager())
	assert.True(t, s.IsCompanyOperator())
}

func TestManager_SesionPorUsuario(t *testing.T) {
	b := &fakeBackend{}
	store := storage.NewMemoryStore(0)
	scope := func(userID string) repository.KVStore { return storage.NewScoped(store, "test:"+userID) }
	m := profile.NewManager(b, scope, testOpt, zerolog.Nop())
	ctx := context.Background()

	a1 := m.Session(ctx, "a", "tok-1")
	a2 := m.Session(ctx, "a", "tok-2")
	bs := m.Session(ctx, "b", "tok-b")
	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, bs)
	assert.NotEqual(t, a1.ID(), bs.ID())
	assert.Equal(t, 2, m.Len())

	m.Logout(ctx, "a")
	assert.Equal(t, 1, m.Len())
	assert.False(t, a1.Authenticated())
	m.Logout(ctx, "nadie")
	assert.Equal(t, 1, m.Len())
}

func TestEnsureProfileData_CacheVencidaConEmpresaActiva(t *testing.T) {
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) {
			return &entity.Profile{
				User:           &entity.User{Identity: entity.Identity{ID: "u-1"}},
				ActiveCompany:  &entity.ActiveCompany{Company: acme},
				OtherCompanies: []entity.Company{globex},
			}, nil
		},
	}
	f := newFixture(b)
	s := f.session("tok")
	ctx := context.Background()

	snap, err := s.EnsureProfileData(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, snap.ActiveCompany)
	assert.EqualValues(t, 1, b.profileCalls.Load())

	f.now = f.now.Add(5 * time.Minute)
	_, err = s.EnsureProfileData(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, b.profileCalls.Load(), "perfil completo dentro del TTL no recarga")

	f.now = f.now.Add(5*time.Minute + time.Second)
	_, err = s.EnsureProfileData(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, b.profileCalls.Load(), "vencido el TTL se recarga aunque haya empresa activa")
	assert.EqualValues(t, 0, b.switchCalls.Load())
}

func TestLogout_DuranteCargaNoRestauraPerfil(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{
		getProfile: func(context.Context) (*entity.Profile, error) {
			<-release
			return &entity.Profile{
				User:          &entity.User{Identity: entity.Identity{ID: "u-1"}, Email: "ana@example.com"},
				ActiveCompany: &entity.ActiveCompany{Company: acme},
			}, nil
		},
	}
	store := storage.NewMemoryStore(0)
	scope := func(userID string) repository.KVStore { return storage.NewScoped(store, "test:"+userID) }
	m := profile.NewManager(b, scope, testOpt, zerolog.Nop())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.Session(ctx, "u-1", "tok").EnsureProfileData(ctx, false)
		done <- err
	}()
	require.Eventually(t, func() bool { return b.profileCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	m.Logout(ctx, "u-1")
	close(release)
	assert.ErrorIs(t, <-done, domain.ErrUnauthenticated)

	assert.Zero(t, store.Used(), "la carga interrumpida no persiste nada")
	snap := m.Session(ctx, "u-1", "tok2").Snapshot()
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.ActiveCompany)
}

func TestManager_DesalojaSesionesInactivas(t *testing.T) {
	b := &fakeBackend{}
	store := storage.NewMemoryStore(0)
	scope := func(userID string) repository.KVStore { return storage.NewScoped(store, "test:"+userID) }
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	opts := testOpt
	opts.IdleTTL = 10 * time.Minute
	opts.Now = func() time.Time { return now }
	m := profile.NewManager(b, scope, opts, zerolog.Nop())
	ctx := context.Background()

	var evicted []string
	m.OnEvict(func(userID string) { evicted = append(evicted, userID) })

	a := m.Session(ctx, "a", "tok-a")
	m.Session(ctx, "b", "tok-b")

	now = now.Add(6 * time.Minute)
	m.Session(ctx, "b", "tok-b")
	assert.Zero(t, m.EvictIdle())

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, m.EvictIdle())
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, 1, m.Len())
	assert.True(t, a.Authenticated(), "desalojar no es cerrar sesión")

	assert.NotSame(t, a, m.Session(ctx, "a", "tok-a"), "el usuario vuelve con una sesión nueva")
}
