package entity_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/mercado-bff/internal/domain/entity"
)

func TestNormalize_RellenaIDDesdeMongoID(t *testing.T) {
	c := entity.Normalize(entity.Company{Identity: entity.Identity{MongoID: "abc"}, Name: "Acme"})
	assert.Equal(t, "abc", c.ID)
	assert.Equal(t, "abc", c.MongoID)
	assert.Equal(t, "Acme", c.Name)
}

func TestNormalize_RellenaMongoIDDesdeID(t *testing.T) {
	u := entity.Normalize(entity.User{Identity: entity.Identity{ID: "u-1"}})
	assert.Equal(t, "u-1", u.MongoID)
}

func TestNormalize_AmbosONingunoSinCambios(t *testing.T) {
	both := entity.Normalize(entity.Company{Identity: entity.Identity{MongoID: "a", ID: "b"}})
	assert.Equal(t, "a", both.MongoID)
	assert.Equal(t, "b", both.ID)

	none := entity.Normalize(entity.Company{Name: "sin id"})
	assert.False(t, none.HasID())
	assert.Empty(t, none.Key())
}

func TestNormalize_NoModificaOriginal(t *testing.T) {
	orig := entity.Company{Identity: entity.Identity{MongoID: "abc"}}
	_ = entity.Normalize(orig)
	assert.Empty(t, orig.ID)
}

func TestNormalizeAll_NilDevuelveVacio(t *testing.T) {
	out := entity.NormalizeAll[entity.Company](nil)
	require.NotNil(t, out)
	assert.Len(t, out, 0)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestIdentity_KeyPrefiereMongoID(t *testing.T) {
	assert.Equal(t, "m", entity.Identity{MongoID: "m", ID: "i"}.Key())
	assert.Equal(t, "i", entity.Identity{ID: "i"}.Key())
}

func TestIdentity_SameAsToleraCampoDistinto(t *testing.T) {
	a := entity.Identity{MongoID: "x"}
	b := entity.Identity{ID: "x"}
	assert.True(t, a.SameAs(b))
	assert.False(t, a.SameAs(entity.Identity{ID: "y"}))
	assert.False(t, entity.Identity{}.SameAs(entity.Identity{}))
}

func TestNormalizeProfile_NormalizaTodo(t *testing.T) {
	p := &entity.Profile{
		User: &entity.User{Identity: entity.Identity{MongoID: "u"}},
		ActiveCompany: &entity.ActiveCompany{
			Company: entity.Company{Identity: entity.Identity{ID: "c"}},
			Admins:  []entity.UserSummary{{Identity: entity.Identity{MongoID: "u"}}},
		},
		OtherCompanies: []entity.Company{{Identity: entity.Identity{MongoID: "o"}}},
	}
	entity.NormalizeProfile(p)

	assert.Equal(t, "u", p.User.ID)
	assert.Equal(t, "c", p.ActiveCompany.Company.MongoID)
	assert.Equal(t, "o", p.OtherCompanies[0].ID)
	assert.Equal(t, "u", p.ActiveCompany.Roles().Admins[0].ID)
}

func TestRoleSnapshot_SanitizedYIDsOnly(t *testing.T) {
	var empty *entity.ActiveCompany
	roles := empty.Roles()
	require.NotNil(t, roles.Admins)
	require.NotNil(t, roles.Managers)
	require.NotNil(t, roles.Operators)

	full := entity.RoleSnapshot{Admins: []entity.UserSummary{{Identity: entity.Identity{ID: "1"}, Email: "a@x.com", Name: "A"}}}
	ids := full.IDsOnly()
	require.Len(t, ids.Admins, 1)
	assert.Equal(t, "1", ids.Admins[0].ID)
	assert.Empty(t, ids.Admins[0].Email)
	assert.NotNil(t, ids.Operators)
}

func TestNewLocalActiveCompany_ColeccionesVacias(t *testing.T) {
	ac := entity.NewLocalActiveCompany(entity.Company{Identity: entity.Identity{MongoID: "c"}, Name: "Acme"})
	raw, err := json.Marshal(ac)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.JSONEq(t, `{}`, string(m["metrics"]))
	for _, k := range []string{"tasks", "devices", "spaces", "admins", "managers", "operators"} {
		assert.JSONEq(t, `[]`, string(m[k]), k)
	}
	assert.Equal(t, "c", ac.Company.ID)
}

func TestUserPatch_Apply(t *testing.T) {
	name := "Nuevo"
	u := entity.User{Identity: entity.Identity{ID: "1"}, Name: "Viejo", Email: "a@x.com"}
	out := entity.UserPatch{Name: &name}.Apply(u)
	assert.Equal(t, "Nuevo", out.Name)
	assert.Equal(t, "a@x.com", out.Email)
	assert.Equal(t, "Viejo", u.Name)
}

func TestListing_PriceValueNulo(t *testing.T) {
	var l entity.Listing
	assert.Nil(t, l.PriceValue())
}
