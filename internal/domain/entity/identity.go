package entity

// Identity agrupa los dos campos de identidad que devuelve el backend.
// Según el endpoint llega "_id" (documento Mongo), "id" (serializador REST) o ambos.
type Identity struct {
	MongoID string `json:"_id,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Ident expone la identidad para Normalize; se promueve a toda entidad que embeba Identity.
func (i *Identity) Ident() *Identity { return i }

// HasID indica si al menos uno de los dos campos está presente.
func (i Identity) HasID() bool {
	return i.MongoID != "" || i.ID != ""
}

// Key devuelve el identificador preferido (_id si existe).
func (i Identity) Key() string {
	if i.MongoID != "" {
		return i.MongoID
	}
	return i.ID
}

// SameAs compara identidades tolerando que cada lado tenga un campo distinto.
func (i Identity) SameAs(o Identity) bool {
	for _, a := range []string{i.MongoID, i.ID} {
		if a == "" {
			continue
		}
		if a == o.MongoID || a == o.ID {
			return true
		}
	}
	return false
}

func (i *Identity) normalize() {
	switch {
	case i.MongoID != "" && i.ID == "":
		i.ID = i.MongoID
	case i.ID != "" && i.MongoID == "":
		i.MongoID = i.ID
	}
}

// Identifiable restringe Normalize a tipos cuyo puntero expone la identidad.
type Identifiable[T any] interface {
	*T
	Ident() *Identity
}

// Normalize devuelve una copia de e con "_id" e "id" rellenados a partir del que exista.
// Si existen ambos o ninguno, la entidad se devuelve sin cambios.
func Normalize[T any, P Identifiable[T]](e T) T {
	P(&e).Ident().normalize()
	return e
}

// NormalizeAll aplica Normalize a cada elemento. Nunca devuelve nil.
func NormalizeAll[T any, P Identifiable[T]](items []T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, Normalize[T, P](it))
	}
	return out
}
