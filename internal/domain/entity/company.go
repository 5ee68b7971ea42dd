package entity

import "encoding/json"

// Company representa una organización a la que pertenece el usuario.
type Company struct {
	Identity
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

// ActiveCompany es la empresa seleccionada como contexto de trabajo, con sus agregados.
// Metrics, Tasks, Devices y Spaces se conservan como JSON opaco: este servicio no los interpreta.
type ActiveCompany struct {
	Company   Company           `json:"company"`
	Metrics   json.RawMessage   `json:"metrics,omitempty"`
	Tasks     []json.RawMessage `json:"tasks"`
	Devices   []json.RawMessage `json:"devices"`
	Spaces    []json.RawMessage `json:"spaces"`
	Admins    []UserSummary     `json:"admins"`
	Managers  []UserSummary     `json:"managers"`
	Operators []UserSummary     `json:"operators"`
}

// NewLocalActiveCompany construye una empresa activa sin datos del backend
// (métricas, tareas, dispositivos, espacios y roles vacíos).
func NewLocalActiveCompany(c Company) *ActiveCompany {
	return &ActiveCompany{
		Company:   Normalize(c),
		Metrics:   json.RawMessage(`{}`),
		Tasks:     []json.RawMessage{},
		Devices:   []json.RawMessage{},
		Spaces:    []json.RawMessage{},
		Admins:    []UserSummary{},
		Managers:  []UserSummary{},
		Operators: []UserSummary{},
	}
}

// Roles extrae la instantánea de roles de la empresa activa.
func (a *ActiveCompany) Roles() RoleSnapshot {
	if a == nil {
		return RoleSnapshot{}.Sanitized()
	}
	return RoleSnapshot{Admins: a.Admins, Managers: a.Managers, Operators: a.Operators}.Sanitized()
}

// RoleSnapshot arreglos de roles de la empresa activa; se persiste aparte del resto del perfil.
type RoleSnapshot struct {
	Admins    []UserSummary `json:"admins"`
	Managers  []UserSummary `json:"managers"`
	Operators []UserSummary `json:"operators"`
}

// Sanitized normaliza identidades y garantiza arreglos no nulos (se serializan como []).
func (r RoleSnapshot) Sanitized() RoleSnapshot {
	return RoleSnapshot{
		Admins:    NormalizeAll(r.Admins),
		Managers:  NormalizeAll(r.Managers),
		Operators: NormalizeAll(r.Operators),
	}
}

// IDsOnly reduce cada usuario a su identidad (resumen para cargas demasiado grandes).
func (r RoleSnapshot) IDsOnly() RoleSnapshot {
	strip := func(in []UserSummary) []UserSummary {
		out := make([]UserSummary, 0, len(in))
		for _, u := range in {
			out = append(out, UserSummary{Identity: u.Identity})
		}
		return out
	}
	return RoleSnapshot{Admins: strip(r.Admins), Managers: strip(r.Managers), Operators: strip(r.Operators)}
}

// Contains indica si la identidad está en el arreglo.
func Contains(list []UserSummary, id Identity) bool {
	for _, u := range list {
		if u.Identity.SameAs(id) {
			return true
		}
	}
	return false
}
