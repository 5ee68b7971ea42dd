package entity

import "github.com/shopspring/decimal"

// User representa al usuario autenticado tal como lo devuelve el backend.
type User struct {
	Identity
	Email             string          `json:"email"`
	Name              string          `json:"name,omitempty"`
	Balance           decimal.Decimal `json:"balance"`
	Superadmin        bool            `json:"superadmin"`
	PurchasedProducts []string        `json:"purchased_products,omitempty"`
}

// UserSummary versión reducida de un usuario, usada en los arreglos de roles de una empresa.
type UserSummary struct {
	Identity
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// UserPatch cambios locales sobre el usuario cargado (campos opcionales).
type UserPatch struct {
	Name              *string          `json:"name"`
	Email             *string          `json:"email"`
	Balance           *decimal.Decimal `json:"balance"`
	PurchasedProducts []string         `json:"purchased_products"`
}

// Apply aplica el parche sobre una copia del usuario.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Balance != nil {
		u.Balance = *p.Balance
	}
	if p.PurchasedProducts != nil {
		u.PurchasedProducts = append([]string(nil), p.PurchasedProducts...)
	}
	return u
}
