package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing es una publicación del marketplace (producto o servicio ofrecido por una empresa).
// Price es nulo para publicaciones "a convenir".
type Listing struct {
	Identity
	Title       string              `json:"title"`
	Description string              `json:"description"`
	CompanyName string              `json:"company_name"`
	Category    string              `json:"category"`
	Subcategory string              `json:"subcategory"`
	Countries   []string            `json:"countries"`
	Price       decimal.NullDecimal `json:"price"`
	CreatedAt   time.Time           `json:"created_at"`
}

func (l Listing) SearchText() string {
	return l.Title + " " + l.Description + " " + l.CompanyName
}

func (l Listing) CategoryValue() string    { return l.Category }
func (l Listing) SubcategoryValue() string { return l.Subcategory }
func (l Listing) CountryValues() []string  { return l.Countries }
func (l Listing) TitleValue() string       { return l.Title }

// PriceValue devuelve nil cuando la publicación no tiene precio.
func (l Listing) PriceValue() *decimal.Decimal {
	if !l.Price.Valid {
		return nil
	}
	p := l.Price.Decimal
	return &p
}
