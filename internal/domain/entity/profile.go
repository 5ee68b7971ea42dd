package entity

// Profile es el agregado que devuelven los endpoints de perfil y de cambio de empresa.
type Profile struct {
	User           *User          `json:"user"`
	ActiveCompany  *ActiveCompany `json:"active_company"`
	OtherCompanies []Company      `json:"other_companies"`
}

// NormalizeProfile normaliza en sitio todas las entidades del perfil.
func NormalizeProfile(p *Profile) {
	if p == nil {
		return
	}
	if p.User != nil {
		u := Normalize(*p.User)
		p.User = &u
	}
	if p.ActiveCompany != nil {
		ac := *p.ActiveCompany
		ac.Company = Normalize(ac.Company)
		roles := ac.Roles()
		ac.Admins, ac.Managers, ac.Operators = roles.Admins, roles.Managers, roles.Operators
		p.ActiveCompany = &ac
	}
	p.OtherCompanies = NormalizeAll(p.OtherCompanies)
}
