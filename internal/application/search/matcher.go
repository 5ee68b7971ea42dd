package search

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// textMatcher decide si el texto (ya en minúsculas) coincide con la consulta.
type textMatcher func(text string) bool

// newTextMatcher construye el matcher de la consulta.
//
// Las fallas se tratan distinto según el modo y así debe quedar:
//   - modo regex: patrón rechazado, inválido o error en el match => no coincide.
//   - modo texto: error al compilar o al evaluar => coincide (no oculta resultados).
func newTextMatcher(query string, regex bool) textMatcher {
	if query == "" {
		return nil
	}
	if regex {
		re, err := NewSafeRegex(query)
		if err != nil {
			return func(string) bool { return false }
		}
		// Tras el primer timeout el patrón se da por hostil y el resto de items no se evalúa.
		tripped := false
		return func(text string) bool {
			if tripped {
				return false
			}
			ok, err := re.MatchString(text)
			if err != nil {
				tripped = true
				return false
			}
			return ok
		}
	}

	re, err := regexp2.Compile(regexp2.Escape(strings.ToLower(query)), regexp2.IgnoreCase)
	if err != nil {
		return func(string) bool { return true }
	}
	re.MatchTimeout = defaultMatchTimeout
	return func(text string) bool {
		ok, err := re.MatchString(text)
		if err != nil {
			return true
		}
		return ok
	}
}
