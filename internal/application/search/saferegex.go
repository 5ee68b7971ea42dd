package search

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// ErrUnsafePattern patrón rechazado por riesgo de backtracking catastrófico.
var ErrUnsafePattern = errors.New("patrón con cuantificadores anidados")

// Tiempo máximo de un match; regexp2 devuelve error si se supera.
const defaultMatchTimeout = 50 * time.Millisecond

// NewSafeRegex compila el patrón del usuario (sintaxis ECMAScript, sin distinguir mayúsculas)
// si no tiene formas de backtracking catastrófico. Se permite (/...)*, habitual para rutas.
func NewSafeRegex(pattern string) (*regexp2.Regexp, error) {
	if err := checkPattern(pattern); err != nil {
		return nil, err
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript|regexp2.IgnoreCase)
	if err != nil {
		return nil, fmt.Errorf("compilar patrón: %w", err)
	}
	re.MatchTimeout = defaultMatchTimeout
	return re, nil
}

// group grupo abierto durante el recorrido del patrón.
type group struct {
	start    int
	hasQuant bool // el cuerpo (o un grupo hijo) contiene un cuantificador
}

// checkPattern recorre el patrón con una pila de paréntesis y rechaza todo grupo cuantificado
// cuyo cuerpo, directamente o a través de grupos anidados, también tenga un cuantificador:
// (X+)+, (X*)*, (X{m,n})+, ((X+))+, ((X+)Y)+, (?:(X+))*, ...
func checkPattern(pattern string) error {
	var stack []group
	markTop := func() {
		if len(stack) > 0 {
			stack[len(stack)-1].hasQuant = true
		}
	}
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++ // el carácter escapado es un literal
		case '[':
			i = skipClass(pattern, i)
		case '(':
			stack = append(stack, group{start: i})
		case ')':
			if len(stack) == 0 {
				continue // desbalanceado: lo rechaza la compilación
			}
			g := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			n := quantifierAt(pattern, i+1)
			if n == 0 {
				if g.hasQuant {
					markTop()
				}
				continue
			}
			outer := pattern[i+1 : i+1+n]
			if g.hasQuant && !isPathRepeat(pattern[g.start+1:i], outer) {
				return fmt.Errorf("%w: %q", ErrUnsafePattern, pattern[g.start:i+1+n])
			}
			markTop()
			i += n
		default:
			if n := quantifierAt(pattern, i); n > 0 {
				markTop()
				i += n - 1
			}
		}
	}
	return nil
}

// quantifierAt longitud del cuantificador +, * o {m,n} que empieza en i (0 si no hay).
func quantifierAt(p string, i int) int {
	if i >= len(p) {
		return 0
	}
	switch p[i] {
	case '+', '*':
		return 1
	case '{':
		j := i + 1
		digits := 0
		for j < len(p) && p[j] >= '0' && p[j] <= '9' {
			j++
			digits++
		}
		if digits == 0 {
			return 0
		}
		if j < len(p) && p[j] == ',' {
			j++
			for j < len(p) && p[j] >= '0' && p[j] <= '9' {
				j++
			}
		}
		if j < len(p) && p[j] == '}' {
			return j - i + 1
		}
	}
	return 0
}

// skipClass devuelve el índice del ']' que cierra la clase abierta en i.
func skipClass(p string, i int) int {
	for j := i + 1; j < len(p); j++ {
		switch p[j] {
		case '\\':
			j++
		case ']':
			return j
		}
	}
	return len(p)
}

// isPathRepeat permite (/...)*, habitual para segmentos de ruta.
func isPathRepeat(body, outer string) bool {
	body = strings.TrimPrefix(body, "?:")
	return outer == "*" && (strings.HasPrefix(body, "/") || strings.HasPrefix(body, `\/`))
}
