// Package backend implementa los puertos hacia el backend REST de la plataforma.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/jhoicas/mercado-bff/internal/domain"
)

// Tope de lectura de respuestas; el perfil con roles grandes ronda los cientos de KB.
const maxResponseBytes = 4 << 20

// Client cliente HTTP del backend. Reenvía el Bearer del usuario en cada llamada.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient construye el cliente. timeout aplica a cada petición completa.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// do ejecuta la petición y devuelve el cuerpo si el backend respondió 2xx.
// Cualquier otro resultado se convierte en *domain.Error.
func (c *Client) do(ctx context.Context, method, path, token string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, &domain.Error{Kind: domain.KindValidation, Message: "serializar request", Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindNetwork, Message: "crear request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.Error{Kind: domain.KindNetwork, Message: "timeout o cancelación", Err: ctx.Err()}
		}
		return nil, &domain.Error{Kind: domain.KindNetwork, Message: "llamada HTTP fallida", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindNetwork, Status: resp.StatusCode, Message: "leer respuesta", Err: err}
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("backend")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromBody(resp.StatusCode, raw)
	}
	// Algunos endpoints responden 200 con {"statusCode": 4xx, "message": ...}.
	if sc := gjson.GetBytes(raw, "statusCode"); sc.Type == gjson.Number && sc.Int() >= 400 {
		return nil, errorFromBody(int(sc.Int()), raw)
	}
	return raw, nil
}

// errorFromBody construye el error tipado a partir del status y del cuerpo de error.
func errorFromBody(status int, raw []byte) *domain.Error {
	msg := ""
	if gjson.ValidBytes(raw) {
		for _, path := range []string{"message", "error.message", "error", "detail"} {
			if r := gjson.GetBytes(raw, path); r.Exists() && r.Type == gjson.String && r.String() != "" {
				msg = r.String()
				break
			}
		}
		// message puede venir como arreglo de errores de validación
		if msg == "" {
			if r := gjson.GetBytes(raw, "message.0"); r.Exists() {
				msg = r.String()
			}
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &domain.Error{Kind: domain.KindFromStatus(status), Status: status, Message: msg}
}

// unwrap devuelve el contenido de un sobre {"data": ...} si existe; si no, el cuerpo tal cual.
func unwrap(raw []byte, keys ...string) []byte {
	for _, k := range keys {
		if r := gjson.GetBytes(raw, k); r.Exists() && (r.IsObject() || r.IsArray()) {
			return []byte(r.Raw)
		}
	}
	return raw
}

func decode(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.Error{Kind: domain.KindDecode, Message: "respuesta no decodificable", Err: err}
	}
	return nil
}
