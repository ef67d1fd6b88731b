package api

import (
	"encoding/json"
	"net/http"

	"github.com/buger/jsonparser"
)

// Response es de solo lectura para los consumidores.
type Response struct {
	Status int
	Header http.Header

	body   []byte
	method string
	path   string
}

// Bytes retorna una copia del cuerpo crudo.
func (r *Response) Bytes() []byte {
	return append([]byte(nil), r.body...)
}

// Text retorna el cuerpo como string (útil para mensajes de error del servidor).
func (r *Response) Text() string { return string(r.body) }

// String busca un campo string por path JSON ("a", "b", ...). Vacío si no existe.
func (r *Response) String(keys ...string) string {
	v, err := jsonparser.GetString(r.body, keys...)
	if err != nil {
		return ""
	}
	return v
}

// Int busca un campo numérico por path JSON.
func (r *Response) Int(keys ...string) (int64, bool) {
	v, err := jsonparser.GetInt(r.body, keys...)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Has indica si el path JSON existe en el cuerpo.
func (r *Response) Has(keys ...string) bool {
	_, _, _, err := jsonparser.Get(r.body, keys...)
	return err == nil
}

func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.body, v)
}

func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

func (r *Response) Method() string { return r.method }
func (r *Response) Path() string   { return r.path }

// NewResponse construye una respuesta fuera del Client (fakes y tests).
func NewResponse(status int, body []byte) *Response {
	return &Response{Status: status, Header: http.Header{}, body: body}
}
