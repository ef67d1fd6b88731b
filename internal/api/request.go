package api

import (
	"net/http"
	"net/url"
	"strings"
)

// Request es una unidad de trabajo inmutable: cada With* devuelve una copia.
type Request struct {
	method string
	path   string
	header http.Header
	query  url.Values
	body   any
}

// NewRequest arma un request relativo al base path del Client (ej. "/auth/login").
func NewRequest(method, path string) Request {
	return Request{method: method, path: path}
}

func (r Request) clone() Request {
	out := r
	out.header = r.header.Clone()
	if r.query != nil {
		out.query = make(url.Values, len(r.query))
		for k, v := range r.query {
			out.query[k] = append([]string(nil), v...)
		}
	}
	return out
}

func (r Request) WithHeader(key, value string) Request {
	out := r.clone()
	if out.header == nil {
		out.header = http.Header{}
	}
	out.header.Set(key, value)
	return out
}

// WithBearer agrega Authorization: Bearer <token>. Token vacío no agrega nada.
func (r Request) WithBearer(token string) Request {
	if strings.TrimSpace(token) == "" {
		return r
	}
	return r.WithHeader("Authorization", "Bearer "+token)
}

// WithQuery agrega un query param. Los valores en blanco se omiten (flags opcionales).
func (r Request) WithQuery(key, value string) Request {
	if strings.TrimSpace(value) == "" {
		return r
	}
	out := r.clone()
	if out.query == nil {
		out.query = url.Values{}
	}
	out.query.Set(key, value)
	return out
}

// WithBody fija el cuerpo; se serializa como JSON al ejecutar.
func (r Request) WithBody(v any) Request {
	out := r.clone()
	out.body = v
	return out
}

func (r Request) Method() string      { return r.method }
func (r Request) Path() string        { return r.path }
func (r Request) Header() http.Header { return r.header.Clone() }
func (r Request) Query() url.Values   { return r.clone().query }
func (r Request) Body() any           { return r.body }
