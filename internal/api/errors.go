package api

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrStatusMismatch = errors.New("api: unexpected status")

// StatusMismatchError lleva el contexto completo de la respuesta que no coincidió.
type StatusMismatchError struct {
	Method string
	Path   string
	Want   []int
	Got    int
	Body   string
}

func (e *StatusMismatchError) Error() string {
	want := make([]string, len(e.Want))
	for i, w := range e.Want {
		want[i] = fmt.Sprint(w)
	}
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s %s: expected status %s, got %d: %s",
		e.Method, e.Path, strings.Join(want, "|"), e.Got, body)
}

func (e *StatusMismatchError) Unwrap() error { return ErrStatusMismatch }

// Expect falla con *StatusMismatchError si resp.Status no es ninguno de want.
func Expect(resp *Response, want ...int) error {
	if resp == nil {
		return fmt.Errorf("%w: nil response", ErrStatusMismatch)
	}
	if slices.Contains(want, resp.Status) {
		return nil
	}
	return &StatusMismatchError{
		Method: resp.method,
		Path:   resp.path,
		Want:   append([]int(nil), want...),
		Got:    resp.Status,
		Body:   string(resp.body),
	}
}
