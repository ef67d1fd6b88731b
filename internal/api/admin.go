package api

import (
	"context"
	"net/http"
)

// Endpoints /admin/*. leniency/hard/force en blanco se omiten del query.

func (c *Client) CreateUsers(ctx context.Context, token string, users []User, leniency string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/admin/create/users", token, map[string]string{"leniency": leniency}, users)
}

func (c *Client) DeleteUsers(ctx context.Context, token string, identifiers []string, hard, leniency string) (*Response, error) {
	return c.send(ctx, http.MethodDelete, "/admin/delete/users", token, map[string]string{"hard": hard, "leniency": leniency}, identifiers)
}

func (c *Client) ReadUsers(ctx context.Context, token string, identifiers []string, leniency string) (*Response, error) {
	return c.send(ctx, http.MethodGet, "/admin/read/users", token, map[string]string{"leniency": leniency}, identifiers)
}

func (c *Client) UpdateUsers(ctx context.Context, token string, users []User, leniency string) (*Response, error) {
	return c.send(ctx, http.MethodPut, "/admin/update/users", token, map[string]string{"leniency": leniency}, users)
}

func (c *Client) CreateRoles(ctx context.Context, token string, roles []Role, leniency string) (*Response, error) {
	return c.send(ctx, http.MethodPost, "/admin/create/roles", token, map[string]string{"leniency": leniency}, roles)
}

func (c *Client) DeleteRoles(ctx context.Context, token string, names []string, force, leniency string) (*Response, error) {
	return c.send(ctx, http.MethodDelete, "/admin/delete/roles", token, map[string]string{"force": force, "leniency": leniency}, names)
}

func (c *Client) ReadRoles(ctx context.Context, token string, names []string, leniency string) (*Response, error) {
	return c.send(ctx, http.MethodGet, "/admin/read/roles", token, map[string]string{"leniency": leniency}, names)
}

func (c *Client) UpdateRoles(ctx context.Context, token string, roles []Role, leniency string) (*Response, error) {
	return c.send(ctx, http.MethodPut, "/admin/update/roles", token, map[string]string{"leniency": leniency}, roles)
}

func (c *Client) ReadPermissions(ctx context.Context, token string, names []string, leniency string) (*Response, error) {
	return c.send(ctx, http.MethodGet, "/admin/read/permissions", token, map[string]string{"leniency": leniency}, names)
}
