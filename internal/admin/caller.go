// Package admin ejecuta las operaciones privilegiadas con la identidad admin global.
//
// Caller recupera un 401 haciendo un único re-login y un único reintento.
// Un segundo 401 seguido se devuelve tal cual.
package admin

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/credential"
	"github.com/dropDatabas3/iamprobe/internal/observability/logger"
)

// Call es una llamada privilegiada parametrizada por el token vigente.
type Call func(ctx context.Context, token string) (*api.Response, error)

type Caller struct {
	client *api.Client
	creds  credential.Provider
}

func NewCaller(client *api.Client, creds credential.Provider) *Caller {
	return &Caller{client: client, creds: creds}
}

// Client expone el cliente subyacente (llamadas no privilegiadas del mismo escenario).
func (c *Caller) Client() *api.Client { return c.client }

// Credentials expone el provider (teardown lo invalida tras el logout).
func (c *Caller) Credentials() credential.Provider { return c.creds }

// Do invoca call con el token actual; ante 401 refresca y reintenta exactamente una vez.
func (c *Caller) Do(ctx context.Context, op string, call Call) (*api.Response, error) {
	tok, err := c.creds.Current(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := call(ctx, tok)
	if err != nil || resp.Status != http.StatusUnauthorized {
		return resp, err
	}

	logger.From(ctx).Warn("privileged call unauthorized, re-login",
		logger.Component("admin"), logger.Op(op))

	tok, err = c.creds.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return call(ctx, tok)
}

func (c *Caller) CreateUsers(ctx context.Context, users []api.User, leniency string) (*api.Response, error) {
	return c.Do(ctx, "create_users", func(ctx context.Context, tok string) (*api.Response, error) {
		return c.client.CreateUsers(ctx, tok, users, leniency)
	})
}

func (c *Caller) DeleteUsers(ctx context.Context, identifiers []string, hard, leniency string) (*api.Response, error) {
	return c.Do(ctx, "delete_users", func(ctx context.Context, tok string) (*api.Response, error) {
		return c.client.DeleteUsers(ctx, tok, identifiers, hard, leniency)
	})
}

func (c *Caller) ReadUsers(ctx context.Context, identifiers []string, leniency string) (*api.Response, error) {
	return c.Do(ctx, "read_users", func(ctx context.Context, tok string) (*api.Response, error) {
		return c.client.ReadUsers(ctx, tok, identifiers, leniency)
	})
}

func (c *Caller) UpdateUsers(ctx context.Context, users []api.User, leniency string) (*api.Response, error) {
	return c.Do(ctx, "update_users", func(ctx context.Context, tok string) (*api.Response, error) {
		return c.client.UpdateUsers(ctx, tok, users, leniency)
	})
}

func (c *Caller) CreateRoles(ctx context.Context, roles []api.Role, leniency string) (*api.Response, error) {
	return c.Do(ctx, "create_roles", func(ctx context.Context, tok string) (*api.Response, error) {
		return c.client.CreateRoles(ctx, tok, roles, leniency)
	})
}

func (c *Caller) DeleteRoles(ctx context.Context, names []string, force, leniency string) (*api.Response, error) {
	return c.Do(ctx, "delete_roles", func(ctx context.Context, tok string) (*api.Response, error) {
		return c.client.DeleteRoles(ctx, tok, names, force, leniency)
	})
}

func (c *Caller) ReadRoles(ctx context.Context, names []string, leniency string) (*api.Response, error) {
	return c.Do(ctx, "read_roles", func(ctx context.Context, tok string) (*api.Response, error) {
		return c.client.ReadRoles(ctx, tok, names, leniency)
	})
}

func (c *Caller) UpdateRoles(ctx context.Context, roles []api.Role, leniency string) (*api.Response, error) {
	return c.Do(ctx, "update_roles", func(ctx context.Context, tok string) (*api.Response, error) {
		return c.client.UpdateRoles(ctx, tok, roles, leniency)
	})
}

func (c *Caller) ReadPermissions(ctx context.Context, names []string, leniency string) (*api.Response, error) {
	return c.Do(ctx, "read_permissions", func(ctx context.Context, tok string) (*api.Response, error) {
		return c.client.ReadPermissions(ctx, tok, names, leniency)
	})
}

// AdminLogin arma el LoginFunc del provider para la identidad fija.
func AdminLogin(client *api.Client, username, password string) credential.LoginFunc {
	return func(ctx context.Context) (string, error) {
		return client.AccessToken(ctx, username, password)
	}
}
