package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/credential"
	"github.com/dropDatabas3/iamprobe/internal/iamfake"
)

type stubCreds struct {
	token     string
	refreshes int
	err       error
}

func (s *stubCreds) Current(context.Context) (string, error) { return s.token, nil }
func (s *stubCreds) Refresh(context.Context) (string, error) {
	s.refreshes++
	if s.err != nil {
		return "", s.err
	}
	s.token = "fresh"
	return s.token, nil
}

func TestCaller_RecoversSingle401(t *testing.T) {
	creds := &stubCreds{token: "stale"}
	c := NewCaller(nil, creds)

	var seen []string
	resp, err := c.Do(context.Background(), "op", func(_ context.Context, tok string) (*api.Response, error) {
		seen = append(seen, tok)
		if tok == "stale" {
			return api.NewResponse(http.StatusUnauthorized, nil), nil
		}
		return api.NewResponse(http.StatusOK, []byte(`{"ok":true}`)), nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []string{"stale", "fresh"}, seen)
	assert.Equal(t, 1, creds.refreshes)
}

func TestCaller_SecondConsecutive401ReturnedAsIs(t *testing.T) {
	creds := &stubCreds{token: "stale"}
	c := NewCaller(nil, creds)

	calls := 0
	second := api.NewResponse(http.StatusUnauthorized, []byte(`{"message":"Invalid token"}`))
	resp, err := c.Do(context.Background(), "op", func(context.Context, string) (*api.Response, error) {
		calls++
		if calls == 1 {
			return api.NewResponse(http.StatusUnauthorized, nil), nil
		}
		return second, nil
	})
	require.NoError(t, err)
	assert.Same(t, second, resp)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, creds.refreshes)
}

func TestCaller_NonAuthFailuresUntouched(t *testing.T) {
	creds := &stubCreds{token: "t"}
	c := NewCaller(nil, creds)

	resp, err := c.Do(context.Background(), "op", func(context.Context, string) (*api.Response, error) {
		return api.NewResponse(http.StatusForbidden, nil), nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	boom := errors.New("connection reset")
	_, err = c.Do(context.Background(), "op", func(context.Context, string) (*api.Response, error) {
		return nil, boom
	})
	assert.Same(t, boom, err)
	assert.Zero(t, creds.refreshes)
}

func TestCaller_RefreshFailureSurfaces(t *testing.T) {
	creds := &stubCreds{token: "stale", err: credential.ErrAuthExpired}
	c := NewCaller(nil, creds)
	_, err := c.Do(context.Background(), "op", func(context.Context, string) (*api.Response, error) {
		return api.NewResponse(http.StatusUnauthorized, nil), nil
	})
	assert.ErrorIs(t, err, credential.ErrAuthExpired)
}

// newLive arma Caller + LoginProvider contra el IAM falso.
func newLive(t *testing.T) (*iamfake.Server, *Caller, *credential.LoginProvider) {
	t.Helper()
	fake := iamfake.New(iamfake.Options{})
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client := api.New(api.Options{BaseURL: srv.URL})
	user, pass := fake.Admin()
	creds := credential.NewLoginProvider(AdminLogin(client, user, pass))
	return fake, NewCaller(client, creds), creds
}

func TestCaller_LiveExpiredTokenRefreshedOnce(t *testing.T) {
	fake, c, creds := newLive(t)
	ctx := context.Background()

	resp, err := c.CreateRoles(ctx, []api.Role{{RoleName: "ROLE_QA_1"}}, "")
	require.NoError(t, err)
	require.NoError(t, api.Expect(resp, http.StatusOK))
	assert.EqualValues(t, 0, creds.Refreshes())

	fake.ExpireTokens()
	resp, err = c.ReadRoles(ctx, []string{"ROLE_QA_1"}, "")
	require.NoError(t, err)
	require.NoError(t, api.Expect(resp, http.StatusOK))
	assert.EqualValues(t, 1, creds.Refreshes())
	assert.Equal(t, 2, fake.Calls("POST /auth/login"))

	fake.RejectAllTokens(true)
	resp, err = c.ReadPermissions(ctx, []string{"CAN_READ_USER"}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.EqualValues(t, 2, creds.Refreshes())
	assert.Equal(t, 2, fake.Calls("GET /admin/read/permissions"))
}
