package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/iamprobe/internal/invoke"
)

type seen struct {
	method, path, rawQuery string
	header                 http.Header
	body                   []byte
}

func recorder(t *testing.T, status int, reply string) (*httptest.Server, chan seen) {
	t.Helper()
	ch := make(chan seen, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ch <- seen{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Clone(), b}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestRequest_Immutable(t *testing.T) {
	base := NewRequest(http.MethodGet, "/x")
	a := base.WithQuery("k", "1").WithHeader("H", "a")
	b := a.WithQuery("k", "2")

	assert.Empty(t, base.Query())
	assert.Equal(t, "1", a.Query().Get("k"))
	assert.Equal(t, "2", b.Query().Get("k"))
	assert.Equal(t, "a", b.Header().Get("H"))

	// blank flags are dropped
	assert.Empty(t, base.WithQuery("leniency", "  ").Query())
	assert.Empty(t, base.WithBearer("").Header().Get("Authorization"))
}

func TestClient_LoginSendsQueryAndDeviceHeader(t *testing.T) {
	srv, ch := recorder(t, http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_in_seconds":900}`)
	c := New(Options{BaseURL: srv.URL})

	tok, err := c.AccessToken(context.Background(), "alice", "p@ss")
	require.NoError(t, err)
	assert.Equal(t, "at", tok)

	got := <-ch
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/v1/auth/login", got.path)
	assert.Contains(t, got.rawQuery, "usernameOrEmail=alice")
	assert.Contains(t, got.rawQuery, "password=p%40ss")
	assert.Equal(t, DefaultDeviceID, got.header.Get(DeviceIDHeader))
	assert.Empty(t, got.body)
}

func TestClient_AdminDeleteUsers(t *testing.T) {
	srv, ch := recorder(t, http.StatusOK, `{"message":"Users deleted successfully"}`)
	c := New(Options{BaseURL: srv.URL, BasePath: "/api/v1/", DeviceID: "dev-9"})

	resp, err := c.DeleteUsers(context.Background(), "tok", []string{"a@x.test", "bob"}, Enable, "")
	require.NoError(t, err)
	require.NoError(t, Expect(resp, http.StatusOK))
	assert.Equal(t, "Users deleted successfully", resp.String("message"))

	got := <-ch
	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, "/api/v1/admin/delete/users", got.path)
	assert.Equal(t, "hard=enable", got.rawQuery)
	assert.Equal(t, "Bearer tok", got.header.Get("Authorization"))
	assert.Equal(t, "dev-9", got.header.Get(DeviceIDHeader))
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))

	var ids []string
	require.NoError(t, json.Unmarshal(got.body, &ids))
	assert.Equal(t, []string{"a@x.test", "bob"}, ids)
}

func TestExpect_StatusMismatch(t *testing.T) {
	srv, _ := recorder(t, http.StatusBadRequest, `{"message":"Mfa is already enabled"}`)
	c := New(Options{BaseURL: srv.URL})

	resp, err := c.RequestMFAToggle(context.Background(), "tok", EmailMFA, Enable)
	require.NoError(t, err)

	err = Expect(resp, http.StatusOK)
	require.ErrorIs(t, err, ErrStatusMismatch)

	var sm *StatusMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, http.StatusBadRequest, sm.Got)
	assert.Equal(t, []int{http.StatusOK}, sm.Want)
	assert.Equal(t, "/auth/mfa/requestTo/toggle", sm.Path)
	assert.Contains(t, err.Error(), "Mfa is already enabled")

	assert.NoError(t, Expect(resp, http.StatusOK, http.StatusBadRequest))
}

func TestClient_TimeoutIsFatal(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() { close(release); srv.Close() })

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.GetSelfDetails(context.Background(), "tok")
	assert.ErrorIs(t, err, invoke.ErrTimeout)
}

func TestResponse_Accessors(t *testing.T) {
	r := NewResponse(200, []byte(`{"a":{"b":"c"},"n":42}`))
	assert.Equal(t, "c", r.String("a", "b"))
	assert.Equal(t, "", r.String("missing"))
	n, ok := r.Int("n")
	assert.True(t, ok)
	assert.EqualValues(t, 42, n)
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("z"))
}
