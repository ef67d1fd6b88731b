package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/config"
	"github.com/dropDatabas3/iamprobe/internal/iamfake"
	"github.com/dropDatabas3/iamprobe/internal/mailbox/memstore"
	"github.com/dropDatabas3/iamprobe/internal/tracker"
)

func testConfig(t *testing.T, fake *iamfake.Server) *config.Config {
	t.Helper()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.API.BasePath = "api/v1"
	cfg.Admin.Username, cfg.Admin.Password = fake.Admin()
	cfg.Tracker.Kind = "memory"
	cfg.Mail.Address = ""
	cfg.Mail.Folders = []string{"INBOX"}
	cfg.Mail.MaxWait = time.Second
	cfg.Mail.PollInterval = 10 * time.Millisecond
	return cfg
}

func users(prefix string, n int) []api.User {
	out := make([]api.User, n)
	for i := range out {
		name := fmt.Sprintf("%s_%02d", prefix, i)
		out[i] = api.User{Username: name, Email: name + "@x.test", Password: "Pass@1234"}
	}
	return out
}

func TestSuite_SetupCreateTeardown(t *testing.T) {
	fake := iamfake.New(iamfake.Options{})
	cfg := testConfig(t, fake)
	ctx := context.Background()

	s, err := NewSuite(cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.NotEmpty(t, s.RunID)
	assert.Nil(t, s.Mail, "no mailbox configured")
	assert.NotNil(t, s.MFA)

	require.NoError(t, s.Setup(ctx))
	require.NoError(t, s.CreateUsers(ctx, users("suite_user", 40)...))
	require.NoError(t, s.CreateRoles(ctx, api.Role{RoleName: "ROLE_SUITE"}))

	// alta por registro público, trackeada a mano
	resp, err := s.Client.Register(ctx, api.User{Username: "self_reg", Email: "self_reg@x.test", Password: "Pass@1234"})
	require.NoError(t, err)
	require.NoError(t, api.Expect(resp, http.StatusOK))
	require.NoError(t, s.Track(ctx, tracker.User, "self_reg"))

	rep := s.Teardown(ctx)
	assert.Equal(t, 41, rep.UsersDeleted)
	assert.Equal(t, 1, rep.RolesDeleted)
	assert.Zero(t, rep.Failures)
	assert.False(t, fake.HasUser("suite_user_00"))
	assert.False(t, fake.HasUser("self_reg"))
	assert.False(t, fake.HasRole("ROLE_SUITE"))
	assert.True(t, fake.HasUser(cfg.Admin.Username))
	assert.Equal(t, 1, fake.Calls("POST /auth/logout"))

	_, cached := s.Creds.Cached()
	assert.False(t, cached)
}

func TestSuite_SetupRequiresAdmin(t *testing.T) {
	fake := iamfake.New(iamfake.Options{})
	cfg := testConfig(t, fake)
	cfg.Admin.Password = ""

	s, err := NewSuite(cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.Error(t, s.Setup(context.Background()))
	assert.Zero(t, fake.Calls("POST /auth/login"))
}

func TestSuite_SetupBadCredentials(t *testing.T) {
	fake := iamfake.New(iamfake.Options{})
	cfg := testConfig(t, fake)
	cfg.Admin.Password = "wrong"

	s, err := NewSuite(cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	err = s.Setup(context.Background())
	require.ErrorIs(t, err, api.ErrStatusMismatch)
}

func TestSuite_TeardownSwallowsFailures(t *testing.T) {
	fake := iamfake.New(iamfake.Options{})
	cfg := testConfig(t, fake)
	ctx := context.Background()

	s, err := NewSuite(cfg, WithRegisterer(prometheus.NewRegistry()), WithTracker(tracker.NewMemory()))
	require.NoError(t, err)
	require.NoError(t, s.Setup(ctx))
	require.NoError(t, s.CreateUsers(ctx, users("flaky", 3)...))

	fake.FailDeletes(1)
	rep := s.Teardown(ctx)
	assert.Equal(t, 1, rep.Failures)
	assert.Zero(t, rep.UsersDeleted)

	// el set se vacía igual; lo que quedó en el servidor se ve en el log
	n, err := s.Tracked.Len(ctx, tracker.User)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, fake.HasUser("flaky_00"))
}

func TestSuite_RedisTracker(t *testing.T) {
	mr := miniredis.RunT(t)
	fake := iamfake.New(iamfake.Options{})
	cfg := testConfig(t, fake)
	cfg.Tracker.Kind = "redis"
	cfg.Tracker.Redis.Addr = mr.Addr()
	cfg.Tracker.RunID = "run-42"
	ctx := context.Background()

	s, err := NewSuite(cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Equal(t, "run-42", s.RunID)
	require.NoError(t, s.Setup(ctx))
	require.NoError(t, s.CreateUsers(ctx, users("redis_user", 2)...))

	members, err := mr.Members(cfg.Tracker.Redis.Prefix + ":run-42:user")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"redis_user_00", "redis_user_01"}, members)

	rep := s.Teardown(ctx)
	assert.Equal(t, 2, rep.UsersDeleted)
	assert.False(t, mr.Exists(cfg.Tracker.Redis.Prefix+":run-42:user"))
}

func TestSuite_MailStoreWiresMFA(t *testing.T) {
	store := memstore.New("INBOX")
	fake := iamfake.New(iamfake.Options{Mail: store})
	cfg := testConfig(t, fake)
	ctx := context.Background()

	s, err := NewSuite(cfg, WithRegisterer(prometheus.NewRegistry()), WithMailStore(store))
	require.NoError(t, err)
	require.NotNil(t, s.Mail)
	require.NoError(t, s.Setup(ctx))

	u := users("mail_user", 1)[0]
	require.NoError(t, s.CreateUsers(ctx, u))
	tok, err := s.Client.AccessToken(ctx, u.Username, u.Password)
	require.NoError(t, err)

	require.NoError(t, s.MFA.EnableEmailMFA(ctx, tok, u.Email))
	tokens, err := s.MFA.LoginWithEmailOTP(ctx, u.Username, u.Password, u.Email)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)

	assert.Equal(t, 1, s.Teardown(ctx).UsersDeleted)
}
