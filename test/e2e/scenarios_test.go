package e2e

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/iamprobe/internal/api"
	"github.com/dropDatabas3/iamprobe/internal/mailbox"
	"github.com/dropDatabas3/iamprobe/internal/tracker"
)

func randomUsers(n int) []api.User {
	tag := uuid.NewString()[:8]
	out := make([]api.User, n)
	for i := range out {
		name := fmt.Sprintf("autotest_%s_%03d", tag, i)
		out[i] = api.User{
			Username:  name,
			Email:     name + "@example.test",
			Password:  "Auto@Test123",
			FirstName: "Auto",
			LastName:  "Test",
		}
	}
	return out
}

func TestAdmin_BulkCreateReadDelete(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	users := randomUsers(suite.Limits.UserCreate + 3)
	require.NoError(t, suite.CreateUsers(ctx, users...))

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.Username
	}
	resp, err := suite.Admin.ReadUsers(ctx, ids[:suite.Limits.UserCreate], "")
	require.NoError(t, err)
	require.NoError(t, api.Expect(resp, http.StatusOK))

	require.NoError(t, suite.Bulk.DeleteUsersAlternating(ctx, users, api.Enable, ""))
	n, err := suite.Tracked.Len(ctx, tracker.User)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMFA_AuthenticatorApp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	u := randomUsers(1)[0]
	require.NoError(t, suite.CreateUsers(ctx, u))
	tok, err := suite.Client.AccessToken(ctx, u.Username, u.Password)
	require.NoError(t, err)

	flow := suite.MFA
	secret, err := flow.EnableAuthenticatorApp(ctx, tok)
	require.NoError(t, err)

	tokens, err := flow.LoginWithTOTP(ctx, u.Username, u.Password, secret)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
}

func TestMFA_Email(t *testing.T) {
	if suite.Mail == nil {
		t.Skip("mailbox not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	// el usuario recibe en el buzón de pruebas vía plus-addressing
	u := randomUsers(1)[0]
	u.Email = mailbox.PlusAddress(suite.Config().Mail.Address, u.Username)
	require.NoError(t, suite.CreateUsers(ctx, u))
	tok, err := suite.Client.AccessToken(ctx, u.Username, u.Password)
	require.NoError(t, err)

	require.NoError(t, suite.MFA.EnableEmailMFA(ctx, tok, u.Email))
	tokens, err := suite.MFA.LoginWithEmailOTP(ctx, u.Username, u.Password, u.Email)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
}
