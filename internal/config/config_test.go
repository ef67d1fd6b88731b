package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", c.API.BaseURL)
	assert.Equal(t, "api/v1", c.API.BasePath)
	assert.Equal(t, "Test-Device-001", c.API.DeviceID)
	assert.Equal(t, 30*time.Second, c.API.Timeout)
	assert.Equal(t, []string{"INBOX", "[Gmail]/Spam"}, c.Mail.Folders)
	assert.Equal(t, 60*time.Second, c.Mail.MaxWait)
	assert.Equal(t, 3*time.Second, c.Mail.PollInterval)
	assert.Equal(t, 993, c.Mail.IMAPPort)
	assert.True(t, *c.Mail.MarkSeen)
	assert.True(t, *c.Mail.Delete)
	assert.Equal(t, 34, c.Batch.UserCreate)
	assert.Equal(t, 100, c.Batch.UserRead)
	assert.Equal(t, "memory", c.Tracker.Kind)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	p := writeFile(t, "iamprobe.yaml", `
api:
  base_url: https://iam.example.test
  timeout: 5s
mail:
  folders: [INBOX]
  delete: false
batch:
  user_delete: 10
`)
	t.Setenv("GLOBAL_ADMIN_USERNAME", "root")
	t.Setenv("GLOBAL_ADMIN_PASSWORD", "secret")
	t.Setenv("TEST_EMAIL", "qa@example.test")
	t.Setenv("MAIL_POLL_INTERVAL", "500ms")

	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "https://iam.example.test", c.API.BaseURL)
	assert.Equal(t, 5*time.Second, c.API.Timeout)
	assert.Equal(t, []string{"INBOX"}, c.Mail.Folders)
	assert.False(t, *c.Mail.Delete)
	assert.True(t, *c.Mail.MarkSeen)
	assert.Equal(t, 10, c.Batch.UserDelete)
	assert.Equal(t, 500*time.Millisecond, c.Mail.PollInterval)
	assert.Equal(t, "root", c.Admin.Username)
	assert.Equal(t, "qa@example.test", c.Mail.Address)
	require.NoError(t, c.RequireAdmin())
	require.Error(t, c.RequireMailbox())
}

func TestLoad_RedisTrackerNeedsAddr(t *testing.T) {
	p := writeFile(t, "iamprobe.yaml", "tracker:\n  kind: redis\n")
	_, err := Load(p)
	require.Error(t, err)

	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	_, err = Load(p)
	require.NoError(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	p := writeFile(t, ".env", "IAMPROBE_DEVICE_ID=ci-runner-7\n")
	t.Setenv("IAMPROBE_DEVICE_ID", "")
	os.Unsetenv("IAMPROBE_DEVICE_ID")
	require.NoError(t, LoadDotEnv(p))
	t.Cleanup(func() { os.Unsetenv("IAMPROBE_DEVICE_ID") })

	assert.Equal(t, "ci-runner-7", Default().API.DeviceID)
}
